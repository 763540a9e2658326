package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"sparkpark/backend/services/parking-service/internal/auth"
	apperrors "sparkpark/backend/services/parking-service/internal/errors"
	"sparkpark/backend/services/parking-service/internal/http/middleware"
)

// AuthHandlers serves sign-up, sign-in, sign-out and password reset.
type AuthHandlers struct {
	svc              *auth.Service
	logger           *zap.Logger
	exposeResetToken bool
}

// AuthOption configures AuthHandlers.
type AuthOption func(*AuthHandlers)

// WithExposedResetTokens logs reset tokens and returns them in the forgot-password response.
// Meant for development setups that have no mailer.
func WithExposedResetTokens() AuthOption {
	return func(h *AuthHandlers) { h.exposeResetToken = true }
}

// NewAuthHandlers returns handler.
func NewAuthHandlers(svc *auth.Service, logger *zap.Logger, opts ...AuthOption) *AuthHandlers {
	h := &AuthHandlers{svc: svc, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup handles POST /auth/signup.
func (h *AuthHandlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	session, err := h.svc.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// Login handles POST /auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	session, err := h.svc.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Anonymous handles POST /auth/anonymous.
func (h *AuthHandlers) Anonymous(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.SignInAnonymously(r.Context())
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// Logout handles POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, apperrors.CodeAuth, "unauthorized")
		return
	}
	if err := h.svc.SignOut(r.Context(), claims); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type forgotPasswordResponse struct {
	Status     string `json:"status"`
	ResetToken string `json:"reset_token,omitempty"`
}

// ForgotPassword handles POST /auth/password/forgot. The response is the same whether or not the
// address is registered.
func (h *AuthHandlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	token, err := h.svc.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	resp := forgotPasswordResponse{Status: "accepted"}
	if h.exposeResetToken && token != "" {
		h.logger.Info("password reset token issued", zap.String("reset_token", token))
		resp.ResetToken = token
	}
	writeJSON(w, http.StatusAccepted, resp)
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ResetPassword handles POST /auth/password/reset.
func (h *AuthHandlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	session, err := h.svc.ResetPassword(r.Context(), req.Token, req.Password)
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}
