package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"sparkpark/backend/services/parking-service/internal/auth"
	apperrors "sparkpark/backend/services/parking-service/internal/errors"
	"sparkpark/backend/services/parking-service/internal/gateway"
	"sparkpark/backend/services/parking-service/internal/service"
)

// AuthTokenHeader carries a token issued for a principal created during the request.
const AuthTokenHeader = "X-Auth-Token"

// TokenIssuer signs in a principal that already exists.
type TokenIssuer interface {
	IssueFor(principalID string, anonymous bool) (*auth.Session, error)
}

// SessionsHandlers serves parking sessions and receipts for the caller.
type SessionsHandlers struct {
	svc    *service.ParkingService
	tokens TokenIssuer
	logger *zap.Logger
}

// NewSessionsHandlers returns handler.
func NewSessionsHandlers(svc *service.ParkingService, tokens TokenIssuer, logger *zap.Logger) *SessionsHandlers {
	return &SessionsHandlers{svc: svc, tokens: tokens, logger: logger}
}

type startRequest struct {
	ZoneID string `json:"zone_id"`
}

// Start handles POST /sessions. A caller without a token gets an anonymous principal, whose token
// is returned in the X-Auth-Token header.
func (h *SessionsHandlers) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	if req.ZoneID == "" {
		writeError(w, http.StatusBadRequest, apperrors.CodeValidation, "zone_id is required")
		return
	}

	session, err := h.svc.StartSession(r.Context(), req.ZoneID)
	if identity := gateway.IdentityFromContext(r.Context()); identity.CreatedAnonymously() {
		// Hand out the token even when the start itself failed, so a retry reuses the principal.
		issued, issueErr := h.tokens.IssueFor(identity.PrincipalID(), true)
		if issueErr != nil {
			h.logger.Error("issue anonymous token", zap.Error(issueErr))
		} else {
			w.Header().Set(AuthTokenHeader, issued.Token)
		}
	}
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// Active handles GET /sessions/active.
func (h *SessionsHandlers) Active(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.svc.ActiveSessions(r.Context())
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// Stop handles POST /sessions/{id}/stop.
func (h *SessionsHandlers) Stop(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.svc.StopSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// Receipts handles GET /receipts.
func (h *SessionsHandlers) Receipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := h.svc.Receipts(r.Context())
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}
