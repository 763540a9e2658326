package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"sparkpark/backend/services/parking-service/internal/auth"
	apperrors "sparkpark/backend/services/parking-service/internal/errors"
	"sparkpark/backend/services/parking-service/internal/gateway"
)

type contextKey string

const claimsKey contextKey = "claims"

// Verifier resolves a bearer token.
type Verifier interface {
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

// Authenticate attaches a gateway.Identity to every request. A valid bearer token (or access_token
// query parameter, for browsers opening a WebSocket) binds its principal; no token leaves the
// identity empty so a principal can be created during the request. A bad token is rejected.
func Authenticate(verifier Verifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "invalid authorization header")
				return
			}
			if token == "" {
				ctx := gateway.WithIdentity(r.Context(), gateway.NewIdentity(""))
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if apperrors.IsTransport(err) {
					logger.Error("token check unavailable", zap.Error(err))
					writeError(w, http.StatusBadGateway, apperrors.CodeTransport, "auth backend unavailable")
					return
				}
				logger.Debug("token rejected", zap.Error(err))
				unauthorized(w, "invalid token")
				return
			}

			ctx := gateway.WithPrincipal(r.Context(), claims.PrincipalID)
			ctx = context.WithValue(ctx, claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests that carry no valid token.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFromContext(r.Context()); !ok {
			unauthorized(w, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClaimsFromContext returns the verified token claims.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}

// bearerToken returns the request's token, "" when none was sent, and ok=false when the
// Authorization header is malformed.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return strings.TrimSpace(r.URL.Query().Get("access_token")), true
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, apperrors.CodeAuth, message)
}

func writeError(w http.ResponseWriter, status int, code apperrors.Code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "code": string(code)})
}
