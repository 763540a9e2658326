package httpserver

import (
	"net/http"

	"sparkpark/backend/services/parking-service/internal/http/handlers"
	"sparkpark/backend/services/parking-service/internal/http/middleware"
)

// RouterDeps collects handler dependencies.
type RouterDeps struct {
	AuthHandlers     *handlers.AuthHandlers
	ZonesHandlers    *handlers.ZonesHandlers
	SessionsHandlers *handlers.SessionsHandlers
	LiveFeed         http.Handler
	HealthHandler    http.HandlerFunc
	MetricsHandler   http.Handler
}

// NewRouter wires HTTP routes. authMiddleware resolves the caller for every route below /auth,
// /zones, /sessions, /receipts and /ws.
func NewRouter(deps RouterDeps, authMiddleware func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	handle := func(pattern string, handler http.Handler) {
		mux.Handle(pattern, route(pattern, handler))
	}
	withAuth := func(handler http.HandlerFunc) http.Handler {
		return middleware.Chain(handler, authMiddleware)
	}
	requireAuth := func(handler http.Handler) http.Handler {
		return middleware.Chain(handler, authMiddleware, middleware.RequireAuth)
	}

	handle("GET /health", deps.HealthHandler)
	if deps.MetricsHandler != nil {
		handle("GET /metrics", deps.MetricsHandler)
	}

	handle("POST /auth/signup", http.HandlerFunc(deps.AuthHandlers.Signup))
	handle("POST /auth/login", http.HandlerFunc(deps.AuthHandlers.Login))
	handle("POST /auth/anonymous", withAuth(deps.AuthHandlers.Anonymous))
	handle("POST /auth/logout", requireAuth(http.HandlerFunc(deps.AuthHandlers.Logout)))
	handle("POST /auth/password/forgot", http.HandlerFunc(deps.AuthHandlers.ForgotPassword))
	handle("POST /auth/password/reset", http.HandlerFunc(deps.AuthHandlers.ResetPassword))

	handle("GET /zones", http.HandlerFunc(deps.ZonesHandlers.List))
	handle("GET /zones/{id}", http.HandlerFunc(deps.ZonesHandlers.Get))

	handle("POST /sessions", withAuth(deps.SessionsHandlers.Start))
	handle("GET /sessions/active", withAuth(deps.SessionsHandlers.Active))
	handle("POST /sessions/{id}/stop", withAuth(deps.SessionsHandlers.Stop))
	handle("GET /receipts", withAuth(deps.SessionsHandlers.Receipts))

	if deps.LiveFeed != nil {
		handle("GET /ws/sessions/active", requireAuth(deps.LiveFeed))
	}

	return mux
}

// route tags the request with its pattern for the logging middleware.
func route(pattern string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.SetRoute(r, pattern)
		handler.ServeHTTP(w, r)
	})
}
