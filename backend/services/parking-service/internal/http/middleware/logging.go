package middleware

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPObserver records finished requests.
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, elapsed time.Duration)
}

const routeKey contextKey = "route"

type routeHolder struct {
	pattern string
}

// SetRoute records the matched route pattern for logging and metrics.
func SetRoute(r *http.Request, pattern string) {
	if h, ok := r.Context().Value(routeKey).(*routeHolder); ok {
		h.pattern = pattern
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("middleware: response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Logging logs each request and reports it to observer, which may be nil.
func Logging(logger *zap.Logger, observer HTTPObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			holder := &routeHolder{pattern: "unmatched"}
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), routeKey, holder)))

			elapsed := time.Since(start)
			if observer != nil {
				observer.ObserveHTTP(r.Method, holder.pattern, rec.status, elapsed)
			}
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", holder.pattern),
				zap.Int("status", rec.status),
				zap.Duration("duration", elapsed),
			)
		})
	}
}
