package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Pinger reports whether a dependency is reachable.
type Pinger func(ctx context.Context) error

// Health answers GET /health with the state of each named dependency.
func Health(checks map[string]Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		result := map[string]string{"status": "ok"}
		for name, ping := range checks {
			if err := ping(ctx); err != nil {
				logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
				result[name] = "unavailable"
				result["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			result[name] = "ok"
		}
		writeJSON(w, status, result)
	}
}
