package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	apperrors "sparkpark/backend/services/parking-service/internal/errors"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code apperrors.Code, message string) {
	writeJSON(w, status, map[string]string{"error": message, "code": string(code)})
}

// statusFor maps an error code to the HTTP status returned to clients.
func statusFor(code apperrors.Code) int {
	switch code {
	case apperrors.CodeAuth:
		return http.StatusUnauthorized
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeConflict:
		return http.StatusConflict
	case apperrors.CodeValidation:
		return http.StatusBadRequest
	case apperrors.CodeTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError answers with the status for err's code. Unclassified errors are logged and
// reported without detail.
func writeAppError(w http.ResponseWriter, logger *zap.Logger, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, apperrors.CodeInternal, "internal error")
		return
	}

	status := statusFor(appErr.Code)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
	}
	message := appErr.Message
	if appErr.Code == apperrors.CodeInternal {
		message = "internal error"
	}
	writeError(w, status, appErr.Code, message)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.Validation("request body is empty")
		}
		return apperrors.Validation("invalid request body")
	}
	return nil
}
