package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"inferd/internal/manager"
	"inferd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case errors.As(err, &he):
		return he.StatusCode()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case manager.IsModelNotFound(err):
		return http.StatusNotFound
	case manager.IsNotLoaded(err):
		return http.StatusConflict
	case manager.IsInvalidConfig(err):
		return http.StatusBadRequest
	case manager.IsPredictionFailed(err):
		return http.StatusUnprocessableEntity
	case manager.IsLoadFailed(err):
		return http.StatusBadGateway
	case manager.IsShutdown(err):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// headers are already out; nothing more to report to the client
		return
	}
}
