package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aretw0/switchlink/pkg/domain"
)

// errorBody is returned when no projected response is available.
type errorBody struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

// statusOf maps an error onto the HTTP status returned to callers.
func statusOf(err error) int {
	var vErr *domain.ValidationError
	var tErr *domain.TimeoutError
	switch {
	case errors.Is(err, domain.ErrNoCachedData):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTransitionInProgress):
		return http.StatusConflict
	case errors.As(err, &vErr):
		return http.StatusBadRequest
	case errors.As(err, &tErr):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(logger *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "error", err)
	}
}

// writeError answers with the projected response when there is one.
func writeError(logger *slog.Logger, w http.ResponseWriter, err error, projected any) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request rejected", "status", status, "error", err)
	}
	if projected != nil {
		writeJSON(logger, w, status, projected)
		return
	}
	writeJSON(logger, w, status, errorBody{Message: err.Error(), StatusCode: status})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &domain.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}
