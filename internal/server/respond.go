package server

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/julianstephens/seatwise/internal/errors"
	"github.com/julianstephens/seatwise/internal/logger"
	"github.com/julianstephens/seatwise/internal/storage"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	// Retryable is true when the client may re-evaluate and try again.
	Retryable bool `json:"retryable,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("Failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, msg string) {
	respondJSON(w, status, errorBody{Error: msg, Code: code})
}

// statusFor maps an engine error onto an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	var domain *apperrors.Error
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, storage.ErrCapacityExhausted):
		return http.StatusConflict, "capacity_exhausted"
	case errors.Is(err, storage.ErrIllegalTransition):
		return http.StatusBadRequest, "illegal_transition"
	case errors.As(err, &domain):
		switch domain.Kind {
		case apperrors.KindContention:
			return http.StatusConflict, string(domain.Kind)
		case apperrors.KindConfiguration:
			return http.StatusUnprocessableEntity, string(domain.Kind)
		case apperrors.KindInvariant:
			return http.StatusInternalServerError, string(domain.Kind)
		}
	}
	return http.StatusInternalServerError, "internal"
}

func respondEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	respondJSON(w, status, errorBody{Error: err.Error(), Code: code, Retryable: apperrors.IsRetryable(err)})
}
