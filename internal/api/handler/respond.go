package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/notifyhub/dispatch/internal/domain"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// mapError translates domain sentinel errors to HTTP status codes.
// All mapping lives here so individual handlers stay concise.
func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDuplicate),
		errors.Is(err, domain.ErrMissingUserID),
		errors.Is(err, domain.ErrMissingPayload),
		errors.Is(err, domain.ErrInvalidMessageType),
		errors.Is(err, domain.ErrInvalidProvider),
		errors.Is(err, domain.ErrInvalidMaxRetries),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrNotCancellable),
		errors.Is(err, domain.ErrAlreadyInDLQ),
		errors.Is(err, domain.ErrDLQResolved),
		errors.Is(err, domain.ErrBulkEmpty):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
