package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	ecat "github.com/anatolykoptev/go-ecat"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, logger *slog.Logger, status int, err error) {
	if status >= http.StatusInternalServerError {
		logger.Error("handler error", "error", err, "status", status)
	} else {
		logger.Debug("request rejected", "error", err, "status", status)
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps scan errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ecat.ErrMissingCaseField), errors.Is(err, ecat.ErrInvalidCaseField):
		return http.StatusBadRequest
	case errors.Is(err, ecat.ErrUnreadableImage), errors.Is(err, ecat.ErrInvalidRegion):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadForm):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
