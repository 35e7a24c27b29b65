// internal/server/handlers/respond.go

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"civicpulse/internal/domain/geo"
	"civicpulse/internal/domain/rollup"
)

// Helper for JSON responses
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Failed to marshal response"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// Helper for error responses
func respondWithError(w http.ResponseWriter, logger *zap.Logger, code int, message string, err error) {
	if err != nil && code >= 500 {
		logger.Error("HTTP error",
			zap.Int("code", code),
			zap.String("message", message),
			zap.Error(err),
		)
	}

	respondWithJSON(w, code, map[string]string{"error": message})
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, rollup.ErrNotFound), errors.Is(err, geo.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, rollup.ErrInvalidWindow):
		return http.StatusBadRequest
	case errors.Is(err, rollup.ErrDataFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// parseDate parses a YYYY-MM-DD calendar day in UTC
func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, s, time.UTC)
}
