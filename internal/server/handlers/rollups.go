// internal/server/handlers/rollups.go

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"civicpulse/internal/domain/rollup"
	"civicpulse/internal/logging"
)

// RollupHandler serves persisted rollups
type RollupHandler struct {
	reader rollup.Reader
	logger *zap.Logger
}

// NewRollupHandler creates a new rollup handler
func NewRollupHandler(reader rollup.Reader, logger *zap.Logger) *RollupHandler {
	return &RollupHandler{
		reader: reader,
		logger: logging.OrNop(logger),
	}
}

// ListRollups returns the rollups of one day, optionally filtered by region
func (h *RollupHandler) ListRollups(w http.ResponseWriter, r *http.Request) {
	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		respondWithError(w, h.logger, http.StatusBadRequest, "Missing date", nil)
		return
	}

	date, err := parseDate(dateStr)
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD", err)
		return
	}

	rollups, err := h.reader.List(r.Context(), date, r.URL.Query().Get("region"))
	if err != nil {
		respondWithError(w, h.logger, statusFor(err), "Failed to list rollups", err)
		return
	}

	respondWithJSON(w, http.StatusOK, rollups)
}

// GetRollup returns a single rollup by region, city and date
func (h *RollupHandler) GetRollup(w http.ResponseWriter, r *http.Request) {
	region := chi.URLParam(r, "region")
	city := chi.URLParam(r, "city")

	date, err := parseDate(chi.URLParam(r, "date"))
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD", err)
		return
	}

	key := rollup.LocalityKey{City: city, Region: region, Date: date}
	ru, err := h.reader.Get(r.Context(), key)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusNotFound {
			respondWithError(w, h.logger, status, "Rollup not found", nil)
		} else {
			respondWithError(w, h.logger, status, "Failed to get rollup", err)
		}
		return
	}

	respondWithJSON(w, http.StatusOK, ru)
}
