// internal/server/handlers/aggregations.go

package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"civicpulse/internal/domain/rollup"
	"civicpulse/internal/logging"
)

// AggregationHandler triggers aggregation runs
type AggregationHandler struct {
	aggregator rollup.Aggregator
	logger     *zap.Logger
}

// NewAggregationHandler creates a new aggregation handler
func NewAggregationHandler(aggregator rollup.Aggregator, logger *zap.Logger) *AggregationHandler {
	return &AggregationHandler{
		aggregator: aggregator,
		logger:     logging.OrNop(logger),
	}
}

type aggregationRequest struct {
	WindowStart *time.Time `json:"window_start"`
	WindowEnd   *time.Time `json:"window_end"`
	Date        string     `json:"date"`
}

type aggregationResponse struct {
	rollup.RunSummary
	PartialFailure bool `json:"partial_failure"`
}

// Run executes an aggregation for an explicit window or a calendar day
func (h *AggregationHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req aggregationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var window rollup.Window
	switch {
	case req.Date != "":
		day, err := parseDate(req.Date)
		if err != nil {
			respondWithError(w, h.logger, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD", err)
			return
		}
		window = rollup.DayWindow(day)
	case req.WindowStart != nil && req.WindowEnd != nil:
		window = rollup.Window{Start: *req.WindowStart, End: *req.WindowEnd}
	default:
		respondWithError(w, h.logger, http.StatusBadRequest, "Either date or window_start and window_end are required", nil)
		return
	}

	summary, err := h.aggregator.RunAggregation(r.Context(), window)
	if err != nil {
		respondWithError(w, h.logger, statusFor(err), err.Error(), err)
		return
	}

	respondWithJSON(w, http.StatusOK, aggregationResponse{
		RunSummary:     summary,
		PartialFailure: summary.PartialFailure(),
	})
}
