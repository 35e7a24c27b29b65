// internal/server/handlers/locations.go

package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"civicpulse/internal/domain/geo"
	"civicpulse/internal/logging"
)

// LocationHandler handles location resolution requests
type LocationHandler struct {
	resolver geo.Resolver
	logger   *zap.Logger
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(resolver geo.Resolver, logger *zap.Logger) *LocationHandler {
	return &LocationHandler{
		resolver: resolver,
		logger:   logging.OrNop(logger),
	}
}

type resolveRequest struct {
	Text string `json:"text"`
}

type resolveResponse struct {
	geo.LocationResult
	LowConfidence bool `json:"low_confidence"`
}

// Resolve resolves free text to a locality
func (h *LocationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result := h.resolver.Resolve(req.Text)

	respondWithJSON(w, http.StatusOK, resolveResponse{
		LocationResult: result,
		LowConfidence:  result.IsLowConfidence(),
	})
}
