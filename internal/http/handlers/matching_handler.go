// README: Matching handler: find candidate trips for a wholesale order.
package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"farmlink/internal/modules/matching"
	"farmlink/internal/types"
)

type MatchingHandler struct {
	matching *matching.Service
}

func NewMatchingHandler(svc *matching.Service) *MatchingHandler {
	return &MatchingHandler{matching: svc}
}

type pickupReq struct {
	FarmerID string  `json:"farmer_id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

type findMatchesReq struct {
	OrderID     string      `json:"order_id"`
	Pickups     []pickupReq `json:"pickups"`
	DeliveryLat float64     `json:"delivery_lat"`
	DeliveryLng float64     `json:"delivery_lng"`
	WeightKg    float64     `json:"weight_kg"`
}

func (h *MatchingHandler) FindMatches(c *gin.Context) {
	var req findMatchesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	pickups := make([]matching.PickupPoint, 0, len(req.Pickups))
	for _, p := range req.Pickups {
		pickups = append(pickups, matching.PickupPoint{
			FarmerID: types.ID(p.FarmerID),
			Point:    types.Point{Lat: p.Lat, Lng: p.Lng},
		})
	}
	delivery := types.Point{Lat: req.DeliveryLat, Lng: req.DeliveryLng}

	candidates, err := h.matching.FindMatchingTrips(c.Request.Context(), pickups, delivery, req.WeightKg)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	if req.OrderID != "" {
		// Offer bookkeeping is best effort; a Redis hiccup must not hide the
		// match results from the caller.
		if err := h.matching.RecordOffers(c.Request.Context(), types.ID(req.OrderID), candidates); err != nil {
			log.Printf("matching: record offers for order %s: %v", req.OrderID, err)
		}
	}

	out := make([]gin.H, 0, len(candidates))
	for _, cand := range candidates {
		out = append(out, gin.H{
			"trip":               tripResponse(cand.Trip),
			"covers_all_pickups": cand.CoversAllPickups,
			"covered_farmers":    cand.CoveredFarmers,
		})
	}
	writeJSON(c, http.StatusOK, gin.H{"matches": out})
}
