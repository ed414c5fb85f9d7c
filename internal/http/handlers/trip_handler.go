// README: Trip handlers for lifecycle, capacity and stop management.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"farmlink/internal/http/middleware"
	"farmlink/internal/modules/trip"
	"farmlink/internal/types"
)

type TripHandler struct {
	trips *trip.Service
}

func NewTripHandler(svc *trip.Service) *TripHandler {
	return &TripHandler{trips: svc}
}

type createTripReq struct {
	OriginLat      float64 `json:"origin_lat"`
	OriginLng      float64 `json:"origin_lng"`
	DestinationLat float64 `json:"destination_lat"`
	DestinationLng float64 `json:"destination_lng"`
	DepartAt       string  `json:"depart_at"`
	CapacityKg     float64 `json:"capacity_kg"`
	RiderRating    float64 `json:"rider_rating"`
}

func (h *TripHandler) Create(c *gin.Context) {
	var req createTripReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	departAt, err := time.Parse(time.RFC3339, req.DepartAt)
	if err != nil {
		writeError(c, http.StatusBadRequest, "depart_at must be RFC3339")
		return
	}
	id, err := h.trips.Create(c.Request.Context(), trip.CreateCommand{
		RiderID:     types.ID(middleware.CallerUID(c)),
		Origin:      types.Point{Lat: req.OriginLat, Lng: req.OriginLng},
		Destination: types.Point{Lat: req.DestinationLat, Lng: req.DestinationLng},
		DepartAt:    departAt,
		CapacityKg:  req.CapacityKg,
		RiderRating: req.RiderRating,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"trip_id": id, "status": trip.StatusScheduled})
}

func (h *TripHandler) Get(c *gin.Context) {
	t, err := h.trips.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, tripResponse(t))
}

func (h *TripHandler) Start(c *gin.Context) {
	h.transition(c, h.trips.Start)
}

func (h *TripHandler) Complete(c *gin.Context) {
	h.transition(c, h.trips.Complete)
}

func (h *TripHandler) Cancel(c *gin.Context) {
	h.transition(c, h.trips.Cancel)
}

func (h *TripHandler) transition(c *gin.Context, op func(ctx context.Context, riderID, tripID types.ID) error) {
	riderID := types.ID(middleware.CallerUID(c))
	if err := op(c.Request.Context(), riderID, types.ID(c.Param("id"))); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}

// BuildStops regenerates the trip's stop list from its accepted orders.
func (h *TripHandler) BuildStops(c *gin.Context) {
	riderID := types.ID(middleware.CallerUID(c))
	stops, err := h.trips.BuildStopsFromOrders(c.Request.Context(), riderID, types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"stops": stopsResponse(stops)})
}

func (h *TripHandler) Stops(c *gin.Context) {
	stops, err := h.trips.Stops(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"stops": stopsResponse(stops)})
}

func (h *TripHandler) CompleteStop(c *gin.Context) {
	riderID := types.ID(middleware.CallerUID(c))
	err := h.trips.CompleteStop(c.Request.Context(), riderID, types.ID(c.Param("id")), types.ID(c.Param("stopID")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}

func tripResponse(t *trip.Trip) gin.H {
	resp := gin.H{
		"trip_id":      t.ID,
		"rider_id":     t.RiderID,
		"status":       t.Status,
		"origin":       pointResponse(t.Origin),
		"destination":  pointResponse(t.Destination),
		"depart_at":    t.DepartAt.Format(time.RFC3339),
		"capacity_kg":  t.CapacityKg,
		"remaining_kg": t.RemainingKg,
		"stop_count":   t.StopCount,
	}
	if t.DistanceM != nil {
		resp["distance_m"] = *t.DistanceM
	}
	if t.DurationS != nil {
		resp["duration_s"] = *t.DurationS
	}
	return resp
}

func stopsResponse(stops []trip.Stop) []gin.H {
	out := make([]gin.H, 0, len(stops))
	for _, s := range stops {
		item := gin.H{
			"stop_id":  s.ID,
			"kind":     s.Kind,
			"point":    pointResponse(s.Point),
			"seq":      s.Seq,
			"order_id": s.OrderID,
			"done":     s.Done,
		}
		if s.ETASeconds != nil {
			item["eta_seconds"] = *s.ETASeconds
		}
		if s.AddressEn != nil {
			item["address_en"] = *s.AddressEn
		}
		if s.AddressLocal != nil {
			item["address_local"] = *s.AddressLocal
		}
		out = append(out, item)
	}
	return out
}

func pointResponse(p types.Point) gin.H {
	return gin.H{"lat": p.Lat, "lng": p.Lng}
}
