// README: Tracking handlers: rider position ingestion and live snapshots.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"farmlink/internal/http/middleware"
	"farmlink/internal/modules/tracking"
	"farmlink/internal/modules/trip"
	"farmlink/internal/types"
)

type TrackingHandler struct {
	tracking *tracking.Service
	manager  *tracking.Manager
	trips    *trip.Service
}

func NewTrackingHandler(svc *tracking.Service, manager *tracking.Manager, trips *trip.Service) *TrackingHandler {
	return &TrackingHandler{tracking: svc, manager: manager, trips: trips}
}

type reportPositionReq struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	SpeedKmh float64 `json:"speed_kmh"`
}

// ReportPosition ingests one rider position sample.
func (h *TrackingHandler) ReportPosition(c *gin.Context) {
	var req reportPositionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.tracking.ReportPosition(c.Request.Context(), tracking.ReportCommand{
		RiderID:  types.ID(middleware.CallerUID(c)),
		TripID:   types.ID(c.Param("id")),
		Point:    types.Point{Lat: req.Lat, Lng: req.Lng},
		SpeedKmh: req.SpeedKmh,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}

// Snapshot returns the live tracking state for a trip, starting the
// subscription on first request.
func (h *TrackingHandler) Snapshot(c *gin.Context) {
	tripID := types.ID(c.Param("id"))
	t, err := h.trips.Get(c.Request.Context(), tripID)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	sub := h.manager.Subscribe(c.Request.Context(), tripID, t.Destination)
	snap := sub.Snapshot()

	resp := gin.H{
		"state":    snap.State,
		"stale":    snap.Stale,
		"position": pointResponse(snap.Position),
	}
	if snap.State == tracking.StateLive {
		resp["eta_seconds"] = snap.ETASeconds
		resp["remaining_m"] = snap.RemainingM
		resp["last_sample_at"] = snap.LastSampleAt.Format(time.RFC3339)
	}
	writeJSON(c, http.StatusOK, resp)
}
