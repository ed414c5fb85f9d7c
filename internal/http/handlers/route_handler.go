// README: Route handler: optimize a trip's stop sequence.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"farmlink/internal/http/middleware"
	"farmlink/internal/modules/route"
	"farmlink/internal/types"
)

type RouteHandler struct {
	routes *route.Service
}

func NewRouteHandler(svc *route.Service) *RouteHandler {
	return &RouteHandler{routes: svc}
}

// Optimize re-sequences the trip's stops and persists the new plan. The whole
// plan is replaced in one shot; on any failure the previous ordering stands.
func (h *RouteHandler) Optimize(c *gin.Context) {
	riderID := types.ID(middleware.CallerUID(c))
	plan, err := h.routes.OptimizeTripRoute(c.Request.Context(), riderID, types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}

	stops := make([]gin.H, 0, len(plan.Stops))
	for _, s := range plan.Stops {
		stops = append(stops, gin.H{
			"stop_id":     s.StopID,
			"order_id":    s.OrderID,
			"kind":        s.Kind,
			"point":       pointResponse(s.Point),
			"seq":         s.Seq,
			"eta_seconds": s.ETASeconds,
		})
	}
	writeJSON(c, http.StatusOK, gin.H{
		"stops":      stops,
		"distance_m": plan.DistanceM,
		"duration_s": plan.DurationS,
	})
}
