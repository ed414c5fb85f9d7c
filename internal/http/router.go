// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"farmlink/internal/http/handlers"
	"farmlink/internal/http/middleware"
	"farmlink/internal/infra"
	"farmlink/internal/modules/matching"
	"farmlink/internal/modules/route"
	"farmlink/internal/modules/tracking"
	"farmlink/internal/modules/trip"
)

type RouterDeps struct {
	Verifier infra.TokenVerifier
	Trips    *trip.Service
	Matching *matching.Service
	Routes   *route.Service
	Tracking *tracking.Service
	Manager  *tracking.Manager
}

func NewRouter(deps RouterDeps) http.Handler {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	tripHandler := handlers.NewTripHandler(deps.Trips)
	api.POST("/trips", tripHandler.Create)
	api.GET("/trips/:id", tripHandler.Get)
	api.POST("/trips/:id/start", tripHandler.Start)
	api.POST("/trips/:id/complete", tripHandler.Complete)
	api.POST("/trips/:id/cancel", tripHandler.Cancel)
	api.POST("/trips/:id/stops/build", tripHandler.BuildStops)
	api.GET("/trips/:id/stops", tripHandler.Stops)
	api.POST("/trips/:id/stops/:stopID/complete", tripHandler.CompleteStop)

	matchingHandler := handlers.NewMatchingHandler(deps.Matching)
	api.POST("/matches", matchingHandler.FindMatches)

	routeHandler := handlers.NewRouteHandler(deps.Routes)
	api.POST("/trips/:id/optimize", routeHandler.Optimize)

	trackingHandler := handlers.NewTrackingHandler(deps.Tracking, deps.Manager, deps.Trips)
	api.PUT("/trips/:id/position", trackingHandler.ReportPosition)
	api.GET("/trips/:id/tracking", trackingHandler.Snapshot)

	return r
}
