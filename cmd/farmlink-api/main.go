// README: Entry point; loads config, wires services, starts the HTTP server.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"farmlink/internal/config"
	httptransport "farmlink/internal/http"
	"farmlink/internal/infra"
	"farmlink/internal/maps"
	"farmlink/internal/modules/matching"
	"farmlink/internal/modules/route"
	"farmlink/internal/modules/tracking"
	"farmlink/internal/modules/trip"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		log.Fatal("FARMLINK_FIREBASE_PROJECT_ID is required")
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Fatalf("firebase init: %v", err)
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	mapsClient, err := infra.NewMaps(cfg.Maps.APIKey)
	if err != nil {
		log.Fatalf("maps init: %v", err)
	}
	routeProvider := maps.NewRouteService(mapsClient)

	tripStore := trip.NewStore(dbPool)
	tripSvc := trip.NewService(tripStore)

	offerStore := matching.NewStore(redisClient, time.Duration(cfg.Matching.OfferTTLSeconds)*time.Second)
	matchingSvc := matching.NewService(tripStore, tripStore, offerStore, cfg.Matching)

	routeSvc := route.NewService(tripStore, route.NewSequencer(routeProvider))

	trackingStore := tracking.NewStore(dbPool, redisClient)
	trackingSvc := tracking.NewService(trackingStore, tripSvc)
	trackingManager := tracking.NewManager(tripSvc, trackingStore, routeProvider, cfg.Tracking)

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Verifier: verifier,
		Trips:    tripSvc,
		Matching: matchingSvc,
		Routes:   routeSvc,
		Tracking: trackingSvc,
		Manager:  trackingManager,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("listening on %s", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
