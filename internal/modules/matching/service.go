// README: Trip matcher: capacity filter, route-proximity coverage, ranking.
package matching

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"

	"farmlink/internal/config"
	"farmlink/internal/modules/trip"
	"farmlink/internal/types"
)

var ErrNoPickups = errors.New("at least one pickup point is required")

// TripSource lists trips eligible for matching.
type TripSource interface {
	ListSchedulable(ctx context.Context, minCapacityKg float64) ([]*trip.Trip, error)
}

// ProximityOracle answers point-to-route proximity questions. An error from
// the oracle is treated as "not covered" (fail closed), never as a match.
type ProximityOracle interface {
	IsNearRoute(ctx context.Context, tripID types.ID, p types.Point, maxDistanceM float64) (bool, error)
}

type Service struct {
	trips  TripSource
	oracle ProximityOracle
	offers *Store
	cfg    config.MatchingConfig
}

func NewService(trips TripSource, oracle ProximityOracle, offers *Store, cfg config.MatchingConfig) *Service {
	if cfg.DetourThresholdM <= 0 {
		cfg.DetourThresholdM = DefaultDetourThresholdM
	}
	return &Service{trips: trips, oracle: oracle, offers: offers, cfg: cfg}
}

// FindMatchingTrips returns candidate trips for a shipment, ranked with
// full-coverage trips first and higher-rated riders preferred within each
// coverage tier. Trips that cannot reach the delivery point or cover zero
// pickups are excluded.
func (s *Service) FindMatchingTrips(ctx context.Context, pickups []PickupPoint, delivery types.Point, totalWeightKg float64) ([]Candidate, error) {
	if len(pickups) == 0 {
		return nil, ErrNoPickups
	}
	if totalWeightKg <= 0 {
		return nil, trip.ErrBadRequest
	}

	trips, err := s.trips.ListSchedulable(ctx, totalWeightKg)
	if err != nil {
		return nil, err
	}
	if len(trips) == 0 {
		return nil, nil
	}

	// Coverage checks for different trips are independent; run them in
	// parallel, but each trip's candidate slot is decided only after all of
	// that trip's checks have completed.
	results := make([]*Candidate, len(trips))
	var wg sync.WaitGroup
	for i, t := range trips {
		wg.Add(1)
		go func(i int, t *trip.Trip) {
			defer wg.Done()
			results[i] = s.evaluateTrip(ctx, t, pickups, delivery)
		}(i, t)
	}
	wg.Wait()

	var candidates []Candidate
	for _, c := range results {
		if c != nil {
			candidates = append(candidates, *c)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.CoversAllPickups != b.CoversAllPickups {
			return a.CoversAllPickups
		}
		if a.Trip.RiderRating != b.Trip.RiderRating {
			return a.Trip.RiderRating > b.Trip.RiderRating
		}
		return a.Trip.ID < b.Trip.ID
	})

	return candidates, nil
}

// evaluateTrip decides whether one trip is a candidate. nil means excluded.
func (s *Service) evaluateTrip(ctx context.Context, t *trip.Trip, pickups []PickupPoint, delivery types.Point) *Candidate {
	// A trip that cannot reach the consumer is useless regardless of how
	// many pickups it passes.
	near, err := s.oracle.IsNearRoute(ctx, t.ID, delivery, s.cfg.DetourThresholdM)
	if err != nil {
		log.Printf("matching: delivery proximity check for trip %s: %v", t.ID, err)
		return nil
	}
	if !near {
		return nil
	}

	var covered []types.ID
	for _, p := range pickups {
		near, err := s.oracle.IsNearRoute(ctx, t.ID, p.Point, s.cfg.DetourThresholdM)
		if err != nil {
			// Fail closed: one bad geospatial query downgrades this pickup
			// to "not covered" instead of aborting the whole match.
			log.Printf("matching: pickup proximity check for trip %s farmer %s: %v", t.ID, p.FarmerID, err)
			continue
		}
		if near {
			covered = append(covered, p.FarmerID)
		}
	}
	if len(covered) == 0 {
		return nil
	}

	return &Candidate{
		Trip:             t,
		CoveredFarmers:   covered,
		CoversAllPickups: len(covered) == len(pickups),
	}
}

// RecordOffers persists the time-boxed match offers derived from a ranking so
// the ping lifecycle collaborator can expire them.
func (s *Service) RecordOffers(ctx context.Context, orderID types.ID, candidates []Candidate) error {
	if s.offers == nil || len(candidates) == 0 {
		return nil
	}
	tripIDs := make([]types.ID, len(candidates))
	for i, c := range candidates {
		tripIDs[i] = c.Trip.ID
	}
	return s.offers.RecordOffer(ctx, orderID, tripIDs)
}
