// README: Route service: loads a trip's stops, sequences them, persists the plan wholesale.
package route

import (
	"context"

	"farmlink/internal/modules/trip"
	"farmlink/internal/types"
)

// TripStore is the slice of the trip store the route service needs.
type TripStore interface {
	Get(ctx context.Context, id types.ID) (*trip.Trip, error)
	ListStops(ctx context.Context, tripID types.ID) ([]trip.Stop, error)
	ReplaceStops(ctx context.Context, tripID types.ID, stops []trip.Stop, meta *trip.RouteMeta) error
}

type Service struct {
	trips     TripStore
	sequencer *Sequencer
}

func NewService(trips TripStore, sequencer *Sequencer) *Service {
	return &Service{trips: trips, sequencer: sequencer}
}

// OptimizeTripRoute recomputes the visiting sequence for a trip's stops and
// rewrites the whole stop set plus the trip's route aggregates as one logical
// update. Concurrent runs for the same trip are not serialized here; callers
// keep at most one optimization in flight per trip.
func (s *Service) OptimizeTripRoute(ctx context.Context, riderID, tripID types.ID) (*Plan, error) {
	t, err := s.trips.Get(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if t.RiderID != riderID {
		return nil, trip.ErrForbidden
	}

	stops, err := s.trips.ListStops(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if len(stops) == 0 {
		return nil, ErrNoStops
	}

	waypoints := make([]Waypoint, len(stops))
	byID := make(map[types.ID]trip.Stop, len(stops))
	for i, st := range stops {
		waypoints[i] = Waypoint{
			StopID:  st.ID,
			OrderID: st.OrderID,
			Kind:    st.Kind,
			Point:   st.Point,
		}
		byID[st.ID] = st
	}

	plan, err := s.sequencer.Sequence(ctx, t.Origin, t.Destination, waypoints)
	if err != nil {
		return nil, err
	}

	updated := make([]trip.Stop, len(plan.Stops))
	for i, ps := range plan.Stops {
		st := byID[ps.StopID]
		st.Seq = ps.Seq
		eta := ps.ETASeconds
		st.ETASeconds = &eta
		updated[i] = st
	}

	meta := &trip.RouteMeta{
		Geometry:  plan.Geometry,
		DistanceM: plan.DistanceM,
		DurationS: plan.DurationS,
	}
	if err := s.trips.ReplaceStops(ctx, tripID, updated, meta); err != nil {
		return nil, err
	}
	return plan, nil
}
