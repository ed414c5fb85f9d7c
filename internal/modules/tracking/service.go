// README: Tracking service: rider position ingestion.
package tracking

import (
	"context"
	"time"

	"farmlink/internal/modules/trip"
	"farmlink/internal/types"
)

type Service struct {
	store *Store
	trips TripSource
}

func NewService(store *Store, trips TripSource) *Service {
	return &Service{store: store, trips: trips}
}

type ReportCommand struct {
	RiderID  types.ID
	TripID   types.ID
	Point    types.Point
	SpeedKmh float64
}

// ReportPosition appends one rider position sample and publishes it on the
// trip's stream. Only the trip's own rider may report.
func (s *Service) ReportPosition(ctx context.Context, cmd ReportCommand) error {
	t, err := s.trips.Get(ctx, cmd.TripID)
	if err != nil {
		return err
	}
	if t.RiderID != cmd.RiderID {
		return trip.ErrForbidden
	}
	if cmd.SpeedKmh < 0 {
		return trip.ErrBadRequest
	}
	return s.store.AppendSample(ctx, Sample{
		TripID:     cmd.TripID,
		Point:      cmd.Point,
		SpeedKmh:   cmd.SpeedKmh,
		RecordedAt: time.Now(),
	})
}
