// README: Trip service implements lifecycle transitions and stop derivation.
package trip

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"farmlink/internal/types"
)

var (
	ErrNotFound     = errors.New("trip not found")
	ErrInvalidState = errors.New("invalid state transition")
	ErrConflict     = errors.New("trip state conflict")
	ErrForbidden    = errors.New("trip belongs to another rider")
	ErrBadRequest   = errors.New("bad request")
	ErrNoCapacity   = errors.New("insufficient remaining capacity")
)

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

type CreateCommand struct {
	RiderID     types.ID
	Origin      types.Point
	Destination types.Point
	DepartAt    time.Time
	CapacityKg  float64
	RiderRating float64
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (types.ID, error) {
	if cmd.RiderID == "" || cmd.CapacityKg <= 0 {
		return "", ErrBadRequest
	}
	id := NewID()
	t := &Trip{
		ID:          id,
		RiderID:     cmd.RiderID,
		Origin:      cmd.Origin,
		Destination: cmd.Destination,
		DepartAt:    cmd.DepartAt,
		CapacityKg:  cmd.CapacityKg,
		RemainingKg: cmd.CapacityKg,
		Status:      StatusScheduled,
		RiderRating: cmd.RiderRating,
		CreatedAt:   time.Now(),
	}
	if err := s.store.Create(ctx, t); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Trip, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Start(ctx context.Context, riderID, tripID types.ID) error {
	return s.transition(ctx, riderID, tripID, StatusInTransit)
}

func (s *Service) Complete(ctx context.Context, riderID, tripID types.ID) error {
	return s.transition(ctx, riderID, tripID, StatusCompleted)
}

func (s *Service) Cancel(ctx context.Context, riderID, tripID types.ID) error {
	return s.transition(ctx, riderID, tripID, StatusCancelled)
}

func (s *Service) transition(ctx context.Context, riderID, tripID types.ID, to Status) error {
	t, err := s.store.Get(ctx, tripID)
	if err != nil {
		return err
	}
	if t.RiderID != riderID {
		return ErrForbidden
	}
	if !CanTransition(t.Status, to) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, t.ID, t.Status, to, t.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

// ReserveCapacity deducts an order's shipment weight from the trip when the
// order is attached. Fails closed when remaining capacity is too low.
func (s *Service) ReserveCapacity(ctx context.Context, tripID types.ID, weightKg float64) error {
	if weightKg <= 0 {
		return ErrBadRequest
	}
	ok, err := s.store.ReserveCapacity(ctx, tripID, weightKg)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoCapacity
	}
	return nil
}

func (s *Service) ReleaseCapacity(ctx context.Context, tripID types.ID, weightKg float64) error {
	if weightKg <= 0 {
		return ErrBadRequest
	}
	return s.store.ReleaseCapacity(ctx, tripID, weightKg)
}

// BuildStopsFromOrders derives the trip's stop set from its matched orders:
// one pickup stop per contributing farmer point and one delivery stop per
// order. Rebuilding is idempotent; the previous stop set is replaced
// wholesale, sequence positions restart from insertion order and estimated
// arrivals are cleared until the next optimization run.
func (s *Service) BuildStopsFromOrders(ctx context.Context, riderID, tripID types.ID) ([]Stop, error) {
	t, err := s.store.Get(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if t.RiderID != riderID {
		return nil, ErrForbidden
	}

	groups, err := s.store.OrderGroups(ctx, tripID)
	if err != nil {
		return nil, err
	}

	var stops []Stop
	for _, g := range groups {
		for _, p := range g.Pickups {
			stops = append(stops, Stop{
				ID:           NewID(),
				TripID:       tripID,
				Kind:         KindPickup,
				Point:        p.Point,
				AddressEn:    p.AddressEn,
				AddressLocal: p.AddressLocal,
				Seq:          len(stops),
				OrderID:      g.OrderID,
				OrderItemIDs: p.ItemIDs,
			})
		}
		stops = append(stops, Stop{
			ID:           NewID(),
			TripID:       tripID,
			Kind:         KindDelivery,
			Point:        g.Delivery,
			AddressEn:    g.AddressEn,
			AddressLocal: g.AddressLocal,
			Seq:          len(stops),
			OrderID:      g.OrderID,
			OrderItemIDs: g.ItemIDs,
		})
	}

	if err := s.store.ReplaceStops(ctx, tripID, stops, nil); err != nil {
		return nil, err
	}
	return stops, nil
}

func (s *Service) Stops(ctx context.Context, tripID types.ID) ([]Stop, error) {
	return s.store.ListStops(ctx, tripID)
}

// CompleteStop marks a stop done with the actual arrival time.
func (s *Service) CompleteStop(ctx context.Context, riderID, tripID, stopID types.ID) error {
	t, err := s.store.Get(ctx, tripID)
	if err != nil {
		return err
	}
	if t.RiderID != riderID {
		return ErrForbidden
	}
	return s.store.MarkStopDone(ctx, tripID, stopID, time.Now())
}

// NewID generates a random 32-char hex identifier.
func NewID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
