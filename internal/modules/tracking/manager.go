// README: Tracking manager: one live subscription per tracked trip.
package tracking

import (
	"context"
	"log"
	"sync"

	"farmlink/internal/config"
	"farmlink/internal/modules/trip"
	"farmlink/internal/types"
)

// TripSource resolves the trip's persisted route data at subscription start.
type TripSource interface {
	Get(ctx context.Context, id types.ID) (*trip.Trip, error)
}

// Stream delivers position samples for a trip as they are published.
type Stream interface {
	Subscribe(ctx context.Context, tripID types.ID) (<-chan Sample, func(), error)
}

type Manager struct {
	trips  TripSource
	stream Stream
	router Router
	cfg    config.TrackingConfig

	mu   sync.Mutex
	subs map[types.ID]*Subscription
}

func NewManager(trips TripSource, stream Stream, router Router, cfg config.TrackingConfig) *Manager {
	return &Manager{
		trips:  trips,
		stream: stream,
		router: router,
		cfg:    cfg,
		subs:   make(map[types.ID]*Subscription),
	}
}

// Subscribe returns the live state object for a trip, starting the consume
// loop on first use. The trip's route data is fetched exactly once, here; if
// that fetch fails the returned subscription is in its terminal error state
// and no stream is consumed. Steady-state failures after this point never
// surface; only this initial fetch does.
func (m *Manager) Subscribe(ctx context.Context, tripID types.ID, delivery types.Point) *Subscription {
	m.mu.Lock()
	if sub, ok := m.subs[tripID]; ok {
		m.mu.Unlock()
		return sub
	}
	m.mu.Unlock()

	sub := newSubscription(context.Background(), tripID, delivery, m.router, m.cfg)

	if _, err := m.trips.Get(ctx, tripID); err != nil {
		log.Printf("tracking: route fetch for trip %s: %v", tripID, err)
		sub.markError()
		return sub
	}

	samples, stop, err := m.stream.Subscribe(sub.ctx, tripID)
	if err != nil {
		log.Printf("tracking: stream subscribe for trip %s: %v", tripID, err)
		sub.markError()
		return sub
	}
	sub.stop = stop

	m.mu.Lock()
	if existing, ok := m.subs[tripID]; ok {
		// Lost the race to another subscriber; keep theirs.
		m.mu.Unlock()
		sub.Close()
		return existing
	}
	m.subs[tripID] = sub
	m.mu.Unlock()

	go sub.run(samples)
	return sub
}

// Unsubscribe tears down a trip's subscription if one is active.
func (m *Manager) Unsubscribe(tripID types.ID) {
	m.mu.Lock()
	sub, ok := m.subs[tripID]
	delete(m.subs, tripID)
	m.mu.Unlock()
	if ok {
		sub.Close()
	}
}
