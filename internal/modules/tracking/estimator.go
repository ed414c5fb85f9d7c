// README: Live tracking estimator: throttled, cancelable ETA with staleness tracking.
package tracking

import (
	"context"
	"sync"
	"time"

	"farmlink/internal/config"
	"farmlink/internal/routing"
	"farmlink/internal/types"
)

// Router is the slice of the routing provider the estimator needs.
type Router interface {
	Route(ctx context.Context, points []types.Point) (*routing.RouteResult, error)
}

// Subscription tracks one trip's rider for one delivery point. Position
// samples are processed in arrival order; ETA requests may be superseded:
// a newer sample's request cancels an older one in flight, so the exposed
// ETA always reflects the most recent position.
type Subscription struct {
	tripID   types.ID
	delivery types.Point
	router   Router
	cfg      config.TrackingConfig

	ctx    context.Context
	cancel context.CancelFunc
	stop   func()
	now    func() time.Time

	mu             sync.Mutex
	state          State
	position       types.Point
	etaSeconds     int
	remainingM     int
	stale          bool
	lastSampleAt   time.Time
	lastComputeAt  time.Time
	reqSeq         uint64
	cancelInFlight context.CancelFunc
}

func newSubscription(parent context.Context, tripID types.ID, delivery types.Point, router Router, cfg config.TrackingConfig) *Subscription {
	ctx, cancel := context.WithCancel(parent)
	return &Subscription{
		tripID:   tripID,
		delivery: delivery,
		router:   router,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
		state:    StateLoading,
	}
}

// Snapshot returns the current live state.
func (sub *Subscription) Snapshot() Snapshot {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return Snapshot{
		State:        sub.state,
		Position:     sub.position,
		ETASeconds:   sub.etaSeconds,
		RemainingM:   sub.remainingM,
		Stale:        sub.stale,
		LastSampleAt: sub.lastSampleAt,
	}
}

// Close tears the subscription down: the position stream is released and any
// in-flight ETA request is cancelled so its late response becomes a no-op.
func (sub *Subscription) Close() {
	sub.cancel()
	if sub.stop != nil {
		sub.stop()
	}
}

func (sub *Subscription) run(samples <-chan Sample) {
	ticker := time.NewTicker(time.Duration(sub.cfg.PollTickSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-sub.ctx.Done():
			return
		case s, ok := <-samples:
			if !ok {
				return
			}
			sub.handleSample(s)
		case <-ticker.C:
			sub.pollStaleness()
		}
	}
}

// handleSample ingests one position sample. Every sample refreshes position
// and staleness; ETA recomputation is throttled to one provider call per
// throttle window; samples arriving faster only update position, and the
// next spaced sample triggers a fresh computation.
func (sub *Subscription) handleSample(s Sample) {
	sub.mu.Lock()

	if sub.state == StateError {
		sub.mu.Unlock()
		return
	}
	sub.state = StateLive
	sub.position = s.Point
	sub.lastSampleAt = s.RecordedAt
	sub.stale = false

	now := sub.now()
	throttle := time.Duration(sub.cfg.ThrottleSeconds) * time.Second
	if !sub.lastComputeAt.IsZero() && now.Sub(sub.lastComputeAt) < throttle {
		sub.mu.Unlock()
		return
	}
	sub.lastComputeAt = now

	// Last sample wins: cancel the previous request before issuing a new
	// one, and stamp this request so a late response cannot clobber state.
	sub.reqSeq++
	seq := sub.reqSeq
	if sub.cancelInFlight != nil {
		sub.cancelInFlight()
	}
	reqCtx, cancel := context.WithCancel(sub.ctx)
	sub.cancelInFlight = cancel
	sub.mu.Unlock()

	go sub.computeETA(reqCtx, seq, s)
}

// computeETA asks the provider for the remaining road distance/duration from
// the sample position to the delivery point. Failures and superseded
// responses are silently dropped; the last good ETA keeps showing.
func (sub *Subscription) computeETA(ctx context.Context, seq uint64, s Sample) {
	res, err := sub.router.Route(ctx, []types.Point{s.Point, sub.delivery})

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if err != nil {
		return
	}
	if seq != sub.reqSeq {
		return
	}

	eta := res.DurationS
	if s.SpeedKmh > movingSpeedKmh {
		// Moving rider: real pace beats the provider's generic estimate.
		// Below the threshold the division would explode on near-zero speed.
		eta = int(float64(res.DistanceM) / (s.SpeedKmh / 3.6))
	}
	sub.etaSeconds = eta
	sub.remainingM = res.DistanceM
}

// pollStaleness re-evaluates the staleness flag on the poll tick. It is
// clock-driven rather than event-driven so the flag flips even when no new
// input arrives at all.
func (sub *Subscription) pollStaleness() {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.state != StateLive || sub.lastSampleAt.IsZero() {
		return
	}
	staleAfter := time.Duration(sub.cfg.StaleAfterSecond) * time.Second
	sub.stale = sub.now().Sub(sub.lastSampleAt) >= staleAfter
}

func (sub *Subscription) markError() {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	sub.state = StateError
}
