// README: Estimator tests: throttling, supersede-on-newer-sample, staleness.
package tracking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"farmlink/internal/config"
	"farmlink/internal/routing"
	"farmlink/internal/types"
)

var deliveryPoint = types.Point{Lat: 16.80, Lng: 96.17}

func testCfg() config.TrackingConfig {
	return config.TrackingConfig{
		ThrottleSeconds:  15,
		StaleAfterSecond: 30,
		PollTickSeconds:  5,
	}
}

// fakeClock hands a subscription a controllable now().
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// scriptedRouter returns canned results per call and signals each completed
// call on done, so tests can wait for the async ETA computation.
type scriptedRouter struct {
	mu      sync.Mutex
	results []routing.RouteResult
	err     error
	calls   int
	done    chan struct{}
}

func newScriptedRouter(results ...routing.RouteResult) *scriptedRouter {
	return &scriptedRouter{results: results, done: make(chan struct{}, 16)}
}

func (r *scriptedRouter) Route(_ context.Context, _ []types.Point) (*routing.RouteResult, error) {
	r.mu.Lock()
	i := r.calls
	r.calls++
	err := r.err
	r.mu.Unlock()
	defer func() { r.done <- struct{}{} }()
	if err != nil {
		return nil, err
	}
	if i >= len(r.results) {
		i = len(r.results) - 1
	}
	res := r.results[i]
	return &res, nil
}

func (r *scriptedRouter) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func waitDone(t *testing.T, r *scriptedRouter) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ETA computation")
	}
}

func newTestSub(router Router, clock *fakeClock) *Subscription {
	sub := newSubscription(context.Background(), "t1", deliveryPoint, router, testCfg())
	sub.now = clock.Now
	return sub
}

func sampleAt(clock *fakeClock, p types.Point, speedKmh float64) Sample {
	return Sample{TripID: "t1", Point: p, SpeedKmh: speedKmh, RecordedAt: clock.Now()}
}

// ---------------------------------------------------------------------------
// Throttling
// ---------------------------------------------------------------------------

func TestHandleSample_SpacedSamplesEachRecompute(t *testing.T) {
	clock := newFakeClock()
	router := newScriptedRouter(routing.RouteResult{DistanceM: 4000, DurationS: 600})
	sub := newTestSub(router, clock)
	defer sub.Close()

	for i := 0; i < 3; i++ {
		sub.handleSample(sampleAt(clock, types.Point{Lat: 16.7, Lng: 96.1}, 0))
		waitDone(t, router)
		clock.Advance(15 * time.Second)
	}
	if got := router.callCount(); got != 3 {
		t.Fatalf("provider calls = %d, want exactly one per spaced sample (3)", got)
	}
}

func TestHandleSample_FastSamplesThrottled(t *testing.T) {
	clock := newFakeClock()
	router := newScriptedRouter(routing.RouteResult{DistanceM: 4000, DurationS: 600})
	sub := newTestSub(router, clock)
	defer sub.Close()

	sub.handleSample(sampleAt(clock, types.Point{Lat: 16.70, Lng: 96.10}, 0))
	waitDone(t, router)

	// Two samples inside the 15s window: position still updates, no new call.
	clock.Advance(5 * time.Second)
	sub.handleSample(sampleAt(clock, types.Point{Lat: 16.71, Lng: 96.11}, 0))
	clock.Advance(5 * time.Second)
	sub.handleSample(sampleAt(clock, types.Point{Lat: 16.72, Lng: 96.12}, 0))

	if got := router.callCount(); got != 1 {
		t.Fatalf("provider calls = %d, want 1 (throttled)", got)
	}
	snap := sub.Snapshot()
	if snap.Position.Lat != 16.72 {
		t.Errorf("position = %+v, want latest sample's position", snap.Position)
	}

	// The next spaced sample triggers a fresh computation.
	clock.Advance(10 * time.Second)
	sub.handleSample(sampleAt(clock, types.Point{Lat: 16.73, Lng: 96.13}, 0))
	waitDone(t, router)
	if got := router.callCount(); got != 2 {
		t.Fatalf("provider calls = %d, want 2 after window elapsed", got)
	}
}

// ---------------------------------------------------------------------------
// Supersede: a newer sample's result always wins
// ---------------------------------------------------------------------------

// gatedRouter blocks each call until it is released, ignoring cancellation,
// to simulate out-of-order resolution of in-flight requests.
type gatedRouter struct {
	mu      sync.Mutex
	calls   int
	gates   []chan struct{}
	results []routing.RouteResult
	done    chan struct{}
}

func (r *gatedRouter) Route(_ context.Context, _ []types.Point) (*routing.RouteResult, error) {
	r.mu.Lock()
	i := r.calls
	r.calls++
	r.mu.Unlock()
	<-r.gates[i]
	defer func() { r.done <- struct{}{} }()
	res := r.results[i]
	return &res, nil
}

func TestHandleSample_OlderResponseNeverOverwritesNewer(t *testing.T) {
	clock := newFakeClock()
	router := &gatedRouter{
		gates: []chan struct{}{make(chan struct{}), make(chan struct{})},
		results: []routing.RouteResult{
			{DistanceM: 9000, DurationS: 999}, // older sample's answer
			{DistanceM: 2000, DurationS: 200}, // newer sample's answer
		},
		done: make(chan struct{}, 2),
	}
	sub := newTestSub(router, clock)
	defer sub.Close()

	// First sample: request 1 goes out and hangs.
	sub.handleSample(sampleAt(clock, types.Point{Lat: 16.70, Lng: 96.10}, 0))

	// Second sample after the throttle window: request 2 goes out.
	clock.Advance(16 * time.Second)
	sub.handleSample(sampleAt(clock, types.Point{Lat: 16.75, Lng: 96.14}, 0))

	// Resolve the newer request first, then let the older one limp home.
	close(router.gates[1])
	<-router.done
	close(router.gates[0])
	<-router.done

	snap := sub.Snapshot()
	if snap.ETASeconds != 200 || snap.RemainingM != 2000 {
		t.Fatalf("snapshot = %+v, want the newer sample's ETA (200s / 2000m)", snap)
	}
}

// ---------------------------------------------------------------------------
// ETA choice and failure swallowing
// ---------------------------------------------------------------------------

func TestComputeETA_MovingRiderUsesOwnPace(t *testing.T) {
	clock := newFakeClock()
	// 36 km/h is 10 m/s, so 1000 m takes 100 s, not the provider's 500 s.
	router := newScriptedRouter(routing.RouteResult{DistanceM: 1000, DurationS: 500})
	sub := newTestSub(router, clock)
	defer sub.Close()

	sub.handleSample(sampleAt(clock, types.Point{Lat: 16.7, Lng: 96.1}, 36))
	waitDone(t, router)

	if snap := sub.Snapshot(); snap.ETASeconds != 100 {
		t.Fatalf("ETASeconds = %d, want 100 (distance/speed)", snap.ETASeconds)
	}
}

func TestComputeETA_IdleRiderUsesProviderDuration(t *testing.T) {
	clock := newFakeClock()
	router := newScriptedRouter(routing.RouteResult{DistanceM: 1000, DurationS: 500})
	sub := newTestSub(router, clock)
	defer sub.Close()

	// 3 km/h is below the moving threshold; distance/speed would be garbage.
	sub.handleSample(sampleAt(clock, types.Point{Lat: 16.7, Lng: 96.1}, 3))
	waitDone(t, router)

	if snap := sub.Snapshot(); snap.ETASeconds != 500 {
		t.Fatalf("ETASeconds = %d, want provider's 500", snap.ETASeconds)
	}
}

func TestComputeETA_FailureKeepsLastGoodETA(t *testing.T) {
	clock := newFakeClock()
	router := newScriptedRouter(routing.RouteResult{DistanceM: 3000, DurationS: 400})
	sub := newTestSub(router, clock)
	defer sub.Close()

	sub.handleSample(sampleAt(clock, types.Point{Lat: 16.7, Lng: 96.1}, 0))
	waitDone(t, router)

	router.mu.Lock()
	router.err = errors.New("routing down")
	router.mu.Unlock()

	clock.Advance(16 * time.Second)
	sub.handleSample(sampleAt(clock, types.Point{Lat: 16.72, Lng: 96.12}, 0))
	waitDone(t, router)

	snap := sub.Snapshot()
	if snap.ETASeconds != 400 || snap.RemainingM != 3000 {
		t.Fatalf("snapshot = %+v, want last good ETA preserved", snap)
	}
	if snap.State != StateLive {
		t.Errorf("state = %s, want live (transient ETA miss is not an error)", snap.State)
	}
}

// ---------------------------------------------------------------------------
// Staleness
// ---------------------------------------------------------------------------

func TestPollStaleness_FlipsAtThreshold(t *testing.T) {
	clock := newFakeClock()
	router := newScriptedRouter(routing.RouteResult{DistanceM: 1000, DurationS: 500})
	sub := newTestSub(router, clock)
	defer sub.Close()

	sub.handleSample(sampleAt(clock, types.Point{Lat: 16.7, Lng: 96.1}, 0))
	waitDone(t, router)

	clock.Advance(29 * time.Second)
	sub.pollStaleness()
	if sub.Snapshot().Stale {
		t.Fatal("stale at 29s, want fresh (< 30s)")
	}

	clock.Advance(1 * time.Second)
	sub.pollStaleness()
	if !sub.Snapshot().Stale {
		t.Fatal("fresh at 30s, want stale (>= 30s)")
	}

	// A new sample resets freshness immediately.
	sub.handleSample(sampleAt(clock, types.Point{Lat: 16.71, Lng: 96.11}, 0))
	if sub.Snapshot().Stale {
		t.Fatal("stale right after a new sample")
	}
}

func TestPollStaleness_NoopBeforeFirstSample(t *testing.T) {
	clock := newFakeClock()
	sub := newTestSub(newScriptedRouter(routing.RouteResult{}), clock)
	defer sub.Close()

	clock.Advance(time.Hour)
	sub.pollStaleness()
	if snap := sub.Snapshot(); snap.Stale || snap.State != StateLoading {
		t.Fatalf("snapshot = %+v, want loading and not stale", snap)
	}
}
