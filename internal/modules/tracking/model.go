// README: Tracking samples and live subscription state.
package tracking

import (
	"time"

	"farmlink/internal/types"
)

// Sample is one rider position report. The stream is append-only; the
// estimator keeps only the most recent sample in memory, never the history.
type Sample struct {
	TripID     types.ID    `json:"trip_id"`
	Point      types.Point `json:"point"`
	SpeedKmh   float64     `json:"speed_kmh"`
	RecordedAt time.Time   `json:"recorded_at"`
}

type State string

const (
	// StateLoading: the initial route fetch is in flight.
	StateLoading State = "loading"
	// StateLive: at least one position sample has arrived.
	StateLive State = "live"
	// StateError: the initial route fetch failed. Terminal.
	StateError State = "error"
)

// Snapshot is the point-in-time view of a subscription exposed to callers.
// Staleness is an observable state, not an error.
type Snapshot struct {
	State        State
	Position     types.Point
	ETASeconds   int
	RemainingM   int
	Stale        bool
	LastSampleAt time.Time
}

const (
	// movingSpeedKmh is the threshold above which the rider's own pace gives
	// a better ETA than the provider's duration estimate.
	movingSpeedKmh = 5.0
)
