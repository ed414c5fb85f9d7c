// README: Sequencer inputs and the derived route plan.
package route

import (
	"farmlink/internal/modules/trip"
	"farmlink/internal/types"
)

// Waypoint is one unsequenced stop fed into the sequencer, tagged with the
// order that owns it so precedence can be enforced.
type Waypoint struct {
	StopID  types.ID
	OrderID types.ID
	Kind    trip.StopKind
	Point   types.Point
}

// PlannedStop is a waypoint with its final sequence position and cumulative
// arrival offset in seconds from departure.
type PlannedStop struct {
	Waypoint
	Seq        int
	ETASeconds int
}

// Plan is the sequencer's result. It is ephemeral computation output; the
// caller flattens it into Trip and Stop fields in one atomic replacement,
// never patches it piecemeal.
type Plan struct {
	Stops     []PlannedStop
	DistanceM int
	DurationS int
	Geometry  types.Polyline
}
