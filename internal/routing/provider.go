// README: Routing provider contract consumed by the sequencer and tracking estimator.
package routing

import (
	"context"

	"farmlink/internal/types"
)

// RouteResult is a fixed-order routing answer: full geometry plus total and
// per-leg distance/duration. Legs run between consecutive input points.
type RouteResult struct {
	Geometry     types.Polyline
	DistanceM    int
	DurationS    int
	LegDistanceM []int
	LegDurationS []int
}

// Provider is the external routing collaborator. Any backend able to answer
// the two capabilities (approximate waypoint ordering, fixed-order routing)
// can satisfy it; neither call carries an availability guarantee, so callers
// own the fallback paths.
type Provider interface {
	// OptimizeOrder suggests a visiting order for waypoints between origin
	// and destination. The result holds indices into waypoints.
	OptimizeOrder(ctx context.Context, origin, destination types.Point, waypoints []types.Point) ([]int, error)

	// Route computes the fixed-order route through points (origin first,
	// destination last).
	Route(ctx context.Context, points []types.Point) (*RouteResult, error)
}
