// README: Matching inputs and ranked candidate results.
package matching

import (
	"farmlink/internal/modules/trip"
	"farmlink/internal/types"
)

// PickupPoint is a farmer pickup location requested by an order.
type PickupPoint struct {
	FarmerID types.ID
	Point    types.Point
}

// Candidate is a trip that can serve at least one of the requested pickups
// and can reach the delivery point within the detour threshold.
type Candidate struct {
	Trip             *trip.Trip
	CoveredFarmers   []types.ID
	CoversAllPickups bool
}

// DefaultDetourThresholdM is the detour threshold used when the config leaves
// it unset: a point more than 5km off the route is not "on the way".
const DefaultDetourThresholdM = 5000.0
