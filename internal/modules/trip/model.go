// README: Trip and Stop aggregates with status definitions.
package trip

import (
	"time"

	"farmlink/internal/types"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusInTransit Status = "in_transit"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// AllowedTransitions represents the trip state flow (diagram) as code.
// Transitions are one-directional: completed and cancelled are terminal,
// and a trip can only be cancelled before departure.
var AllowedTransitions = map[Status][]Status{
	StatusScheduled: {StatusInTransit, StatusCancelled},
	StatusInTransit: {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Trip is a rider's planned journey. Route geometry and the aggregate
// distance/duration/stop-count fields are written only as a unit by route
// (re)optimization, never field by field.
type Trip struct {
	ID            types.ID
	RiderID       types.ID
	Origin        types.Point
	Destination   types.Point
	DepartAt      time.Time
	CapacityKg    float64
	RemainingKg   float64
	Status        Status
	StatusVersion int
	RiderRating   float64
	Route         types.Polyline
	DistanceM     *int
	DurationS     *int
	StopCount     int
	CreatedAt     time.Time
}

type StopKind string

const (
	KindPickup   StopKind = "pickup"
	KindDelivery StopKind = "delivery"
)

// Stop is a single pickup or delivery point on a trip. Seq and ETASeconds are
// rewritten for the whole stop set at once during re-sequencing; per-stop
// mutation is limited to completion.
type Stop struct {
	ID           types.ID
	TripID       types.ID
	Kind         StopKind
	Point        types.Point
	AddressEn    *string
	AddressLocal *string
	Seq          int
	ETASeconds   *int
	ArrivedAt    *time.Time
	OrderID      types.ID
	OrderItemIDs []types.ID
	Done         bool
}

// OrderGroup is the order-store view the core consumes when deriving a trip's
// stop set: one delivery point per order, one pickup point per contributing
// farmer.
type OrderGroup struct {
	OrderID      types.ID
	Delivery     types.Point
	AddressEn    *string
	AddressLocal *string
	ItemIDs      []types.ID
	Pickups      []PickupGroup
}

type PickupGroup struct {
	FarmerID     types.ID
	Point        types.Point
	AddressEn    *string
	AddressLocal *string
	ItemIDs      []types.ID
}

// RouteMeta is the trip-level aggregate written together with a full stop
// replacement after a successful optimization run.
type RouteMeta struct {
	Geometry  types.Polyline
	DistanceM int
	DurationS int
}
