// README: Stop sequencing: external optimizer, precedence repair, greedy fallback.
package route

import (
	"context"
	"errors"
	"log"
	"math"

	"farmlink/internal/geo"
	"farmlink/internal/modules/trip"
	"farmlink/internal/routing"
	"farmlink/internal/types"
)

var (
	ErrNoStops     = errors.New("no stops to sequence")
	ErrUnavailable = errors.New("route optimization unavailable")
)

// Sequencer orders a trip's stops so that every pickup precedes its order's
// delivery, and derives per-stop arrival offsets from the routing provider's
// per-leg durations.
//
// The underlying problem (multi-pickup, single-vehicle, precedence-constrained
// routing) is NP-hard; the sequencer accepts the provider's approximate TSP
// answer and repairs only the constraint the provider doesn't know about.
type Sequencer struct {
	provider routing.Provider
}

func NewSequencer(provider routing.Provider) *Sequencer {
	return &Sequencer{provider: provider}
}

// Sequence produces the ordered plan for origin → stops → destination.
//
// Failure contract: when the provider's optimizer is down the greedy fallback
// still yields a valid, precedence-respecting sequence; only when the
// fixed-order route call itself fails does Sequence report ErrUnavailable,
// and then it returns no partial plan at all.
func (s *Sequencer) Sequence(ctx context.Context, origin, destination types.Point, stops []Waypoint) (*Plan, error) {
	if len(stops) == 0 {
		return nil, ErrNoStops
	}

	var ordered []Waypoint
	if len(stops) == 1 {
		// Nothing to optimize for a single stop.
		ordered = stops
	} else {
		ordered = s.optimizeOrder(ctx, origin, destination, stops)
		ordered = repairPrecedence(ordered)
		if !precedenceHolds(ordered) {
			// The repair loop hit its iteration bound without converging.
			// Refusing is safer than persisting a sequence that would hand
			// a rider a delivery before its pickups.
			return nil, ErrUnavailable
		}
	}

	points := make([]types.Point, 0, len(ordered)+2)
	points = append(points, origin)
	for _, w := range ordered {
		points = append(points, w.Point)
	}
	points = append(points, destination)

	res, err := s.provider.Route(ctx, points)
	if err != nil {
		return nil, ErrUnavailable
	}
	if len(res.LegDurationS) < len(ordered) {
		return nil, ErrUnavailable
	}

	plan := &Plan{
		Stops:     make([]PlannedStop, len(ordered)),
		DistanceM: res.DistanceM,
		DurationS: res.DurationS,
		Geometry:  res.Geometry,
	}
	eta := 0
	for i, w := range ordered {
		eta += res.LegDurationS[i]
		plan.Stops[i] = PlannedStop{Waypoint: w, Seq: i, ETASeconds: eta}
	}
	return plan, nil
}

// optimizeOrder asks the provider for a visiting order and falls back to the
// local greedy heuristic when the provider fails or answers nonsense.
func (s *Sequencer) optimizeOrder(ctx context.Context, origin, destination types.Point, stops []Waypoint) []Waypoint {
	wps := make([]types.Point, len(stops))
	for i, w := range stops {
		wps[i] = w.Point
	}

	order, err := s.provider.OptimizeOrder(ctx, origin, destination, wps)
	if err != nil {
		log.Printf("route: optimizer unavailable, using greedy fallback: %v", err)
		return greedyOrder(origin, stops)
	}
	ordered, ok := applyOrder(stops, order)
	if !ok {
		log.Printf("route: optimizer returned invalid order, using greedy fallback")
		return greedyOrder(origin, stops)
	}
	return ordered
}

// applyOrder reorders stops by the provider's index list; a list that is not
// a permutation of the stop indices is rejected.
func applyOrder(stops []Waypoint, order []int) ([]Waypoint, bool) {
	if len(order) != len(stops) {
		return nil, false
	}
	seen := make([]bool, len(stops))
	out := make([]Waypoint, len(stops))
	for i, idx := range order {
		if idx < 0 || idx >= len(stops) || seen[idx] {
			return nil, false
		}
		seen[idx] = true
		out[i] = stops[idx]
	}
	return out, true
}

// repairPrecedence scans for deliveries sequenced before the last pickup of
// their order and moves each such delivery to immediately follow that pickup.
// Passes repeat until a full pass makes no move or the n² safety bound is hit;
// the bound keeps pathological inputs from looping forever while realistic
// stop counts (a handful of orders per trip) converge well within it.
func repairPrecedence(stops []Waypoint) []Waypoint {
	out := make([]Waypoint, len(stops))
	copy(out, stops)

	maxMoves := len(out) * len(out)
	moves := 0
	for {
		changed := false
		for i := 0; i < len(out); i++ {
			if out[i].Kind != trip.KindDelivery {
				continue
			}
			last := lastPickupIndex(out, out[i].OrderID)
			if last <= i {
				continue
			}
			// Move the delivery to immediately follow its last pickup.
			d := out[i]
			copy(out[i:], out[i+1:last+1])
			out[last] = d
			changed = true
			moves++
			if moves >= maxMoves {
				return out
			}
		}
		if !changed {
			return out
		}
	}
}

func lastPickupIndex(stops []Waypoint, orderID types.ID) int {
	last := -1
	for i, w := range stops {
		if w.Kind == trip.KindPickup && w.OrderID == orderID {
			last = i
		}
	}
	return last
}

// precedenceHolds reports whether every delivery comes after all pickups of
// its order.
func precedenceHolds(stops []Waypoint) bool {
	for i, w := range stops {
		if w.Kind != trip.KindDelivery {
			continue
		}
		if lastPickupIndex(stops, w.OrderID) > i {
			return false
		}
	}
	return true
}

// greedyOrder is the local fallback heuristic: repeatedly take the unvisited
// stop nearest (straight-line) to the current position, skipping deliveries
// whose order still has unvisited pickups. Ties break on StopID so the
// fallback is deterministic.
func greedyOrder(origin types.Point, stops []Waypoint) []Waypoint {
	pendingPickups := make(map[types.ID]int)
	for _, w := range stops {
		if w.Kind == trip.KindPickup {
			pendingPickups[w.OrderID]++
		}
	}

	remaining := make([]Waypoint, len(stops))
	copy(remaining, stops)

	out := make([]Waypoint, 0, len(stops))
	current := origin
	for len(remaining) > 0 {
		best := -1
		bestDist := math.Inf(1)
		for i, w := range remaining {
			if w.Kind == trip.KindDelivery && pendingPickups[w.OrderID] > 0 {
				continue
			}
			d := geo.HaversineM(current, w.Point)
			if d < bestDist || (d == bestDist && (best < 0 || w.StopID < remaining[best].StopID)) {
				bestDist = d
				best = i
			}
		}
		if best < 0 {
			// Unreachable for well-formed input: a blocked delivery implies
			// its pickup is still in remaining, and pickups are never blocked.
			best = 0
		}

		w := remaining[best]
		if w.Kind == trip.KindPickup {
			pendingPickups[w.OrderID]--
		}
		out = append(out, w)
		current = w.Point
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return out
}
