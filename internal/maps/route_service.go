// README: Routing provider adapter backed by the Google Maps Directions API.
package maps

import (
	"context"
	"fmt"
	"strconv"

	"googlemaps.github.io/maps"

	"farmlink/internal/routing"
	"farmlink/internal/types"
)

// RouteService handles interactions with the Google Maps Directions API and
// implements routing.Provider.
// Both methods are best-effort: the provider gives no availability guarantee,
// so callers own the fallback paths.
type RouteService struct {
	client *maps.Client
}

// NewRouteService creates a RouteService on an initialised maps client.
func NewRouteService(client *maps.Client) *RouteService {
	return &RouteService{client: client}
}

// OptimizeOrder asks the Directions API to reorder the waypoints between
// origin and destination (approximate TSP, no round trip). The returned slice
// holds indices into waypoints in suggested visiting order.
func (s *RouteService) OptimizeOrder(ctx context.Context, origin, destination types.Point, waypoints []types.Point) ([]int, error) {
	r := &maps.DirectionsRequest{
		Origin:      formatPoint(origin),
		Destination: formatPoint(destination),
		Mode:        maps.TravelModeDriving,
		Waypoints:   formatPoints(waypoints),
		Optimize:    true,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("no route found")
	}
	order := routes[0].WaypointOrder
	if len(order) != len(waypoints) {
		return nil, fmt.Errorf("waypoint order has %d entries, want %d", len(order), len(waypoints))
	}
	return order, nil
}

// Route computes the fixed-order route through points (first is the origin,
// last the destination, everything between a visited waypoint) and returns
// geometry plus total and per-leg distance/duration.
func (s *RouteService) Route(ctx context.Context, points []types.Point) (*routing.RouteResult, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("route needs at least origin and destination, got %d points", len(points))
	}

	r := &maps.DirectionsRequest{
		Origin:      formatPoint(points[0]),
		Destination: formatPoint(points[len(points)-1]),
		Mode:        maps.TravelModeDriving,
		Waypoints:   formatPoints(points[1 : len(points)-1]),
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return nil, fmt.Errorf("no route found")
	}

	route := routes[0]
	result := &routing.RouteResult{
		LegDistanceM: make([]int, 0, len(route.Legs)),
		LegDurationS: make([]int, 0, len(route.Legs)),
	}
	for _, leg := range route.Legs {
		result.LegDistanceM = append(result.LegDistanceM, leg.Distance.Meters)
		result.LegDurationS = append(result.LegDurationS, int(leg.Duration.Seconds()))
		result.DistanceM += leg.Distance.Meters
		result.DurationS += int(leg.Duration.Seconds())
	}

	decoded, err := route.OverviewPolyline.Decode()
	if err != nil {
		return nil, fmt.Errorf("decoding overview polyline: %w", err)
	}
	result.Geometry = make(types.Polyline, len(decoded))
	for i, ll := range decoded {
		result.Geometry[i] = types.Point{Lat: ll.Lat, Lng: ll.Lng}
	}

	return result, nil
}

func formatPoint(p types.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 6, 64)
}

func formatPoints(pts []types.Point) []string {
	out := make([]string, len(pts))
	for i, p := range pts {
		out[i] = formatPoint(p)
	}
	return out
}
