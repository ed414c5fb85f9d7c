// README: Common value types shared across modules.
package types

// ID is an opaque entity identifier (hex string from the ID generator or an
// external collaborator's key).
type ID string

// Point is a geographic coordinate in decimal degrees.
type Point struct {
	Lat float64
	Lng float64
}

// Polyline is an ordered route geometry. Encoding to/from wire formats
// (Google encoded polylines, PostGIS linestrings) is the adapters' job;
// inside the core a route is always a plain point slice.
type Polyline []Point
