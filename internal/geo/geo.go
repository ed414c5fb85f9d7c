// Package geo contains pure geographic computation helpers.
package geo

import (
	"math"

	"farmlink/internal/types"
)

const earthRadiusM = 6371000.0

// HaversineM returns the great-circle distance in metres between two points
// specified in decimal degrees.
func HaversineM(a, b types.Point) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusM * c
}

// PointToSegmentM returns the distance in metres from p to the segment a-b.
// Uses an equirectangular projection around the segment, which is accurate
// enough at detour-threshold scales (a few km).
func PointToSegmentM(p, a, b types.Point) float64 {
	// Project to a local flat frame centred on a.
	cosLat := math.Cos(degreesToRadians(a.Lat))
	ax, ay := 0.0, 0.0
	bx := degreesToRadians(b.Lng-a.Lng) * cosLat * earthRadiusM
	by := degreesToRadians(b.Lat-a.Lat) * earthRadiusM
	px := degreesToRadians(p.Lng-a.Lng) * cosLat * earthRadiusM
	py := degreesToRadians(p.Lat-a.Lat) * earthRadiusM

	dx, dy := bx-ax, by-ay
	segLenSq := dx*dx + dy*dy
	if segLenSq == 0 {
		return math.Hypot(px-ax, py-ay)
	}

	t := ((px-ax)*dx + (py-ay)*dy) / segLenSq
	t = math.Max(0, math.Min(1, t))

	cx, cy := ax+t*dx, ay+t*dy
	return math.Hypot(px-cx, py-cy)
}

// PointToPolylineM returns the minimum distance in metres from p to any
// segment of line. Returns +Inf for an empty line.
func PointToPolylineM(p types.Point, line types.Polyline) float64 {
	if len(line) == 0 {
		return math.Inf(1)
	}
	if len(line) == 1 {
		return HaversineM(p, line[0])
	}
	min := math.Inf(1)
	for i := 0; i+1 < len(line); i++ {
		if d := PointToSegmentM(p, line[i], line[i+1]); d < min {
			min = d
		}
	}
	return min
}

// FractionAlongPolyline projects p onto line and returns the fractional
// position [0,1] of the projection measured by cumulative segment length.
// Returns 0 for lines with fewer than two points.
func FractionAlongPolyline(p types.Point, line types.Polyline) float64 {
	if len(line) < 2 {
		return 0
	}

	total := 0.0
	segLens := make([]float64, len(line)-1)
	for i := 0; i+1 < len(line); i++ {
		segLens[i] = HaversineM(line[i], line[i+1])
		total += segLens[i]
	}
	if total == 0 {
		return 0
	}

	best := math.Inf(1)
	bestBefore := 0.0
	before := 0.0
	for i := 0; i+1 < len(line); i++ {
		d := PointToSegmentM(p, line[i], line[i+1])
		if d < best {
			best = d
			// Approximate position within the segment by distance to its endpoints.
			da := HaversineM(p, line[i])
			db := HaversineM(p, line[i+1])
			frac := 0.0
			if da+db > 0 {
				frac = da / (da + db)
			}
			bestBefore = before + frac*segLens[i]
		}
		before += segLens[i]
	}
	return bestBefore / total
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
