package geo

import (
	"math"
	"testing"

	"farmlink/internal/types"
)

func TestHaversineM_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      types.Point
		wantM     float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         types.Point{Lat: 16.8409, Lng: 96.1735},
			b:         types.Point{Lat: 16.8409, Lng: 96.1735},
			wantM:     0,
			tolerance: 1,
		},
		{
			name:      "Sule Pagoda to Inya Lake (~7km)",
			a:         types.Point{Lat: 16.7735, Lng: 96.1595},
			b:         types.Point{Lat: 16.8300, Lng: 96.1530},
			wantM:     6300,
			tolerance: 500,
		},
		{
			name:      "New York to Los Angeles (~3944km)",
			a:         types.Point{Lat: 40.7128, Lng: -74.0060},
			b:         types.Point{Lat: 34.0522, Lng: -118.2437},
			wantM:     3944000,
			tolerance: 50000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineM(tt.a, tt.b)
			if math.Abs(got-tt.wantM) > tt.tolerance {
				t.Errorf("HaversineM() = %f, want %f (±%f)", got, tt.wantM, tt.tolerance)
			}
		})
	}
}

func TestPointToSegmentM(t *testing.T) {
	// Horizontal segment along a parallel; point ~111m due north of its midpoint.
	a := types.Point{Lat: 0, Lng: 0}
	b := types.Point{Lat: 0, Lng: 0.02}
	p := types.Point{Lat: 0.001, Lng: 0.01}

	got := PointToSegmentM(p, a, b)
	if math.Abs(got-111.0) > 5 {
		t.Errorf("perpendicular distance = %f, want ~111", got)
	}

	// Point beyond the segment end: distance is to the endpoint, not the line.
	q := types.Point{Lat: 0, Lng: 0.03}
	got = PointToSegmentM(q, a, b)
	want := HaversineM(q, b)
	if math.Abs(got-want) > want*0.02 {
		t.Errorf("endpoint distance = %f, want ~%f", got, want)
	}
}

func TestPointToPolylineM(t *testing.T) {
	line := types.Polyline{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 0.01},
		{Lat: 0.01, Lng: 0.01},
	}

	// On a vertex.
	if d := PointToPolylineM(types.Point{Lat: 0, Lng: 0.01}, line); d > 1 {
		t.Errorf("on-vertex distance = %f, want ~0", d)
	}

	// Empty line.
	if d := PointToPolylineM(types.Point{}, nil); !math.IsInf(d, 1) {
		t.Errorf("empty line distance = %f, want +Inf", d)
	}
}

func TestFractionAlongPolyline(t *testing.T) {
	line := types.Polyline{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 0.1},
	}

	cases := []struct {
		p    types.Point
		want float64
		tol  float64
	}{
		{types.Point{Lat: 0, Lng: 0}, 0.0, 0.02},
		{types.Point{Lat: 0, Lng: 0.05}, 0.5, 0.02},
		{types.Point{Lat: 0, Lng: 0.1}, 1.0, 0.02},
	}
	for _, tc := range cases {
		got := FractionAlongPolyline(tc.p, line)
		if math.Abs(got-tc.want) > tc.tol {
			t.Errorf("FractionAlongPolyline(%v) = %f, want %f", tc.p, got, tc.want)
		}
	}
}
