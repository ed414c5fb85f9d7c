// README: WKT encoding for route geometry at the PostGIS boundary.
package trip

import (
	"fmt"
	"strconv"
	"strings"

	"farmlink/internal/types"
)

// wktLineString renders a polyline as a WKT LINESTRING in lng/lat order, the
// axis order PostGIS expects for SRID 4326 geometries.
func wktLineString(line types.Polyline) string {
	var b strings.Builder
	b.WriteString("LINESTRING(")
	for i, p := range line {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatFloat(p.Lng, 'f', -1, 64))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(p.Lat, 'f', -1, 64))
	}
	b.WriteString(")")
	return b.String()
}

func parseWKTLineString(wkt string) (types.Polyline, error) {
	s := strings.TrimSpace(wkt)
	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "LINESTRING") {
		return nil, fmt.Errorf("not a linestring: %q", truncate(wkt, 32))
	}
	open := strings.IndexByte(s, '(')
	end := strings.LastIndexByte(s, ')')
	if open < 0 || end < open {
		return nil, fmt.Errorf("malformed linestring: %q", truncate(wkt, 32))
	}

	inner := s[open+1 : end]
	pairs := strings.Split(inner, ",")
	line := make(types.Polyline, 0, len(pairs))
	for _, pair := range pairs {
		fields := strings.Fields(strings.TrimSpace(pair))
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed coordinate pair %q", pair)
		}
		lng, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing lng %q: %w", fields[0], err)
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing lat %q: %w", fields[1], err)
		}
		line = append(line, types.Point{Lat: lat, Lng: lng})
	}
	return line, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
