// README: Trip/Stop store backed by PostgreSQL + PostGIS (route proximity oracle included).
package trip

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"farmlink/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, t *Trip) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO trips (
			id, rider_id, origin_lat, origin_lng, dest_lat, dest_lng,
			depart_at, capacity_kg, remaining_kg, status, status_version,
			rider_rating, stop_count, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14
		)`,
		string(t.ID),
		string(t.RiderID),
		t.Origin.Lat, t.Origin.Lng,
		t.Destination.Lat, t.Destination.Lng,
		t.DepartAt,
		t.CapacityKg,
		t.RemainingKg,
		string(t.Status),
		t.StatusVersion,
		t.RiderRating,
		t.StopCount,
		t.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Trip, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, rider_id, origin_lat, origin_lng, dest_lat, dest_lng,
		       depart_at, capacity_kg, remaining_kg, status, status_version,
		       rider_rating, ST_AsText(route_geom), route_distance_m, route_duration_s,
		       stop_count, created_at
		FROM trips
		WHERE id = $1`, string(id),
	)

	t, err := scanTrip(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListSchedulable returns trips eligible for matching: not yet departed, not
// terminal, enough remaining capacity, and with a computed route. Geometry is
// left in the database; proximity questions go through the oracle queries.
func (s *Store) ListSchedulable(ctx context.Context, minCapacityKg float64) ([]*Trip, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, rider_id, origin_lat, origin_lng, dest_lat, dest_lng,
		       depart_at, capacity_kg, remaining_kg, status, status_version,
		       rider_rating, NULL::text, route_distance_m, route_duration_s,
		       stop_count, created_at
		FROM trips
		WHERE status = 'scheduled'
		  AND remaining_kg >= $1
		  AND route_geom IS NOT NULL`, minCapacityKg,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []*Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE trips
		SET status = $1,
		    status_version = status_version + 1
		WHERE id = $2 AND status = $3 AND status_version = $4`,
		string(to), string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReserveCapacity atomically deducts weightKg from the trip's remaining
// capacity; it fails (returns false) when not enough capacity is left or the
// trip is no longer schedulable. Remaining capacity never exceeds the total
// and never goes negative.
func (s *Store) ReserveCapacity(ctx context.Context, id types.ID, weightKg float64) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE trips
		SET remaining_kg = remaining_kg - $1
		WHERE id = $2 AND status = 'scheduled' AND remaining_kg >= $1`,
		weightKg, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ReleaseCapacity(ctx context.Context, id types.ID, weightKg float64) error {
	_, err := s.db.Exec(ctx, `
		UPDATE trips
		SET remaining_kg = LEAST(capacity_kg, remaining_kg + $1)
		WHERE id = $2`,
		weightKg, string(id),
	)
	return err
}

// ReplaceStops rewrites the trip's entire stop set in one transaction. When
// meta is non-nil the trip's route geometry and aggregate distance/duration
// are updated in the same transaction, so readers never observe a mix of old
// and new sequence data.
func (s *Store) ReplaceStops(ctx context.Context, tripID types.ID, stops []Stop, meta *RouteMeta) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM stops WHERE trip_id = $1`, string(tripID)); err != nil {
		return err
	}

	for _, st := range stops {
		_, err := tx.Exec(ctx, `
			INSERT INTO stops (
				id, trip_id, kind, lat, lng, address_en, address_local,
				seq, eta_seconds, order_id, order_item_ids, done
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			string(st.ID),
			string(tripID),
			string(st.Kind),
			st.Point.Lat, st.Point.Lng,
			st.AddressEn, st.AddressLocal,
			st.Seq,
			st.ETASeconds,
			string(st.OrderID),
			idsToStrings(st.OrderItemIDs),
			st.Done,
		)
		if err != nil {
			return err
		}
	}

	if meta != nil {
		_, err = tx.Exec(ctx, `
			UPDATE trips
			SET route_geom = ST_GeomFromText($1, 4326),
			    route_distance_m = $2,
			    route_duration_s = $3,
			    stop_count = $4
			WHERE id = $5`,
			wktLineString(meta.Geometry), meta.DistanceM, meta.DurationS, len(stops), string(tripID),
		)
	} else {
		_, err = tx.Exec(ctx, `UPDATE trips SET stop_count = $1 WHERE id = $2`, len(stops), string(tripID))
	}
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) ListStops(ctx context.Context, tripID types.ID) ([]Stop, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, trip_id, kind, lat, lng, address_en, address_local,
		       seq, eta_seconds, arrived_at, order_id, order_item_ids, done
		FROM stops
		WHERE trip_id = $1
		ORDER BY seq`, string(tripID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stops []Stop
	for rows.Next() {
		var st Stop
		var addrEn, addrLocal sql.NullString
		var eta sql.NullInt64
		var arrivedAt sql.NullTime
		var itemIDs []string
		err := rows.Scan(
			&st.ID, &st.TripID, &st.Kind, &st.Point.Lat, &st.Point.Lng,
			&addrEn, &addrLocal, &st.Seq, &eta, &arrivedAt, &st.OrderID, &itemIDs, &st.Done,
		)
		if err != nil {
			return nil, err
		}
		if addrEn.Valid {
			st.AddressEn = &addrEn.String
		}
		if addrLocal.Valid {
			st.AddressLocal = &addrLocal.String
		}
		if eta.Valid {
			v := int(eta.Int64)
			st.ETASeconds = &v
		}
		if arrivedAt.Valid {
			t := arrivedAt.Time
			st.ArrivedAt = &t
		}
		st.OrderItemIDs = stringsToIDs(itemIDs)
		stops = append(stops, st)
	}
	return stops, rows.Err()
}

// MarkStopDone records completion and the actual arrival time for one stop.
func (s *Store) MarkStopDone(ctx context.Context, tripID, stopID types.ID, arrivedAt time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE stops
		SET done = TRUE, arrived_at = $1
		WHERE id = $2 AND trip_id = $3 AND done = FALSE`,
		arrivedAt, string(stopID), string(tripID),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

// OrderGroups returns the orders matched to a trip with their farmer pickup
// points, the raw material for deriving the trip's stop set.
func (s *Store) OrderGroups(ctx context.Context, tripID types.ID) ([]OrderGroup, error) {
	rows, err := s.db.Query(ctx, `
		SELECT o.id, o.delivery_lat, o.delivery_lng, o.address_en, o.address_local, o.item_ids
		FROM orders o
		JOIN trip_orders t ON t.order_id = o.id
		WHERE t.trip_id = $1
		ORDER BY o.id`, string(tripID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []OrderGroup
	index := make(map[types.ID]int)
	for rows.Next() {
		var g OrderGroup
		var addrEn, addrLocal sql.NullString
		var itemIDs []string
		if err := rows.Scan(&g.OrderID, &g.Delivery.Lat, &g.Delivery.Lng, &addrEn, &addrLocal, &itemIDs); err != nil {
			return nil, err
		}
		if addrEn.Valid {
			g.AddressEn = &addrEn.String
		}
		if addrLocal.Valid {
			g.AddressLocal = &addrLocal.String
		}
		g.ItemIDs = stringsToIDs(itemIDs)
		index[g.OrderID] = len(groups)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, nil
	}

	prows, err := s.db.Query(ctx, `
		SELECT p.order_id, p.farmer_id, p.lat, p.lng, p.address_en, p.address_local, p.item_ids
		FROM order_pickups p
		JOIN trip_orders t ON t.order_id = p.order_id
		WHERE t.trip_id = $1
		ORDER BY p.order_id, p.farmer_id`, string(tripID),
	)
	if err != nil {
		return nil, err
	}
	defer prows.Close()

	for prows.Next() {
		var orderID types.ID
		var pg PickupGroup
		var addrEn, addrLocal sql.NullString
		var itemIDs []string
		if err := prows.Scan(&orderID, &pg.FarmerID, &pg.Point.Lat, &pg.Point.Lng, &addrEn, &addrLocal, &itemIDs); err != nil {
			return nil, err
		}
		if addrEn.Valid {
			pg.AddressEn = &addrEn.String
		}
		if addrLocal.Valid {
			pg.AddressLocal = &addrLocal.String
		}
		pg.ItemIDs = stringsToIDs(itemIDs)
		if i, ok := index[orderID]; ok {
			groups[i].Pickups = append(groups[i].Pickups, pg)
		}
	}
	return groups, prows.Err()
}

// IsNearRoute answers whether p lies within maxDistanceM of the trip's stored
// route line, using the geography cast for metre-accurate distances.
func (s *Store) IsNearRoute(ctx context.Context, tripID types.ID, p types.Point, maxDistanceM float64) (bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT ST_DWithin(
			route_geom::geography,
			ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography,
			$3
		)
		FROM trips
		WHERE id = $4 AND route_geom IS NOT NULL`,
		p.Lng, p.Lat, maxDistanceM, string(tripID),
	)
	var near bool
	err := row.Scan(&near)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return near, nil
}

// FractionAlongRoute projects p onto the trip's route and returns the
// fractional position [0,1] of the projection.
func (s *Store) FractionAlongRoute(ctx context.Context, tripID types.ID, p types.Point) (float64, error) {
	row := s.db.QueryRow(ctx, `
		SELECT ST_LineLocatePoint(route_geom, ST_SetSRID(ST_MakePoint($1, $2), 4326))
		FROM trips
		WHERE id = $3 AND route_geom IS NOT NULL`,
		p.Lng, p.Lat, string(tripID),
	)
	var frac float64
	err := row.Scan(&frac)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return frac, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (*Trip, error) {
	var t Trip
	var routeWKT sql.NullString
	var distanceM, durationS sql.NullInt64
	err := row.Scan(
		&t.ID, &t.RiderID, &t.Origin.Lat, &t.Origin.Lng, &t.Destination.Lat, &t.Destination.Lng,
		&t.DepartAt, &t.CapacityKg, &t.RemainingKg, &t.Status, &t.StatusVersion,
		&t.RiderRating, &routeWKT, &distanceM, &durationS,
		&t.StopCount, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if routeWKT.Valid {
		line, err := parseWKTLineString(routeWKT.String)
		if err != nil {
			return nil, err
		}
		t.Route = line
	}
	if distanceM.Valid {
		v := int(distanceM.Int64)
		t.DistanceM = &v
	}
	if durationS.Valid {
		v := int(durationS.Int64)
		t.DurationS = &v
	}
	return &t, nil
}

func idsToStrings(ids []types.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func stringsToIDs(ss []string) []types.ID {
	out := make([]types.ID, len(ss))
	for i, s := range ss {
		out[i] = types.ID(s)
	}
	return out
}
