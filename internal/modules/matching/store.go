// README: Match-offer bookkeeping backed by Redis.
package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"farmlink/internal/types"
)

const (
	offeredAtKeyPrefix = "matching:order:%s:offered_at"
	offerSetKeyPrefix  = "matching:order:%s:offered_trips"
)

type Store struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewStore(redis *redis.Client, ttl time.Duration) *Store {
	return &Store{redis: redis, ttl: ttl}
}

// RecordOffer records the offer timestamp and the set of trips an order was
// offered to. Both keys expire together so abandoned matches clean themselves up.
func (s *Store) RecordOffer(ctx context.Context, orderID types.ID, tripIDs []types.ID) error {
	pipe := s.redis.Pipeline()
	pipe.Set(ctx, offeredAtKey(orderID), time.Now().UTC().Format(time.RFC3339), s.ttl)
	if len(tripIDs) > 0 {
		members := make([]interface{}, len(tripIDs))
		for i, id := range tripIDs {
			members[i] = string(id)
		}
		setKey := offerSetKey(orderID)
		pipe.SAdd(ctx, setKey, members...)
		pipe.Expire(ctx, setKey, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// OfferedAt returns when the order was first offered, and whether an offer exists.
func (s *Store) OfferedAt(ctx context.Context, orderID types.ID) (time.Time, bool, error) {
	val, err := s.redis.Get(ctx, offeredAtKey(orderID)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// OfferedTrips returns the trips an order is currently offered to.
func (s *Store) OfferedTrips(ctx context.Context, orderID types.ID) ([]types.ID, error) {
	vals, err := s.redis.SMembers(ctx, offerSetKey(orderID)).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(vals))
	for i, v := range vals {
		ids[i] = types.ID(v)
	}
	return ids, nil
}

func offeredAtKey(orderID types.ID) string {
	return fmt.Sprintf(offeredAtKeyPrefix, string(orderID))
}

func offerSetKey(orderID types.ID) string {
	return fmt.Sprintf(offerSetKeyPrefix, string(orderID))
}
