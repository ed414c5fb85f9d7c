// README: Tracking store: Postgres sample log plus Redis position stream.
package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"farmlink/internal/types"
)

const channelKeyPrefix = "tracking:trip:%s"

type Store struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewStore(db *pgxpool.Pool, redis *redis.Client) *Store {
	return &Store{db: db, redis: redis}
}

// AppendSample persists the sample and publishes it on the trip's position
// channel. The append is the source of truth; a publish failure only delays
// live consumers until the next sample.
func (s *Store) AppendSample(ctx context.Context, sample Sample) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO tracking_samples (trip_id, lat, lng, speed_kmh, recorded_at)
		VALUES ($1, $2, $3, $4, $5)`,
		string(sample.TripID),
		sample.Point.Lat, sample.Point.Lng,
		sample.SpeedKmh,
		sample.RecordedAt,
	)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(sample)
	if err != nil {
		return err
	}
	if err := s.redis.Publish(ctx, channelKey(sample.TripID), payload).Err(); err != nil {
		log.Printf("tracking: publish sample for trip %s: %v", sample.TripID, err)
	}
	return nil
}

// Subscribe opens the trip's position channel and adapts it to a Sample
// channel. The returned stop function tears the subscription down; the
// channel closes after stop or when ctx is done.
func (s *Store) Subscribe(ctx context.Context, tripID types.ID) (<-chan Sample, func(), error) {
	pubsub := s.redis.Subscribe(ctx, channelKey(tripID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribing to position stream for trip %s: %w", tripID, err)
	}

	out := make(chan Sample)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var sample Sample
			if err := json.Unmarshal([]byte(msg.Payload), &sample); err != nil {
				log.Printf("tracking: malformed sample on trip %s channel: %v", tripID, err)
				continue
			}
			select {
			case out <- sample:
			case <-ctx.Done():
				return
			}
		}
	}()

	stop := func() { _ = pubsub.Close() }
	return out, stop, nil
}

func channelKey(tripID types.ID) string {
	return fmt.Sprintf(channelKeyPrefix, string(tripID))
}
