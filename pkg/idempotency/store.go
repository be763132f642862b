package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a best-effort duplicate-delivery guard backed by redis. The
// underlying state transitions are idempotent on their own; this only
// short-circuits repeat work. Callers must Record a key only after their
// local write has committed, so an interrupted delivery is retried rather
// than swallowed.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) WebhookKey(eventType, paymentID string) string {
	return fmt.Sprintf("idem:webhook:%s:%s", eventType, paymentID)
}

// Seen reports whether a key was recorded by a completed delivery. It does
// not claim the key.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Record marks a delivery as fully processed.
func (s *Store) Record(ctx context.Context, key string) error {
	return s.rdb.Set(ctx, key, "1", s.ttl).Err()
}
