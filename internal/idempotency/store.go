package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "notification:idemp:"

// Store reserves idempotency keys for a de-duplication window.
// The reservation is a soft guard; the unique constraint on
// notifications.idempotency_key is the hard guarantee.
type Store interface {
	// Reserve atomically claims key for ttl. Returns true iff the key
	// was not already reserved.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisStore implements Store with a single SET NX EX round trip.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	return ok, nil
}

var _ Store = (*RedisStore)(nil)
