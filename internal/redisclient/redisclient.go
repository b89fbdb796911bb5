package redisclient

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Connect builds a Redis client from a connection URL
// (redis://[:password@]host:port[/db]) and verifies connectivity.
// The same client backs the delivery queue, idempotency reservations,
// and retry markers.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
