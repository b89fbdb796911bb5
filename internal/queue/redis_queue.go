package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis list backing the delivery queue.
const DefaultKey = "notification:queue"

// RedisQueue implements Queue on a Redis list: LPUSH to enqueue,
// BRPOP to dequeue, so the oldest envelope is always served first.
// The list survives process restarts, which is what lets the
// scheduler and workers run in separate processes.
type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Push(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, body).Err(); err != nil {
		return fmt.Errorf("push envelope: %w", err)
	}
	return nil
}

func (q *RedisQueue) PopBlocking(ctx context.Context, timeout time.Duration) (Envelope, bool, error) {
	result, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return Envelope{}, false, nil
	}
	if err != nil {
		return Envelope{}, false, fmt.Errorf("pop envelope: %w", err)
	}
	// BRPop returns [key, value].
	if len(result) < 2 {
		return Envelope{}, false, nil
	}

	var env Envelope
	if err := json.Unmarshal([]byte(result[1]), &env); err != nil {
		return Envelope{}, false, fmt.Errorf("decode envelope: %w", err)
	}
	return env, true, nil
}

func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return n, nil
}

// compile-time check that RedisQueue implements Queue
var _ Queue = (*RedisQueue)(nil)
