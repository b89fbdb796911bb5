package idempotency_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/notifyhub/dispatch/internal/idempotency"
)

func newStore(t *testing.T) (*idempotency.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return idempotency.NewRedisStore(rdb), mr
}

func TestRedisStore_FirstReserveWins(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	ok, err := store.Reserve(ctx, "order-42", 24*time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Reserve(ctx, "order-42", 24*time.Hour)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisStore_DistinctKeysIndependent(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	ok, err := store.Reserve(ctx, "order-1", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Reserve(ctx, "order-2", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisStore_ReservationExpires(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	ok, err := store.Reserve(ctx, "order-9", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err = store.Reserve(ctx, "order-9", time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "expired reservation must be claimable again")
}
