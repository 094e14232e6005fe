package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStoreFromClient(rdb, 30*24*time.Hour), mr
}

func TestRedisStore_ColdStartReturnsEmptySet(t *testing.T) {
	store, _ := newTestRedisStore(t)

	set, err := store.Load(context.Background())

	require.NoError(t, err)
	assert.Zero(t, set.Len())
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	set := NewSeenSet()
	first := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	set.Add("fp-1", first)
	set.Add("fp-2", first.Add(time.Minute))
	require.NoError(t, store.Save(ctx, set))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
	assert.Equal(t, first, loaded.Entries()["fp-1"])
}

func TestRedisStore_SaveReplacesPreviousState(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	old := NewSeenSet()
	old.Add("stale", time.Now())
	require.NoError(t, store.Save(ctx, old))

	fresh := NewSeenSet()
	fresh.Add("current", time.Now())
	require.NoError(t, store.Save(ctx, fresh))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, loaded.Has("stale"))
	assert.True(t, loaded.Has("current"))
}

func TestRedisStore_KeyCarriesRetentionTTL(t *testing.T) {
	store, mr := newTestRedisStore(t)

	set := NewSeenSet()
	set.Add("fp", time.Now())
	require.NoError(t, store.Save(context.Background(), set))

	ttl := mr.TTL(redisSeenKey)
	assert.Equal(t, 30*24*time.Hour, ttl)
}

func TestRedisStore_EmptySetLeavesNoKey(t *testing.T) {
	store, mr := newTestRedisStore(t)

	require.NoError(t, store.Save(context.Background(), NewSeenSet()))

	assert.False(t, mr.Exists(redisSeenKey))
}
