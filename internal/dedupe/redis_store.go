package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisSeenKey = "sme_deals:seen"

// RedisStore keeps the seen set in a single Redis hash, fingerprint →
// first-seen RFC3339. The key expires after the retention horizon so an
// abandoned deployment cleans up after itself.
type RedisStore struct {
	rdb     *redis.Client
	horizon time.Duration
}

func NewRedisStore(addr, pass string, db int, horizon time.Duration) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: redis ping: %v", ErrPersistence, err)
	}

	return &RedisStore{rdb: rdb, horizon: horizon}, nil
}

// NewRedisStoreFromClient wraps an existing client (used by tests with miniredis).
func NewRedisStoreFromClient(rdb *redis.Client, horizon time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, horizon: horizon}
}

func (r *RedisStore) Load(ctx context.Context) (*SeenSet, error) {
	raw, err := r.rdb.HGetAll(ctx, redisSeenKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis hgetall: %v", ErrPersistence, err)
	}

	set := NewSeenSet()
	for fp, ts := range raw {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("%w: bad timestamp for %s: %v", ErrPersistence, fp, err)
		}
		set.Add(fp, t)
	}
	return set, nil
}

// Save replaces the hash wholesale inside a transaction so a concurrent
// reader never observes a partially written set.
func (r *RedisStore) Save(ctx context.Context, set *SeenSet) error {
	fields := make(map[string]string, set.Len())
	for fp, t := range set.Entries() {
		fields[fp] = t.UTC().Format(time.RFC3339)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, redisSeenKey)
	if len(fields) > 0 {
		pipe.HSet(ctx, redisSeenKey, fields)
		pipe.Expire(ctx, redisSeenKey, r.horizon)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: redis save: %v", ErrPersistence, err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
