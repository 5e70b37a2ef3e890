package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const flushBatch = 100

// RedisCache stores flags in Redis. Expiry is enforced by the server.
type RedisCache struct {
	client redis.UniversalClient
	prefix string

	hits, misses, sets, deletes, errs atomic.Uint64
}

// NewRedisCache wraps client. prefix scopes Flush; it should match the
// prefix used to derive keys.
func NewRedisCache(client redis.UniversalClient, prefix string) *RedisCache {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisCache{client: client, prefix: prefix}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.misses.Add(1)
		return nil, ErrMiss
	}
	if err != nil {
		r.errs.Add(1)
		return nil, err
	}
	r.hits.Add(1)
	return val, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.errs.Add(1)
		return err
	}
	r.sets.Add(1)
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.errs.Add(1)
		return err
	}
	r.deletes.Add(1)
	return nil
}

// Flush deletes every key under the prefix. SCAN is used so a large
// keyspace never blocks the server. Keys are collected before any are
// deleted; deleting mid-scan can move the cursor past live keys.
func (r *RedisCache) Flush(ctx context.Context) error {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", flushBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		r.errs.Add(1)
		return err
	}

	for len(keys) > 0 {
		n := len(keys)
		if n > flushBatch {
			n = flushBatch
		}
		if err := r.client.Del(ctx, keys[:n]...).Err(); err != nil {
			r.errs.Add(1)
			return err
		}
		r.deletes.Add(uint64(n))
		keys = keys[n:]
	}
	return nil
}

// Ping checks connectivity, for health reporting
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Stats() Stats {
	hits, misses := r.hits.Load(), r.misses.Load()
	return Stats{
		Backend: "redis",
		Hits:    hits,
		Misses:  misses,
		Sets:    r.sets.Load(),
		Deletes: r.deletes.Load(),
		Errors:  r.errs.Load(),
		Ratio:   hitRatio(hits, misses),
	}
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
