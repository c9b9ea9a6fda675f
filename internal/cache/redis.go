package cache

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/socialpulse/pulse/pkg/logging"
)

// RedisStore is the shared cache backend. Every operation degrades to a miss
// or no-op on backend failure so a Redis outage slows queries down instead of
// failing them.
type RedisStore struct {
	client  goredis.UniversalClient
	logger  logging.Logger
	metrics MetricsHooks
}

// NewRedisStore creates a cache store backed by Redis.
func NewRedisStore(client goredis.UniversalClient, logger logging.Logger, hooks MetricsHooks) *RedisStore {
	return &RedisStore{
		client:  client,
		logger:  logger,
		metrics: hooks,
	}
}

func (r *RedisStore) Get(ctx context.Context, key string, dest interface{}) bool {
	payload, err := r.client.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		if r.metrics.OnMiss != nil {
			r.metrics.OnMiss(map[string]string{"backend": "redis"})
		}
		return false
	}
	if err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("Cache read failed, treating as miss")
		if r.metrics.OnError != nil {
			r.metrics.OnError(map[string]string{"backend": "redis", "op": "get"})
		}
		return false
	}

	if err := json.Unmarshal(payload, dest); err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("Cache entry corrupt, dropping")
		r.client.Del(ctx, key)
		if r.metrics.OnError != nil {
			r.metrics.OnError(map[string]string{"backend": "redis", "op": "decode"})
		}
		return false
	}

	if r.metrics.OnHit != nil {
		r.metrics.OnHit(map[string]string{"backend": "redis"})
	}
	return true
}

func (r *RedisStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	payload, err := json.Marshal(value)
	if err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("Failed to encode cache value")
		if r.metrics.OnError != nil {
			r.metrics.OnError(map[string]string{"backend": "redis", "op": "encode"})
		}
		return
	}

	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
		if r.metrics.OnError != nil {
			r.metrics.OnError(map[string]string{"backend": "redis", "op": "set"})
		}
		return
	}

	if r.metrics.OnStore != nil {
		r.metrics.OnStore(map[string]string{"backend": "redis"})
	}
}

// Invalidate removes every key with the given prefix using SCAN so large
// keyspaces do not block Redis the way KEYS would.
func (r *RedisStore) Invalidate(ctx context.Context, prefix string) int {
	removed := 0
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			r.logger.WithError(err).WithField("key", iter.Val()).Warn("Cache invalidation delete failed")
			continue
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		r.logger.WithError(err).WithField("prefix", prefix).Warn("Cache invalidation scan failed")
		if r.metrics.OnError != nil {
			r.metrics.OnError(map[string]string{"backend": "redis", "op": "scan"})
		}
	}

	if r.metrics.OnInvalidate != nil {
		r.metrics.OnInvalidate(map[string]string{"backend": "redis"})
	}
	return removed
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
