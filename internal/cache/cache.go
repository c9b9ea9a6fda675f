package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// TTL classes. KPI and series responses use the short class so dashboards
// refresh quickly; predictive outputs are expensive and change slowly.
const (
	ShortTTL = 5 * time.Minute
	LongTTL  = time.Hour
)

// Store is the cache surface used by the query layer. Implementations must
// degrade to a miss on backend failure rather than surface the error to
// callers; the pipeline always recomputes on a miss.
type Store interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
	Invalidate(ctx context.Context, prefix string) int
	Close() error
}

// MetricsHooks lets callers observe cache behavior without coupling the
// cache to a metrics registry.
type MetricsHooks struct {
	OnHit        func(labels map[string]string)
	OnMiss       func(labels map[string]string)
	OnStore      func(labels map[string]string)
	OnInvalidate func(labels map[string]string)
	OnError      func(labels map[string]string)
}

// Key builds a cache key scoped to a workspace. Segments join with ':' so
// Invalidate(KeyPrefix(workspaceID)) drops everything for one tenant.
func Key(workspaceID string, parts ...string) string {
	segments := append([]string{"pulse", workspaceID}, parts...)
	return strings.Join(segments, ":")
}

// KeyPrefix returns the invalidation prefix covering every key for a workspace.
func KeyPrefix(workspaceID string) string {
	return "pulse:" + workspaceID + ":"
}

var loadGroup singleflight.Group

// GetOrLoad reads through the cache: on a miss it runs loader once per key
// regardless of how many requests arrive concurrently, stores the result and
// returns it. dest must be a pointer; loader's result is round-tripped
// through JSON so both backends behave identically.
func GetOrLoad(ctx context.Context, store Store, key string, ttl time.Duration, dest interface{}, loader func(ctx context.Context) (interface{}, error)) error {
	if store.Get(ctx, key, dest) {
		return nil
	}

	value, err, _ := loadGroup.Do(key, func() (interface{}, error) {
		loaded, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		store.Set(ctx, key, loaded, ttl)
		return loaded, nil
	})
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, dest)
}
