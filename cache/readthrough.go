package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/inspeksimobil/inspector-core/logger"
)

// Loader produces a value from the durable source on a cache miss.
type Loader[T any] func(ctx context.Context) (T, error)

// ReadThrough implements the cache-aside pattern for one namespace: get from
// cache, fall back to the loader, best-effort populate. Concurrent misses for
// the same key are collapsed with singleflight so the loader runs at most
// once per miss. The zero TTL convention of Cache.Set applies.
//
// Each ReadThrough is bound to one record type T, which fixes the
// serialization contract for its namespace.
type ReadThrough[T any] struct {
	cache *FailSoft
	group singleflight.Group
	log   logger.Logger
}

// NewReadThrough creates a ReadThrough over the given fail-soft cache.
func NewReadThrough[T any](cache *FailSoft, log logger.Logger) *ReadThrough[T] {
	return &ReadThrough[T]{cache: cache, log: log}
}

// GetOrLoad returns the cached value for key, or invokes loader and caches
// its result with the given TTL. The loader's result is always returned
// regardless of the cache-write outcome; only a loader failure is an error.
// An undecodable cached payload is treated as a miss and evicted.
func (r *ReadThrough[T]) GetOrLoad(ctx context.Context, key string, ttl time.Duration, loader Loader[T]) (T, error) {
	if data, ok := r.cache.Get(ctx, key); ok {
		v, err := Unmarshal[T](data)
		if err == nil {
			return v, nil
		}
		r.log.Warn().Str("key", key).Err(err).Msg("evicting undecodable cache entry")
		r.cache.Delete(ctx, key)
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		loaded, err := loader(ctx)
		if err != nil {
			return nil, err
		}

		data, err := Marshal(loaded)
		if err != nil {
			r.log.Warn().Str("key", key).Err(err).Msg("skipping cache write for unserializable value")
			return loaded, nil
		}
		r.cache.Set(ctx, key, data, ttl)

		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate removes the given keys from this namespace. Fire-and-forget;
// see FailSoft.Invalidate.
func (r *ReadThrough[T]) Invalidate(ctx context.Context, keys ...string) {
	r.cache.Invalidate(ctx, keys...)
}
