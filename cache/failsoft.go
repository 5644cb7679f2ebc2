package cache

import (
	"context"
	"errors"
	"time"

	"github.com/inspeksimobil/inspector-core/logger"
)

// invalidateTimeout bounds each detached invalidation delete.
const invalidateTimeout = 2 * time.Second

// FailSoft wraps a Cache so that no operation ever returns an error. Failures
// are logged and mapped to sentinels: absent values, false successes,
// unavailable counters. Consumers that must distinguish "the durable store
// said no" from "the cache hiccuped" use the durable store directly; the
// cache path is always optional.
type FailSoft struct {
	cache Cache
	log   logger.Logger
}

// NewFailSoft wraps cache with sentinel semantics.
func NewFailSoft(cache Cache, log logger.Logger) *FailSoft {
	return &FailSoft{cache: cache, log: log}
}

// Get returns the value and true on a hit, nil and false on a miss or any
// cache failure.
func (f *FailSoft) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := f.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			f.warn("get", key, err)
		}
		return nil, false
	}
	return data, true
}

// Set stores the value and reports whether the write reached the cache.
func (f *FailSoft) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	if err := f.cache.Set(ctx, key, value, ttl); err != nil {
		f.warn("set", key, err)
		return false
	}
	return true
}

// SetIfAbsent stores the value when the key doesn't exist. Returns whether
// the value was stored and whether the cache answered at all.
func (f *FailSoft) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (stored, ok bool) {
	stored, err := f.cache.SetIfAbsent(ctx, key, value, ttl)
	if err != nil {
		f.warn("setnx", key, err)
		return false, false
	}
	return stored, true
}

// Delete removes the key and reports whether the delete reached the cache.
func (f *FailSoft) Delete(ctx context.Context, key string) bool {
	if err := f.cache.Delete(ctx, key); err != nil {
		f.warn("delete", key, err)
		return false
	}
	return true
}

// Increment atomically increments the counter at key, refreshing its TTL.
// Returns the new value and true, or 0 and false if the cache is unusable.
func (f *FailSoft) Increment(ctx context.Context, key string, ttl time.Duration) (int64, bool) {
	n, err := f.cache.Increment(ctx, key, ttl)
	if err != nil {
		f.warn("incr", key, err)
		return 0, false
	}
	return n, true
}

// IncrementWindow atomically increments the counter at key, setting the TTL
// only on key creation. Returns the new value and true, or 0 and false if the
// cache is unusable.
func (f *FailSoft) IncrementWindow(ctx context.Context, key string, ttl time.Duration) (int64, bool) {
	n, err := f.cache.IncrementWindow(ctx, key, ttl)
	if err != nil {
		f.warn("incrwindow", key, err)
		return 0, false
	}
	return n, true
}

// Counter reads the counter at key. Returns the value and true on a hit, 0
// and false when the key is absent or the cache is unusable.
func (f *FailSoft) Counter(ctx context.Context, key string) (int64, bool) {
	n, err := f.cache.Counter(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			f.warn("counter", key, err)
		}
		return 0, false
	}
	return n, true
}

// Invalidate deletes the given keys concurrently, detached from the calling
// request. Write paths that mutate a durable row call this for every cache
// key shadowing that row; the write's success never depends on the outcome.
func (f *FailSoft) Invalidate(ctx context.Context, keys ...string) {
	for _, key := range keys {
		go func(key string) {
			dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
			defer cancel()
			f.Delete(dctx, key)
		}(key)
	}
}

func (f *FailSoft) warn(op, key string, err error) {
	if errors.Is(err, ErrUnavailable) {
		// Expected in durable-only mode; not worth a log line per call.
		return
	}
	f.log.Warn().Str("op", op).Str("key", key).Err(err).Msg("cache operation degraded")
}
