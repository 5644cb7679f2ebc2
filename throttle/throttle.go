// Package throttle implements fixed-window request limiting on the cache's
// atomic increment, shared across instances. While the cache is unhealthy it
// degrades to a per-key in-process limiter rather than failing open.
package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/inspeksimobil/inspector-core/cache"
	"github.com/inspeksimobil/inspector-core/logger"
)

const keyPrefix = "throttle:"

// Config holds limiter settings.
type Config struct {
	Limit  int64         `koanf:"limit"`
	Window time.Duration `koanf:"window"`
}

// Limiter counts requests per key within a rolling window.
// All methods are safe for concurrent use.
type Limiter struct {
	cache  *cache.FailSoft
	health cache.HealthChecker
	name   string
	limit  int64
	window time.Duration
	log    logger.Logger

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

// New creates a Limiter. name scopes its cache keys so multiple limiters can
// coexist.
func New(fs *cache.FailSoft, health cache.HealthChecker, name string, cfg Config, log logger.Logger) *Limiter {
	return &Limiter{
		cache:  fs,
		health: health,
		name:   name,
		limit:  cfg.Limit,
		window: cfg.Window,
		log:    log,
		local:  make(map[string]*rate.Limiter),
	}
}

// Allow reports whether the request identified by key may proceed. The
// distributed counter is preferred; an unhealthy or failing cache falls back
// to the in-process limiter, which is stricter per instance but never errors.
//
// The counter's expiry is pinned to the window's first hit (IncrementWindow),
// so over-limit traffic cannot push its own window forward and lock the key
// out indefinitely.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	if l.health.Healthy(ctx) {
		if n, ok := l.cache.IncrementWindow(ctx, l.cacheKey(key), l.window); ok {
			return n <= l.limit
		}
	}
	return l.localLimiter(key).Allow()
}

func (l *Limiter) cacheKey(key string) string {
	return keyPrefix + l.name + ":" + key
}

func (l *Limiter) localLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.local[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.window/time.Duration(l.limit)), int(l.limit))
		l.local[key] = lim
	}
	return lim
}
