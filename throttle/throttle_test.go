package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/inspeksimobil/inspector-core/cache"
	cachetest "github.com/inspeksimobil/inspector-core/cache/testing"
	"github.com/inspeksimobil/inspector-core/logger"
)

func newTestLimiter(mock *cachetest.MockCache, limit int64, window time.Duration) *Limiter {
	log := logger.Disabled()
	fs := cache.NewFailSoft(mock, log)
	return New(fs, cache.NewMonitor(mock, log), "login", Config{Limit: limit, Window: window}, log)
}

func TestAllowWithinLimit(t *testing.T) {
	ctx := context.Background()
	mock := cachetest.NewMockCache()
	l := newTestLimiter(mock, 3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(ctx, "10.0.0.1"), "request %d should pass", i+1)
	}
	assert.False(t, l.Allow(ctx, "10.0.0.1"), "4th request must be rejected")

	// Another key has its own window.
	assert.True(t, l.Allow(ctx, "10.0.0.2"))
}

func TestAllowResetsAfterWindow(t *testing.T) {
	ctx := context.Background()
	mock := cachetest.NewMockCache()
	l := newTestLimiter(mock, 1, 50*time.Millisecond)

	assert.True(t, l.Allow(ctx, "10.0.0.1"))
	assert.False(t, l.Allow(ctx, "10.0.0.1"))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, l.Allow(ctx, "10.0.0.1"), "expired window must reset the counter")
}

func TestAllowRecoversUnderSustainedTraffic(t *testing.T) {
	ctx := context.Background()
	mock := cachetest.NewMockCache()
	l := newTestLimiter(mock, 1, 100*time.Millisecond)

	// A client hammering faster than the window must still be admitted once
	// the window rolls over: rejected requests may not extend the window.
	assert.True(t, l.Allow(ctx, "10.0.0.1"))

	time.Sleep(60 * time.Millisecond)
	assert.False(t, l.Allow(ctx, "10.0.0.1"), "second hit inside the window is over budget")

	// 130ms after the first hit: past the window, even though the rejected
	// request landed only 70ms ago.
	time.Sleep(70 * time.Millisecond)
	assert.True(t, l.Allow(ctx, "10.0.0.1"), "the window is anchored to its first hit")
}

func TestAllowFallsBackWhenCacheDown(t *testing.T) {
	ctx := context.Background()
	mock := cachetest.NewMockCache().FailEverything()
	l := newTestLimiter(mock, 2, time.Minute)

	// The local limiter still enforces the budget without erroring.
	assert.True(t, l.Allow(ctx, "10.0.0.1"))
	assert.True(t, l.Allow(ctx, "10.0.0.1"))
	assert.False(t, l.Allow(ctx, "10.0.0.1"))

	assert.Zero(t, mock.IncrementCalls(), "unhealthy cache must not be attempted")
}

func TestLimiterNamesScopeKeys(t *testing.T) {
	ctx := context.Background()
	mock := cachetest.NewMockCache()
	log := logger.Disabled()
	fs := cache.NewFailSoft(mock, log)
	monitor := cache.NewMonitor(mock, log)

	login := New(fs, monitor, "login", Config{Limit: 1, Window: time.Minute}, log)
	api := New(fs, monitor, "api", Config{Limit: 1, Window: time.Minute}, log)

	assert.True(t, login.Allow(ctx, "10.0.0.1"))
	assert.False(t, login.Allow(ctx, "10.0.0.1"))

	// The api limiter counts separately for the same client key.
	assert.True(t, api.Allow(ctx, "10.0.0.1"))
}
