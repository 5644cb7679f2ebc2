package cache

import (
	"context"
	"time"

	"github.com/inspeksimobil/inspector-core/logger"
)

// DefaultProbeTimeout bounds the liveness probe issued by Monitor.Healthy.
const DefaultProbeTimeout = 1 * time.Second

// Monitor answers "is the cache currently usable" so callers can skip doomed
// fast-path round trips. It reads the client's connection state machine and
// confirms a Ready state with a cheap probe, since a stale Ready flag can
// mask a half-open connection.
type Monitor struct {
	cache        Cache
	probeTimeout time.Duration
	log          logger.Logger
}

// NewMonitor creates a Monitor over cache with the default probe timeout.
func NewMonitor(cache Cache, log logger.Logger) *Monitor {
	return &Monitor{cache: cache, probeTimeout: DefaultProbeTimeout, log: log}
}

// Healthy reports whether the cache should be attempted. It never blocks
// beyond the probe timeout and returns false rather than failing.
func (m *Monitor) Healthy(ctx context.Context) bool {
	if m.cache.State() != StateReady {
		return false
	}

	pctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	if err := m.cache.Health(pctx); err != nil {
		m.log.Warn().Err(err).Msg("cache health probe failed")
		return false
	}
	return true
}

var _ HealthChecker = (*Monitor)(nil)
