// Package sequence generates collision-free, human-readable inspection ids
// scoped by branch code and calendar date. The cache's atomic increment is
// the fast path; the durable store's atomic upsert is the always-correct
// fallback when the cache is unhealthy or any cache step fails.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/inspeksimobil/inspector-core/cache"
	"github.com/inspeksimobil/inspector-core/logger"
	"github.com/inspeksimobil/inspector-core/store"
)

const (
	// counterTTL is how long a cache counter survives without issuance.
	// Counters partition daily, so a day-old counter is garbage.
	counterTTL = 24 * time.Hour

	// checkpointEvery is the issuance interval between durable checkpoints of
	// a cache-held counter. Purely a disaster-recovery aid; the cache path is
	// correct without it.
	checkpointEvery = 10

	// checkpointTimeout bounds each detached checkpoint write.
	checkpointTimeout = 3 * time.Second

	keyPrefix        = "inspection_seq:"
	datePrefixFormat = "02012006"
)

// Generator issues per-scope monotonically advancing formatted ids.
// All methods are safe for concurrent use.
type Generator struct {
	cache  *cache.FailSoft
	health cache.HealthChecker
	store  store.SequenceStore
	log    logger.Logger
}

// New creates a Generator.
func New(fs *cache.FailSoft, health cache.HealthChecker, st store.SequenceStore, log logger.Logger) *Generator {
	return &Generator{cache: fs, health: health, store: st, log: log}
}

// DatePrefix renders date in the fixed ddMMyyyy counter-partition format.
func DatePrefix(date time.Time) string {
	return date.Format(datePrefixFormat)
}

// FormatID renders an issued integer as "SCOPE-ddMMyyyy-NNN". The value is
// zero-padded to 3 digits but never truncated; issuance 1000 renders as 1000.
func FormatID(scopeKey, datePrefix string, n int64) string {
	return fmt.Sprintf("%s-%s-%03d", scopeKey, datePrefix, n)
}

func counterKey(scopeKey, datePrefix string) string {
	return keyPrefix + scopeKey + ":" + datePrefix
}

// IssueNext issues the next id for (scopeKey, date). Two concurrent callers
// for the same scope and date never receive the same integer: the cache path
// is linearized by the server-side increment, the fallback by the durable
// store's row lock. Failure of the durable fallback is the only error.
func (g *Generator) IssueNext(ctx context.Context, scopeKey string, date time.Time) (string, error) {
	scope := strings.ToUpper(strings.TrimSpace(scopeKey))
	prefix := DatePrefix(date)

	if g.health.Healthy(ctx) {
		if n, ok := g.issueFromCache(ctx, scope, prefix); ok {
			if n%checkpointEvery == 0 {
				g.checkpointAsync(ctx, scope, prefix, n)
			}
			return FormatID(scope, prefix, n), nil
		}
	}

	n, err := g.store.UpsertSequence(ctx, scope, prefix)
	if err != nil {
		return "", fmt.Errorf("issue sequence for %s/%s: %w", scope, prefix, err)
	}
	return FormatID(scope, prefix, n), nil
}

// issueFromCache attempts the cache fast path. Any failure reports !ok and
// the caller falls back to the durable upsert.
func (g *Generator) issueFromCache(ctx context.Context, scope, prefix string) (int64, bool) {
	key := counterKey(scope, prefix)

	if _, found := g.cache.Counter(ctx, key); !found {
		// First issuance for this scope+date since the counter expired (or
		// ever): seed the counter from the durable floor so the increment
		// resumes instead of restarting at 1. SetIfAbsent keeps two racing
		// seeders from clobbering an already-advanced counter.
		floor, err := g.store.ReadSequence(ctx, scope, prefix)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			g.log.Warn().Str("scope", scope).Str("date", prefix).Err(err).
				Msg("counter seed read failed, falling back to durable issuance")
			return 0, false
		}
		if floor > 0 {
			if _, ok := g.cache.SetIfAbsent(ctx, key, []byte(strconv.FormatInt(floor, 10)), counterTTL); !ok {
				return 0, false
			}
		}
	}

	return g.cache.Increment(ctx, key, counterTTL)
}

// checkpointAsync writes the cache-issued counter into the durable store,
// detached from the issuing request. Best effort: failure is logged and the
// durable row simply lags until the next checkpoint.
func (g *Generator) checkpointAsync(ctx context.Context, scope, prefix string, value int64) {
	go func() {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), checkpointTimeout)
		defer cancel()

		if err := g.store.CheckpointSequence(cctx, scope, prefix, value); err != nil {
			g.log.Warn().Str("scope", scope).Str("date", prefix).Int64("value", value).Err(err).
				Msg("sequence checkpoint failed")
			return
		}
		g.log.Debug().Str("scope", scope).Str("date", prefix).Int64("value", value).
			Msg("sequence checkpoint written")
	}()
}
