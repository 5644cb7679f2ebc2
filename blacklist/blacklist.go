// Package blacklist maintains the revoked-token set checked on every
// authenticated request. Writes go to both cache and durable store; reads are
// cache-first with durable fallback. The durable store is ground truth, the
// cache an accelerator.
package blacklist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/inspeksimobil/inspector-core/cache"
	"github.com/inspeksimobil/inspector-core/logger"
	"github.com/inspeksimobil/inspector-core/store"
)

const (
	keyPrefix       = "token_blacklist:"
	backfillTimeout = 2 * time.Second

	// minTTL floors the cache entry lifetime when a token is revoked at (or
	// past) its own expiry, since a zero TTL would store the entry forever.
	minTTL = time.Minute
)

// entryValue marks a blacklisted token; presence of the key is the signal.
var entryValue = []byte("1")

// Blacklist records and checks revoked tokens.
// All methods are safe for concurrent use.
type Blacklist struct {
	cache *cache.FailSoft
	store store.BlacklistStore
	log   logger.Logger
	now   func() time.Time
}

// New creates a Blacklist.
func New(fs *cache.FailSoft, st store.BlacklistStore, log logger.Logger) *Blacklist {
	return &Blacklist{cache: fs, store: st, log: log, now: time.Now}
}

func tokenKey(token string) string {
	return keyPrefix + token
}

// Blacklist revokes token until expiresAt. Cache and durable writes run
// concurrently and are joined before return; the operation succeeds when at
// least one store accepted the entry. Both stores failing is the only error,
// because silently dropping a revocation is unsafe.
func (b *Blacklist) Blacklist(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(b.now())
	if ttl < minTTL {
		ttl = minTTL
	}

	var (
		wg          sync.WaitGroup
		cacheStored bool
		storeErr    error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		cacheStored = b.cache.Set(ctx, tokenKey(token), entryValue, ttl)
	}()
	go func() {
		defer wg.Done()
		storeErr = b.store.InsertBlacklistToken(ctx, token, expiresAt)
	}()
	wg.Wait()

	if storeErr != nil {
		if !cacheStored {
			return fmt.Errorf("blacklist write failed in both stores: %w", storeErr)
		}
		// Cache-only revocation: correct until the entry is evicted before
		// expiresAt. Accepted as designed, so log it loudly and move on.
		b.log.Warn().Err(storeErr).Msg("blacklist durable write failed, entry held by cache only")
	}
	return nil
}

// IsBlacklisted reports whether token is currently revoked. A cache hit
// answers directly; otherwise the durable store decides and a hit there is
// backfilled into the cache. If the durable lookup fails the error is
// surfaced: defaulting to "not revoked" on infrastructure failure would let
// a revoked token through, so the caller must reject the request instead.
func (b *Blacklist) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	if _, found := b.cache.Get(ctx, tokenKey(token)); found {
		return true, nil
	}

	rec, err := b.store.FindBlacklistToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("blacklist lookup failed: %w", err)
	}

	expiry := rec.ExpiresAt
	if !expiry.After(b.now()) {
		// The revocation has outlived the token itself.
		return false, nil
	}

	b.backfillAsync(ctx, token, expiry)
	return true, nil
}

// backfillAsync repopulates the cache entry after a durable hit, detached
// from the request. Best effort; the next miss just hits the store again.
func (b *Blacklist) backfillAsync(ctx context.Context, token string, expiresAt time.Time) {
	go func() {
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backfillTimeout)
		defer cancel()

		ttl := expiresAt.Sub(b.now())
		if ttl < minTTL {
			ttl = minTTL
		}
		b.cache.Set(bctx, tokenKey(token), entryValue, ttl)
	}()
}
