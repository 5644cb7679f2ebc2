// Package cache provides the key/value cache contract used by the consistency
// layer, a fail-soft wrapper that turns transport failures into sentinels, a
// generic read-through helper, and connection health monitoring.
//
// The cache is an accelerator, never a system of record: every consumer in
// this module must stay correct when the cache is slow, empty, or gone.
package cache

import (
	"context"
	"time"
)

// Cache defines the core cache operations. All implementations must be
// thread-safe and context-aware, and every operation must observe the
// context's deadline.
type Cache interface {
	// Get retrieves a value by key.
	// Returns ErrNotFound if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the specified TTL. A ttl of 0 stores the value
	// without expiration. Overwrites existing values.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetIfAbsent stores the value only when the key doesn't exist (SET NX
	// semantics). Returns true if the value was stored, false if the key was
	// already present. Concurrent callers racing on the same key see exactly
	// one true.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes a key. Returns nil if the key doesn't exist.
	Delete(ctx context.Context, key string) error

	// Increment atomically increments the integer stored at key by one and
	// refreshes its TTL in the same round trip. A missing key is treated as 0,
	// so the first increment returns 1.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// IncrementWindow atomically increments the integer stored at key by one,
	// setting the TTL only when the increment creates the key. An existing key
	// keeps its original expiry, so the window stays anchored to its first hit
	// instead of sliding forward on every call.
	IncrementWindow(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Counter reads the integer stored at key without modifying it.
	// Returns ErrNotFound if the key doesn't exist.
	Counter(ctx context.Context, key string) (int64, error)

	// Health verifies connectivity with a round trip to the server.
	// Should be fast (<100ms) and safe to call frequently.
	Health(ctx context.Context) error

	// State reports the connection state as observed by transport events.
	// A Ready state is a hint, not a guarantee; Health confirms it.
	State() State

	// Close closes the connection and releases resources. After Close the
	// instance must not be used.
	Close() error
}

// HealthChecker gates fast-path cache attempts. Implementations must never
// block beyond a short probe timeout.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// State models the cache connection lifecycle. Transitions are driven by
// transport callbacks rather than inferred ad hoc from individual errors.
type State int32

const (
	// StateDisconnected means no connection has been established, or the
	// client is closed.
	StateDisconnected State = iota

	// StateConnecting means a connection attempt is in progress.
	StateConnecting

	// StateReady means the last transport event was a successful round trip.
	StateReady

	// StateDegraded means the connection is established but recent commands
	// failed; the cache may be half-open.
	StateDegraded
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}
