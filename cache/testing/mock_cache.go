// Package testing provides an in-memory cache.Cache implementation with
// configurable failure injection, used by component tests across the module.
package testing

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/inspeksimobil/inspector-core/cache"
)

// MockCache is an in-memory cache implementation for tests. It implements
// cache.Cache with per-operation failure injection and call counting.
// MockCache is thread-safe.
type MockCache struct {
	mu   sync.Mutex
	data map[string]*entry

	closed atomic.Bool
	state  atomic.Int32

	// Configurable behavior
	getError    error
	setError    error
	deleteError error
	incrError   error
	healthError error

	// Operation tracking
	getCalls    atomic.Int64
	setCalls    atomic.Int64
	deleteCalls atomic.Int64
	incrCalls   atomic.Int64
	healthCalls atomic.Int64
}

type entry struct {
	value      []byte
	expiration time.Time
}

// NewMockCache creates a MockCache in the Ready state.
func NewMockCache() *MockCache {
	m := &MockCache{data: make(map[string]*entry)}
	m.state.Store(int32(cache.StateReady))
	return m
}

// WithGetFailure configures Get operations to return err.
func (m *MockCache) WithGetFailure(err error) *MockCache {
	m.getError = err
	return m
}

// WithSetFailure configures Set operations to return err.
func (m *MockCache) WithSetFailure(err error) *MockCache {
	m.setError = err
	return m
}

// WithDeleteFailure configures Delete operations to return err.
func (m *MockCache) WithDeleteFailure(err error) *MockCache {
	m.deleteError = err
	return m
}

// WithIncrementFailure configures Increment operations to return err.
func (m *MockCache) WithIncrementFailure(err error) *MockCache {
	m.incrError = err
	return m
}

// WithHealthFailure configures Health to return err and flips the connection
// state to Degraded, mirroring what a real client's transport hook would do.
func (m *MockCache) WithHealthFailure(err error) *MockCache {
	m.healthError = err
	m.state.Store(int32(cache.StateDegraded))
	return m
}

// FailEverything makes every operation return cache.ErrUnavailable and marks
// the connection Degraded. Simulates a full cache outage.
func (m *MockCache) FailEverything() *MockCache {
	return m.
		WithGetFailure(cache.ErrUnavailable).
		WithSetFailure(cache.ErrUnavailable).
		WithDeleteFailure(cache.ErrUnavailable).
		WithIncrementFailure(cache.ErrUnavailable).
		WithHealthFailure(cache.ErrUnavailable)
}

// Restore clears all injected failures and returns the mock to Ready,
// simulating a cache that came back after an outage.
func (m *MockCache) Restore() *MockCache {
	m.getError = nil
	m.setError = nil
	m.deleteError = nil
	m.incrError = nil
	m.healthError = nil
	m.state.Store(int32(cache.StateReady))
	return m
}

// SetState overrides the reported connection state.
func (m *MockCache) SetState(s cache.State) { m.state.Store(int32(s)) }

// Wipe discards all stored entries, simulating an eviction or restart.
func (m *MockCache) Wipe() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]*entry)
}

// Contains reports whether key currently holds an unexpired value.
func (m *MockCache) Contains(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	return ok && !e.expired()
}

// GetCalls returns the number of Get invocations.
func (m *MockCache) GetCalls() int64 { return m.getCalls.Load() }

// SetCalls returns the number of Set invocations.
func (m *MockCache) SetCalls() int64 { return m.setCalls.Load() }

// DeleteCalls returns the number of Delete invocations.
func (m *MockCache) DeleteCalls() int64 { return m.deleteCalls.Load() }

// IncrementCalls returns the number of Increment invocations.
func (m *MockCache) IncrementCalls() int64 { return m.incrCalls.Load() }

func (e *entry) expired() bool {
	return !e.expiration.IsZero() && time.Now().After(e.expiration)
}

func expiration(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

// Get implements cache.Cache.
func (m *MockCache) Get(_ context.Context, key string) ([]byte, error) {
	m.getCalls.Add(1)
	if m.closed.Load() {
		return nil, cache.ErrClosed
	}
	if m.getError != nil {
		return nil, m.getError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	if !ok || e.expired() {
		delete(m.data, key)
		return nil, cache.ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

// Set implements cache.Cache.
func (m *MockCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.setCalls.Add(1)
	if m.closed.Load() {
		return cache.ErrClosed
	}
	if m.setError != nil {
		return m.setError
	}
	if ttl < 0 {
		return cache.ErrInvalidTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = &entry{value: append([]byte(nil), value...), expiration: expiration(ttl)}
	return nil
}

// SetIfAbsent implements cache.Cache.
func (m *MockCache) SetIfAbsent(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.setCalls.Add(1)
	if m.closed.Load() {
		return false, cache.ErrClosed
	}
	if m.setError != nil {
		return false, m.setError
	}
	if ttl < 0 {
		return false, cache.ErrInvalidTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.data[key]; ok && !e.expired() {
		return false, nil
	}
	m.data[key] = &entry{value: append([]byte(nil), value...), expiration: expiration(ttl)}
	return true, nil
}

// Delete implements cache.Cache.
func (m *MockCache) Delete(_ context.Context, key string) error {
	m.deleteCalls.Add(1)
	if m.closed.Load() {
		return cache.ErrClosed
	}
	if m.deleteError != nil {
		return m.deleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Increment implements cache.Cache.
func (m *MockCache) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.incrCalls.Add(1)
	if m.closed.Load() {
		return 0, cache.ErrClosed
	}
	if m.incrError != nil {
		return 0, m.incrError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	if e, ok := m.data[key]; ok && !e.expired() {
		parsed, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, cache.NewOperationError("incr", key, err)
		}
		n = parsed
	}
	n++
	m.data[key] = &entry{value: []byte(strconv.FormatInt(n, 10)), expiration: expiration(ttl)}
	return n, nil
}

// IncrementWindow implements cache.Cache.
func (m *MockCache) IncrementWindow(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.incrCalls.Add(1)
	if m.closed.Load() {
		return 0, cache.ErrClosed
	}
	if m.incrError != nil {
		return 0, m.incrError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.data[key]; ok && !e.expired() {
		n, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, cache.NewOperationError("incrwindow", key, err)
		}
		n++
		// The window is anchored to the key's creation; later hits keep it.
		m.data[key] = &entry{value: []byte(strconv.FormatInt(n, 10)), expiration: e.expiration}
		return n, nil
	}
	m.data[key] = &entry{value: []byte("1"), expiration: expiration(ttl)}
	return 1, nil
}

// Counter implements cache.Cache.
func (m *MockCache) Counter(_ context.Context, key string) (int64, error) {
	if m.closed.Load() {
		return 0, cache.ErrClosed
	}
	if m.getError != nil {
		return 0, m.getError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	if !ok || e.expired() {
		delete(m.data, key)
		return 0, cache.ErrNotFound
	}
	n, err := strconv.ParseInt(string(e.value), 10, 64)
	if err != nil {
		return 0, cache.NewOperationError("counter", key, err)
	}
	return n, nil
}

// Health implements cache.Cache.
func (m *MockCache) Health(context.Context) error {
	m.healthCalls.Add(1)
	if m.closed.Load() {
		return cache.ErrClosed
	}
	return m.healthError
}

// State implements cache.Cache.
func (m *MockCache) State() cache.State {
	if m.closed.Load() {
		return cache.StateDisconnected
	}
	return cache.State(m.state.Load())
}

// Close implements cache.Cache.
func (m *MockCache) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return cache.ErrClosed
	}
	return nil
}

var _ cache.Cache = (*MockCache)(nil)
