package cache

import (
	"context"
	"time"
)

// Disabled is a Cache with no backend. It is installed when no cache URL is
// configured, degrading the whole layer to durable-only mode without error:
// every read misses, every write reports unavailability, and the health state
// is permanently Disconnected.
type Disabled struct{}

var _ Cache = Disabled{}

func (Disabled) Get(context.Context, string) ([]byte, error) { return nil, ErrUnavailable }

func (Disabled) Set(context.Context, string, []byte, time.Duration) error { return ErrUnavailable }

func (Disabled) SetIfAbsent(context.Context, string, []byte, time.Duration) (bool, error) {
	return false, ErrUnavailable
}

func (Disabled) Delete(context.Context, string) error { return ErrUnavailable }

func (Disabled) Increment(context.Context, string, time.Duration) (int64, error) {
	return 0, ErrUnavailable
}

func (Disabled) IncrementWindow(context.Context, string, time.Duration) (int64, error) {
	return 0, ErrUnavailable
}

func (Disabled) Counter(context.Context, string) (int64, error) { return 0, ErrUnavailable }

func (Disabled) Health(context.Context) error { return ErrUnavailable }

func (Disabled) State() State { return StateDisconnected }

func (Disabled) Close() error { return nil }
