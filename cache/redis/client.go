// Package redis implements the cache.Cache interface on top of go-redis v9,
// with an explicit connection state machine driven by transport hooks.
package redis

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/inspeksimobil/inspector-core/cache"
)

// Lua script for atomic increment with TTL refresh in a single round trip.
// INCR treats a missing key as 0, so the first issuance returns 1.
const incrScript = `
local n = redis.call('INCR', KEYS[1])
local ttl_ms = tonumber(ARGV[1])
if ttl_ms > 0 then
	redis.call('PEXPIRE', KEYS[1], ttl_ms)
end
return n
`

// Lua script for atomic increment with expire-on-creation. PEXPIRE runs only
// while the key carries no expiry, so a counter's window stays anchored to
// its first hit no matter how often it is incremented afterwards.
const incrWindowScript = `
local n = redis.call('INCR', KEYS[1])
local ttl_ms = tonumber(ARGV[1])
if ttl_ms > 0 and redis.call('PTTL', KEYS[1]) == -1 then
	redis.call('PEXPIRE', KEYS[1], ttl_ms)
end
return n
`

// Client implements the cache.Cache interface using Redis as the backend.
type Client struct {
	client *redis.Client
	config *Config
	state  atomic.Int32
	closed atomic.Bool
}

// NewClient creates a new Redis cache client. The connection is verified
// with a PING before the client is returned, so a Ready state at startup is
// backed by at least one successful round trip.
func NewClient(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, cache.NewConfigError("redis.url", "invalid connection URL", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address(),
			Password: cfg.Password,
			DB:       cfg.Database,
		}
	}

	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.MaxRetries = cfg.MaxRetries
	opts.MinRetryBackoff = cfg.MinRetryBackoff
	opts.MaxRetryBackoff = cfg.MaxRetryBackoff

	c := &Client{config: cfg}
	c.state.Store(int32(cache.StateConnecting))

	opts.OnConnect = func(_ context.Context, _ *redis.Conn) error {
		c.transition(cache.StateReady)
		return nil
	}

	rdb := redis.NewClient(opts)
	rdb.AddHook(&stateHook{client: c})
	c.client = rdb

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, cache.NewConnectionError("ping", cfg.Address(), err)
	}

	return c, nil
}

// transition records a connection state change observed by the transport.
func (c *Client) transition(s cache.State) {
	if c.closed.Load() {
		return
	}
	c.state.Store(int32(s))
}

// State implements cache.Cache.
func (c *Client) State() cache.State {
	if c.closed.Load() {
		return cache.StateDisconnected
	}
	return cache.State(c.state.Load())
}

// Get retrieves a value from the cache.
// Returns cache.ErrNotFound if the key doesn't exist.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, cache.ErrClosed
	}

	result, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cache.ErrNotFound
		}
		return nil, cache.NewOperationError("get", key, err)
	}
	return result, nil
}

// Set stores a value in the cache with the specified TTL.
// TTL of 0 means no expiration.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return cache.ErrClosed
	}
	if ttl < 0 {
		return cache.ErrInvalidTTL
	}

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return cache.NewOperationError("set", key, err)
	}
	return nil
}

// SetIfAbsent stores the value only when the key doesn't exist, using SETNX.
func (c *Client) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if c.closed.Load() {
		return false, cache.ErrClosed
	}
	if ttl < 0 {
		return false, cache.ErrInvalidTTL
	}

	stored, err := c.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, cache.NewOperationError("setnx", key, err)
	}
	return stored, nil
}

// Delete removes a key from the cache. Deleting a missing key is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	if c.closed.Load() {
		return cache.ErrClosed
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return cache.NewOperationError("delete", key, err)
	}
	return nil
}

// Increment atomically increments the counter at key and refreshes its TTL.
// Uses a Lua script so concurrent callers are linearized server-side.
func (c *Client) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if c.closed.Load() {
		return 0, cache.ErrClosed
	}
	if ttl < 0 {
		return 0, cache.ErrInvalidTTL
	}

	n, err := c.client.Eval(ctx, incrScript, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, cache.NewOperationError("incr", key, err)
	}
	return n, nil
}

// IncrementWindow atomically increments the counter at key, setting the TTL
// only when this increment creates the key.
func (c *Client) IncrementWindow(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if c.closed.Load() {
		return 0, cache.ErrClosed
	}
	if ttl < 0 {
		return 0, cache.ErrInvalidTTL
	}

	n, err := c.client.Eval(ctx, incrWindowScript, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, cache.NewOperationError("incrwindow", key, err)
	}
	return n, nil
}

// Counter reads the integer stored at key.
// Returns cache.ErrNotFound if the key doesn't exist.
func (c *Client) Counter(ctx context.Context, key string) (int64, error) {
	if c.closed.Load() {
		return 0, cache.ErrClosed
	}

	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, cache.ErrNotFound
		}
		return 0, cache.NewOperationError("counter", key, err)
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, cache.NewOperationError("counter", key, err)
	}
	return n, nil
}

// Health checks if the Redis connection is healthy using PING.
func (c *Client) Health(ctx context.Context) error {
	if c.closed.Load() {
		return cache.ErrClosed
	}

	if err := c.client.Ping(ctx).Err(); err != nil {
		return cache.NewConnectionError("ping", c.config.Address(), err)
	}
	return nil
}

// Close closes the Redis client and releases resources.
// Close is idempotent; only the first call performs cleanup.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return cache.ErrClosed
	}
	c.state.Store(int32(cache.StateDisconnected))
	return c.client.Close()
}

var _ cache.Cache = (*Client)(nil)

// stateHook feeds command outcomes into the connection state machine:
// network-level failures flip the state to Degraded, successful round trips
// restore Ready. Protocol results such as redis.Nil are not failures.
type stateHook struct {
	client *Client
}

func (h *stateHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		h.client.transition(cache.StateConnecting)
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.client.transition(cache.StateDisconnected)
			return nil, err
		}
		return conn, nil
	}
}

func (h *stateHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		h.observe(err)
		return err
	}
}

func (h *stateHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		h.observe(err)
		return err
	}
}

func (h *stateHook) observe(err error) {
	if err == nil || errors.Is(err, redis.Nil) {
		h.client.transition(cache.StateReady)
		return
	}
	h.client.transition(cache.StateDegraded)
}
