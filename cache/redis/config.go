package redis

import (
	"fmt"
	"time"

	"github.com/inspeksimobil/inspector-core/cache"
)

// Config holds Redis-specific configuration options.
type Config struct {
	// URL is a redis:// connection URL. When set it takes precedence over
	// Host/Port/Password/Database.
	URL string `koanf:"url"`

	// Host is the Redis server hostname or IP address.
	Host string `koanf:"host"`

	// Port is the Redis server port (default: 6379).
	Port int `koanf:"port"`

	// Password for Redis authentication (optional).
	Password string `koanf:"password"`

	// Database number to use (default: 0).
	Database int `koanf:"database"`

	// PoolSize is the maximum number of socket connections (default: 10).
	PoolSize int `koanf:"pool_size"`

	// DialTimeout is the timeout for establishing new connections (default: 5s).
	DialTimeout time.Duration `koanf:"dial_timeout"`

	// ReadTimeout is the timeout for socket reads (default: 3s).
	ReadTimeout time.Duration `koanf:"read_timeout"`

	// WriteTimeout is the timeout for socket writes (default: 3s).
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// MaxRetries is the maximum number of retries before a command is
	// abandoned (default: 3). Once abandoned the error surfaces immediately;
	// commands are never queued while disconnected.
	MaxRetries int `koanf:"max_retries"`

	// MinRetryBackoff is the minimum backoff between retries (default: 8ms).
	MinRetryBackoff time.Duration `koanf:"min_retry_backoff"`

	// MaxRetryBackoff caps the exponential backoff between retries (default: 512ms).
	MaxRetryBackoff time.Duration `koanf:"max_retry_backoff"`
}

// Validate performs fail-fast validation of Redis configuration.
func (c *Config) Validate() error {
	if c.URL == "" && c.Host == "" {
		return cache.NewConfigError("redis.host", "url or host is required", nil)
	}

	if c.URL == "" {
		if c.Port <= 0 || c.Port > 65535 {
			return cache.NewConfigError("redis.port", fmt.Sprintf("invalid port: %d", c.Port), nil)
		}
		if c.Database < 0 || c.Database > 15 {
			return cache.NewConfigError("redis.database", fmt.Sprintf("invalid database number: %d (must be 0-15)", c.Database), nil)
		}
	}

	if c.PoolSize < 0 {
		return cache.NewConfigError("redis.pool_size", fmt.Sprintf("invalid pool size: %d", c.PoolSize), nil)
	}

	if c.DialTimeout < 0 {
		return cache.NewConfigError("redis.dial_timeout", "dial timeout cannot be negative", nil)
	}

	if c.ReadTimeout < -1 {
		return cache.NewConfigError("redis.read_timeout", "read timeout cannot be less than -1", nil)
	}

	if c.WriteTimeout < -1 {
		return cache.NewConfigError("redis.write_timeout", "write timeout cannot be less than -1", nil)
	}

	return nil
}

// Address returns the Redis server address in "host:port" format.
func (c *Config) Address() string {
	if c.URL != "" {
		return c.URL
	}
	port := c.Port
	if port == 0 {
		port = 6379
	}
	return fmt.Sprintf("%s:%d", c.Host, port)
}
