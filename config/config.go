// Package config loads and validates application configuration from
// defaults, an optional YAML file, and environment variables, in increasing
// order of priority.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	env "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/inspeksimobil/inspector-core/auth"
	"github.com/inspeksimobil/inspector-core/cache/redis"
	"github.com/inspeksimobil/inspector-core/store/postgres"
	"github.com/inspeksimobil/inspector-core/throttle"
)

// Config is the root configuration structure.
type Config struct {
	App      AppConfig       `koanf:"app"`
	Log      LogConfig       `koanf:"log"`
	Cache    redis.Config    `koanf:"cache"`
	Database postgres.Config `koanf:"database"`
	Auth     auth.Config     `koanf:"auth"`
	Throttle throttle.Config `koanf:"throttle"`
}

// AppConfig identifies the running application.
type AppConfig struct {
	Name string `koanf:"name" validate:"required"`
	Env  string `koanf:"env" validate:"oneof=development staging production"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `koanf:"pretty"`
}

// CacheEnabled reports whether a cache backend is configured. When false the
// consistency layer runs in durable-only mode; that is a supported state, not
// a configuration error.
func (c *Config) CacheEnabled() bool {
	return c.Cache.URL != "" || c.Cache.Host != ""
}

// Load reads configuration from defaults, config.yaml (optional), and
// environment variables, then validates the result.
func Load() (*Config, error) {
	return LoadFile("config.yaml")
}

// LoadFile is Load with an explicit YAML path, used by tests.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// The YAML file is optional; environment-only deployments are fine.
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !strings.Contains(err.Error(), "no such file") {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	if err := k.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			// DATABASE_MAX_CONNS -> database.max_conns
			key = strings.ToLower(key)
			if i := strings.Index(key, "_"); i > 0 {
				key = key[:i] + "." + key[i+1:]
			}
			return key, value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func defaults() map[string]any {
	return map[string]any{
		"app.name":  "inspector-core",
		"app.env":   "development",
		"log.level": "info",

		"cache.port":              6379,
		"cache.pool_size":         10,
		"cache.dial_timeout":      "5s",
		"cache.read_timeout":      "3s",
		"cache.write_timeout":     "3s",
		"cache.max_retries":       3,
		"cache.min_retry_backoff": "8ms",
		"cache.max_retry_backoff": "512ms",

		"database.host":               "localhost",
		"database.port":               5432,
		"database.max_conns":          10,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "30m",
		"database.conn_max_idle_time": "5m",

		"auth.access_ttl":  "15m",
		"auth.refresh_ttl": "168h",

		"throttle.limit":  60,
		"throttle.window": "1m",
	}
}

// Validate checks the configuration. Tagged fields go through the validator;
// nested component configs carry their own rules.
func Validate(cfg *Config) error {
	v := validator.New()

	if err := v.Struct(cfg.App); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := v.Struct(cfg.Log); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	if cfg.CacheEnabled() {
		if err := cfg.Cache.Validate(); err != nil {
			return err
		}
	}

	if cfg.Database.ConnectionString == "" && cfg.Database.Database == "" {
		return fmt.Errorf("database: connection_string or database name is required")
	}

	if cfg.Auth.Secret == "" {
		return fmt.Errorf("auth: secret is required")
	}
	if cfg.Auth.AccessTTL <= 0 || cfg.Auth.RefreshTTL <= 0 {
		return fmt.Errorf("auth: token TTLs must be positive")
	}

	if cfg.Throttle.Limit <= 0 || cfg.Throttle.Window <= 0 {
		return fmt.Errorf("throttle: limit and window must be positive")
	}

	return nil
}
