// Package app wires the consistency core together with an explicit
// init-on-startup and graceful-shutdown lifecycle for the process-wide cache
// client and database pool.
package app

import (
	"errors"
	"fmt"

	"github.com/inspeksimobil/inspector-core/auth"
	"github.com/inspeksimobil/inspector-core/blacklist"
	"github.com/inspeksimobil/inspector-core/cache"
	"github.com/inspeksimobil/inspector-core/cache/redis"
	"github.com/inspeksimobil/inspector-core/config"
	"github.com/inspeksimobil/inspector-core/directory"
	"github.com/inspeksimobil/inspector-core/inspection"
	"github.com/inspeksimobil/inspector-core/logger"
	"github.com/inspeksimobil/inspector-core/sequence"
	"github.com/inspeksimobil/inspector-core/store/postgres"
	"github.com/inspeksimobil/inspector-core/throttle"
)

// App owns the shared infrastructure and exposes the wired services.
type App struct {
	Config *config.Config
	Log    logger.Logger

	Cache cache.Cache
	Store *postgres.Connection

	Monitor     *cache.Monitor
	Sequence    *sequence.Generator
	Blacklist   *blacklist.Blacklist
	Directory   *directory.Directory
	Inspections *inspection.Service
	Auth        *auth.Service
	Throttle    *throttle.Limiter
}

// New builds the application. A missing or unreachable cache backend demotes
// the layer to durable-only mode; a failing durable store is fatal.
func New(cfg *config.Config) (*App, error) {
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	var cacheClient cache.Cache = cache.Disabled{}
	if !cfg.CacheEnabled() {
		log.Warn().Msg("no cache configured, running durable-only")
	} else {
		client, err := redis.NewClient(&cfg.Cache)
		if err != nil {
			log.Warn().Err(err).Msg("cache unreachable at startup, running durable-only")
		} else {
			cacheClient = client
			log.Info().Str("address", cfg.Cache.Address()).Msg("cache connected")
		}
	}

	db, err := postgres.NewConnection(&cfg.Database, log)
	if err != nil {
		if closeErr := cacheClient.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close cache client")
		}
		return nil, fmt.Errorf("durable store init failed: %w", err)
	}

	failsoft := cache.NewFailSoft(cacheClient, log)
	monitor := cache.NewMonitor(cacheClient, log)

	seq := sequence.New(failsoft, monitor, db, log)
	bl := blacklist.New(failsoft, db, log)
	dir := directory.New(db, db, failsoft, log)
	authSvc := auth.New(cfg.Auth, bl, dir, log)
	inspections := inspection.New(seq, dir, db, log)
	throttler := throttle.New(failsoft, monitor, "api", cfg.Throttle, log)

	return &App{
		Config:      cfg,
		Log:         log,
		Cache:       cacheClient,
		Store:       db,
		Monitor:     monitor,
		Sequence:    seq,
		Blacklist:   bl,
		Directory:   dir,
		Inspections: inspections,
		Auth:        authSvc,
		Throttle:    throttler,
	}, nil
}

// Close releases the shared cache client and database pool.
func (a *App) Close() error {
	var firstErr error

	if err := a.Cache.Close(); err != nil && !errors.Is(err, cache.ErrClosed) {
		a.Log.Error().Err(err).Msg("cache close failed")
		firstErr = err
	}
	if err := a.Store.Close(); err != nil {
		a.Log.Error().Err(err).Msg("durable store close failed")
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
