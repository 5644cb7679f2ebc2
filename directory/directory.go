// Package directory serves slowly-changing profile and reference data (user
// profiles, inspector lists, branch cities) through the cache-aside pattern,
// with explicit invalidation on the write paths that mutate the underlying
// rows.
package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/inspeksimobil/inspector-core/cache"
	"github.com/inspeksimobil/inspector-core/logger"
	"github.com/inspeksimobil/inspector-core/store"
)

// Cache TTLs per namespace. Reference data moves slower than profiles.
const (
	userTTL     = 1 * time.Hour
	listTTL     = 1 * time.Hour
	branchesTTL = 24 * time.Hour
)

// Cache keys. The directory owns the users and branches namespaces.
const (
	inspectorsKey = "users:inspectors:all"
	branchesKey   = "branches:all"
)

func userIDKey(id string) string       { return "users:id:" + id }
func userEmailKey(email string) string { return "users:email:" + email }
func branchIDKey(id string) string     { return "branches:id:" + id }

// Directory is the read-through facade over user and branch storage.
// All methods are safe for concurrent use.
type Directory struct {
	users    store.UserStore
	branches store.BranchStore
	cache    *cache.FailSoft

	userRT     *cache.ReadThrough[store.User]
	userListRT *cache.ReadThrough[[]store.User]
	branchRT   *cache.ReadThrough[store.Branch]
	branchesRT *cache.ReadThrough[[]store.Branch]
}

// New creates a Directory.
func New(users store.UserStore, branches store.BranchStore, fs *cache.FailSoft, log logger.Logger) *Directory {
	return &Directory{
		users:      users,
		branches:   branches,
		cache:      fs,
		userRT:     cache.NewReadThrough[store.User](fs, log),
		userListRT: cache.NewReadThrough[[]store.User](fs, log),
		branchRT:   cache.NewReadThrough[store.Branch](fs, log),
		branchesRT: cache.NewReadThrough[[]store.Branch](fs, log),
	}
}

// UserByID returns the user profile, cache-first.
func (d *Directory) UserByID(ctx context.Context, id string) (*store.User, error) {
	u, err := d.userRT.GetOrLoad(ctx, userIDKey(id), userTTL, func(ctx context.Context) (store.User, error) {
		loaded, err := d.users.UserByID(ctx, id)
		if err != nil {
			return store.User{}, err
		}
		return *loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UserByEmail returns the user profile keyed by email, cache-first.
func (d *Directory) UserByEmail(ctx context.Context, email string) (*store.User, error) {
	u, err := d.userRT.GetOrLoad(ctx, userEmailKey(email), userTTL, func(ctx context.Context) (store.User, error) {
		loaded, err := d.users.UserByEmail(ctx, email)
		if err != nil {
			return store.User{}, err
		}
		return *loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Inspectors returns all inspector profiles, cache-first.
func (d *Directory) Inspectors(ctx context.Context) ([]store.User, error) {
	return d.userListRT.GetOrLoad(ctx, inspectorsKey, listTTL, func(ctx context.Context) ([]store.User, error) {
		return d.users.Inspectors(ctx)
	})
}

// Branches returns the branch city list, cache-first.
func (d *Directory) Branches(ctx context.Context) ([]store.Branch, error) {
	return d.branchesRT.GetOrLoad(ctx, branchesKey, branchesTTL, func(ctx context.Context) ([]store.Branch, error) {
		return d.branches.Branches(ctx)
	})
}

// BranchByID returns a single branch city, cache-first.
func (d *Directory) BranchByID(ctx context.Context, id string) (*store.Branch, error) {
	b, err := d.branchRT.GetOrLoad(ctx, branchIDKey(id), branchesTTL, func(ctx context.Context) (store.Branch, error) {
		loaded, err := d.branches.BranchByID(ctx, id)
		if err != nil {
			return store.Branch{}, err
		}
		return *loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateRefreshToken stores a new refresh token hash for the user and
// invalidates every cache key shadowing that row: the id-keyed profile, the
// email-keyed lookup, and the aggregate inspectors list. Invalidation is
// fire-and-forget; the durable write alone decides the outcome.
func (d *Directory) UpdateRefreshToken(ctx context.Context, id, hash string) error {
	u, err := d.users.UserByID(ctx, id)
	if err != nil {
		return fmt.Errorf("update refresh token for %s: %w", id, err)
	}

	if err := d.users.UpdateUserRefreshToken(ctx, id, hash); err != nil {
		return fmt.Errorf("update refresh token for %s: %w", id, err)
	}

	keys := []string{userIDKey(id), inspectorsKey}
	if u.Email != "" {
		keys = append(keys, userEmailKey(u.Email))
	}
	d.cache.Invalidate(ctx, keys...)
	return nil
}
