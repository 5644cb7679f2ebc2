package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/inspeksimobil/inspector-core/blacklist"
	"github.com/inspeksimobil/inspector-core/cache"
	cachetest "github.com/inspeksimobil/inspector-core/cache/testing"
	"github.com/inspeksimobil/inspector-core/directory"
	"github.com/inspeksimobil/inspector-core/logger"
	"github.com/inspeksimobil/inspector-core/store"
)

const testPIN = "123456"

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]store.User
}

func (f *fakeUserStore) UserByID(_ context.Context, id string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (f *fakeUserStore) UserByEmail(_ context.Context, email string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeUserStore) Inspectors(_ context.Context) ([]store.User, error) {
	return nil, nil
}

func (f *fakeUserStore) UpdateUserRefreshToken(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.RefreshTokenHash = hash
	f.users[id] = u
	return nil
}

type fakeBranchStore struct{}

func (fakeBranchStore) Branches(context.Context) ([]store.Branch, error) { return nil, nil }
func (fakeBranchStore) BranchByID(context.Context, string) (*store.Branch, error) {
	return nil, store.ErrNotFound
}

type fakeBlacklistStore struct {
	mu      sync.Mutex
	rows    map[string]time.Time
	findErr error
}

func (f *fakeBlacklistStore) InsertBlacklistToken(_ context.Context, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[token] = expiresAt
	return nil
}

func (f *fakeBlacklistStore) FindBlacklistToken(_ context.Context, token string) (*store.BlacklistRecord, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	expiresAt, ok := f.rows[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &store.BlacklistRecord{Token: token, ExpiresAt: expiresAt}, nil
}

type authFixture struct {
	svc   *Service
	users *fakeUserStore
	blst  *fakeBlacklistStore
	mock  *cachetest.MockCache
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	pinHash, err := bcrypt.GenerateFromPassword([]byte(testPIN), bcrypt.MinCost)
	require.NoError(t, err)

	users := &fakeUserStore{users: map[string]store.User{
		"user-1": {
			ID:       "user-1",
			Email:    "budi@example.com",
			Name:     "Budi",
			Role:     store.RoleInspector,
			BranchID: "branch-2",
			PINHash:  string(pinHash),
		},
		"user-2": {
			ID:      "user-2",
			Email:   "admin@example.com",
			Name:    "Admin",
			Role:    "ADMIN",
			PINHash: string(pinHash),
		},
	}}
	blst := &fakeBlacklistStore{rows: make(map[string]time.Time)}
	mock := cachetest.NewMockCache()

	log := logger.Disabled()
	fs := cache.NewFailSoft(mock, log)
	cfg := Config{
		Secret:     "test-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}

	return &authFixture{
		svc:   New(cfg, blacklist.New(fs, blst, log), directory.New(users, fakeBranchStore{}, fs, log), log),
		users: users,
		blst:  blst,
		mock:  mock,
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newAuthFixture(t)

		pair, err := f.svc.Login(ctx, "budi@example.com", testPIN)
		require.NoError(t, err)
		require.NotNil(t, pair)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
		assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

		claims, err := f.svc.Verify(ctx, pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.Subject)
		assert.Equal(t, "budi@example.com", claims.Email)
		assert.Equal(t, store.RoleInspector, claims.Role)
	})

	t.Run("PersistsRefreshHash", func(t *testing.T) {
		f := newAuthFixture(t)

		pair, err := f.svc.Login(ctx, "budi@example.com", testPIN)
		require.NoError(t, err)

		u, err := f.users.UserByID(ctx, "user-1")
		require.NoError(t, err)
		require.NotEmpty(t, u.RefreshTokenHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.RefreshTokenHash), []byte(pair.RefreshToken)))
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		f := newAuthFixture(t)

		_, err := f.svc.Login(ctx, "ghost@example.com", testPIN)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("WrongPIN", func(t *testing.T) {
		f := newAuthFixture(t)

		_, err := f.svc.Login(ctx, "budi@example.com", "000000")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("NonInspectorRole", func(t *testing.T) {
		f := newAuthFixture(t)

		_, err := f.svc.Login(ctx, "admin@example.com", testPIN)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("Garbage", func(t *testing.T) {
		f := newAuthFixture(t)

		_, err := f.svc.Verify(ctx, "not.a.token")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		f := newAuthFixture(t)
		pair, err := f.svc.Login(ctx, "budi@example.com", testPIN)
		require.NoError(t, err)

		other := newAuthFixture(t)
		other.svc.cfg.Secret = "other-secret"

		_, err = other.svc.Verify(ctx, pair.AccessToken)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("Expired", func(t *testing.T) {
		f := newAuthFixture(t)
		pair, err := f.svc.Login(ctx, "budi@example.com", testPIN)
		require.NoError(t, err)

		f.svc.now = func() time.Time { return time.Now().Add(16 * time.Minute) }

		_, err = f.svc.Verify(ctx, pair.AccessToken)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("MissingExpiry", func(t *testing.T) {
		f := newAuthFixture(t)

		// Correctly signed but carrying no exp claim: must be rejected at
		// parse time, both on verification and on logout (which derives the
		// blacklist entry's lifetime from exp).
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "user-1",
		}).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = f.svc.Verify(ctx, token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
		assert.ErrorIs(t, f.svc.Logout(ctx, token), ErrTokenInvalid)
	})

	t.Run("FailsClosedWhenRevocationUnknown", func(t *testing.T) {
		f := newAuthFixture(t)
		pair, err := f.svc.Login(ctx, "budi@example.com", testPIN)
		require.NoError(t, err)

		// Both the cache and the durable store are down: the token must be
		// rejected, not assumed valid.
		f.mock.FailEverything()
		f.blst.findErr = errors.New("connection refused")

		_, err = f.svc.Verify(ctx, pair.AccessToken)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrTokenRevoked)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("RevokesToken", func(t *testing.T) {
		f := newAuthFixture(t)
		pair, err := f.svc.Login(ctx, "budi@example.com", testPIN)
		require.NoError(t, err)

		_, err = f.svc.Verify(ctx, pair.AccessToken)
		require.NoError(t, err)

		require.NoError(t, f.svc.Logout(ctx, pair.AccessToken))

		_, err = f.svc.Verify(ctx, pair.AccessToken)
		assert.ErrorIs(t, err, ErrTokenRevoked)
	})

	t.Run("SurvivesCacheOutage", func(t *testing.T) {
		f := newAuthFixture(t)
		pair, err := f.svc.Login(ctx, "budi@example.com", testPIN)
		require.NoError(t, err)

		f.mock.FailEverything()
		require.NoError(t, f.svc.Logout(ctx, pair.AccessToken))

		// The durable store alone remembers the revocation.
		f.mock.Restore()
		f.mock.Wipe()
		_, err = f.svc.Verify(ctx, pair.AccessToken)
		assert.ErrorIs(t, err, ErrTokenRevoked)
	})

	t.Run("InvalidToken", func(t *testing.T) {
		f := newAuthFixture(t)
		assert.ErrorIs(t, f.svc.Logout(ctx, "not.a.token"), ErrTokenInvalid)
	})
}
