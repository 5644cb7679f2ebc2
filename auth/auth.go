// Package auth issues and verifies inspector tokens and feeds the blacklist
// on logout. Verification fails closed: when revocation state cannot be
// determined the token is rejected, never waved through.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/inspeksimobil/inspector-core/blacklist"
	"github.com/inspeksimobil/inspector-core/directory"
	"github.com/inspeksimobil/inspector-core/logger"
	"github.com/inspeksimobil/inspector-core/store"
)

var (
	// ErrInvalidCredentials is returned on unknown email, wrong PIN, or a
	// non-inspector role. Deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrTokenRevoked is returned when a structurally valid token has been
	// blacklisted.
	ErrTokenRevoked = errors.New("auth: token revoked")

	// ErrTokenInvalid is returned when a token fails signature or claims
	// validation.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// Config holds token signing settings.
type Config struct {
	Secret     string        `koanf:"secret"`
	AccessTTL  time.Duration `koanf:"access_ttl"`
	RefreshTTL time.Duration `koanf:"refresh_ttl"`
}

// Claims are the JWT claims carried by inspector tokens.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	Name  string `json:"name,omitempty"`
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Service authenticates inspectors and guards their tokens.
type Service struct {
	cfg       Config
	blacklist *blacklist.Blacklist
	directory *directory.Directory
	log       logger.Logger
	now       func() time.Time
}

// New creates a Service.
func New(cfg Config, bl *blacklist.Blacklist, dir *directory.Directory, log logger.Logger) *Service {
	return &Service{cfg: cfg, blacklist: bl, directory: dir, log: log, now: time.Now}
}

// Login validates an inspector's email and PIN and issues a token pair. The
// refresh token's bcrypt hash is persisted on the profile, which invalidates
// that profile's cache keys as a side effect.
func (s *Service) Login(ctx context.Context, email, pin string) (*TokenPair, error) {
	user, err := s.directory.UserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("login lookup failed: %w", err)
	}

	if user.Role != store.RoleInspector || user.PINHash == "" {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PINHash), []byte(pin)) != nil {
		return nil, ErrInvalidCredentials
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}

	refreshHash, err := bcrypt.GenerateFromPassword([]byte(pair.RefreshToken), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash refresh token: %w", err)
	}
	if err := s.directory.UpdateRefreshToken(ctx, user.ID, string(refreshHash)); err != nil {
		return nil, err
	}

	return pair, nil
}

func (s *Service) issuePair(user *store.User) (*TokenPair, error) {
	access, err := s.sign(user, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(user, s.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) sign(user *store.User, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: user.Email,
		Role:  user.Role,
		Name:  user.Name,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks a token's signature, expiry, and revocation status. A
// blacklist infrastructure failure surfaces as an error so the caller rejects
// the request.
func (s *Service) Verify(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.blacklist.IsBlacklisted(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("revocation check failed: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Logout revokes the given token until its own expiry.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}

	expiresAt := claims.ExpiresAt.Time
	if err := s.blacklist.Blacklist(ctx, token, expiresAt); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	return nil
}

// parse validates signature and registered claims. An exp claim is mandatory:
// Logout turns it into the blacklist entry's lifetime, so a token without one
// is rejected outright rather than handled specially downstream.
func (s *Service) parse(token string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return &claims, nil
}
