// Package store defines the durable system-of-record contract consumed by the
// consistency layer. The relational implementation lives in store/postgres.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups when no row matches.
var ErrNotFound = errors.New("store: not found")

// SequenceRecord is the durable copy of a per-scope, per-day counter.
// Unlike its cache shadow it never expires.
type SequenceRecord struct {
	ScopeKey   string
	DatePrefix string
	NextValue  int64
}

// BlacklistRecord is a revoked token. Rows are never mutated; once ExpiresAt
// has passed the row is meaningless and may be purged lazily.
type BlacklistRecord struct {
	Token     string
	ExpiresAt time.Time
}

// User is an inspector or staff profile. Cached under the users namespace,
// so the field set doubles as that namespace's serialization contract.
type User struct {
	ID               string `cbor:"1,keyasint"`
	Email            string `cbor:"2,keyasint"`
	Name             string `cbor:"3,keyasint"`
	Role             string `cbor:"4,keyasint"`
	BranchID         string `cbor:"5,keyasint"`
	PINHash          string `cbor:"-"`
	RefreshTokenHash string `cbor:"-"`
}

// Branch is an inspection branch city. Cached under the branches namespace.
type Branch struct {
	ID   string `cbor:"1,keyasint"`
	City string `cbor:"2,keyasint"`
	Code string `cbor:"3,keyasint"`
}

// Inspection is a created inspection record. Only the fields the consistency
// core touches are modeled; the full report payload is out of scope.
type Inspection struct {
	ID                 string
	PrettyID           string
	InspectorID        string
	BranchID           string
	VehiclePlateNumber string
	OverallRating      string
	InspectionDate     time.Time
	CreatedAt          time.Time
}

// RoleInspector is the role value selecting users for the inspectors list.
const RoleInspector = "INSPECTOR"

// SequenceStore is the durable side of the sequence generator.
type SequenceStore interface {
	// UpsertSequence atomically increments-or-creates the counter row for
	// (scopeKey, datePrefix) and returns the issued value. First issuance
	// returns 1. This is the always-correct fallback path.
	UpsertSequence(ctx context.Context, scopeKey, datePrefix string) (int64, error)

	// ReadSequence returns the last recorded counter value.
	// Returns ErrNotFound when no row exists yet.
	ReadSequence(ctx context.Context, scopeKey, datePrefix string) (int64, error)

	// CheckpointSequence records value as the counter's durable floor. The
	// row only ever moves forward; a stale checkpoint never lowers it.
	CheckpointSequence(ctx context.Context, scopeKey, datePrefix string, value int64) error
}

// BlacklistStore is the durable side of the token blacklist.
type BlacklistStore interface {
	// InsertBlacklistToken records a revoked token. Inserting a token that is
	// already present is treated as success.
	InsertBlacklistToken(ctx context.Context, token string, expiresAt time.Time) error

	// FindBlacklistToken returns the blacklist row for token.
	// Returns ErrNotFound when the token was never blacklisted.
	FindBlacklistToken(ctx context.Context, token string) (*BlacklistRecord, error)
}

// UserStore reads and updates user profiles.
type UserStore interface {
	UserByID(ctx context.Context, id string) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
	Inspectors(ctx context.Context) ([]User, error)
	UpdateUserRefreshToken(ctx context.Context, id, hash string) error
}

// BranchStore reads inspection branch reference data.
type BranchStore interface {
	Branches(ctx context.Context) ([]Branch, error)
	BranchByID(ctx context.Context, id string) (*Branch, error)
}

// InspectionStore persists created inspections.
type InspectionStore interface {
	InsertInspection(ctx context.Context, rec *Inspection) error
}

// Store is the full durable-store surface, implemented by store/postgres.
type Store interface {
	SequenceStore
	BlacklistStore
	UserStore
	BranchStore
	InspectionStore

	Health(ctx context.Context) error
	Close() error
}
