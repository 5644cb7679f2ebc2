package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/inspeksimobil/inspector-core/store"
)

// insertBlacklistSQL records a revoked token. A token already present keeps
// its original expiry; re-revocation is a no-op, which is the required
// "duplicate insert is success" semantics.
const insertBlacklistSQL = `
INSERT INTO blacklisted_tokens (token, expires_at)
VALUES ($1, $2)
ON CONFLICT (token) DO NOTHING`

// InsertBlacklistToken implements store.BlacklistStore.
func (c *Connection) InsertBlacklistToken(ctx context.Context, token string, expiresAt time.Time) error {
	if _, err := c.db.ExecContext(ctx, insertBlacklistSQL, token, expiresAt); err != nil {
		return fmt.Errorf("insert blacklist token: %w", err)
	}
	return nil
}

// FindBlacklistToken implements store.BlacklistStore.
func (c *Connection) FindBlacklistToken(ctx context.Context, token string) (*store.BlacklistRecord, error) {
	query, args, err := c.sb.
		Select("token", "expires_at").
		From("blacklisted_tokens").
		Where("token = ?", token).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build blacklist lookup query: %w", err)
	}

	var rec store.BlacklistRecord
	err = c.db.QueryRowContext(ctx, query, args...).Scan(&rec.Token, &rec.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find blacklist token: %w", err)
	}
	return &rec, nil
}
