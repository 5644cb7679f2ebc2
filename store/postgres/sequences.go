package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/inspeksimobil/inspector-core/store"
)

// upsertSequenceSQL increments-or-creates the counter row in one statement.
// The row-level lock taken by ON CONFLICT DO UPDATE linearizes concurrent
// callers, so no two of them can observe the same value.
const upsertSequenceSQL = `
INSERT INTO inspection_sequences (scope_key, date_prefix, next_value)
VALUES ($1, $2, 1)
ON CONFLICT (scope_key, date_prefix)
DO UPDATE SET next_value = inspection_sequences.next_value + 1
RETURNING next_value`

// checkpointSequenceSQL records the cache-issued counter as a durable floor.
// GREATEST keeps a late or out-of-order checkpoint from rolling the row back.
const checkpointSequenceSQL = `
INSERT INTO inspection_sequences (scope_key, date_prefix, next_value)
VALUES ($1, $2, $3)
ON CONFLICT (scope_key, date_prefix)
DO UPDATE SET next_value = GREATEST(inspection_sequences.next_value, EXCLUDED.next_value)`

// UpsertSequence implements store.SequenceStore.
func (c *Connection) UpsertSequence(ctx context.Context, scopeKey, datePrefix string) (int64, error) {
	var next int64
	err := c.db.QueryRowContext(ctx, upsertSequenceSQL, scopeKey, datePrefix).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("upsert sequence %s/%s: %w", scopeKey, datePrefix, err)
	}
	return next, nil
}

// ReadSequence implements store.SequenceStore.
func (c *Connection) ReadSequence(ctx context.Context, scopeKey, datePrefix string) (int64, error) {
	query, args, err := c.sb.
		Select("next_value").
		From("inspection_sequences").
		Where("scope_key = ? AND date_prefix = ?", scopeKey, datePrefix).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build read sequence query: %w", err)
	}

	var next int64
	err = c.db.QueryRowContext(ctx, query, args...).Scan(&next)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read sequence %s/%s: %w", scopeKey, datePrefix, err)
	}
	return next, nil
}

// CheckpointSequence implements store.SequenceStore.
func (c *Connection) CheckpointSequence(ctx context.Context, scopeKey, datePrefix string, value int64) error {
	if _, err := c.db.ExecContext(ctx, checkpointSequenceSQL, scopeKey, datePrefix, value); err != nil {
		return fmt.Errorf("checkpoint sequence %s/%s: %w", scopeKey, datePrefix, err)
	}
	return nil
}
