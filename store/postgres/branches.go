package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/inspeksimobil/inspector-core/store"
)

// Branches implements store.BranchStore.
func (c *Connection) Branches(ctx context.Context) ([]store.Branch, error) {
	query, args, err := c.sb.
		Select("id", "city", "code").
		From("inspection_branches").
		OrderBy("city").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build branches query: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query branches: %w", err)
	}
	defer rows.Close()

	var branches []store.Branch
	for rows.Next() {
		var b store.Branch
		if err := rows.Scan(&b.ID, &b.City, &b.Code); err != nil {
			return nil, fmt.Errorf("scan branch: %w", err)
		}
		branches = append(branches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate branches: %w", err)
	}
	return branches, nil
}

// BranchByID implements store.BranchStore.
func (c *Connection) BranchByID(ctx context.Context, id string) (*store.Branch, error) {
	query, args, err := c.sb.
		Select("id", "city", "code").
		From("inspection_branches").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build branch query: %w", err)
	}

	var b store.Branch
	err = c.db.QueryRowContext(ctx, query, args...).Scan(&b.ID, &b.City, &b.Code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query branch %s: %w", id, err)
	}
	return &b, nil
}
