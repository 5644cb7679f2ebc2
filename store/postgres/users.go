package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/inspeksimobil/inspector-core/store"
)

var userColumns = []string{"id", "email", "name", "role", "branch_id", "pin_hash", "refresh_token_hash"}

func scanUser(row sq.RowScanner) (*store.User, error) {
	var u store.User
	var email, branchID, pinHash, refreshHash sql.NullString
	if err := row.Scan(&u.ID, &email, &u.Name, &u.Role, &branchID, &pinHash, &refreshHash); err != nil {
		return nil, err
	}
	u.Email = email.String
	u.BranchID = branchID.String
	u.PINHash = pinHash.String
	u.RefreshTokenHash = refreshHash.String
	return &u, nil
}

func (c *Connection) userBy(ctx context.Context, pred any, args ...any) (*store.User, error) {
	query, qargs, err := c.sb.
		Select(userColumns...).
		From("users").
		Where(pred, args...).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build user query: %w", err)
	}

	u, err := scanUser(c.db.QueryRowContext(ctx, query, qargs...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

// UserByID implements store.UserStore.
func (c *Connection) UserByID(ctx context.Context, id string) (*store.User, error) {
	return c.userBy(ctx, sq.Eq{"id": id})
}

// UserByEmail implements store.UserStore.
func (c *Connection) UserByEmail(ctx context.Context, email string) (*store.User, error) {
	return c.userBy(ctx, sq.Eq{"email": email})
}

// Inspectors implements store.UserStore.
func (c *Connection) Inspectors(ctx context.Context) ([]store.User, error) {
	query, args, err := c.sb.
		Select(userColumns...).
		From("users").
		Where(sq.Eq{"role": store.RoleInspector}).
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build inspectors query: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query inspectors: %w", err)
	}
	defer rows.Close()

	var users []store.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inspector: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inspectors: %w", err)
	}
	return users, nil
}

// UpdateUserRefreshToken implements store.UserStore.
func (c *Connection) UpdateUserRefreshToken(ctx context.Context, id, hash string) error {
	query, args, err := c.sb.
		Update("users").
		Set("refresh_token_hash", hash).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build user update query: %w", err)
	}

	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}
