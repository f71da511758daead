package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned when no user row matches.
var ErrUserNotFound = errors.New("user not found")

// CreateUser inserts a user with a fresh uuid.
func (d *Database) CreateUser(ctx context.Context, name, avatar string, isAdmin bool) (*User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_user", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	user := &User{
		ID:        uuid.NewString(),
		Name:      name,
		Avatar:    avatar,
		Theme:     "dark",
		IsAdmin:   isAdmin,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO users (id, name, avatar, theme, isAdmin, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.ID, user.Name, user.Avatar, user.Theme, user.IsAdmin, user.CreatedAt.Format(sqliteTime))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUser returns the user with id.
func (d *Database) GetUser(ctx context.Context, id string) (*User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_user", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		user      User
		avatar    sql.NullString
		theme     sql.NullString
		createdAt sql.NullString
	)
	err = d.db.QueryRowContext(ctx,
		"SELECT id, name, avatar, theme, COALESCE(isAdmin, 0), created_at FROM users WHERE id = ?", id,
	).Scan(&user.ID, &user.Name, &avatar, &theme, &user.IsAdmin, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("%w: %s", ErrUserNotFound, id)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	user.Avatar = avatar.String
	user.Theme = theme.String
	user.CreatedAt = parseSQLiteTime(createdAt)
	return &user, nil
}

// DeleteUser removes a user with its progress, favorites and settings in a
// single transaction.
func (d *Database) DeleteUser(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_user", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	err = d.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"user_progress", "user_favorites", "settings"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE user_id = ?", id); err != nil {
				return fmt.Errorf("deleting %s: %w", table, err)
			}
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrUserNotFound, id)
		}
		return nil
	})
	return err
}
