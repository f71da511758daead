package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// jsonKeyPath builds a JSON path addressing key at the top level of an object.
func jsonKeyPath(key string) string {
	return `$."` + strings.ReplaceAll(key, `"`, `\"`) + `"`
}

// RemoveCourseReference strips courseID from every user's progress object.
// It runs on ex so callers can make it part of a larger transaction.
func RemoveCourseReference(ctx context.Context, ex execer, courseID string) (int64, error) {
	path := jsonKeyPath(courseID)
	res, err := ex.ExecContext(ctx, `
		UPDATE user_progress
		SET progress = json_remove(progress, ?), updated_at = CURRENT_TIMESTAMP
		WHERE json_valid(progress) AND json_extract(progress, ?) IS NOT NULL
	`, path, path)
	if err != nil {
		return 0, fmt.Errorf("removing course %s from progress: %w", courseID, err)
	}
	return res.RowsAffected()
}

// GetUserProgress returns the stored progress object of a user, "{}" when none.
func (d *Database) GetUserProgress(ctx context.Context, userID string) (json.RawMessage, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_progress", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var progress sql.NullString
	err = d.db.QueryRowContext(ctx, "SELECT progress FROM user_progress WHERE user_id = ?", userID).Scan(&progress)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return json.RawMessage("{}"), nil
	}
	if err != nil {
		return nil, err
	}
	if !progress.Valid || progress.String == "" {
		return json.RawMessage("{}"), nil
	}
	return json.RawMessage(progress.String), nil
}

// SetUserProgress replaces the progress object of a user.
func (d *Database) SetUserProgress(ctx context.Context, userID string, progress json.RawMessage) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_progress", start, err) }()

	var obj map[string]json.RawMessage
	if err = json.Unmarshal(progress, &obj); err != nil {
		return fmt.Errorf("progress must be a JSON object: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO user_progress (user_id, progress, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET progress = excluded.progress, updated_at = CURRENT_TIMESTAMP
	`, userID, string(progress))
	return err
}
