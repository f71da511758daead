package database

import (
	"context"
	"fmt"
	"time"
)

// AddFavorite marks a course as favorite for a user.
func (d *Database) AddFavorite(ctx context.Context, userID, courseID string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("add_favorite", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO user_favorites (user_id, course_id, created_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, course_id) DO NOTHING
	`, userID, courseID)
	return err
}

// RemoveFavorite unmarks a course for a user.
func (d *Database) RemoveFavorite(ctx context.Context, userID, courseID string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("remove_favorite", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "DELETE FROM user_favorites WHERE user_id = ? AND course_id = ?", userID, courseID)
	return err
}

// GetFavorites returns the favorite course ids of a user, newest first.
func (d *Database) GetFavorites(ctx context.Context, userID string) ([]string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_favorites", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT course_id FROM user_favorites
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get favorites: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	err = rows.Err()
	return ids, err
}
