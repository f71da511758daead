package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"skillgoblin/internal/course"
)

// ErrCourseNotFound is returned when no catalog row matches.
var ErrCourseNotFound = errors.New("course not found")

// sqliteTime is the layout of CURRENT_TIMESTAMP values.
const sqliteTime = "2006-01-02 15:04:05"

func parseSQLiteTime(value sql.NullString) time.Time {
	if !value.Valid {
		return time.Time{}
	}
	for _, layout := range []string{sqliteTime, time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value.String); err == nil {
			return t
		}
	}
	return time.Time{}
}

const courseColumns = `id, COALESCE(title, ''), COALESCE(description, ''), COALESCE(folder_name, ''),
	COALESCE(thumbnail, ''), COALESCE(category, ''), COALESCE(release_date, ''), data,
	thumbnail_data IS NOT NULL, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCourseRecord(row rowScanner) (*CourseRecord, error) {
	var (
		rec       CourseRecord
		data      string
		createdAt sql.NullString
		updatedAt sql.NullString
	)
	if err := row.Scan(
		&rec.ID, &rec.Title, &rec.Description, &rec.FolderName,
		&rec.Thumbnail, &rec.Category, &rec.ReleaseDate, &data,
		&rec.HasThumbnail, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	var doc course.Course
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("decoding course %s: %w", rec.ID, err)
	}
	if doc.Lessons == nil {
		doc.Lessons = []course.Lesson{}
	}
	rec.Data = &doc
	rec.CreatedAt = parseSQLiteTime(createdAt)
	rec.UpdatedAt = parseSQLiteTime(updatedAt)
	return &rec, nil
}

// GetCourseRecord returns the catalog row for id.
func (d *Database) GetCourseRecord(ctx context.Context, id string) (*CourseRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_course", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rec, err := scanCourseRecord(d.db.QueryRowContext(ctx,
		"SELECT "+courseColumns+" FROM courses WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("%w: %s", ErrCourseNotFound, id)
		return nil, err
	}
	return rec, err
}

// GetCourse returns the stored course document for id.
func (d *Database) GetCourse(ctx context.Context, id string) (*course.Course, error) {
	rec, err := d.GetCourseRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.Data, nil
}

// ListCourses returns every course document ordered by title.
func (d *Database) ListCourses(ctx context.Context) ([]*course.Course, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_courses", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT "+courseColumns+" FROM courses ORDER BY title COLLATE NOCASE, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	courses := []*course.Course{}
	for rows.Next() {
		rec, scanErr := scanCourseRecord(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		courses = append(courses, rec.Data)
	}
	err = rows.Err()
	return courses, err
}

// GetFolderName returns the folder backing course id. An empty folder name
// means a legacy row that was never linked to its folder.
func (d *Database) GetFolderName(ctx context.Context, id string) (string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_folder_name", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var folder string
	err = d.db.QueryRowContext(ctx, "SELECT COALESCE(folder_name, '') FROM courses WHERE id = ?", id).Scan(&folder)
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("%w: %s", ErrCourseNotFound, id)
		return "", err
	}
	return folder, err
}

// ListCourseFolders returns every (id, folder) pair in the catalog.
func (d *Database) ListCourseFolders(ctx context.Context) ([]CourseFolder, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_course_folders", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT id, COALESCE(folder_name, '') FROM courses ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list course folders: %w", err)
	}
	defer rows.Close()

	folders := []CourseFolder{}
	for rows.Next() {
		var f CourseFolder
		if err = rows.Scan(&f.ID, &f.FolderName); err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}
	err = rows.Err()
	return folders, err
}

// ListEditable snapshots the editable columns of every course, keyed by id.
func (d *Database) ListEditable(ctx context.Context) (map[string]course.Editable, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_editable", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, COALESCE(title, ''), COALESCE(description, ''), COALESCE(category, ''),
			COALESCE(release_date, ''), COALESCE(thumbnail, '')
		FROM courses
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot courses: %w", err)
	}
	defer rows.Close()

	snapshot := make(map[string]course.Editable)
	for rows.Next() {
		var id string
		var e course.Editable
		if err = rows.Scan(&id, &e.Title, &e.Description, &e.Category, &e.ReleaseDate, &e.Thumbnail); err != nil {
			return nil, err
		}
		snapshot[id] = e
	}
	err = rows.Err()
	return snapshot, err
}

// UpsertCourse stores doc for folderName in one transaction. A new row is
// inserted without thumbnail data. An existing row has its columns and
// document replaced; its thumbnail blob survives only when preserve is set.
// It reports whether a row was inserted.
func (d *Database) UpsertCourse(ctx context.Context, doc *course.Course, folderName string, preserve bool) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_course", start, err) }()

	data, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("encoding course %s: %w", doc.ID, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	inserted := false
	err = d.inTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) > 0 FROM courses WHERE id = ?", doc.ID).Scan(&exists); err != nil {
			return err
		}

		if !exists {
			inserted = true
			_, err := tx.ExecContext(ctx, `
				INSERT INTO courses (id, title, description, folder_name, thumbnail, thumbnail_data,
					category, release_date, data, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, NULL, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
			`, doc.ID, doc.Title, doc.Description, folderName, doc.Thumbnail,
				doc.Category, doc.ReleaseDate, string(data))
			return err
		}

		_, err := tx.ExecContext(ctx, `
			UPDATE courses SET
				title = ?, description = ?, folder_name = ?, thumbnail = ?,
				category = ?, release_date = ?, data = ?,
				thumbnail_data = CASE WHEN ? THEN thumbnail_data ELSE NULL END,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, doc.Title, doc.Description, folderName, doc.Thumbnail,
			doc.Category, doc.ReleaseDate, string(data), preserve, doc.ID)
		return err
	})
	if err != nil {
		err = fmt.Errorf("saving course %s: %w", doc.ID, err)
		return false, err
	}
	return inserted, nil
}

// SaveEdit stores an edited document. When thumbnail is non-nil the blob is
// replaced in the same statement; otherwise the stored blob is kept.
func (d *Database) SaveEdit(ctx context.Context, doc *course.Course, thumbnail []byte) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("save_edit", start, err) }()

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding course %s: %w", doc.ID, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	// a nil interface binds NULL so COALESCE keeps the stored blob
	var blob any
	if thumbnail != nil {
		blob = thumbnail
	}

	res, err := d.db.ExecContext(ctx, `
		UPDATE courses SET
			title = ?, description = ?, category = ?, release_date = ?, thumbnail = ?, data = ?,
			thumbnail_data = COALESCE(?, thumbnail_data),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, doc.Title, doc.Description, doc.Category, doc.ReleaseDate, doc.Thumbnail, string(data), blob, doc.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = fmt.Errorf("%w: %s", ErrCourseNotFound, doc.ID)
	}
	return err
}

// DeleteCourseByFolder removes the course stored for folderName together with
// its favorites and its entries in every user's progress, atomically. It
// returns the removed course id, or ErrCourseNotFound.
func (d *Database) DeleteCourseByFolder(ctx context.Context, folderName string) (string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_course", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	var id string
	err = d.inTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, "SELECT id FROM courses WHERE folder_name = ?", folderName).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: folder %s", ErrCourseNotFound, folderName)
			}
			return err
		}

		return deleteCourseTx(ctx, tx, id)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// DeleteCourse removes the course with id the same way DeleteCourseByFolder does.
func (d *Database) DeleteCourse(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_course", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	err = d.inTx(ctx, func(tx *sql.Tx) error {
		return deleteCourseTx(ctx, tx, id)
	})
	return err
}

func deleteCourseTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM courses WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrCourseNotFound, id)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM user_favorites WHERE course_id = ?", id); err != nil {
		return err
	}
	_, err = RemoveCourseReference(ctx, tx, id)
	return err
}

// CourseCount returns the number of catalog rows.
func (d *Database) CourseCount(ctx context.Context) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("course_count", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var count int
	err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM courses").Scan(&count)
	return count, err
}

// GetThumbnail returns the stored thumbnail blob, nil when absent.
func (d *Database) GetThumbnail(ctx context.Context, id string) ([]byte, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_thumbnail", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var data []byte
	err = d.db.QueryRowContext(ctx, "SELECT thumbnail_data FROM courses WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("%w: %s", ErrCourseNotFound, id)
		return nil, err
	}
	if len(data) == 0 {
		return nil, err
	}
	return data, err
}

// SetThumbnail replaces the thumbnail blob of course id.
func (d *Database) SetThumbnail(ctx context.Context, id string, data []byte) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_thumbnail", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx,
		"UPDATE courses SET thumbnail_data = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", data, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = fmt.Errorf("%w: %s", ErrCourseNotFound, id)
	}
	return err
}

// ListCategories returns the distinct non-empty categories, sorted.
func (d *Database) ListCategories(ctx context.Context) ([]string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_categories", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT DISTINCT category FROM courses
		WHERE category IS NOT NULL AND category != ''
		ORDER BY category COLLATE NOCASE
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var c string
		if err = rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	err = rows.Err()
	return categories, err
}
