package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"skillgoblin/internal/logging"
	"skillgoblin/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// FileName is the database file created inside the data directory.
const FileName = "skillgoblin.db"

// Database manages the course catalog and the per-user tables.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex

	txMu     sync.Mutex
	txStarts map[*sql.Tx]time.Time // for transaction duration metrics
}

// New opens (creating if needed) the database at dbPath and applies the schema.
// The parent directory must already exist and be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	// Diagnose potential permission issues
	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := NewWithDB(db)
	d.dbPath = dbPath

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

// NewWithDB wraps an already opened handle without touching the schema.
func NewWithDB(db *sql.DB) *Database {
	return &Database{
		db:       db,
		txStarts: make(map[*sql.Tx]time.Time),
	}
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS courses (
		id TEXT PRIMARY KEY,
		title TEXT,
		description TEXT,
		folder_name TEXT NOT NULL,
		thumbnail TEXT,
		thumbnail_data BLOB,
		category TEXT DEFAULT 'Uncategorized',
		release_date TEXT,
		data TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		avatar TEXT,
		theme TEXT DEFAULT 'dark',
		isAdmin INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS user_progress (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		progress TEXT DEFAULT '{}',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id)
	);

	CREATE TABLE IF NOT EXISTS user_favorites (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		course_id TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, course_id)
	);

	CREATE INDEX IF NOT EXISTS idx_user_favorites_course ON user_favorites(course_id);

	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, key)
	);
	`

	_, err := d.db.ExecContext(ctx, schema)
	if err != nil {
		return err
	}

	return d.runMigrations(ctx)
}

// columnMigration adds a column to tables created by older releases.
type columnMigration struct {
	table      string
	column     string
	definition string
	backfill   string
}

var columnMigrations = []columnMigration{
	{table: "courses", column: "thumbnail_data", definition: "BLOB"},
	{
		table:      "courses",
		column:     "folder_name",
		definition: "TEXT NOT NULL DEFAULT ''",
	},
	{
		table:      "courses",
		column:     "category",
		definition: "TEXT DEFAULT 'Uncategorized'",
		backfill:   "UPDATE courses SET category = 'Uncategorized' WHERE category IS NULL OR category = ''",
	},
}

// runMigrations applies database schema migrations
func (d *Database) runMigrations(ctx context.Context) error {
	for _, m := range columnMigrations {
		var columnExists bool
		err := d.db.QueryRowContext(ctx, `
			SELECT COUNT(*) > 0
			FROM pragma_table_info(?)
			WHERE name = ?
		`, m.table, m.column).Scan(&columnExists)
		if err != nil {
			return fmt.Errorf("failed to check for %s.%s column: %w", m.table, m.column, err)
		}
		if columnExists {
			continue
		}

		logging.Info("Migrating database: adding %s column to %s table", m.column, m.table)

		// SQLite doesn't allow expressions in ALTER TABLE ADD COLUMN DEFAULT
		if _, err := d.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.table, m.column, m.definition)); err != nil {
			return fmt.Errorf("failed to add %s.%s column: %w", m.table, m.column, err)
		}

		if m.backfill != "" {
			if _, err := d.db.ExecContext(ctx, m.backfill); err != nil {
				return fmt.Errorf("failed to initialize %s.%s values: %w", m.table, m.column, err)
			}
		}

		logging.Info("Migration complete: %s column added to %s", m.column, m.table)
	}

	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file path, empty for wrapped handles.
func (d *Database) Path() string {
	return d.dbPath
}

// BeginBatch starts a transaction. The caller must finish it with EndBatch.
func (d *Database) BeginBatch(ctx context.Context) (*sql.Tx, error) {
	start := time.Now()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	d.txMu.Lock()
	d.txStarts[tx] = start
	d.txMu.Unlock()

	return tx, nil
}

// EndBatch commits tx when err is nil and rolls it back otherwise.
func (d *Database) EndBatch(tx *sql.Tx, err error) error {
	d.txMu.Lock()
	start, ok := d.txStarts[tx]
	delete(d.txStarts, tx)
	d.txMu.Unlock()

	var duration float64
	if ok {
		duration = time.Since(start).Seconds()
	}

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		rbErr := tx.Rollback()
		if rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return tx.Commit()
}

// inTx runs fn inside a transaction and commits only if fn succeeds.
func (d *Database) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.BeginBatch(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	return d.EndBatch(tx, fn(tx))
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil && !errors.Is(err, ErrCourseNotFound) && !errors.Is(err, ErrUserNotFound) {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	if dbInfo, err := os.Stat(dbPath); err == nil {
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", dbPath, dbInfo.Mode(), dbInfo.Size())
		if dbInfo.Mode().Perm()&0o200 == 0 {
			logging.Warn("Database file is read-only! Mode: %v", dbInfo.Mode())
		}
	}

	for _, suffix := range []string{"-wal", "-shm"} {
		sidecar := dbPath + suffix
		info, err := os.Stat(sidecar)
		if err != nil || info.Mode().Perm()&0o200 != 0 {
			continue
		}
		logging.Warn("%s is read-only! Mode: %v - this will cause write failures", sidecar, info.Mode())
		if chmodErr := os.Chmod(sidecar, 0o600); chmodErr != nil {
			logging.Error("Failed to fix %s permissions: %v", sidecar, chmodErr)
		} else {
			logging.Info("Fixed %s permissions", sidecar)
		}
	}

	return nil
}
