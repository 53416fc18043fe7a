package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// MemoryPath opens a private in-memory database, used by tests and by
// `wizctl` runs that want the bulb log without a file.
const MemoryPath = ":memory:"

const (
	dirMode  = 0o750
	fileMode = 0o600

	openTimeout     = 5 * time.Second
	connMaxIdleTime = 30 * time.Minute
	connMaxLifetime = time.Hour
)

// DB is the bulb log's SQLite handle. The embedded *sql.DB is used directly
// by the stores in package device.
type DB struct {
	*sql.DB
	path string
}

// Config is the database section of config.yaml.
type Config struct {
	// Path is the SQLite file; its directory is created on Open.
	Path string

	// WALMode turns on write-ahead logging. Ignored for MemoryPath.
	WALMode bool

	// BusyTimeout is how long a writer waits for the lock, in seconds.
	BusyTimeout int
}

func (c Config) inMemory() bool {
	return c.Path == MemoryPath
}

// dsn is the go-sqlite3 connection string for c, pragmas included.
// See https://github.com/mattn/go-sqlite3#connection-string.
func (c Config) dsn() string {
	busy := strconv.Itoa(c.BusyTimeout * int(time.Second/time.Millisecond))
	dsn := "file:" + c.Path + "?_busy_timeout=" + busy + "&_foreign_keys=on"
	if c.WALMode && !c.inMemory() {
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}
	return dsn
}

// Open opens (creating if needed) the SQLite file at cfg.Path and checks
// the connection.
//
// Parameters:
//   - ctx: Bounds the connection check, together with a 5s ceiling
//   - cfg: Database configuration
//
// Returns:
//   - *DB: Ready for Migrate
//   - error: If the directory, the file or the connection check fails
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if !cfg.inMemory() {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), dirMode); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	configurePool(sqlDB, cfg.inMemory())

	checkCtx, cancel := context.WithTimeout(ctx, openTimeout)
	defer cancel()
	if err := sqlDB.PingContext(checkCtx); err != nil {
		sqlDB.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("verifying database connection (%s): %w", cfg.Path, err)
	}

	if !cfg.inMemory() {
		_ = os.Chmod(cfg.Path, fileMode) //nolint:errcheck // the driver may not have created the file yet
	}
	return &DB{DB: sqlDB, path: cfg.Path}, nil
}

// configurePool keeps a single connection: SQLite allows one writer, and an
// in-memory database disappears with its connection, so that one is never
// recycled.
func configurePool(sqlDB *sql.DB, inMemory bool) {
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	if inMemory {
		return
	}
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
}

// Close closes the connection. A DB whose handle is gone closes as a no-op.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path is the file the bulb log lives in, or MemoryPath.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck runs a trivial query.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// inTx runs fn in a transaction, committing if fn returns nil and rolling
// back otherwise.
func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
