// Package database is the recording catalog: transactional storage of
// recordings, stream configuration, detection zones, auth tables and the
// size-sync reconciler, backed by a WAL-mode SQLite file.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nvrengine/engine/internal/ncerrors"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// DB is the catalog's connection plus the single mutex guarding both the
// connection and any in-flight transaction, per the shared-resource policy:
// one global mutex, single-writer.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.Mutex
	tx   *sql.Tx
}

// Config holds catalog connection settings.
type Config struct {
	Path string
}

// Open opens (creating if absent) the catalog file, applies WAL pragmas and
// runs pending migrations via the embedded fast-path runner.
func Open(cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("open catalog: %w", ncerrors.InvalidArgument)
	}

	connString := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=30000&_foreign_keys=on", cfg.Path)
	conn, err := sql.Open("sqlite3", connString)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	// Single-writer invariant: SQLite serializes writers regardless, but
	// capping the pool keeps the shape (one mutex, one writer) visible
	// rather than incidental.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxIdleTime(30 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open catalog: ping: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("open catalog: pragma %q: %w", p, err)
		}
	}

	if err := runMigrations(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open catalog: migrations: %w", err)
	}

	return &DB{conn: conn, path: cfg.Path}, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting CRUD helpers run
// either directly against the connection or against an open transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// active returns the transaction's querier if one is open, otherwise the
// plain connection. Call sites use this instead of db.conn directly so they
// transparently run inside an open Begin/Commit pair.
func (db *DB) active() querier {
	if db.tx != nil {
		return db.tx
	}
	return db.conn
}

// Begin acquires the catalog mutex and opens a transaction. Code running
// between Begin and Commit/Rollback must call the db* methods (which route
// through db.active()), never a helper that itself calls Begin — that would
// deadlock on the same mutex, per the transaction re-entrance hazard.
func (db *DB) Begin(ctx context.Context) error {
	db.mu.Lock()
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		db.mu.Unlock()
		return fmt.Errorf("begin: %w", err)
	}
	db.tx = tx
	return nil
}

// Commit closes the open transaction and releases the mutex. Calling Commit
// without a matching Begin is a defined no-op returning Conflict — it must
// never panic or deadlock, per the resolved open question on
// commit-without-begin.
func (db *DB) Commit() error {
	if db.tx == nil {
		return fmt.Errorf("commit: %w", ncerrors.Conflict)
	}
	tx := db.tx
	db.tx = nil
	err := tx.Commit()
	db.mu.Unlock()
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback mirrors Commit's no-op-on-unmatched-call contract.
func (db *DB) Rollback() error {
	if db.tx == nil {
		return fmt.Errorf("rollback: %w", ncerrors.Conflict)
	}
	tx := db.tx
	db.tx = nil
	err := tx.Rollback()
	db.mu.Unlock()
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// WithTransaction runs fn inside a Begin/Commit pair, rolling back on any
// error fn returns (or panics).
func (db *DB) WithTransaction(ctx context.Context, fn func() error) (err error) {
	if err := db.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			db.Rollback()
			panic(p)
		}
	}()

	if err := fn(); err != nil {
		if rbErr := db.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	return db.Commit()
}

// GetDatabaseSize returns the on-disk size of the main file plus its WAL,
// in bytes. A missing WAL sidecar (e.g. just after a full checkpoint)
// contributes zero rather than an error.
func (db *DB) GetDatabaseSize(ctx context.Context) (int64, error) {
	var total int64
	main, err := os.Stat(db.path)
	if err != nil {
		return 0, fmt.Errorf("database size: %w", err)
	}
	total += main.Size()

	if wal, err := os.Stat(db.path + "-wal"); err == nil {
		total += wal.Size()
	} else if !os.IsNotExist(err) {
		return 0, fmt.Errorf("database size: %w", err)
	}
	return total, nil
}

// runMigrations applies pending migrations in order using an embedded
// fast-path reader: it strips goose annotations and execs the Up section
// directly, tracked in a schema_migrations table. The pressly/goose/v3
// driven path in migrate.go is the alternative entry point exposed to the
// CLI for environments that want goose's own bookkeeping and down-migrations.
func runMigrations(conn *sql.DB) error {
	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := fs.ReadDir(embedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)

	for _, filename := range files {
		version := strings.TrimSuffix(filename, ".sql")

		var count int
		if err := conn.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", version, err)
		}
		if count > 0 {
			continue
		}

		content, err := embedMigrations.ReadFile("migrations/" + filename)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", filename, err)
		}

		if _, err := conn.Exec(upSection(string(content))); err != nil {
			return fmt.Errorf("apply migration %s: %w", version, err)
		}
		if _, err := conn.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("record migration %s: %w", version, err)
		}
	}

	return nil
}

// upSection extracts the goose Up section, dropping StatementBegin/End
// markers so the remaining SQL can be exec'd as a batch.
func upSection(sqlText string) string {
	lines := strings.Split(sqlText, "\n")
	var out []string
	inUp := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "-- +goose Up"):
			inUp = true
			continue
		case strings.HasPrefix(trimmed, "-- +goose Down"):
			return strings.Join(out, "\n")
		case strings.HasPrefix(trimmed, "-- +goose StatementBegin"),
			strings.HasPrefix(trimmed, "-- +goose StatementEnd"):
			continue
		}
		if inUp {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
