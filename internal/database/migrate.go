package database

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

// Migrate runs the embedded migration set through pressly/goose/v3's own
// tracking table, for operators who want goose's status/down tooling
// instead of the embedded fast-path runner Open uses by default.
func Migrate(path string) error {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("migrate: open: %w", err)
	}
	defer conn.Close()

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("migrate: dialect: %w", err)
	}
	if err := goose.Up(conn, "migrations"); err != nil {
		return fmt.Errorf("migrate: up: %w", err)
	}
	return nil
}

// MigrationStatus reports the current goose version without applying
// anything.
func MigrationStatus(path string) (int64, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return 0, fmt.Errorf("migration status: open: %w", err)
	}
	defer conn.Close()

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, fmt.Errorf("migration status: dialect: %w", err)
	}
	return goose.GetDBVersion(conn)
}
