package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

func OpenSQLite(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create db dir")
		}
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_busy_timeout=8000", path)
	database, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}

	database.SetMaxOpenConns(1)
	database.SetMaxIdleConns(1)
	database.SetConnMaxLifetime(0)
	database.SetConnMaxIdleTime(30 * time.Second)

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, errors.Wrap(err, "ping sqlite")
	}

	return database, nil
}

// RunMigrations applies every *.sql file in migrationsDir that has not been
// applied yet, in file name order, each in its own transaction. It returns
// the names it applied.
func RunMigrations(database *sql.DB, migrationsDir string) ([]string, error) {
	if _, err := database.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return nil, errors.Wrap(err, "create schema_migrations")
	}

	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return nil, errors.Wrap(err, "read migrations dir")
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	applied := make([]string, 0, len(files))
	for _, name := range files {
		done, err := isMigrationApplied(database, name)
		if err != nil {
			return applied, err
		}
		if done {
			continue
		}
		if err := applyMigration(database, migrationsDir, name); err != nil {
			return applied, err
		}
		log.Info().Str("migration", name).Msg("Applied migration")
		applied = append(applied, name)
	}

	return applied, nil
}

func applyMigration(database *sql.DB, migrationsDir, name string) error {
	content, err := os.ReadFile(filepath.Join(migrationsDir, name))
	if err != nil {
		return errors.Wrapf(err, "read migration %s", name)
	}

	tx, err := database.Begin()
	if err != nil {
		return errors.Wrapf(err, "begin migration tx %s", name)
	}

	if _, err := tx.Exec(string(content)); err != nil {
		_ = tx.Rollback()
		return errors.Wrapf(err, "execute migration %s", name)
	}

	if _, err := tx.Exec(
		`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`,
		name,
		time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		_ = tx.Rollback()
		return errors.Wrapf(err, "record migration %s", name)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "commit migration %s", name)
	}
	return nil
}

func isMigrationApplied(database *sql.DB, name string) (bool, error) {
	var count int
	if err := database.QueryRow(
		`SELECT COUNT(1) FROM schema_migrations WHERE name = ?`,
		name,
	).Scan(&count); err != nil {
		return false, errors.Wrapf(err, "check migration %s", name)
	}
	return count > 0, nil
}
