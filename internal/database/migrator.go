// Package database provides helpers for opening PostgreSQL, running schema
// migrations and executing transactional work.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
)

// Migrations holds the embedded goose migration files.
//
//go:embed migrations/*.sql
var Migrations embed.FS

const migrationsRoot = "migrations"

// goose keeps its dialect and base FS in package globals.
var gooseMu sync.Mutex

// Migrator applies the embedded goose migrations.
type Migrator struct {
	db  *sql.DB
	fs  fs.FS
	log *slog.Logger
}

// NewMigrator constructs a Migrator that logs through the provided logger instance.
func NewMigrator(db *sql.DB, log *slog.Logger) *Migrator {
	if log == nil {
		log = slog.Default()
	}

	return &Migrator{
		db:  db,
		fs:  Migrations,
		log: log.With(slog.String("component", "migrator")),
	}
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) error {
	names, err := ListMigrations(m.fs, migrationsRoot)
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	if len(names) == 0 {
		m.log.Info("no migrations found")
		return nil
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(m.fs)
	goose.SetLogger(gooseLogger{log: m.log})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	m.log.Info("applying migrations", slog.Int("available", len(names)))

	if err := goose.UpContext(ctx, m.db, migrationsRoot); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, m.db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	m.log.Info("schema up to date", slog.Int64("version", version))
	return nil
}

// ListMigrations returns all .sql files in root in lexical order.
func ListMigrations(dir fs.FS, root string) ([]string, error) {
	entries, err := fs.ReadDir(dir, root)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}

	sort.Strings(names)

	return names, nil
}

type gooseLogger struct {
	log *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
