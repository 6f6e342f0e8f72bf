// Package migrate applies the embedded schema migrations with goose.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	_ "github.com/lib/pq" // database/sql driver "postgres"
	"github.com/pressly/goose/v3"

	"github.com/costtrack/costtrack/internal/repository"
)

//go:embed postgres/*.sql sqlite/*.sql
var migrations embed.FS

// Result describes one applied or rolled back migration.
type Result struct {
	Version   int64
	Source    string
	Direction string
	Duration  time.Duration
}

// Status describes the state of one migration.
type Status struct {
	Version   int64
	Source    string
	Applied   bool
	AppliedAt time.Time
}

// Migrator runs migrations for one database.
type Migrator struct {
	provider *goose.Provider
	closer   func() error
}

// New creates a Migrator for an open database. The caller keeps ownership of db.
func New(db *sql.DB, dialect repository.Dialect) (*Migrator, error) {
	var (
		gooseDialect goose.Dialect
		dir          string
	)
	switch dialect {
	case repository.DialectPostgres:
		gooseDialect, dir = goose.DialectPostgres, "postgres"
	case repository.DialectSQLite:
		gooseDialect, dir = goose.DialectSQLite3, "sqlite"
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(gooseDialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("create migration provider: %w", err)
	}

	return &Migrator{provider: provider, closer: func() error { return nil }}, nil
}

// Open connects to databaseURL and returns a Migrator that owns the connection.
func Open(ctx context.Context, databaseURL string) (*Migrator, error) {
	dialect, err := repository.DialectOf(databaseURL)
	if err != nil {
		return nil, err
	}

	var (
		db     *sql.DB
		closer func() error
	)
	switch dialect {
	case repository.DialectPostgres:
		db, err = sql.Open("postgres", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		closer = db.Close
	default:
		store, err := repository.Open(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		sqliteStore, ok := store.(*repository.SQLite)
		if !ok {
			store.Close()
			return nil, errors.New("unexpected store type for sqlite URL")
		}
		db, closer = sqliteStore.DB(), sqliteStore.Close
	}

	m, err := New(db, dialect)
	if err != nil {
		closer()
		return nil, err
	}
	m.closer = closer
	return m, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) ([]Result, error) {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return convertResults(results), fmt.Errorf("migrate up: %w", err)
	}
	return convertResults(results), nil
}

// Down rolls back the most recently applied migration.
func (m *Migrator) Down(ctx context.Context) (Result, error) {
	res, err := m.provider.Down(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("migrate down: %w", err)
	}
	return convertResult(res), nil
}

// Reset rolls back every applied migration.
func (m *Migrator) Reset(ctx context.Context) error {
	if _, err := m.provider.DownTo(ctx, 0); err != nil {
		return fmt.Errorf("migrate reset: %w", err)
	}
	return nil
}

// Status lists every known migration and whether it has been applied.
func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate status: %w", err)
	}

	out := make([]Status, 0, len(statuses))
	for _, s := range statuses {
		st := Status{
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		}
		if s.Source != nil {
			st.Version = s.Source.Version
			st.Source = s.Source.Path
		}
		out = append(out, st)
	}
	return out, nil
}

// Version returns the current schema version, 0 when nothing is applied.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	v, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("migrate version: %w", err)
	}
	return v, nil
}

// Close releases the connection if the Migrator owns it.
func (m *Migrator) Close() error {
	return m.closer()
}

func convertResults(results []*goose.MigrationResult) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		out = append(out, convertResult(r))
	}
	return out
}

func convertResult(r *goose.MigrationResult) Result {
	if r == nil {
		return Result{}
	}
	res := Result{Direction: r.Direction, Duration: r.Duration}
	if r.Source != nil {
		res.Version = r.Source.Version
		res.Source = r.Source.Path
	}
	return res
}
