// Package repository provides the database access layer. Two backends
// implement Store: PostgreSQL through a pgx pool and SQLite through
// database/sql.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/costtrack/costtrack/internal/model"
)

// Common errors returned by every Store implementation.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUserNameExists = errors.New("user name already exists")
	ErrCostNotFound   = errors.New("cost not found")
)

// Dialect names a storage backend.
type Dialect string

// Supported dialects.
const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUserName(ctx context.Context, userName string) (*model.User, error)
}

// CostStore persists costs.
type CostStore interface {
	CreateCost(ctx context.Context, cost *model.Cost) error
	GetCost(ctx context.Context, id int64) (*model.Cost, error)
	ListCostsByUser(ctx context.Context, userID int64) ([]model.Cost, error)
	UpdateCost(ctx context.Context, cost *model.Cost) error
	DeleteCost(ctx context.Context, id int64) error
}

// ActivityStore persists the cost activity log.
type ActivityStore interface {
	// InsertActivities stores events, skipping ones whose EventID already exists.
	// It returns the number of rows actually inserted.
	InsertActivities(ctx context.Context, events []model.ActivityEvent) (int, error)
	ListActivity(ctx context.Context, userID int64, limit int) ([]model.ActivityEvent, error)
	PruneActivity(ctx context.Context, before time.Time) (int64, error)
}

// Store is the full persistence surface used by the services.
type Store interface {
	UserStore
	CostStore
	ActivityStore
	Dialect() Dialect
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the database named by databaseURL. postgres:// and
// postgresql:// URLs use PostgreSQL; sqlite: and file: URLs use SQLite.
func Open(ctx context.Context, databaseURL string) (Store, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return NewPostgres(ctx, databaseURL)
	case strings.HasPrefix(databaseURL, "sqlite:"):
		path := strings.TrimPrefix(strings.TrimPrefix(databaseURL, "sqlite:"), "//")
		return NewSQLite(ctx, path)
	case strings.HasPrefix(databaseURL, "file:"):
		return NewSQLite(ctx, databaseURL)
	default:
		return nil, fmt.Errorf("unsupported database URL scheme: %q", schemeOf(databaseURL))
	}
}

// DialectOf reports the dialect Open would pick for databaseURL.
func DialectOf(databaseURL string) (Dialect, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DialectPostgres, nil
	case strings.HasPrefix(databaseURL, "sqlite:"), strings.HasPrefix(databaseURL, "file:"):
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database URL scheme: %q", schemeOf(databaseURL))
	}
}

func schemeOf(raw string) string {
	if i := strings.Index(raw, ":"); i >= 0 {
		return raw[:i]
	}
	return raw
}
