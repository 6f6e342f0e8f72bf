package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/costtrack/costtrack/internal/model"
)

// SQLite is a Store backed by an embedded SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens the SQLite database at path. ":memory:" opens a private
// in-memory database that lives as long as the store.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// A single connection serializes writers and keeps an in-memory
	// database alive for the lifetime of the pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return &SQLite{db: db}, nil
}

func sqliteDSN(path string) string {
	const pragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	if path == "" || path == ":memory:" {
		return "file::memory:?" + pragmas
	}
	if strings.HasPrefix(path, "file:") {
		if strings.Contains(path, "?") {
			return path + "&" + pragmas
		}
		return path + "?" + pragmas
	}
	return "file:" + path + "?" + pragmas + "&_pragma=journal_mode(WAL)"
}

// Dialect implements Store.
func (s *SQLite) Dialect() Dialect { return DialectSQLite }

// DB returns the underlying handle, used to run migrations against the same database.
func (s *SQLite) DB() *sql.DB { return s.db }

// Ping checks database connectivity.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateUser inserts user and fills in its ID.
func (s *SQLite) CreateUser(ctx context.Context, user *model.User) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_name, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?)`,
		user.UserName, user.PasswordHash, user.CreatedAt.UTC(), user.UpdatedAt.UTC(),
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrUserNameExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read user id: %w", err)
	}
	user.ID = id
	return nil
}

// GetUserByID retrieves a user by id.
func (s *SQLite) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_name, password_hash, created_at, updated_at
		FROM users WHERE id = ?`, id)
	user, err := scanSQLiteUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

// GetUserByUserName retrieves a user by user name.
func (s *SQLite) GetUserByUserName(ctx context.Context, userName string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_name, password_hash, created_at, updated_at
		FROM users WHERE user_name = ?`, userName)
	user, err := scanSQLiteUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by name: %w", err)
	}
	return user, nil
}

// CreateCost inserts cost and fills in its ID.
func (s *SQLite) CreateCost(ctx context.Context, cost *model.Cost) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO costs (user_id, description, amount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		cost.UserID, cost.Description, cost.Amount, cost.CreatedAt.UTC(), cost.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create cost: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read cost id: %w", err)
	}
	cost.ID = id
	return nil
}

// GetCost retrieves a cost by id regardless of owner.
func (s *SQLite) GetCost(ctx context.Context, id int64) (*model.Cost, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, description, amount, created_at, updated_at
		FROM costs WHERE id = ?`, id)

	var cost model.Cost
	err := row.Scan(&cost.ID, &cost.UserID, &cost.Description, &cost.Amount, &cost.CreatedAt, &cost.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCostNotFound
		}
		return nil, fmt.Errorf("failed to get cost: %w", err)
	}
	return &cost, nil
}

// ListCostsByUser returns the costs of userID, oldest first.
func (s *SQLite) ListCostsByUser(ctx context.Context, userID int64) ([]model.Cost, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, description, amount, created_at, updated_at
		FROM costs WHERE user_id = ?
		ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list costs: %w", err)
	}
	defer rows.Close()

	costs := make([]model.Cost, 0)
	for rows.Next() {
		var cost model.Cost
		if err := rows.Scan(&cost.ID, &cost.UserID, &cost.Description, &cost.Amount, &cost.CreatedAt, &cost.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cost: %w", err)
		}
		costs = append(costs, cost)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list costs: %w", err)
	}
	return costs, nil
}

// UpdateCost writes description, amount and updated_at of cost.
func (s *SQLite) UpdateCost(ctx context.Context, cost *model.Cost) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE costs SET description = ?, amount = ?, updated_at = ?
		WHERE id = ?`,
		cost.Description, cost.Amount, cost.UpdatedAt.UTC(), cost.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update cost: %w", err)
	}
	return requireAffected(res, ErrCostNotFound)
}

// DeleteCost removes a cost.
func (s *SQLite) DeleteCost(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM costs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete cost: %w", err)
	}
	return requireAffected(res, ErrCostNotFound)
}

// InsertActivities inserts events in one transaction, skipping duplicates.
func (s *SQLite) InsertActivities(ctx context.Context, events []model.ActivityEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin activity insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO activity (event_id, user_id, cost_id, action, amount, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("prepare activity insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i, e := range events {
		res, err := stmt.ExecContext(ctx, e.EventID, e.UserID, e.CostID, string(e.Action), e.Amount, e.OccurredAt.UTC())
		if err != nil {
			return 0, fmt.Errorf("insert activity %d: %w", i, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit activity insert: %w", err)
	}
	return inserted, nil
}

// ListActivity returns the newest activity of userID.
func (s *SQLite) ListActivity(ctx context.Context, userID int64, limit int) ([]model.ActivityEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, user_id, cost_id, action, amount, occurred_at
		FROM activity WHERE user_id = ?
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	events := make([]model.ActivityEvent, 0)
	for rows.Next() {
		var e model.ActivityEvent
		var action string
		if err := rows.Scan(&e.ID, &e.EventID, &e.UserID, &e.CostID, &action, &e.Amount, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		e.Action = model.ActivityAction(action)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	return events, nil
}

// PruneActivity deletes activity that occurred before the cutoff.
func (s *SQLite) PruneActivity(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM activity WHERE occurred_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune activity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to prune activity: %w", err)
	}
	return n, nil
}

func scanSQLiteUser(row *sql.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(&user.ID, &user.UserName, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
