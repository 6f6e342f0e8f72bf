package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/costtrack/costtrack/internal/model"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store with a connection pool.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Dialect implements Store.
func (p *Postgres) Dialect() Dialect { return DialectPostgres }

// Ping checks database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// Pool returns the underlying connection pool.
// Use sparingly - prefer adding methods to Postgres.
func (p *Postgres) Pool() *pgxpool.Pool {
	return p.pool
}

// CreateUser inserts user and fills in its ID.
func (p *Postgres) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (user_name, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := p.pool.QueryRow(ctx, query,
		user.UserName,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		if isPgUniqueViolation(err) {
			return ErrUserNameExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by id.
func (p *Postgres) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	query := `
		SELECT id, user_name, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	user, err := scanUser(p.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

// GetUserByUserName retrieves a user by user name.
func (p *Postgres) GetUserByUserName(ctx context.Context, userName string) (*model.User, error) {
	query := `
		SELECT id, user_name, password_hash, created_at, updated_at
		FROM users
		WHERE user_name = $1
	`
	user, err := scanUser(p.pool.QueryRow(ctx, query, userName))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by name: %w", err)
	}
	return user, nil
}

// CreateCost inserts cost and fills in its ID.
func (p *Postgres) CreateCost(ctx context.Context, cost *model.Cost) error {
	query := `
		INSERT INTO costs (user_id, description, amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := p.pool.QueryRow(ctx, query,
		cost.UserID,
		cost.Description,
		cost.Amount,
		cost.CreatedAt,
		cost.UpdatedAt,
	).Scan(&cost.ID)
	if err != nil {
		return fmt.Errorf("failed to create cost: %w", err)
	}

	return nil
}

// GetCost retrieves a cost by id regardless of owner.
func (p *Postgres) GetCost(ctx context.Context, id int64) (*model.Cost, error) {
	query := `
		SELECT id, user_id, description, amount, created_at, updated_at
		FROM costs
		WHERE id = $1
	`
	cost, err := scanCost(p.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get cost: %w", err)
	}
	return cost, nil
}

// ListCostsByUser returns the costs of userID, oldest first.
func (p *Postgres) ListCostsByUser(ctx context.Context, userID int64) ([]model.Cost, error) {
	query := `
		SELECT id, user_id, description, amount, created_at, updated_at
		FROM costs
		WHERE user_id = $1
		ORDER BY id ASC
	`

	rows, err := p.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list costs: %w", err)
	}
	defer rows.Close()

	costs := make([]model.Cost, 0)
	for rows.Next() {
		cost, err := scanCost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cost: %w", err)
		}
		costs = append(costs, *cost)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list costs: %w", err)
	}

	return costs, nil
}

// UpdateCost writes description, amount and updated_at of cost.
func (p *Postgres) UpdateCost(ctx context.Context, cost *model.Cost) error {
	query := `
		UPDATE costs
		SET description = $2, amount = $3, updated_at = $4
		WHERE id = $1
	`

	tag, err := p.pool.Exec(ctx, query, cost.ID, cost.Description, cost.Amount, cost.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update cost: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCostNotFound
	}
	return nil
}

// DeleteCost removes a cost.
func (p *Postgres) DeleteCost(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM costs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete cost: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCostNotFound
	}
	return nil
}

// InsertActivities inserts events in one batch with idempotency via ON CONFLICT DO NOTHING.
func (p *Postgres) InsertActivities(ctx context.Context, events []model.ActivityEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO activity (event_id, user_id, cost_id, action, amount, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(query, e.EventID, e.UserID, e.CostID, string(e.Action), e.Amount, e.OccurredAt)
	}

	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for i := range events {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("batch insert activity %d: %w", i, err)
		}
		inserted += int(tag.RowsAffected())
	}

	return inserted, nil
}

// ListActivity returns the newest activity of userID.
func (p *Postgres) ListActivity(ctx context.Context, userID int64, limit int) ([]model.ActivityEvent, error) {
	query := `
		SELECT id, event_id, user_id, cost_id, action, amount, occurred_at
		FROM activity
		WHERE user_id = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2
	`

	rows, err := p.pool.Query(ctx, query, userID, limit)
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
func (p *Postgres) PruneActivity(ctx context.Context, before time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM activity WHERE occurred_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune activity: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(&user.ID, &user.UserName, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func scanCost(row pgx.Row) (*model.Cost, error) {
	var cost model.Cost
	err := row.Scan(&cost.ID, &cost.UserID, &cost.Description, &cost.Amount, &cost.CreatedAt, &cost.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCostNotFound
		}
		return nil, err
	}
	return &cost, nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
