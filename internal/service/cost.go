package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/costtrack/costtrack/internal/activity"
	"github.com/costtrack/costtrack/internal/metrics"
	"github.com/costtrack/costtrack/internal/model"
	"github.com/costtrack/costtrack/internal/repository"
)

// Activity listing bounds.
const (
	DefaultActivityLimit = 20
	MaxActivityLimit     = 100
)

// CostInput is the body of create and update requests. Nil fields were
// absent from the request.
type CostInput struct {
	Description *string  `json:"description"`
	Amount      *float64 `json:"amount"`
}

// validate checks present fields; when partial is false both are required.
func (in CostInput) validate(partial bool) error {
	v := &ValidationError{}
	if in.Description == nil {
		if !partial {
			v.add("description", "field required")
		}
	} else {
		checkLength(v, "description", *in.Description, model.MaxDescriptionLength)
	}

	if in.Amount == nil {
		if !partial {
			v.add("amount", "field required")
		}
	} else if a := *in.Amount; math.IsNaN(a) || math.IsInf(a, 0) || a <= 0 {
		v.add("amount", "must be greater than 0")
	}
	return v.err()
}

func (in CostInput) update() model.CostUpdate {
	return model.CostUpdate{Description: in.Description, Amount: in.Amount}
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, model.ActivityEvent) {}

// CostService handles cost business logic. Every operation is scoped to the
// calling user.
type CostService struct {
	costs     repository.CostStore
	activity  repository.ActivityStore
	publisher activity.Publisher
	logger    *slog.Logger
	metrics   metrics.Recorder
	now       func() time.Time
}

// NewCostService creates a new CostService. A nil publisher drops events.
func NewCostService(costs repository.CostStore, activityStore repository.ActivityStore, publisher activity.Publisher, logger *slog.Logger, recorder metrics.Recorder) *CostService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &CostService{
		costs:     costs,
		activity:  activityStore,
		publisher: publisher,
		logger:    logger.With("component", "costs"),
		metrics:   recorder,
		now:       time.Now,
	}
}

// Create stores a new cost owned by userID.
func (s *CostService) Create(ctx context.Context, userID int64, in CostInput) (*model.Cost, error) {
	if err := in.validate(false); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	cost := &model.Cost{
		UserID:      userID,
		Description: *in.Description,
		Amount:      *in.Amount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.costs.CreateCost(ctx, cost); err != nil {
		return nil, fmt.Errorf("create cost: %w", err)
	}

	s.record(ctx, cost, model.ActionCreated)
	return cost, nil
}

// Get returns a cost if userID owns it.
func (s *CostService) Get(ctx context.Context, userID, id int64) (*model.Cost, error) {
	cost, err := s.costs.GetCost(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCostNotFound) {
			return nil, ErrCostNotFound
		}
		return nil, fmt.Errorf("get cost: %w", err)
	}
	if cost.UserID != userID {
		return nil, ErrForbidden
	}
	return cost, nil
}

// List returns the caller's costs, oldest first.
func (s *CostService) List(ctx context.Context, userID int64) ([]model.Cost, error) {
	costs, err := s.costs.ListCostsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list costs: %w", err)
	}
	return costs, nil
}

// Update applies the present fields of in. An empty update returns the
// cost unchanged.
func (s *CostService) Update(ctx context.Context, userID, id int64, in CostInput) (*model.Cost, error) {
	if err := in.validate(true); err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	upd := in.update()
	if upd.IsEmpty() {
		return current, nil
	}

	next := upd.Apply(*current)
	next.UpdatedAt = s.now().UTC()
	if err := s.costs.UpdateCost(ctx, &next); err != nil {
		if errors.Is(err, repository.ErrCostNotFound) {
			return nil, ErrCostNotFound
		}
		return nil, fmt.Errorf("update cost: %w", err)
	}

	s.record(ctx, &next, model.ActionUpdated)
	return &next, nil
}

// Delete removes a cost owned by userID.
func (s *CostService) Delete(ctx context.Context, userID, id int64) error {
	cost, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.costs.DeleteCost(ctx, id); err != nil {
		if errors.Is(err, repository.ErrCostNotFound) {
			return ErrCostNotFound
		}
		return fmt.Errorf("delete cost: %w", err)
	}

	s.record(ctx, cost, model.ActionDeleted)
	return nil
}

// Summary totals the caller's costs.
func (s *CostService) Summary(ctx context.Context, userID int64) (model.CostSummary, error) {
	costs, err := s.List(ctx, userID)
	if err != nil {
		return model.CostSummary{}, err
	}
	return summarize(costs), nil
}

func summarize(costs []model.Cost) model.CostSummary {
	total := decimal.Zero
	for _, c := range costs {
		total = total.Add(decimal.NewFromFloat(c.Amount))
	}
	avg := decimal.Zero
	if len(costs) > 0 {
		avg = total.Div(decimal.NewFromInt(int64(len(costs))))
	}
	return model.CostSummary{
		Count:   len(costs),
		Total:   total.StringFixed(2),
		Average: avg.StringFixed(2),
	}
}

// Activity returns the caller's most recent activity. limit <= 0 selects
// the default; larger values are capped.
func (s *CostService) Activity(ctx context.Context, userID int64, limit int) ([]model.ActivityEvent, error) {
	switch {
	case limit <= 0:
		limit = DefaultActivityLimit
	case limit > MaxActivityLimit:
		limit = MaxActivityLimit
	}
	events, err := s.activity.ListActivity(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return events, nil
}

func (s *CostService) record(ctx context.Context, cost *model.Cost, action model.ActivityAction) {
	s.metrics.IncCostMutation(string(action))
	now := s.now().UTC()
	s.publisher.Publish(ctx, model.ActivityEvent{
		EventID:    activity.NewEventID(now),
		UserID:     cost.UserID,
		CostID:     cost.ID,
		Action:     action,
		Amount:     cost.Amount,
		OccurredAt: now,
	})
}
