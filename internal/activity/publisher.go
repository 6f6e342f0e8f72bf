// Package activity records cost mutations. Events go either through a Redis
// stream drained by a consumer-group Worker, or straight to the store.
package activity

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/costtrack/costtrack/internal/metrics"
	"github.com/costtrack/costtrack/internal/model"
	"github.com/costtrack/costtrack/internal/repository"
)

const (
	// StreamKey is the Redis stream for activity events.
	StreamKey = "stream:activity"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:activity:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// Publisher accepts activity events. Publishing is best-effort: callers
// never fail a request because an event was dropped.
type Publisher interface {
	Publish(ctx context.Context, event model.ActivityEvent)
}

// NewEventID returns a fresh idempotency key for an event.
func NewEventID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

// payload is the compact wire form written to the stream.
type payload struct {
	EventID    string  `json:"eid"`
	UserID     int64   `json:"uid"`
	CostID     int64   `json:"cid"`
	Action     string  `json:"a"`
	Amount     float64 `json:"amt"`
	OccurredAt int64   `json:"t"` // Unix milliseconds
}

func toPayload(e model.ActivityEvent) payload {
	return payload{
		EventID:    e.EventID,
		UserID:     e.UserID,
		CostID:     e.CostID,
		Action:     string(e.Action),
		Amount:     e.Amount,
		OccurredAt: e.OccurredAt.UnixMilli(),
	}
}

func (p payload) event() model.ActivityEvent {
	return model.ActivityEvent{
		EventID:    p.EventID,
		UserID:     p.UserID,
		CostID:     p.CostID,
		Action:     model.ActivityAction(p.Action),
		Amount:     p.Amount,
		OccurredAt: time.UnixMilli(p.OccurredAt).UTC(),
	}
}

// StreamPublisher enqueues events to the Redis stream.
type StreamPublisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewStreamPublisher creates a publisher backed by a Redis stream.
func NewStreamPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *StreamPublisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &StreamPublisher{
		redis:   client,
		logger:  logger.With("component", "activity.publisher"),
		metrics: recorder,
	}
}

// Add writes one event to the stream and returns its stream id.
func (p *StreamPublisher) Add(ctx context.Context, event model.ActivityEvent) (string, error) {
	data, err := json.Marshal(toPayload(event))
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	id, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]any{"payload": string(data)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}
	return id, nil
}

// Publish adds the event without blocking the caller. The request context
// is not used so a finished request does not cancel the write.
func (p *StreamPublisher) Publish(_ context.Context, event model.ActivityEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Add(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish activity event",
				"event_id", event.EventID,
				"action", event.Action,
				"error", err,
			)
			p.metrics.IncActivityPublished("dropped")
			return
		}

		p.logger.Debug("activity event published",
			"event_id", event.EventID,
			"stream_id", streamID,
		)
		p.metrics.IncActivityPublished("success")
	}()
}

// DirectPublisher writes events synchronously to the store. It is used
// when no Redis is configured.
type DirectPublisher struct {
	store   repository.ActivityStore
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewDirectPublisher creates a publisher that inserts straight into store.
func NewDirectPublisher(store repository.ActivityStore, logger *slog.Logger, recorder metrics.Recorder) *DirectPublisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &DirectPublisher{
		store:   store,
		logger:  logger.With("component", "activity.direct"),
		metrics: recorder,
	}
}

// Publish inserts the event, logging failures instead of returning them.
func (p *DirectPublisher) Publish(ctx context.Context, event model.ActivityEvent) {
	if err := Validate(event); err != nil {
		p.logger.Warn("dropping invalid activity event", "event_id", event.EventID, "error", err)
		p.metrics.IncActivityPublished("dropped")
		return
	}
	if _, err := p.store.InsertActivities(context.WithoutCancel(ctx), []model.ActivityEvent{event}); err != nil {
		p.logger.Warn("failed to record activity event",
			"event_id", event.EventID,
			"action", event.Action,
			"error", err,
		)
		p.metrics.IncActivityPublished("dropped")
		return
	}
	p.metrics.IncActivityPublished("success")
	p.metrics.IncActivityProcessed("success")
}
