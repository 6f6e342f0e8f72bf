package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/costtrack/costtrack/internal/activity"
	"github.com/costtrack/costtrack/internal/metrics"
	"github.com/costtrack/costtrack/internal/model"
)

// DefaultQueueSize bounds events waiting for delivery.
const DefaultQueueSize = 1000

// Options configures a Notifier.
type Options struct {
	URL    string
	Secret string

	QueueSize   int
	MaxAttempts int
	RetryDelays []time.Duration
	Client      *http.Client
	Now         func() time.Time
}

// Payload is the JSON body of a delivery.
type Payload struct {
	EventType  string      `json:"event_type"`
	EventID    string      `json:"event_id"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       PayloadData `json:"data"`
}

// PayloadData carries the cost fields of an activity event.
type PayloadData struct {
	UserID int64   `json:"user_id"`
	CostID int64   `json:"cost_id"`
	Amount float64 `json:"amount"`
}

func newPayload(e model.ActivityEvent) Payload {
	return Payload{
		EventType:  "cost." + string(e.Action),
		EventID:    e.EventID,
		OccurredAt: e.OccurredAt.UTC(),
		Data: PayloadData{
			UserID: e.UserID,
			CostID: e.CostID,
			Amount: e.Amount,
		},
	}
}

// Notifier forwards activity events to the next publisher and posts each one
// to a webhook endpoint from a background goroutine. Delivery is at least
// once; receivers dedupe on the delivery id, which is the event id.
type Notifier struct {
	next    activity.Publisher
	opts    Options
	logger  *slog.Logger
	metrics metrics.Recorder

	mu      sync.RWMutex
	started bool
	closed  bool
	queue   chan model.ActivityEvent

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewNotifier creates a Notifier. Call Start to begin delivering.
func NewNotifier(next activity.Publisher, opts Options, logger *slog.Logger, recorder metrics.Recorder) *Notifier {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryDelays == nil {
		opts.RetryDelays = DefaultRetryDelays
	}
	if opts.Client == nil {
		opts.Client = NewHTTPClient()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Notifier{
		next:    next,
		opts:    opts,
		logger:  logger.With("component", "webhook", "host", ExtractHost(opts.URL)),
		metrics: recorder,
		queue:   make(chan model.ActivityEvent, opts.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Start runs the delivery loop in the background.
func (n *Notifier) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started || n.closed {
		return
	}
	n.started = true
	go n.run()
}

// Publish hands the event to the next publisher and queues it for delivery.
// A full queue drops the notification, never the event.
func (n *Notifier) Publish(ctx context.Context, event model.ActivityEvent) {
	n.next.Publish(ctx, event)

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.metrics.IncWebhookDelivery("dropped")
		return
	}
	select {
	case n.queue <- event:
	default:
		n.logger.Warn("webhook queue full, dropping notification", "event_id", event.EventID)
		n.metrics.IncWebhookDelivery("dropped")
	}
}

// Shutdown stops accepting events and waits for queued ones to be delivered.
// When ctx expires first, in-flight retries are abandoned.
func (n *Notifier) Shutdown(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	started := n.started
	n.mu.Unlock()
	if !started {
		return nil
	}

	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		n.cancel()
		<-n.done
		return ctx.Err()
	}
}

func (n *Notifier) run() {
	defer close(n.done)
	for event := range n.queue {
		n.deliver(n.ctx, event)
	}
}

func (n *Notifier) deliver(ctx context.Context, event model.ActivityEvent) {
	body, err := json.Marshal(newPayload(event))
	if err != nil {
		n.logger.Error("marshal webhook payload", "event_id", event.EventID, "error", err)
		n.metrics.IncWebhookDelivery("failed")
		return
	}

	for attempt := 0; attempt < n.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			n.metrics.IncWebhookDelivery("retried")
			if !sleep(ctx, NextRetryDelay(n.opts.RetryDelays, attempt-1)) {
				break
			}
		}

		status, err := n.send(ctx, event.EventID, body)
		if err == nil && status >= 200 && status < 300 {
			n.logger.Debug("webhook delivered", "event_id", event.EventID, "attempt", attempt+1)
			n.metrics.IncWebhookDelivery("delivered")
			return
		}

		n.logger.Warn("webhook delivery attempt failed",
			"event_id", event.EventID,
			"attempt", attempt+1,
			"http_status", status,
			"error", err,
		)
		if err == nil && !retryable(status) {
			break
		}
	}

	n.logger.Error("webhook delivery failed", "event_id", event.EventID)
	n.metrics.IncWebhookDelivery("failed")
}

// send posts one signed delivery and returns the response status.
func (n *Notifier) send(ctx context.Context, deliveryID string, body []byte) (int, error) {
	ts := n.opts.Now().Unix()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.opts.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	setHeaders(req, GenerateSignature(n.opts.Secret, ts, body), strconv.FormatInt(ts, 10), deliveryID)

	resp, err := n.opts.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, nil
}

// sleep waits for d, returning false if ctx is done first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
