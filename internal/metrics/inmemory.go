package metrics

import (
	"fmt"
	"sync"
	"time"
)

// Snapshot captures current in-memory counters, keyed by metric and labels,
// e.g. "auth:login:success" or "cost:created".
type Snapshot struct {
	Counters        map[string]uint64
	HTTPRequests    uint64
	HTTPDurationSum time.Duration
}

// Get returns a counter value, 0 when absent.
func (s Snapshot) Get(key string) uint64 {
	return s.Counters[key]
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu              sync.Mutex
	counters        map[string]uint64
	httpRequests    uint64
	httpDurationSum time.Duration
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{counters: make(map[string]uint64)}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	counters := make(map[string]uint64, len(m.counters))
	for k, v := range m.counters {
		counters[k] = v
	}
	return Snapshot{
		Counters:        counters,
		HTTPRequests:    m.httpRequests,
		HTTPDurationSum: m.httpDurationSum,
	}
}

func (m *InMemoryRecorder) inc(key string, n uint64) {
	m.mu.Lock()
	m.counters[key] += n
	m.mu.Unlock()
}

// ObserveHTTPRequest counts the request under "http:<method>:<route>:<status>".
func (m *InMemoryRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	m.mu.Lock()
	m.httpRequests++
	m.httpDurationSum += duration
	m.mu.Unlock()
	m.inc(fmt.Sprintf("http:%s:%s:%d", method, route, status), 1)
}

// IncAuthEvent increments "auth:<event>:<outcome>".
func (m *InMemoryRecorder) IncAuthEvent(event, outcome string) {
	m.inc("auth:"+event+":"+outcome, 1)
}

// IncCostMutation increments "cost:<action>".
func (m *InMemoryRecorder) IncCostMutation(action string) {
	m.inc("cost:"+action, 1)
}

// IncActivityPublished increments "activity_published:<status>".
func (m *InMemoryRecorder) IncActivityPublished(status string) {
	m.inc("activity_published:"+status, 1)
}

// IncActivityProcessed increments "activity_processed:<status>".
func (m *InMemoryRecorder) IncActivityProcessed(status string) {
	m.inc("activity_processed:"+status, 1)
}

// ObserveActivityBatchSize adds size to "activity_batch_events" and counts the batch.
func (m *InMemoryRecorder) ObserveActivityBatchSize(size int) {
	m.inc("activity_batches", 1)
	m.inc("activity_batch_events", uint64(size))
}

// IncRateLimited increments "rate_limited:<scope>".
func (m *InMemoryRecorder) IncRateLimited(scope string) {
	m.inc("rate_limited:"+scope, 1)
}

// IncWebhookDelivery increments "webhook:<status>".
func (m *InMemoryRecorder) IncWebhookDelivery(status string) {
	m.inc("webhook:"+status, 1)
}
