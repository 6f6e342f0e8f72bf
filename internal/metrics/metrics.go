// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
type Recorder interface {
	// HTTP metrics. route is the chi route pattern, never the raw path.
	ObserveHTTPRequest(method, route string, status int, duration time.Duration)

	// Auth metrics. event: signup, login, refresh, logout. outcome: success, failure.
	IncAuthEvent(event, outcome string)

	// Cost mutations. action: created, updated, deleted.
	IncCostMutation(action string)

	// Activity pipeline metrics
	IncActivityPublished(status string) // status: "success" or "dropped"
	IncActivityProcessed(status string) // status: "success", "failed", "skipped"
	ObserveActivityBatchSize(size int)

	// Requests rejected by a limiter. scope: global, auth.
	IncRateLimited(scope string)

	// Webhook notifications. status: delivered, retried, failed, dropped.
	IncWebhookDelivery(status string)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
