package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) ObserveHTTPRequest(string, string, int, time.Duration) {}
func (n *NoopRecorder) IncAuthEvent(string, string)                           {}
func (n *NoopRecorder) IncCostMutation(string)                                {}
func (n *NoopRecorder) IncActivityPublished(string)                           {}
func (n *NoopRecorder) IncActivityProcessed(string)                           {}
func (n *NoopRecorder) ObserveActivityBatchSize(int)                          {}
func (n *NoopRecorder) IncRateLimited(string)                                 {}
func (n *NoopRecorder) IncWebhookDelivery(string)                             {}
