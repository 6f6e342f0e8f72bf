package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "costtrack"

// PrometheusRecorder exports metrics through a Prometheus registry.
type PrometheusRecorder struct {
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	authEvents        *prometheus.CounterVec
	costMutations     *prometheus.CounterVec
	activityPublished *prometheus.CounterVec
	activityProcessed *prometheus.CounterVec
	activityBatchSize prometheus.Histogram
	rateLimited       *prometheus.CounterVec
	webhookDeliveries *prometheus.CounterVec
}

// NewPrometheus registers the application collectors on reg.
func NewPrometheus(reg prometheus.Registerer) *PrometheusRecorder {
	f := promauto.With(reg)
	return &PrometheusRecorder{
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_events_total",
			Help:      "Authentication events by type and outcome.",
		}, []string{"event", "outcome"}),
		costMutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cost_mutations_total",
			Help:      "Cost create, update and delete operations.",
		}, []string{"action"}),
		activityPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_events_published_total",
			Help:      "Activity events handed to the pipeline.",
		}, []string{"status"}),
		activityProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_events_processed_total",
			Help:      "Activity events consumed by the worker.",
		}, []string{"status"}),
		activityBatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "activity_batch_size",
			Help:      "Number of events per worker batch.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100},
		}),
		rateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by a rate limiter.",
		}, []string{"scope"}),
		webhookDeliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Activity webhook delivery attempts by outcome.",
		}, []string{"status"}),
	}
}

func (p *PrometheusRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) IncAuthEvent(event, outcome string) {
	p.authEvents.WithLabelValues(event, outcome).Inc()
}

func (p *PrometheusRecorder) IncCostMutation(action string) {
	p.costMutations.WithLabelValues(action).Inc()
}

func (p *PrometheusRecorder) IncActivityPublished(status string) {
	p.activityPublished.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) IncActivityProcessed(status string) {
	p.activityProcessed.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) ObserveActivityBatchSize(size int) {
	p.activityBatchSize.Observe(float64(size))
}

func (p *PrometheusRecorder) IncRateLimited(scope string) {
	p.rateLimited.WithLabelValues(scope).Inc()
}

func (p *PrometheusRecorder) IncWebhookDelivery(status string) {
	p.webhookDeliveries.WithLabelValues(status).Inc()
}
