package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Recorder = (*NoopRecorder)(nil)
	_ Recorder = (*InMemoryRecorder)(nil)
	_ Recorder = (*PrometheusRecorder)(nil)
)

func TestInMemoryRecorder(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.IncAuthEvent("login", "success")
	m.IncAuthEvent("login", "success")
	m.IncAuthEvent("login", "failure")
	m.IncCostMutation("created")
	m.ObserveActivityBatchSize(4)
	m.ObserveHTTPRequest("GET", "/costs", 200, 10*time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.Get("auth:login:success"))
	assert.Equal(t, uint64(1), snap.Get("auth:login:failure"))
	assert.Equal(t, uint64(1), snap.Get("cost:created"))
	assert.Equal(t, uint64(4), snap.Get("activity_batch_events"))
	assert.Equal(t, uint64(1), snap.Get("http:GET:/costs:200"))
	assert.Equal(t, uint64(1), snap.HTTPRequests)
	assert.Equal(t, uint64(0), snap.Get("missing"))

	// Snapshots are copies.
	snap.Counters["cost:created"] = 99
	assert.Equal(t, uint64(1), m.Snapshot().Get("cost:created"))
}

func TestPrometheusRecorder(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg)

	p.IncCostMutation("created")
	p.IncCostMutation("created")
	p.IncRateLimited("auth")
	p.ObserveHTTPRequest("POST", "/costs", 201, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.costMutations.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.rateLimited.WithLabelValues("auth")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.httpRequests.WithLabelValues("POST", "/costs", "201")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["costtrack_cost_mutations_total"])
	assert.True(t, names["costtrack_http_request_duration_seconds"])
}
