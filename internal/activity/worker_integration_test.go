//go:build integration

package activity

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costtrack/costtrack/internal/metrics"
	"github.com/costtrack/costtrack/internal/testutil"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	opts, err := redis.ParseURL(testutil.RequireEnv(t, "REDIS_URL"))
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, testutil.FlushRedis(context.Background(), client))
	return client
}

func TestIntegrationWorker_DrainsStream(t *testing.T) {
	ctx := context.Background()
	client := newRedisClient(t)
	store := testutil.NewSQLiteStore(t)
	user := testutil.NewTestUser(t, store, "alice")
	cost := testutil.NewTestCost(t, store, user.ID, "rent", 900)

	rec := metrics.NewInMemory()
	pub := NewStreamPublisher(client, discardLogger(), rec)

	e := validEvent()
	e.UserID, e.CostID = user.ID, cost.ID
	_, err := pub.Add(ctx, e)
	require.NoError(t, err)
	// Redelivery of the same event must not duplicate the row.
	_, err = pub.Add(ctx, e)
	require.NoError(t, err)
	_, err = client.XAdd(ctx, &redis.XAddArgs{Stream: StreamKey, Values: map[string]any{"payload": "{"}}).Result()
	require.NoError(t, err)

	w := NewWorker(client, store, discardLogger(), NewConsumerID(), rec)
	w.SetBlockTimeout(100 * time.Millisecond)
	require.NoError(t, w.ensureConsumerGroup(ctx))

	inserted, err := w.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	events, err := store.ListActivity(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, e.EventID, events[0].EventID)

	pending, err := client.XPending(ctx, StreamKey, ConsumerGroup).Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)

	dlq, err := client.XLen(ctx, DeadLetterStreamKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), dlq)
	assert.Equal(t, uint64(1), rec.Snapshot().Get("activity_processed:dead_lettered"))
}

func TestIntegrationWorker_ShutdownStopsRun(t *testing.T) {
	client := newRedisClient(t)
	store := testutil.NewSQLiteStore(t)
	w := NewWorker(client, store, discardLogger(), NewConsumerID(), nil)
	w.SetBlockTimeout(100 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		groups, err := client.XInfoGroups(context.Background(), StreamKey).Result()
		return err == nil && len(groups) == 1
	}, 2*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Shutdown(ctx))
	assert.NoError(t, <-done)
}
