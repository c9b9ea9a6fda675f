package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialpulse/pulse/internal/aggregation"
	"github.com/socialpulse/pulse/pkg/logging"
	"github.com/socialpulse/pulse/pkg/models"
	"github.com/socialpulse/pulse/pkg/testutil"
)

func TestTriggerWorkspaceAggregates(t *testing.T) {
	samples := testutil.NewMemorySampleStore()
	buckets := testutil.NewMemoryBucketStore()
	engine := aggregation.NewEngine(samples, buckets, nil, logging.NewLogger())
	sched := NewScheduler(engine, logging.NewLogger(), nil)

	ref := time.Date(2025, 8, 13, 15, 0, 0, 0, time.UTC)
	ts := time.Date(2025, 8, 13, 9, 0, 0, 0, time.UTC)
	require.NoError(t, samples.InsertSamples(context.Background(), []models.Sample{
		testutil.AccountSample("ws-1", "acc-1", "instagram", ts, 900),
	}))

	require.NoError(t, sched.TriggerWorkspace(context.Background(), "ws-1", models.PeriodDaily, ref))
	assert.Equal(t, 1, buckets.Len())
}

func TestTriggerAllSweepsEveryWorkspace(t *testing.T) {
	samples := testutil.NewMemorySampleStore()
	buckets := testutil.NewMemoryBucketStore()
	engine := aggregation.NewEngine(samples, buckets, nil, logging.NewLogger())
	sched := NewScheduler(engine, logging.NewLogger(), nil)

	ref := time.Date(2025, 8, 13, 15, 0, 0, 0, time.UTC)
	ts := time.Date(2025, 8, 13, 9, 0, 0, 0, time.UTC)
	require.NoError(t, samples.InsertSamples(context.Background(), []models.Sample{
		testutil.AccountSample("ws-1", "acc-1", "instagram", ts, 900),
		testutil.AccountSample("ws-2", "acc-2", "tiktok", ts, 400),
	}))

	require.NoError(t, sched.TriggerAll(context.Background(), models.PeriodDaily, ref))
	assert.Equal(t, 2, buckets.Len())
}

func TestStartStopDoesNotPanic(t *testing.T) {
	samples := testutil.NewMemorySampleStore()
	buckets := testutil.NewMemoryBucketStore()
	engine := aggregation.NewEngine(samples, buckets, nil, logging.NewLogger())
	sched := NewScheduler(engine, logging.NewLogger(), nil)

	sched.Start()
	sched.Stop()
}
