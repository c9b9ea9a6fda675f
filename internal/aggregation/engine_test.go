package aggregation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialpulse/pulse/pkg/logging"
	"github.com/socialpulse/pulse/pkg/models"
	"github.com/socialpulse/pulse/pkg/testutil"
)

func TestPeriodWindow(t *testing.T) {
	// Wednesday 2025-08-13 15:42 UTC
	ref := time.Date(2025, 8, 13, 15, 42, 0, 0, time.UTC)

	tests := []struct {
		name   string
		period models.Period
		start  time.Time
		end    time.Time
	}{
		{
			name:   "daily is midnight aligned",
			period: models.PeriodDaily,
			start:  time.Date(2025, 8, 13, 0, 0, 0, 0, time.UTC),
			end:    time.Date(2025, 8, 14, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "weekly is Monday aligned",
			period: models.PeriodWeekly,
			start:  time.Date(2025, 8, 11, 0, 0, 0, 0, time.UTC),
			end:    time.Date(2025, 8, 18, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "monthly spans the calendar month",
			period: models.PeriodMonthly,
			start:  time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
			end:    time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := PeriodWindow(tt.period, ref)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestPeriodWindowWeeklyOnMonday(t *testing.T) {
	monday := time.Date(2025, 8, 11, 0, 0, 0, 0, time.UTC)
	start, end := PeriodWindow(models.PeriodWeekly, monday)
	assert.Equal(t, monday, start)
	assert.Equal(t, monday.AddDate(0, 0, 7), end)
}

func TestAggregateFollowerGrowth(t *testing.T) {
	samples := testutil.NewMemorySampleStore()
	buckets := testutil.NewMemoryBucketStore()
	engine := NewEngine(samples, buckets, nil, logging.NewLogger())

	day := time.Date(2025, 8, 13, 0, 0, 0, 0, time.UTC)
	require.NoError(t, samples.InsertSamples(context.Background(), []models.Sample{
		testutil.AccountSample("ws-1", "acc-1", "instagram", day.Add(1*time.Hour), 1000),
		testutil.AccountSample("ws-1", "acc-1", "instagram", day.Add(22*time.Hour), 1100),
	}))

	require.NoError(t, engine.Aggregate(context.Background(), "ws-1", models.PeriodDaily, day))

	bucket, ok := buckets.Get("ws-1", "acc-1", "instagram", models.PeriodDaily, day)
	require.True(t, ok)
	assert.Equal(t, int64(100), bucket.FollowerGrowth)
	assert.Equal(t, 10.00, bucket.FollowerGrowthRate)
}

func TestAggregateSingleFollowerSampleNoGrowth(t *testing.T) {
	samples := testutil.NewMemorySampleStore()
	buckets := testutil.NewMemoryBucketStore()
	engine := NewEngine(samples, buckets, nil, logging.NewLogger())

	day := time.Date(2025, 8, 13, 0, 0, 0, 0, time.UTC)
	require.NoError(t, samples.InsertSamples(context.Background(), []models.Sample{
		testutil.AccountSample("ws-1", "acc-1", "instagram", day.Add(time.Hour), 1000),
	}))

	require.NoError(t, engine.Aggregate(context.Background(), "ws-1", models.PeriodDaily, day))

	bucket, ok := buckets.Get("ws-1", "acc-1", "instagram", models.PeriodDaily, day)
	require.True(t, ok)
	assert.Equal(t, int64(0), bucket.FollowerGrowth)
	assert.Equal(t, 0.0, bucket.FollowerGrowthRate)
}

func TestAggregateIdempotent(t *testing.T) {
	samples := testutil.NewMemorySampleStore()
	buckets := testutil.NewMemoryBucketStore()
	engine := NewEngine(samples, buckets, nil, logging.NewLogger())

	day := time.Date(2025, 8, 13, 0, 0, 0, 0, time.UTC)
	require.NoError(t, samples.InsertSamples(context.Background(), []models.Sample{
		testutil.AccountSample("ws-1", "acc-1", "instagram", day.Add(time.Hour), 1000),
		testutil.AccountSample("ws-1", "acc-1", "instagram", day.Add(20*time.Hour), 1100),
		testutil.PostSample("ws-1", "acc-1", "instagram", "p1", day.Add(2*time.Hour),
			models.MetricCounts{Likes: 50, Comments: 5, Reach: 1000}),
		testutil.PostSample("ws-1", "acc-1", "instagram", "p2", day.Add(3*time.Hour),
			models.MetricCounts{Likes: 30, Comments: 3, Shares: 2, Reach: 500}),
	}))

	ctx := context.Background()
	require.NoError(t, engine.Aggregate(ctx, "ws-1", models.PeriodDaily, day))
	first, ok := buckets.Get("ws-1", "acc-1", "instagram", models.PeriodDaily, day)
	require.True(t, ok)

	require.NoError(t, engine.Aggregate(ctx, "ws-1", models.PeriodDaily, day))
	second, ok := buckets.Get("ws-1", "acc-1", "instagram", models.PeriodDaily, day)
	require.True(t, ok)

	// Re-running over the unchanged window reproduces identical values
	assert.Equal(t, first, second)
	assert.Equal(t, 1, buckets.Len())
	assert.Equal(t, 2, buckets.UpsertCalls)
}

func TestAggregateBucketValues(t *testing.T) {
	samples := testutil.NewMemorySampleStore()
	buckets := testutil.NewMemoryBucketStore()
	engine := NewEngine(samples, buckets, nil, logging.NewLogger())

	day := time.Date(2025, 8, 13, 0, 0, 0, 0, time.UTC)
	require.NoError(t, samples.InsertSamples(context.Background(), []models.Sample{
		// p1: engagement 55 over reach 1000 = 5.5%
		testutil.PostSample("ws-1", "acc-1", "instagram", "p1", day.Add(2*time.Hour),
			models.MetricCounts{Likes: 50, Comments: 5, Reach: 1000}),
		// p2: engagement 35 over reach 500 = 7%
		testutil.PostSample("ws-1", "acc-1", "instagram", "p2", day.Add(3*time.Hour),
			models.MetricCounts{Likes: 30, Comments: 3, Shares: 2, Reach: 500}),
	}))

	require.NoError(t, engine.Aggregate(context.Background(), "ws-1", models.PeriodDaily, day))

	bucket, ok := buckets.Get("ws-1", "acc-1", "instagram", models.PeriodDaily, day)
	require.True(t, ok)
	assert.Equal(t, int64(80), bucket.TotalLikes)
	assert.Equal(t, int64(8), bucket.TotalComments)
	assert.Equal(t, int64(2), bucket.TotalShares)
	assert.Equal(t, int64(1500), bucket.TotalReach)
	assert.Equal(t, 2, bucket.PostCount)
	assert.Equal(t, 6.25, bucket.AvgEngagementRate)
	assert.Equal(t, 5.5, bucket.MinEngagementRate)
	assert.Equal(t, 7.0, bucket.MaxEngagementRate)
}

func TestAggregatePostCountCountsRepeatSnapshots(t *testing.T) {
	samples := testutil.NewMemorySampleStore()
	buckets := testutil.NewMemoryBucketStore()
	engine := NewEngine(samples, buckets, nil, logging.NewLogger())

	day := time.Date(2025, 8, 13, 0, 0, 0, 0, time.UTC)
	// The collector polled p1 twice in one window; both snapshots count
	require.NoError(t, samples.InsertSamples(context.Background(), []models.Sample{
		testutil.PostSample("ws-1", "acc-1", "instagram", "p1", day.Add(2*time.Hour),
			models.MetricCounts{Likes: 40, Reach: 800}),
		testutil.PostSample("ws-1", "acc-1", "instagram", "p1", day.Add(8*time.Hour),
			models.MetricCounts{Likes: 60, Reach: 1200}),
	}))

	require.NoError(t, engine.Aggregate(context.Background(), "ws-1", models.PeriodDaily, day))

	bucket, ok := buckets.Get("ws-1", "acc-1", "instagram", models.PeriodDaily, day)
	require.True(t, ok)
	assert.Equal(t, 2, bucket.PostCount)
	assert.Equal(t, int64(100), bucket.TotalLikes)
}

func TestAggregateZeroReachRate(t *testing.T) {
	samples := testutil.NewMemorySampleStore()
	buckets := testutil.NewMemoryBucketStore()
	engine := NewEngine(samples, buckets, nil, logging.NewLogger())

	day := time.Date(2025, 8, 13, 0, 0, 0, 0, time.UTC)
	require.NoError(t, samples.InsertSamples(context.Background(), []models.Sample{
		testutil.PostSample("ws-1", "acc-1", "instagram", "p1", day.Add(time.Hour),
			models.MetricCounts{Likes: 100}),
	}))

	require.NoError(t, engine.Aggregate(context.Background(), "ws-1", models.PeriodDaily, day))

	bucket, ok := buckets.Get("ws-1", "acc-1", "instagram", models.PeriodDaily, day)
	require.True(t, ok)
	assert.Equal(t, 0.0, bucket.AvgEngagementRate)
}

func TestAggregateAllSweepsActiveWorkspaces(t *testing.T) {
	samples := testutil.NewMemorySampleStore()
	buckets := testutil.NewMemoryBucketStore()
	engine := NewEngine(samples, buckets, nil, logging.NewLogger())

	now := time.Now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	ts := day.Add(time.Hour)
	if ts.After(now) {
		ts = now
	}
	require.NoError(t, samples.InsertSamples(context.Background(), []models.Sample{
		testutil.AccountSample("ws-1", "acc-1", "instagram", ts, 100),
		testutil.AccountSample("ws-2", "acc-2", "tiktok", ts, 200),
	}))

	require.NoError(t, engine.AggregateAll(context.Background(), models.PeriodDaily, now))
	assert.Equal(t, 2, buckets.Len())
}
