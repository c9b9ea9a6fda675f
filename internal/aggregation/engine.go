package aggregation

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/socialpulse/pulse/internal/cache"
	"github.com/socialpulse/pulse/internal/store"
	"github.com/socialpulse/pulse/pkg/logging"
	"github.com/socialpulse/pulse/pkg/models"
)

// DefaultWorkers bounds how many workspaces aggregate concurrently during a
// sweep so one slow tenant cannot stall the rest.
const DefaultWorkers = 10

// Engine turns windows of raw samples into period roll-ups. It is the sole
// writer of aggregated buckets.
type Engine struct {
	samples store.SampleStore
	buckets store.BucketStore
	cache   cache.Store
	logger  logging.Logger
	workers int
}

// NewEngine creates an aggregation engine. cache may be nil when no cache is
// configured; invalidation is then skipped.
func NewEngine(samples store.SampleStore, buckets store.BucketStore, cacheStore cache.Store, logger logging.Logger) *Engine {
	return &Engine{
		samples: samples,
		buckets: buckets,
		cache:   cacheStore,
		logger:  logger,
		workers: DefaultWorkers,
	}
}

// PeriodWindow computes the [start, end) window containing ref for a period.
// Daily windows are UTC midnight to midnight, weekly windows are
// Monday-aligned, monthly windows span the calendar month.
func PeriodWindow(period models.Period, ref time.Time) (time.Time, time.Time) {
	ref = ref.UTC()
	day := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)

	switch period {
	case models.PeriodWeekly:
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		start := day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)
	case models.PeriodMonthly:
		start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	default:
		return day, day.AddDate(0, 0, 1)
	}
}

// Aggregate rolls up one workspace's samples for the period containing ref.
// Re-invoking for the same (workspace, period, ref) overwrites the same
// buckets with identical values; the result is a pure function of the sample
// window.
func (e *Engine) Aggregate(ctx context.Context, workspaceID string, period models.Period, ref time.Time) error {
	start, end := PeriodWindow(period, ref)

	samples, err := e.samples.ListSamples(ctx, store.SampleQuery{
		WorkspaceID: workspaceID,
		From:        start,
		To:          end,
	})
	if err != nil {
		return fmt.Errorf("failed to load samples for %s: %w", workspaceID, err)
	}
	if len(samples) == 0 {
		return nil
	}

	groups := groupByAccountPlatform(samples)

	var failed int
	for _, group := range groups {
		bucket := computeBucket(group, workspaceID, period, start, end)
		if err := e.buckets.UpsertBucket(ctx, bucket); err != nil {
			// One account failing must not abort the rest of the workspace
			e.logger.WithError(err).WithFields(logging.Fields{
				"workspace_id": workspaceID,
				"account_id":   bucket.AccountID,
				"platform":     bucket.Platform,
				"period":       period,
			}).Error("Failed to upsert aggregated bucket")
			failed++
		}
	}

	if failed == len(groups) {
		return fmt.Errorf("all %d bucket upserts failed for workspace %s", failed, workspaceID)
	}

	if e.cache != nil {
		e.cache.Invalidate(ctx, cache.KeyPrefix(workspaceID))
	}

	e.logger.WithFields(logging.Fields{
		"workspace_id": workspaceID,
		"period":       period,
		"period_start": start,
		"buckets":      len(groups) - failed,
		"samples":      len(samples),
	}).Info("Aggregated workspace")

	return nil
}

// AggregateAll sweeps every workspace with recent samples, processing up to
// e.workers workspaces concurrently. Per-workspace failures are logged and
// skipped so the sweep always covers the remaining tenants.
func (e *Engine) AggregateAll(ctx context.Context, period models.Period, ref time.Time) error {
	start, end := PeriodWindow(period, ref)
	lookback := time.Since(start)
	if lookback < end.Sub(start) {
		lookback = end.Sub(start)
	}

	workspaces, err := e.samples.ActiveWorkspaces(ctx, lookback)
	if err != nil {
		return fmt.Errorf("failed to list active workspaces: %w", err)
	}
	if len(workspaces) == 0 {
		return nil
	}

	sem := make(chan struct{}, e.workers)
	var wg sync.WaitGroup
	for _, workspaceID := range workspaces {
		wg.Add(1)
		sem <- struct{}{}
		go func(wsID string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := e.Aggregate(ctx, wsID, period, ref); err != nil {
				e.logger.WithError(err).WithFields(logging.Fields{
					"workspace_id": wsID,
					"period":       period,
				}).Error("Workspace aggregation failed, continuing sweep")
			}
		}(workspaceID)
	}
	wg.Wait()

	e.logger.WithFields(logging.Fields{
		"period":     period,
		"workspaces": len(workspaces),
	}).Info("Aggregation sweep complete")

	return nil
}

type groupKey struct {
	accountID string
	platform  string
}

func groupByAccountPlatform(samples []models.Sample) map[groupKey][]models.Sample {
	groups := make(map[groupKey][]models.Sample)
	for _, sample := range samples {
		key := groupKey{accountID: sample.AccountID, platform: sample.Platform}
		groups[key] = append(groups[key], sample)
	}
	return groups
}

// computeBucket derives one roll-up from a group of samples already ordered
// by timestamp.
func computeBucket(group []models.Sample, workspaceID string, period models.Period, start, end time.Time) *models.AggregatedBucket {
	bucket := &models.AggregatedBucket{
		WorkspaceID: workspaceID,
		AccountID:   group[0].AccountID,
		Platform:    group[0].Platform,
		Period:      period,
		PeriodStart: start,
		PeriodEnd:   end,
	}

	var rateSum float64
	var rateCount int
	minRate := math.Inf(1)
	maxRate := math.Inf(-1)

	var firstFollowers, lastFollowers int64
	followerSamples := 0

	for _, sample := range group {
		m := sample.Metrics
		bucket.TotalLikes += m.Likes
		bucket.TotalComments += m.Comments
		bucket.TotalShares += m.Shares
		bucket.TotalSaves += m.Saves
		bucket.TotalImpressions += m.Impressions
		bucket.TotalReach += m.Reach
		bucket.TotalViews += m.Views

		if sample.Kind == models.SampleKindPost {
			// Every post sample counts, including repeat snapshots of one post
			bucket.PostCount++
			rate := m.EngagementRate()
			rateSum += rate
			rateCount++
			if rate < minRate {
				minRate = rate
			}
			if rate > maxRate {
				maxRate = rate
			}
		}

		if m.Followers > 0 {
			if followerSamples == 0 {
				firstFollowers = m.Followers
			}
			lastFollowers = m.Followers
			followerSamples++
		}
	}

	if rateCount > 0 {
		bucket.AvgEngagementRate = round2(rateSum / float64(rateCount))
		bucket.MinEngagementRate = round2(minRate)
		bucket.MaxEngagementRate = round2(maxRate)
	}

	// Growth needs at least two follower-bearing samples in the window
	if followerSamples >= 2 {
		bucket.FollowerGrowth = lastFollowers - firstFollowers
		if firstFollowers != 0 {
			bucket.FollowerGrowthRate = round2(float64(bucket.FollowerGrowth) / float64(firstFollowers) * 100)
		}
	}

	return bucket
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
