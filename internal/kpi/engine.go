package kpi

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/socialpulse/pulse/internal/store"
	"github.com/socialpulse/pulse/pkg/api/pulse"
	"github.com/socialpulse/pulse/pkg/logging"
	"github.com/socialpulse/pulse/pkg/models"
)

// DefaultTopPostsLimit caps ranked post listings when no limit is requested.
const DefaultTopPostsLimit = 10

// PostMetaStore decorates top-post rows with human-readable fields. May be
// nil; decoration is best-effort.
type PostMetaStore interface {
	GetPostMeta(ctx context.Context, workspaceID, postID string) (*store.PostMeta, error)
}

// Query scopes a KPI computation. Start/End are UTC; empty filter slices
// match everything.
type Query struct {
	WorkspaceID string
	Start       time.Time
	End         time.Time
	Platforms   []string
	AccountIDs  []string
}

// Engine computes dashboard-facing derived metrics from raw samples.
type Engine struct {
	samples store.SampleStore
	posts   PostMetaStore
	logger  logging.Logger
}

// NewEngine creates a KPI engine. posts may be nil when no metadata store is
// available.
func NewEngine(samples store.SampleStore, posts PostMetaStore, logger logging.Logger) *Engine {
	return &Engine{samples: samples, posts: posts, logger: logger}
}

// periodTotals are the sums a window of samples reduces to.
type periodTotals struct {
	likes, comments, shares, saves int64
	reach, impressions, views      int64
	firstFollowers, lastFollowers  int64
	followerSamples                int
	postCount                      int
}

func (t periodTotals) engagement() int64 {
	return t.likes + t.comments + t.shares + t.saves
}

// Overview computes the headline KPIs for [start, end] and deltas against the
// immediately preceding window of equal duration.
func (e *Engine) Overview(ctx context.Context, q Query) (*pulse.OverviewKPIs, error) {
	current, err := e.loadTotals(ctx, q, q.Start, q.End)
	if err != nil {
		return nil, fmt.Errorf("failed to compute current period: %w", err)
	}

	delta := q.End.Sub(q.Start)
	previous, err := e.loadTotals(ctx, q, q.Start.Add(-delta), q.Start)
	if err != nil {
		return nil, fmt.Errorf("failed to compute previous period: %w", err)
	}

	// With no previous data the baseline is the current count, yielding zero
	// growth rather than a misleading spike.
	baseline := previous.firstFollowers
	if previous.followerSamples == 0 {
		baseline = current.lastFollowers
	}

	kpis := &pulse.OverviewKPIs{
		WorkspaceID:       q.WorkspaceID,
		PeriodStart:       q.Start,
		PeriodEnd:         q.End,
		TotalFollowers:    current.lastFollowers,
		FollowerGrowth:    current.lastFollowers - baseline,
		TotalEngagement:   current.engagement(),
		EngagementGrowth:  current.engagement() - previous.engagement(),
		EngagementRate:    engagementRate(current.engagement(), current.reach, current.impressions),
		TotalReach:        current.reach,
		ReachGrowth:       current.reach - previous.reach,
		TotalImpressions:  current.impressions,
		ImpressionsGrowth: current.impressions - previous.impressions,
		PostCount:         current.postCount,
		PostCountGrowth:   current.postCount - previous.postCount,
	}

	if baseline != 0 {
		kpis.FollowerGrowthRate = round2(float64(kpis.FollowerGrowth) / float64(baseline) * 100)
	}

	return kpis, nil
}

// EngagementBreakdown splits engagement into components with deltas against
// the preceding window.
func (e *Engine) EngagementBreakdown(ctx context.Context, q Query) (*pulse.EngagementBreakdown, error) {
	current, err := e.loadTotals(ctx, q, q.Start, q.End)
	if err != nil {
		return nil, fmt.Errorf("failed to compute current period: %w", err)
	}

	delta := q.End.Sub(q.Start)
	previous, err := e.loadTotals(ctx, q, q.Start.Add(-delta), q.Start)
	if err != nil {
		return nil, fmt.Errorf("failed to compute previous period: %w", err)
	}

	return &pulse.EngagementBreakdown{
		WorkspaceID:    q.WorkspaceID,
		PeriodStart:    q.Start,
		PeriodEnd:      q.End,
		Likes:          current.likes,
		Comments:       current.comments,
		Shares:         current.shares,
		Saves:          current.saves,
		LikesGrowth:    current.likes - previous.likes,
		CommentsGrowth: current.comments - previous.comments,
		SharesGrowth:   current.shares - previous.shares,
		SavesGrowth:    current.saves - previous.saves,
		EngagementRate: engagementRate(current.engagement(), current.reach, current.impressions),
	}, nil
}

// PlatformBreakdown groups the window by platform, sorted descending by total
// reach.
func (e *Engine) PlatformBreakdown(ctx context.Context, q Query) (*pulse.PlatformBreakdownResponse, error) {
	samples, err := e.loadSamples(ctx, q, q.Start, q.End)
	if err != nil {
		return nil, err
	}

	type platformAgg struct {
		totals    periodTotals
		followers int64
	}
	byPlatform := make(map[string]*platformAgg)
	order := []string{}

	for _, s := range samples {
		agg, ok := byPlatform[s.Platform]
		if !ok {
			agg = &platformAgg{}
			byPlatform[s.Platform] = agg
			order = append(order, s.Platform)
		}
		accumulate(&agg.totals, s)
		if s.Metrics.Followers > 0 {
			agg.followers = s.Metrics.Followers
		}
	}

	response := &pulse.PlatformBreakdownResponse{Platforms: make([]pulse.PlatformStats, 0, len(order))}
	for _, platform := range order {
		agg := byPlatform[platform]
		response.Platforms = append(response.Platforms, pulse.PlatformStats{
			Platform:         platform,
			TotalEngagement:  agg.totals.engagement(),
			TotalReach:       agg.totals.reach,
			TotalImpressions: agg.totals.impressions,
			TotalFollowers:   agg.followers,
			EngagementRate:   engagementRate(agg.totals.engagement(), agg.totals.reach, agg.totals.impressions),
			PostCount:        agg.totals.postCount,
		})
	}

	sort.SliceStable(response.Platforms, func(i, j int) bool {
		return response.Platforms[i].TotalReach > response.Platforms[j].TotalReach
	})

	return response, nil
}

// TopPosts ranks posts by a summed engagement component. Sorting is stable so
// ties keep group order; limit defaults to DefaultTopPostsLimit.
func (e *Engine) TopPosts(ctx context.Context, q Query, sortBy string, limit int) (*pulse.TopPostsResponse, error) {
	if sortBy == "" {
		sortBy = "engagement"
	}
	switch sortBy {
	case "engagement", "reach", "impressions", "likes", "comments":
	default:
		return nil, fmt.Errorf("unsupported sort key %q", sortBy)
	}
	if limit <= 0 {
		limit = DefaultTopPostsLimit
	}

	samples, err := e.loadSamples(ctx, q, q.Start, q.End)
	if err != nil {
		return nil, err
	}

	type postKey struct {
		postID, platformPostID, platform string
	}
	grouped := make(map[postKey]*pulse.TopPost)
	order := []postKey{}

	for _, s := range samples {
		if s.Kind != models.SampleKindPost {
			continue
		}
		key := postKey{postID: s.PostID, platformPostID: s.PlatformPostID, platform: s.Platform}
		post, ok := grouped[key]
		if !ok {
			post = &pulse.TopPost{
				PostID:         s.PostID,
				PlatformPostID: s.PlatformPostID,
				Platform:       s.Platform,
				ContentType:    s.ContentType,
			}
			grouped[key] = post
			order = append(order, key)
		}
		post.Likes += s.Metrics.Likes
		post.Comments += s.Metrics.Comments
		post.Shares += s.Metrics.Shares
		post.Saves += s.Metrics.Saves
		post.Reach += s.Metrics.Reach
		post.Impressions += s.Metrics.Impressions
	}

	posts := make([]pulse.TopPost, 0, len(order))
	for _, key := range order {
		post := grouped[key]
		post.Engagement = post.Likes + post.Comments + post.Shares + post.Saves
		post.EngagementRate = engagementRate(post.Engagement, post.Reach, post.Impressions)
		posts = append(posts, *post)
	}

	sort.SliceStable(posts, func(i, j int) bool {
		return sortValue(posts[i], sortBy) > sortValue(posts[j], sortBy)
	})

	if len(posts) > limit {
		posts = posts[:limit]
	}

	e.decoratePosts(ctx, q.WorkspaceID, posts)

	return &pulse.TopPostsResponse{Posts: posts, SortBy: sortBy}, nil
}

// TimeSeries buckets the window by granularity. Stock metrics (followers)
// take the last value per bucket, flow metrics sum; buckets only exist where
// samples exist.
func (e *Engine) TimeSeries(ctx context.Context, q Query, granularity models.Granularity) (*pulse.TimeSeriesResponse, error) {
	if !models.ValidGranularity(granularity) {
		return nil, fmt.Errorf("unsupported granularity %q", granularity)
	}

	samples, err := e.loadSamples(ctx, q, q.Start, q.End)
	if err != nil {
		return nil, err
	}

	buckets := make(map[time.Time]*pulse.SeriesPoint)
	order := []time.Time{}

	for _, s := range samples {
		bucketStart := BucketStart(s.Timestamp, granularity)
		point, ok := buckets[bucketStart]
		if !ok {
			point = &pulse.SeriesPoint{BucketStart: bucketStart}
			buckets[bucketStart] = point
			order = append(order, bucketStart)
		}
		point.Likes += s.Metrics.Likes
		point.Comments += s.Metrics.Comments
		point.Shares += s.Metrics.Shares
		point.Saves += s.Metrics.Saves
		point.Reach += s.Metrics.Reach
		point.Impressions += s.Metrics.Impressions
		point.Views += s.Metrics.Views
		if s.Metrics.Followers > 0 {
			point.Followers = s.Metrics.Followers
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	points := make([]pulse.SeriesPoint, 0, len(order))
	for _, bucketStart := range order {
		point := buckets[bucketStart]
		point.Engagement = point.Likes + point.Comments + point.Shares + point.Saves
		points = append(points, *point)
	}

	return &pulse.TimeSeriesResponse{Granularity: granularity, Points: points}, nil
}

// FollowerGrowth derives per-bucket growth from the follower series. Growth
// of the first bucket is 0 by definition, never inferred from outside the
// window.
func (e *Engine) FollowerGrowth(ctx context.Context, q Query, granularity models.Granularity) (*pulse.FollowerGrowthResponse, error) {
	series, err := e.TimeSeries(ctx, q, granularity)
	if err != nil {
		return nil, err
	}

	points := make([]pulse.FollowerGrowthPoint, 0, len(series.Points))
	for i, sp := range series.Points {
		point := pulse.FollowerGrowthPoint{
			BucketStart: sp.BucketStart,
			Followers:   sp.Followers,
		}
		if i > 0 {
			point.Growth = sp.Followers - series.Points[i-1].Followers
		}
		points = append(points, point)
	}

	return &pulse.FollowerGrowthResponse{Granularity: granularity, Points: points}, nil
}

// BucketStart truncates a timestamp to its calendar bucket. Weekly buckets
// are Monday-aligned to match aggregation windows.
func BucketStart(ts time.Time, granularity models.Granularity) time.Time {
	ts = ts.UTC()
	day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	switch granularity {
	case models.GranularityHourly:
		return ts.Truncate(time.Hour)
	case models.GranularityWeekly:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case models.GranularityMonthly:
		return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

func (e *Engine) loadSamples(ctx context.Context, q Query, from, to time.Time) ([]models.Sample, error) {
	query := store.SampleQuery{
		WorkspaceID: q.WorkspaceID,
		From:        from,
		To:          to,
	}
	// Single-value filters push down to the store; multi-value filters apply here
	if len(q.AccountIDs) == 1 {
		query.AccountID = q.AccountIDs[0]
	}
	if len(q.Platforms) == 1 {
		query.Platform = q.Platforms[0]
	}

	samples, err := e.samples.ListSamples(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load samples: %w", err)
	}

	if len(q.AccountIDs) > 1 || len(q.Platforms) > 1 {
		samples = filterSamples(samples, q.Platforms, q.AccountIDs)
	}
	return samples, nil
}

func (e *Engine) loadTotals(ctx context.Context, q Query, from, to time.Time) (periodTotals, error) {
	samples, err := e.loadSamples(ctx, q, from, to)
	if err != nil {
		return periodTotals{}, err
	}

	var totals periodTotals
	for _, s := range samples {
		accumulate(&totals, s)
	}
	return totals, nil
}

func accumulate(t *periodTotals, s models.Sample) {
	m := s.Metrics
	t.likes += m.Likes
	t.comments += m.Comments
	t.shares += m.Shares
	t.saves += m.Saves
	t.reach += m.Reach
	t.impressions += m.Impressions
	t.views += m.Views

	// Post count is a sample count; repeat snapshots of one post each count
	if s.Kind == models.SampleKindPost {
		t.postCount++
	}

	if m.Followers > 0 {
		if t.followerSamples == 0 {
			t.firstFollowers = m.Followers
		}
		t.lastFollowers = m.Followers
		t.followerSamples++
	}
}

func (e *Engine) decoratePosts(ctx context.Context, workspaceID string, posts []pulse.TopPost) {
	if e.posts == nil {
		return
	}
	for i := range posts {
		meta, err := e.posts.GetPostMeta(ctx, workspaceID, posts[i].PostID)
		if err != nil {
			e.logger.WithError(err).WithField("post_id", posts[i].PostID).Debug("Post metadata lookup failed")
			continue
		}
		if meta == nil {
			continue
		}
		posts[i].ContentPreview = meta.ContentPreview
		posts[i].PublishedAt = meta.PublishedAt
		if posts[i].ContentType == "" {
			posts[i].ContentType = meta.ContentType
		}
	}
}

func filterSamples(samples []models.Sample, platforms, accountIDs []string) []models.Sample {
	platformSet := toSet(platforms)
	accountSet := toSet(accountIDs)

	var out []models.Sample
	for _, s := range samples {
		if len(platformSet) > 0 {
			if _, ok := platformSet[s.Platform]; !ok {
				continue
			}
		}
		if len(accountSet) > 0 {
			if _, ok := accountSet[s.AccountID]; !ok {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func sortValue(post pulse.TopPost, sortBy string) int64 {
	switch sortBy {
	case "reach":
		return post.Reach
	case "impressions":
		return post.Impressions
	case "likes":
		return post.Likes
	case "comments":
		return post.Comments
	default:
		return post.Engagement
	}
}

// engagementRate divides engagement by reach, falling back to impressions
// when reach is zero. A zero denominator yields 0, never NaN.
func engagementRate(engagement, reach, impressions int64) float64 {
	base := reach
	if base == 0 {
		base = impressions
	}
	if base == 0 {
		return 0
	}
	return round2(float64(engagement) / float64(base) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
