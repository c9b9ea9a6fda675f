// Package pulse defines the request and response types of the analytics
// query surface. Handlers marshal these directly; they are also the values
// the cache layer stores.
package pulse

import (
	"time"

	"github.com/socialpulse/pulse/pkg/models"
)

// ErrorResponse is the uniform error envelope
type ErrorResponse struct {
	Error string `json:"error"`
}

// OverviewKPIs compares the requested period against the immediately
// preceding period of equal duration. Growth fields are simple differences;
// rate fields are percentages rounded to 2 decimals.
type OverviewKPIs struct {
	WorkspaceID        string    `json:"workspace_id"`
	PeriodStart        time.Time `json:"period_start"`
	PeriodEnd          time.Time `json:"period_end"`
	TotalFollowers     int64     `json:"total_followers"`
	FollowerGrowth     int64     `json:"follower_growth"`
	FollowerGrowthRate float64   `json:"follower_growth_rate"`
	TotalEngagement    int64     `json:"total_engagement"`
	EngagementGrowth   int64     `json:"engagement_growth"`
	EngagementRate     float64   `json:"engagement_rate"`
	TotalReach         int64     `json:"total_reach"`
	ReachGrowth        int64     `json:"reach_growth"`
	TotalImpressions   int64     `json:"total_impressions"`
	ImpressionsGrowth  int64     `json:"impressions_growth"`
	PostCount          int       `json:"post_count"`
	PostCountGrowth    int       `json:"post_count_growth"`
}

// EngagementBreakdown splits engagement into its components with
// period-over-period deltas
type EngagementBreakdown struct {
	WorkspaceID    string    `json:"workspace_id"`
	PeriodStart    time.Time `json:"period_start"`
	PeriodEnd      time.Time `json:"period_end"`
	Likes          int64     `json:"likes"`
	Comments       int64     `json:"comments"`
	Shares         int64     `json:"shares"`
	Saves          int64     `json:"saves"`
	LikesGrowth    int64     `json:"likes_growth"`
	CommentsGrowth int64     `json:"comments_growth"`
	SharesGrowth   int64     `json:"shares_growth"`
	SavesGrowth    int64     `json:"saves_growth"`
	EngagementRate float64   `json:"engagement_rate"`
}

// PlatformStats is one row of the platform breakdown, sorted descending by
// total reach
type PlatformStats struct {
	Platform         string  `json:"platform"`
	TotalEngagement  int64   `json:"total_engagement"`
	TotalReach       int64   `json:"total_reach"`
	TotalImpressions int64   `json:"total_impressions"`
	TotalFollowers   int64   `json:"total_followers"`
	EngagementRate   float64 `json:"engagement_rate"`
	PostCount        int     `json:"post_count"`
}

// PlatformBreakdownResponse wraps the per-platform rows
type PlatformBreakdownResponse struct {
	Platforms []PlatformStats `json:"platforms"`
}

// TopPost is one ranked post with summed engagement components and optional
// decoration from the post metadata store
type TopPost struct {
	PostID         string    `json:"post_id"`
	PlatformPostID string    `json:"platform_post_id"`
	Platform       string    `json:"platform"`
	ContentType    string    `json:"content_type,omitempty"`
	ContentPreview string    `json:"content_preview,omitempty"`
	PublishedAt    time.Time `json:"published_at,omitempty"`
	Likes          int64     `json:"likes"`
	Comments       int64     `json:"comments"`
	Shares         int64     `json:"shares"`
	Saves          int64     `json:"saves"`
	Engagement     int64     `json:"engagement"`
	Reach          int64     `json:"reach"`
	Impressions    int64     `json:"impressions"`
	EngagementRate float64   `json:"engagement_rate"`
}

// TopPostsResponse wraps the ranked posts
type TopPostsResponse struct {
	Posts  []TopPost `json:"posts"`
	SortBy string    `json:"sort_by"`
}

// SeriesPoint is one emitted time-series bucket. Buckets are ascending and
// only exist where samples exist.
type SeriesPoint struct {
	BucketStart time.Time `json:"bucket_start"`
	Likes       int64     `json:"likes"`
	Comments    int64     `json:"comments"`
	Shares      int64     `json:"shares"`
	Saves       int64     `json:"saves"`
	Engagement  int64     `json:"engagement"`
	Reach       int64     `json:"reach"`
	Impressions int64     `json:"impressions"`
	Views       int64     `json:"views"`
	Followers   int64     `json:"followers"`
}

// TimeSeriesResponse wraps a bucketed series
type TimeSeriesResponse struct {
	Granularity models.Granularity `json:"granularity"`
	Points      []SeriesPoint      `json:"points"`
}

// FollowerGrowthPoint is one bucket of the follower growth series. Growth of
// the first bucket is 0 by definition.
type FollowerGrowthPoint struct {
	BucketStart time.Time `json:"bucket_start"`
	Followers   int64     `json:"followers"`
	Growth      int64     `json:"growth"`
}

// FollowerGrowthResponse wraps the follower growth series
type FollowerGrowthResponse struct {
	Granularity models.Granularity    `json:"granularity"`
	Points      []FollowerGrowthPoint `json:"points"`
}

// TrendsResponse wraps fitted trends for the requested metrics
type TrendsResponse struct {
	Platform string            `json:"platform"`
	Trends   []models.TrendFit `json:"trends"`
}

// AnomaliesResponse wraps detected anomalies
type AnomaliesResponse struct {
	Platform    string           `json:"platform"`
	Sensitivity float64          `json:"sensitivity"`
	Anomalies   []models.Anomaly `json:"anomalies"`
}

// ForecastResponse wraps the projected reach series. Empty when fewer than
// 30 days of history exist.
type ForecastResponse struct {
	Platform string                 `json:"platform"`
	Metric   string                 `json:"metric"`
	Points   []models.ForecastPoint `json:"points"`
}

// InsightsResponse wraps generated insights, at most 5
type InsightsResponse struct {
	Platform string           `json:"platform"`
	Insights []models.Insight `json:"insights"`
}

// PredictEngagementRequest carries the post features to score
type PredictEngagementRequest struct {
	Platform string                    `json:"platform" binding:"required"`
	Features models.EngagementFeatures `json:"features"`
}

// StoreSampleRequest is the HTTP ingestion payload used by collectors that
// bypass Kafka
type StoreSampleRequest struct {
	AccountID      string              `json:"account_id" binding:"required"`
	Platform       string              `json:"platform" binding:"required"`
	Kind           models.SampleKind   `json:"kind" binding:"required"`
	PostID         string              `json:"post_id,omitempty"`
	PlatformPostID string              `json:"platform_post_id,omitempty"`
	ContentType    string              `json:"content_type,omitempty"`
	Timestamp      time.Time           `json:"timestamp"`
	Metrics        models.MetricCounts `json:"metrics"`
}

// AggregateResponse reports a completed aggregation trigger. WorkspaceID is
// empty for all-workspace sweeps.
type AggregateResponse struct {
	WorkspaceID string        `json:"workspace_id,omitempty"`
	Scope       string        `json:"scope"`
	Period      models.Period `json:"period"`
	Reference   time.Time     `json:"reference"`
}

// AggregatedBucketsResponse wraps stored roll-ups ordered by period start
type AggregatedBucketsResponse struct {
	Period  models.Period             `json:"period"`
	Buckets []models.AggregatedBucket `json:"buckets"`
}

// AccountInfo identifies one tracked account on one platform
type AccountInfo struct {
	AccountID string `json:"account_id"`
	Platform  string `json:"platform"`
}

// AccountsResponse lists the accounts that produced samples inside the
// lookback window
type AccountsResponse struct {
	LookbackDays int           `json:"lookback_days"`
	Accounts     []AccountInfo `json:"accounts"`
}

// InvalidateCacheResponse reports how many cache entries were dropped
type InvalidateCacheResponse struct {
	Scope   string `json:"scope"`
	Dropped int    `json:"dropped"`
}
