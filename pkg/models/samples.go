package models

import "time"

// SampleKind distinguishes account-level snapshots from per-post snapshots
type SampleKind string

const (
	SampleKindAccount SampleKind = "account"
	SampleKindPost    SampleKind = "post"
)

// Period identifies an aggregation roll-up window
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// Granularity identifies the bucket size for time-series queries
type Granularity string

const (
	GranularityHourly  Granularity = "hourly"
	GranularityDaily   Granularity = "daily"
	GranularityWeekly  Granularity = "weekly"
	GranularityMonthly Granularity = "monthly"
)

// ValidGranularity reports whether g is a supported series granularity
func ValidGranularity(g Granularity) bool {
	switch g {
	case GranularityHourly, GranularityDaily, GranularityWeekly, GranularityMonthly:
		return true
	}
	return false
}

// ValidPeriod reports whether p is a supported aggregation period
func ValidPeriod(p Period) bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return true
	}
	return false
}

// MetricCounts is the fixed-schema metric bag carried by every sample.
// Collectors only fill what the platform reports; absent counters stay zero
// and every downstream formula treats zero and absent identically.
type MetricCounts struct {
	Likes        int64 `json:"likes"`
	Comments     int64 `json:"comments"`
	Shares       int64 `json:"shares"`
	Saves        int64 `json:"saves"`
	Impressions  int64 `json:"impressions"`
	Reach        int64 `json:"reach"`
	Views        int64 `json:"views"`
	Followers    int64 `json:"followers"`
	Following    int64 `json:"following"`
	ProfileViews int64 `json:"profile_views"`
}

// Engagement returns likes + comments + shares + saves
func (m MetricCounts) Engagement() int64 {
	return m.Likes + m.Comments + m.Shares + m.Saves
}

// EngagementBase returns reach, falling back to impressions when reach is
// unavailable. Zero when neither was reported.
func (m MetricCounts) EngagementBase() int64 {
	if m.Reach > 0 {
		return m.Reach
	}
	return m.Impressions
}

// EngagementRate returns engagement over reach (or impressions) as a
// percentage. Zero denominator yields 0, never NaN.
func (m MetricCounts) EngagementRate() float64 {
	base := m.EngagementBase()
	if base == 0 {
		return 0
	}
	return float64(m.Engagement()) / float64(base) * 100
}

// Sample is one raw metrics snapshot for an account or post at a point in
// time. Samples are immutable once written; the pipeline never mutates or
// deletes them.
type Sample struct {
	SampleID       string       `json:"sample_id"`
	WorkspaceID    string       `json:"workspace_id"`
	AccountID      string       `json:"account_id"`
	Platform       string       `json:"platform"`
	Kind           SampleKind   `json:"kind"`
	PostID         string       `json:"post_id,omitempty"`
	PlatformPostID string       `json:"platform_post_id,omitempty"`
	ContentType    string       `json:"content_type,omitempty"`
	Timestamp      time.Time    `json:"timestamp"`
	Metrics        MetricCounts `json:"metrics"`
}

// AggregatedBucket is a period roll-up of samples for one account/platform.
// Identity is (workspace, account, platform, period, period_start); the
// aggregation engine overwrites buckets idempotently on that key.
type AggregatedBucket struct {
	WorkspaceID        string    `json:"workspace_id"`
	AccountID          string    `json:"account_id"`
	Platform           string    `json:"platform"`
	Period             Period    `json:"period"`
	PeriodStart        time.Time `json:"period_start"`
	PeriodEnd          time.Time `json:"period_end"`
	TotalLikes         int64     `json:"total_likes"`
	TotalComments      int64     `json:"total_comments"`
	TotalShares        int64     `json:"total_shares"`
	TotalSaves         int64     `json:"total_saves"`
	TotalImpressions   int64     `json:"total_impressions"`
	TotalReach         int64     `json:"total_reach"`
	TotalViews         int64     `json:"total_views"`
	AvgEngagementRate  float64   `json:"avg_engagement_rate"`
	MinEngagementRate  float64   `json:"min_engagement_rate"`
	MaxEngagementRate  float64   `json:"max_engagement_rate"`
	PostCount          int       `json:"post_count"`
	FollowerGrowth     int64     `json:"follower_growth"`
	FollowerGrowthRate float64   `json:"follower_growth_rate"`
	UpdatedAt          time.Time `json:"updated_at"`
}
