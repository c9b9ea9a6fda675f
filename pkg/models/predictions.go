package models

import "time"

// TrendDirection classifies the sign of a fitted slope
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// TrendFit is a least-squares line through a day-indexed metric series
type TrendFit struct {
	Metric     string         `json:"metric"`
	Slope      float64        `json:"slope"`
	Intercept  float64        `json:"intercept"`
	RSquared   float64        `json:"r_squared"`
	Direction  TrendDirection `json:"direction"`
	Confidence float64        `json:"confidence"`
}

// AnomalyType distinguishes values above the mean from values below it
type AnomalyType string

const (
	AnomalySpike AnomalyType = "spike"
	AnomalyDrop  AnomalyType = "drop"
)

// AnomalySeverity grades how far past the threshold a value landed
type AnomalySeverity string

const (
	SeverityLow    AnomalySeverity = "low"
	SeverityMedium AnomalySeverity = "medium"
	SeverityHigh   AnomalySeverity = "high"
)

// Anomaly is a historical data point deviating from the series mean beyond a
// sensitivity-scaled threshold
type Anomaly struct {
	Date          time.Time       `json:"date"`
	Metric        string          `json:"metric"`
	Value         float64         `json:"value"`
	ExpectedValue float64         `json:"expected_value"`
	Deviation     float64         `json:"deviation"`
	Severity      AnomalySeverity `json:"severity"`
	Type          AnomalyType     `json:"type"`
}

// ForecastPoint is one projected future value with a symmetric 95% interval
type ForecastPoint struct {
	Date           time.Time `json:"date"`
	PredictedValue float64   `json:"predicted_value"`
	LowerBound     float64   `json:"lower_bound"`
	UpperBound     float64   `json:"upper_bound"`
	Confidence     float64   `json:"confidence"`
}

// InsightKind tags an insight as good news or a problem to act on
type InsightKind string

const (
	InsightOpportunity InsightKind = "opportunity"
	InsightWarning     InsightKind = "warning"
)

// Insight is a rule-generated, human-readable takeaway derived from
// anomalies and trends
type Insight struct {
	Kind       InsightKind     `json:"kind"`
	Impact     AnomalySeverity `json:"impact"`
	Metric     string          `json:"metric"`
	Title      string          `json:"title"`
	Detail     string          `json:"detail"`
	Suggestion string          `json:"suggestion"`
}

// DailyPoint is one day of a historical metric series
type DailyPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// EngagementFeatures are the raw inputs to the single-post engagement
// predictor. Normalization happens inside the model.
type EngagementFeatures struct {
	TimeOfDay     int `json:"time_of_day"`    // 0-23
	DayOfWeek     int `json:"day_of_week"`    // 0=Sunday .. 6=Saturday
	ContentLength int `json:"content_length"` // characters
	HashtagCount  int `json:"hashtag_count"`
	MediaCount    int `json:"media_count"`
}

// EngagementPrediction is the rounded, non-negative output of the engagement
// predictor. Confidence is 0 when no trained model exists.
type EngagementPrediction struct {
	Likes      int64   `json:"likes"`
	Comments   int64   `json:"comments"`
	Shares     int64   `json:"shares"`
	Confidence float64 `json:"confidence"`
}

// ModelWeights holds one weight vector per predicted target. Each vector is
// bias followed by the five normalized feature weights.
type ModelWeights struct {
	Likes    []float64 `json:"likes"`
	Comments []float64 `json:"comments"`
	Shares   []float64 `json:"shares"`
}

// EngagementModelState is the persisted regression state for one
// workspace/platform. TrainedAt gates retraining to once per 24 hours.
type EngagementModelState struct {
	WorkspaceID string       `json:"workspace_id"`
	Platform    string       `json:"platform"`
	Weights     ModelWeights `json:"weights"`
	SampleCount int          `json:"sample_count"`
	TrainedAt   time.Time    `json:"trained_at"`
}
