package predict

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/socialpulse/pulse/internal/store"
	"github.com/socialpulse/pulse/pkg/api/pulse"
	"github.com/socialpulse/pulse/pkg/logging"
	"github.com/socialpulse/pulse/pkg/models"
)

// DefaultMetrics are analyzed when a request names no specific metrics.
var DefaultMetrics = []string{"engagement", "reach", "followers"}

// trendLookbackDays is the history window trend fitting reads.
const trendLookbackDays = 30

// forecastLookbackDays is the history window forecasting reads. Longer than
// the 30-day minimum so short gaps don't empty the forecast.
const forecastLookbackDays = 90

// Engine derives trends, anomalies, forecasts and insights from historical
// sample series. All derivations are pure and recomputed per request; only
// the engagement model keeps persistent state.
type Engine struct {
	samples store.SampleStore
	model   *EngagementModel
	logger  logging.Logger
	now     func() time.Time
}

// NewEngine creates a predictive engine. posts may be nil; the engagement
// model then trains without content metadata.
func NewEngine(samples store.SampleStore, modelStore store.ModelStore, posts PostMetaStore, logger logging.Logger) *Engine {
	return &Engine{
		samples: samples,
		model:   NewEngagementModel(samples, modelStore, posts, logger),
		logger:  logger,
		now:     time.Now,
	}
}

// PredictTrends fits a least-squares trend per requested metric over the last
// 30 days. Metrics with fewer than 2 data points are skipped.
func (e *Engine) PredictTrends(ctx context.Context, workspaceID, platform string, metrics []string) (*pulse.TrendsResponse, error) {
	if len(metrics) == 0 {
		metrics = DefaultMetrics
	}

	end := e.now().UTC()
	start := end.AddDate(0, 0, -trendLookbackDays)

	response := &pulse.TrendsResponse{Platform: platform, Trends: []models.TrendFit{}}
	for _, metric := range metrics {
		points, err := e.dailySeries(ctx, workspaceID, platform, metric, start, end)
		if err != nil {
			return nil, err
		}
		if len(points) < 2 {
			continue
		}
		values := make([]float64, len(points))
		for i, p := range points {
			values[i] = p.Value
		}
		response.Trends = append(response.Trends, FitTrend(metric, values))
	}

	return response, nil
}

// DetectAnomalies flags outlier days for the default metric set inside
// [start, end]. Metrics with fewer than 7 data points are skipped.
func (e *Engine) DetectAnomalies(ctx context.Context, workspaceID, platform string, start, end time.Time, sensitivity float64) (*pulse.AnomaliesResponse, error) {
	sensitivity = ClampSensitivity(sensitivity)

	response := &pulse.AnomaliesResponse{
		Platform:    platform,
		Sensitivity: sensitivity,
		Anomalies:   []models.Anomaly{},
	}

	for _, metric := range DefaultMetrics {
		points, err := e.dailySeries(ctx, workspaceID, platform, metric, start, end)
		if err != nil {
			return nil, err
		}
		response.Anomalies = append(response.Anomalies, DetectSeriesAnomalies(metric, points, sensitivity)...)
	}

	sort.SliceStable(response.Anomalies, func(i, j int) bool {
		return response.Anomalies[i].Date.Before(response.Anomalies[j].Date)
	})

	return response, nil
}

// ForecastReach projects daily reach daysAhead days forward. Fewer than 30
// days of history yields an empty forecast.
func (e *Engine) ForecastReach(ctx context.Context, workspaceID, platform string, daysAhead int) (*pulse.ForecastResponse, error) {
	end := e.now().UTC()
	start := end.AddDate(0, 0, -forecastLookbackDays)

	points, err := e.dailySeries(ctx, workspaceID, platform, "reach", start, end)
	if err != nil {
		return nil, err
	}

	return &pulse.ForecastResponse{
		Platform: platform,
		Metric:   "reach",
		Points:   ForecastSeries("reach", points, daysAhead),
	}, nil
}

// GenerateInsights combines anomalies and trends over [start, end] into at
// most 5 actionable insights.
func (e *Engine) GenerateInsights(ctx context.Context, workspaceID, platform string, start, end time.Time) (*pulse.InsightsResponse, error) {
	anomalies, err := e.DetectAnomalies(ctx, workspaceID, platform, start, end, DefaultSensitivity)
	if err != nil {
		return nil, err
	}

	var trends []models.TrendFit
	for _, metric := range DefaultMetrics {
		points, err := e.dailySeries(ctx, workspaceID, platform, metric, start, end)
		if err != nil {
			return nil, err
		}
		if len(points) < 2 {
			continue
		}
		values := make([]float64, len(points))
		for i, p := range points {
			values[i] = p.Value
		}
		trends = append(trends, FitTrend(metric, values))
	}

	return &pulse.InsightsResponse{
		Platform: platform,
		Insights: BuildInsights(anomalies.Anomalies, trends),
	}, nil
}

// PredictEngagement scores a single post's features.
func (e *Engine) PredictEngagement(ctx context.Context, workspaceID, platform string, features models.EngagementFeatures) (*models.EngagementPrediction, error) {
	return e.model.Predict(ctx, workspaceID, platform, features)
}

// dailySeries builds a day-indexed series for one metric. Flow metrics sum
// per day; followers take the day's last value. Days without samples are
// absent from the series.
func (e *Engine) dailySeries(ctx context.Context, workspaceID, platform, metric string, start, end time.Time) ([]models.DailyPoint, error) {
	samples, err := e.samples.ListSamples(ctx, store.SampleQuery{
		WorkspaceID: workspaceID,
		Platform:    platform,
		From:        start,
		To:          end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load series samples: %w", err)
	}

	buckets := make(map[time.Time]float64)
	var order []time.Time
	for _, s := range samples {
		value, ok := metricValue(s.Metrics, metric)
		if !ok {
			return nil, fmt.Errorf("unsupported metric %q", metric)
		}

		ts := s.Timestamp.UTC()
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		if _, exists := buckets[day]; !exists {
			order = append(order, day)
		}

		if metric == "followers" {
			if value > 0 {
				buckets[day] = value
			} else if _, exists := buckets[day]; !exists {
				buckets[day] = 0
			}
		} else {
			buckets[day] += value
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })
	return dailySeriesFromBuckets(buckets, order), nil
}

func metricValue(m models.MetricCounts, metric string) (float64, bool) {
	switch metric {
	case "engagement":
		return float64(m.Engagement()), true
	case "likes":
		return float64(m.Likes), true
	case "comments":
		return float64(m.Comments), true
	case "shares":
		return float64(m.Shares), true
	case "saves":
		return float64(m.Saves), true
	case "reach":
		return float64(m.Reach), true
	case "impressions":
		return float64(m.Impressions), true
	case "views":
		return float64(m.Views), true
	case "followers":
		return float64(m.Followers), true
	default:
		return 0, false
	}
}
