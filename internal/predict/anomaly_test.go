package predict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialpulse/pulse/pkg/models"
)

func dailyPoints(start time.Time, values ...float64) []models.DailyPoint {
	points := make([]models.DailyPoint, len(values))
	for i, v := range values {
		points[i] = models.DailyPoint{Date: start.AddDate(0, 0, i), Value: v}
	}
	return points
}

func TestSeverityRatioRule(t *testing.T) {
	tests := []struct {
		name      string
		deviation float64
		threshold float64
		want      models.AnomalySeverity
	}{
		{"ratio exactly 1.5 is low", 15, 10, models.SeverityLow},
		{"ratio just above 1.5 is medium", 16, 10, models.SeverityMedium},
		{"ratio exactly 2 is medium", 20, 10, models.SeverityMedium},
		{"ratio above 2 is high", 21, 10, models.SeverityHigh},
		{"ratio just above threshold is low", 11, 10, models.SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, severityFor(tt.deviation, tt.threshold))
		})
	}
}

func TestDetectSeriesAnomaliesSpike(t *testing.T) {
	start := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	// Tight series around 100 with one clear outlier
	points := dailyPoints(start, 100, 101, 99, 100, 102, 98, 100, 160, 100, 101)

	anomalies := DetectSeriesAnomalies("engagement", points, 2.0)
	require.Len(t, anomalies, 1)
	assert.Equal(t, models.AnomalySpike, anomalies[0].Type)
	assert.Equal(t, start.AddDate(0, 0, 7), anomalies[0].Date)
	assert.Equal(t, 160.0, anomalies[0].Value)
	assert.Equal(t, "engagement", anomalies[0].Metric)
}

func TestDetectSeriesAnomaliesDrop(t *testing.T) {
	start := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	points := dailyPoints(start, 100, 101, 99, 100, 102, 98, 100, 30, 100, 101)

	anomalies := DetectSeriesAnomalies("reach", points, 2.0)
	require.Len(t, anomalies, 1)
	assert.Equal(t, models.AnomalyDrop, anomalies[0].Type)
}

func TestDetectSeriesAnomaliesTooFewPoints(t *testing.T) {
	start := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	points := dailyPoints(start, 100, 101, 99, 100, 102, 500)

	// 6 points is below the 7-point minimum: skipped, not errored
	assert.Nil(t, DetectSeriesAnomalies("engagement", points, 2.0))
}

func TestDetectSeriesAnomaliesFlatSeries(t *testing.T) {
	start := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	points := dailyPoints(start, 100, 100, 100, 100, 100, 100, 100, 100)

	assert.Nil(t, DetectSeriesAnomalies("engagement", points, 2.0))
}

func TestClampSensitivity(t *testing.T) {
	assert.Equal(t, DefaultSensitivity, ClampSensitivity(0))
	assert.Equal(t, 1.0, ClampSensitivity(0.2))
	assert.Equal(t, 5.0, ClampSensitivity(9))
	assert.Equal(t, 3.0, ClampSensitivity(3))
}
