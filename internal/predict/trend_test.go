package predict

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/socialpulse/pulse/pkg/models"
)

func TestFitTrendIncreasing(t *testing.T) {
	// Strictly increasing, slope 10 against mean 145: well above the 1% band
	values := []float64{100, 110, 120, 130, 140, 150, 160, 170, 180, 190}

	fit := FitTrend("reach", values)
	assert.Equal(t, models.TrendIncreasing, fit.Direction)
	assert.InDelta(t, 10.0, fit.Slope, 1e-9)
	assert.InDelta(t, 100.0, fit.Intercept, 1e-9)
	assert.InDelta(t, 1.0, fit.RSquared, 1e-9)
	assert.Equal(t, 0.95, fit.Confidence)
}

func TestFitTrendDecreasing(t *testing.T) {
	values := []float64{190, 180, 170, 160, 150, 140, 130, 120, 110, 100}

	fit := FitTrend("engagement", values)
	assert.Equal(t, models.TrendDecreasing, fit.Direction)
	assert.InDelta(t, -10.0, fit.Slope, 1e-9)
}

func TestFitTrendFlatIsStable(t *testing.T) {
	values := []float64{100, 100, 100, 100, 100, 100, 100}

	fit := FitTrend("followers", values)
	assert.Equal(t, models.TrendStable, fit.Direction)
	assert.InDelta(t, 0.0, fit.Slope, 1e-9)
	// Horizontal line through a flat series is a perfect fit
	assert.InDelta(t, 1.0, fit.RSquared, 1e-9)
}

func TestFitTrendSmallSlopeIsStable(t *testing.T) {
	// Slope 0.5 against mean ~1000 is below the 1% threshold
	values := make([]float64, 20)
	for i := range values {
		values[i] = 1000 + 0.5*float64(i)
	}

	fit := FitTrend("followers", values)
	assert.Equal(t, models.TrendStable, fit.Direction)
}

func TestFitTrendConfidenceBounds(t *testing.T) {
	// Noisy series: confidence floors at 0.5 even with a poor fit
	values := []float64{100, 500, 90, 480, 110, 520, 95}

	fit := FitTrend("likes", values)
	assert.GreaterOrEqual(t, fit.Confidence, 0.5)
	assert.LessOrEqual(t, fit.Confidence, 0.95)
}

func TestFitTrendTooFewPoints(t *testing.T) {
	fit := FitTrend("reach", []float64{42})
	assert.Equal(t, models.TrendStable, fit.Direction)
	assert.Equal(t, 0.0, fit.Slope)
}
