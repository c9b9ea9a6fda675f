package predict

import (
	"math"

	"github.com/socialpulse/pulse/pkg/models"
)

// stableSlopeFraction: slopes smaller than this fraction of the series mean
// classify as stable.
const stableSlopeFraction = 0.01

// FitTrend fits an ordinary least squares line through values indexed
// 0..n-1 and classifies its direction. Requires at least 2 points.
func FitTrend(metric string, values []float64) models.TrendFit {
	n := len(values)
	fit := models.TrendFit{Metric: metric, Direction: models.TrendStable, Confidence: 0.5}
	if n < 2 {
		return fit
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return fit
	}

	fit.Slope = (fn*sumXY - sumX*sumY) / denom
	fit.Intercept = (sumY - fit.Slope*sumX) / fn

	mean := sumY / fn
	var ssTotal, ssResidual float64
	for i, v := range values {
		predicted := fit.Intercept + fit.Slope*float64(i)
		ssResidual += (v - predicted) * (v - predicted)
		ssTotal += (v - mean) * (v - mean)
	}

	if ssTotal == 0 {
		// Flat series: the horizontal line fits perfectly
		fit.RSquared = 1
	} else {
		fit.RSquared = 1 - ssResidual/ssTotal
	}

	if math.Abs(fit.Slope) >= stableSlopeFraction*math.Abs(mean) && fit.Slope != 0 {
		if fit.Slope > 0 {
			fit.Direction = models.TrendIncreasing
		} else {
			fit.Direction = models.TrendDecreasing
		}
	}

	fit.Confidence = math.Min(0.95, math.Max(0.5, fit.RSquared))
	return fit
}

func seriesMeanStddev(values []float64) (float64, float64) {
	n := float64(len(values))
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / n

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(variance / n)
}
