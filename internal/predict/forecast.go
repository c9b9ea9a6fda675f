package predict

import (
	"math"
	"time"

	"github.com/socialpulse/pulse/pkg/models"
)

// minForecastDays is the minimum history for a forecast; anything shorter
// returns an empty result rather than a low-confidence guess.
const minForecastDays = 30

// ForecastSeries projects the fitted trend line daysAhead steps past the last
// observed point. The 95% interval is prediction ± 1.96 × stddev of the
// historical series; all values floor at 0.
func ForecastSeries(metric string, points []models.DailyPoint, daysAhead int) []models.ForecastPoint {
	if len(points) < minForecastDays || daysAhead <= 0 {
		return nil
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}

	fit := FitTrend(metric, values)
	_, stddev := seriesMeanStddev(values)
	interval := 1.96 * stddev

	lastIndex := float64(len(points) - 1)
	lastDate := points[len(points)-1].Date

	forecast := make([]models.ForecastPoint, 0, daysAhead)
	for step := 1; step <= daysAhead; step++ {
		predicted := fit.Intercept + fit.Slope*(lastIndex+float64(step))
		forecast = append(forecast, models.ForecastPoint{
			Date:           lastDate.AddDate(0, 0, step),
			PredictedValue: round2(math.Max(0, predicted)),
			LowerBound:     round2(math.Max(0, predicted-interval)),
			UpperBound:     round2(math.Max(0, predicted+interval)),
			Confidence:     fit.Confidence,
		})
	}
	return forecast
}

// dailySeriesFromBuckets is a helper for turning bucketed values into a
// day-indexed series, dropping empty days so gaps never read as zeros.
func dailySeriesFromBuckets(buckets map[time.Time]float64, order []time.Time) []models.DailyPoint {
	points := make([]models.DailyPoint, 0, len(order))
	for _, day := range order {
		points = append(points, models.DailyPoint{Date: day, Value: buckets[day]})
	}
	return points
}
