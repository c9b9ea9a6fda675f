package predict

import (
	"math"

	"github.com/socialpulse/pulse/pkg/models"
)

const (
	// DefaultSensitivity scales the stddev-based anomaly threshold
	DefaultSensitivity = 2.5
	minSensitivity     = 1.0
	maxSensitivity     = 5.0

	// minAnomalyPoints is the minimum series length for anomaly detection;
	// shorter series are skipped, not errored
	minAnomalyPoints = 7
)

// ClampSensitivity bounds sensitivity to its configurable range, using the
// default when unset.
func ClampSensitivity(sensitivity float64) float64 {
	if sensitivity == 0 {
		return DefaultSensitivity
	}
	return math.Min(maxSensitivity, math.Max(minSensitivity, sensitivity))
}

// DetectSeriesAnomalies flags points deviating from the series mean by more
// than sensitivity × stddev. Series shorter than 7 points yield no anomalies.
func DetectSeriesAnomalies(metric string, points []models.DailyPoint, sensitivity float64) []models.Anomaly {
	if len(points) < minAnomalyPoints {
		return nil
	}
	sensitivity = ClampSensitivity(sensitivity)

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	mean, stddev := seriesMeanStddev(values)

	threshold := sensitivity * stddev
	if threshold == 0 {
		return nil
	}

	var anomalies []models.Anomaly
	for _, p := range points {
		deviation := math.Abs(p.Value - mean)
		if deviation <= threshold {
			continue
		}

		anomaly := models.Anomaly{
			Date:          p.Date,
			Metric:        metric,
			Value:         p.Value,
			ExpectedValue: round2(mean),
			Deviation:     round2(deviation),
			Type:          models.AnomalySpike,
			Severity:      severityFor(deviation, threshold),
		}
		if p.Value < mean {
			anomaly.Type = models.AnomalyDrop
		}
		anomalies = append(anomalies, anomaly)
	}

	return anomalies
}

// severityFor grades an anomaly by how far past the threshold it landed.
func severityFor(deviation, threshold float64) models.AnomalySeverity {
	ratio := deviation / threshold
	switch {
	case ratio > 2:
		return models.SeverityHigh
	case ratio > 1.5:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
