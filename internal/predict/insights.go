package predict

import (
	"fmt"
	"sort"

	"github.com/socialpulse/pulse/pkg/models"
)

// maxInsights caps the generated insight list.
const maxInsights = 5

// insightTrendConfidence: only trends fitted this confidently produce an
// insight.
const insightTrendConfidence = 0.7

var severityRank = map[models.AnomalySeverity]int{
	models.SeverityHigh:   3,
	models.SeverityMedium: 2,
	models.SeverityLow:    1,
}

// BuildInsights maps anomalies and trends to at most 5 actionable insights.
// Anomalies rank by severity, ties broken by most recent date; trends
// contribute only above the confidence floor. The mapping is deterministic.
func BuildInsights(anomalies []models.Anomaly, trends []models.TrendFit) []models.Insight {
	ranked := make([]models.Anomaly, len(anomalies))
	copy(ranked, anomalies)
	sort.SliceStable(ranked, func(i, j int) bool {
		if severityRank[ranked[i].Severity] != severityRank[ranked[j].Severity] {
			return severityRank[ranked[i].Severity] > severityRank[ranked[j].Severity]
		}
		return ranked[i].Date.After(ranked[j].Date)
	})

	var insights []models.Insight
	for _, anomaly := range ranked {
		if len(insights) >= maxInsights {
			return insights
		}
		insights = append(insights, insightFromAnomaly(anomaly))
	}

	for _, trend := range trends {
		if len(insights) >= maxInsights {
			return insights
		}
		if trend.Confidence <= insightTrendConfidence || trend.Direction == models.TrendStable {
			continue
		}
		insights = append(insights, insightFromTrend(trend))
	}

	return insights
}

func insightFromAnomaly(anomaly models.Anomaly) models.Insight {
	if anomaly.Type == models.AnomalySpike {
		return models.Insight{
			Kind:   models.InsightOpportunity,
			Impact: anomaly.Severity,
			Metric: anomaly.Metric,
			Title:  fmt.Sprintf("Unusual %s spike on %s", anomaly.Metric, anomaly.Date.Format("Jan 2")),
			Detail: fmt.Sprintf("%s reached %.0f against an expected %.0f.",
				anomaly.Metric, anomaly.Value, anomaly.ExpectedValue),
			Suggestion: "Review what was posted around this date and consider repeating the format.",
		}
	}
	return models.Insight{
		Kind:   models.InsightWarning,
		Impact: anomaly.Severity,
		Metric: anomaly.Metric,
		Title:  fmt.Sprintf("Unusual %s drop on %s", anomaly.Metric, anomaly.Date.Format("Jan 2")),
		Detail: fmt.Sprintf("%s fell to %.0f against an expected %.0f.",
			anomaly.Metric, anomaly.Value, anomaly.ExpectedValue),
		Suggestion: "Check posting frequency and platform changes around this date.",
	}
}

func insightFromTrend(trend models.TrendFit) models.Insight {
	impact := models.SeverityMedium
	if trend.Confidence > 0.85 {
		impact = models.SeverityHigh
	}

	if trend.Direction == models.TrendIncreasing {
		return models.Insight{
			Kind:       models.InsightOpportunity,
			Impact:     impact,
			Metric:     trend.Metric,
			Title:      fmt.Sprintf("%s is trending up", trend.Metric),
			Detail:     fmt.Sprintf("%s is growing by about %.1f per day.", trend.Metric, trend.Slope),
			Suggestion: "Increase posting cadence while momentum lasts.",
		}
	}
	return models.Insight{
		Kind:       models.InsightWarning,
		Impact:     impact,
		Metric:     trend.Metric,
		Title:      fmt.Sprintf("%s is trending down", trend.Metric),
		Detail:     fmt.Sprintf("%s is declining by about %.1f per day.", trend.Metric, -trend.Slope),
		Suggestion: "Experiment with new content formats to reverse the decline.",
	}
}
