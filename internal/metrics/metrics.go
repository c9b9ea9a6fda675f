package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/socialpulse/pulse/internal/cache"
	"github.com/socialpulse/pulse/pkg/monitoring"
)

// Metrics holds the pipeline-specific Prometheus collectors, built on top of
// the shared MetricsCollector so every metric carries the service prefix.
type Metrics struct {
	// Query side
	AnalyticsQueries *prometheus.CounterVec // query_type, status
	QueryDuration    *prometheus.HistogramVec

	// Ingestion side
	SampleEvents    *prometheus.CounterVec // status
	SamplesIngested *prometheus.CounterVec // platform
	IngestDuration  *prometheus.HistogramVec

	// Aggregation
	AggregationRuns     *prometheus.CounterVec // period, status
	AggregationDuration *prometheus.HistogramVec

	// Cache
	CacheOps *prometheus.CounterVec // operation

	// Kafka (shared helpers)
	KafkaMessages    *prometheus.CounterVec
	KafkaDuration    *prometheus.HistogramVec
	KafkaConsumerLag *prometheus.GaugeVec

	// Database (shared helpers)
	DBQueries     *prometheus.CounterVec
	DBDuration    *prometheus.HistogramVec
	DBConnections *prometheus.GaugeVec
}

// New registers the pipeline metrics against the given collector.
func New(mc *monitoring.MetricsCollector) *Metrics {
	m := &Metrics{
		AnalyticsQueries: mc.NewCounter("analytics_queries_total",
			"Total analytics queries served", []string{"query_type", "status"}),
		QueryDuration: mc.NewHistogram("analytics_query_duration_seconds",
			"Analytics query duration", []string{"query_type"}, nil),

		SampleEvents: mc.NewCounter("sample_events_total",
			"Sample events consumed by outcome", []string{"status"}),
		SamplesIngested: mc.NewCounter("samples_ingested_total",
			"Individual samples written to the sample store", []string{"platform"}),
		IngestDuration: mc.NewHistogram("sample_ingest_duration_seconds",
			"Sample event processing duration", []string{"status"}, nil),

		AggregationRuns: mc.NewCounter("aggregation_runs_total",
			"Aggregation sweeps by period", []string{"period", "status"}),
		AggregationDuration: mc.NewHistogram("aggregation_duration_seconds",
			"Aggregation sweep duration", []string{"period"}, nil),

		CacheOps: mc.NewCounter("cache_operations_total",
			"Cache operations by outcome", []string{"operation"}),
	}

	m.KafkaMessages, m.KafkaDuration, m.KafkaConsumerLag = mc.CreateKafkaMetrics()
	m.DBQueries, m.DBDuration, m.DBConnections = mc.CreateDatabaseMetrics()

	return m
}

// CacheHooks adapts the cache metric callbacks onto the CacheOps counter.
func (m *Metrics) CacheHooks() cache.MetricsHooks {
	return cache.MetricsHooks{
		OnHit:        func(map[string]string) { m.CacheOps.WithLabelValues("hit").Inc() },
		OnMiss:       func(map[string]string) { m.CacheOps.WithLabelValues("miss").Inc() },
		OnStore:      func(map[string]string) { m.CacheOps.WithLabelValues("store").Inc() },
		OnInvalidate: func(map[string]string) { m.CacheOps.WithLabelValues("invalidate").Inc() },
		OnError:      func(map[string]string) { m.CacheOps.WithLabelValues("error").Inc() },
	}
}

// ObserveQuery records one served analytics query.
func (m *Metrics) ObserveQuery(queryType, status string, seconds float64) {
	m.AnalyticsQueries.WithLabelValues(queryType, status).Inc()
	m.QueryDuration.WithLabelValues(queryType).Observe(seconds)
}

// ObserveAggregation records one aggregation sweep.
func (m *Metrics) ObserveAggregation(period, status string, seconds float64) {
	m.AggregationRuns.WithLabelValues(period, status).Inc()
	m.AggregationDuration.WithLabelValues(period).Observe(seconds)
}
