package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	schemaRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querypilot_schema_refresh_total",
			Help: "Total number of schema snapshot refreshes by outcome.",
		},
		[]string{"dialect", "outcome"},
	)
	schemaTables = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "querypilot_schema_tables",
			Help: "Number of tables in the most recently installed snapshot.",
		},
	)
	translationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querypilot_translations_total",
			Help: "Total number of language-model calls by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	translationLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "querypilot_translation_latency_ms",
			Help:    "Language-model round trip latency in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 20000, 30000},
		},
		[]string{"operation"},
	)
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querypilot_executions_total",
			Help: "Total number of executed statements by category and outcome.",
		},
		[]string{"category", "outcome"},
	)
	archiveFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querypilot_archive_failures_total",
			Help: "Total number of failed snapshot archive operations.",
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(
		schemaRefreshTotal,
		schemaTables,
		translationsTotal,
		translationLatencyMs,
		executionsTotal,
		archiveFailuresTotal,
	)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func ObserveSchemaRefresh(dialect string, tables int, err error) {
	schemaRefreshTotal.WithLabelValues(dialect, outcome(err)).Inc()
	if err == nil {
		schemaTables.Set(float64(tables))
	}
}

func ObserveTranslation(operation string, elapsed time.Duration, err error) {
	translationsTotal.WithLabelValues(operation, outcome(err)).Inc()
	translationLatencyMs.WithLabelValues(operation).Observe(float64(elapsed.Milliseconds()))
}

func ObserveExecution(category string, err error) {
	executionsTotal.WithLabelValues(category, outcome(err)).Inc()
}

func IncrementArchiveFailure(operation string) {
	archiveFailuresTotal.WithLabelValues(operation).Inc()
}
