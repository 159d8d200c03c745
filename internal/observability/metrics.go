package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "covid_etl"

// Metrics holds the Prometheus collectors for ingestion runs.
type Metrics struct {
	RecordsStored     prometheus.Counter
	DuplicatesSkipped prometheus.Counter
	IngestFailures    *prometheus.CounterVec   // labels: stage={fetching,normalizing,storing,rendering}
	Runs              *prometheus.CounterVec   // labels: mode, outcome={success,failed}
	FetchDuration     *prometheus.HistogramVec // labels: source={html,feed}
	LastSuccess       prometheus.Gauge
	PublishErrors     prometheus.Counter
	ChartsRendered    prometheus.Counter
	SchedulerRunning  prometheus.Gauge
}

// NewMetrics creates and registers all collectors with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RecordsStored,
		m.DuplicatesSkipped,
		m.IngestFailures,
		m.Runs,
		m.FetchDuration,
		m.LastSuccess,
		m.PublishErrors,
		m.ChartsRendered,
		m.SchedulerRunning,
	)
	return m
}

// NewMetricsForTesting creates unregistered collectors so tests can build
// as many as they like without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_stored_total",
			Help:      "Total records appended to the store.",
		}),
		DuplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_skipped_total",
			Help:      "Records skipped because their region and date were already stored.",
		}),
		IngestFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_failures_total",
			Help:      "Ingestion failures by pipeline stage.",
		}, []string{"stage"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed ingestion runs by mode and outcome.",
		}, []string{"mode", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Source fetch and extraction duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful ingestion run.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed attempts to publish stored records to Kafka.",
		}),
		ChartsRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charts_rendered_total",
			Help:      "Chart images written.",
		}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      "1 while watch mode is active, 0 otherwise.",
		}),
	}
}
