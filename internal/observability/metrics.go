// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	RecordsAccepted      *prometheus.CounterVec
	RecordsRejected      *prometheus.CounterVec
	RecordsDuplicate     *prometheus.CounterVec
	ProviderFetchErrors  *prometheus.CounterVec
	ProviderFetchLatency *prometheus.HistogramVec

	// Reconcile metrics
	ReconcileRunsTotal   *prometheus.CounterVec
	ReconcileDuration    prometheus.Histogram
	ObservationsScored   prometheus.Counter
	AnomaliesDetected    prometheus.Counter
	DetectionsSuppressed prometheus.Counter
	BaselinesComputed    prometheus.Counter
	SignalsEmitted       *prometheus.CounterVec
	DivergenceVerdicts   *prometheus.CounterVec

	// Maintenance metrics
	MaintenanceRunsTotal *prometheus.CounterVec
	SignalsPurged        prometheus.Counter
	SignalsBackfilled    prometheus.Counter

	// Stream metrics
	StreamClients          prometheus.Gauge
	StreamSignalsPublished prometheus.Counter

	// Health metrics
	LastSuccessfulIngest    *prometheus.GaugeVec
	LastSuccessfulReconcile prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "orbitwatch"
	}

	return &Metrics{
		// Ingestion metrics
		RecordsAccepted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "records_accepted_total",
			Help:      "Total number of telemetry records accepted by provider",
		}, []string{"source"}),
		RecordsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "records_rejected_total",
			Help:      "Total number of telemetry records rejected at validation",
		}, []string{"source"}),
		RecordsDuplicate: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "records_duplicate_total",
			Help:      "Total number of re-ingested element sets stored as no-ops",
		}, []string{"source"}),
		ProviderFetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "provider_fetch_errors_total",
			Help:      "Total number of failed provider fetches",
		}, []string{"source"}),
		ProviderFetchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "provider_fetch_latency_seconds",
			Help:      "Provider fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),

		// Reconcile metrics
		ReconcileRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Total number of reconcile passes by status",
		}, []string{"status"}),
		ReconcileDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "duration_seconds",
			Help:      "Reconcile pass duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}),
		ObservationsScored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "observations_scored_total",
			Help:      "Total number of metric observations scored against baselines",
		}),
		AnomaliesDetected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "anomalies_detected_total",
			Help:      "Total number of observations that crossed their thresholds",
		}),
		DetectionsSuppressed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "detections_suppressed_total",
			Help:      "Total number of observations suppressed (thin baseline, zero stddev, noise floor)",
		}),
		BaselinesComputed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "baselines_computed_total",
			Help:      "Total number of baseline rows recomputed",
		}),
		SignalsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "signals_emitted_total",
			Help:      "Total number of signal upserts by outcome",
		}, []string{"outcome"}),
		DivergenceVerdicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "divergence_verdicts_total",
			Help:      "Total number of cross-provider comparisons by verdict",
		}, []string{"verdict"}),

		// Maintenance metrics
		MaintenanceRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "maintenance",
			Name:      "runs_total",
			Help:      "Total number of purge/backfill runs by status",
		}, []string{"status"}),
		SignalsPurged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "maintenance",
			Name:      "signals_purged_total",
			Help:      "Total number of signals removed by maintenance runs",
		}),
		SignalsBackfilled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "maintenance",
			Name:      "signals_backfilled_total",
			Help:      "Total number of signals re-created by maintenance runs",
		}),

		// Stream metrics
		StreamClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Current number of connected websocket clients",
		}),
		StreamSignalsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "signals_published_total",
			Help:      "Total number of signals pushed to the live stream",
		}),

		// Health metrics
		LastSuccessfulIngest: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingest_timestamp",
			Help:      "Unix timestamp of the last successful ingest pass per provider",
		}, []string{"source"}),
		LastSuccessfulReconcile: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_reconcile_timestamp",
			Help:      "Unix timestamp of the last successful reconcile pass",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordIngest records the outcome counts of one provider's ingest pass.
func RecordIngest(source string, accepted, rejected, duplicates int) {
	DefaultMetrics.RecordsAccepted.WithLabelValues(source).Add(float64(accepted))
	DefaultMetrics.RecordsRejected.WithLabelValues(source).Add(float64(rejected))
	DefaultMetrics.RecordsDuplicate.WithLabelValues(source).Add(float64(duplicates))
}

// RecordProviderFetch records one provider fetch attempt.
func RecordProviderFetch(source string, seconds float64, err error) {
	DefaultMetrics.ProviderFetchLatency.WithLabelValues(source).Observe(seconds)
	if err != nil {
		DefaultMetrics.ProviderFetchErrors.WithLabelValues(source).Inc()
	}
}

// MarkIngestSuccess updates the per-provider ingest health timestamp.
func MarkIngestSuccess(source string, unixSeconds int64) {
	DefaultMetrics.LastSuccessfulIngest.WithLabelValues(source).Set(float64(unixSeconds))
}

// RecordReconcileRun records one reconcile pass.
func RecordReconcileRun(status string, durationSeconds float64) {
	DefaultMetrics.ReconcileRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.ReconcileDuration.Observe(durationSeconds)
}

// RecordReconcileCounts folds one pass's detection counters into the totals.
func RecordReconcileCounts(scored, anomalies, suppressed, baselines int) {
	DefaultMetrics.ObservationsScored.Add(float64(scored))
	DefaultMetrics.AnomaliesDetected.Add(float64(anomalies))
	DefaultMetrics.DetectionsSuppressed.Add(float64(suppressed))
	DefaultMetrics.BaselinesComputed.Add(float64(baselines))
}

// RecordSignalEmit records one signal upsert by outcome.
func RecordSignalEmit(outcome string) {
	DefaultMetrics.SignalsEmitted.WithLabelValues(outcome).Inc()
}

// RecordDivergenceVerdict records one cross-provider verdict.
func RecordDivergenceVerdict(verdict string) {
	DefaultMetrics.DivergenceVerdicts.WithLabelValues(verdict).Inc()
}

// MarkReconcileSuccess updates the reconcile health timestamp.
func MarkReconcileSuccess(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulReconcile.Set(float64(unixSeconds))
}

// RecordMaintenanceRun records one purge/backfill run.
func RecordMaintenanceRun(status string, purged, backfilled int64) {
	DefaultMetrics.MaintenanceRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.SignalsPurged.Add(float64(purged))
	DefaultMetrics.SignalsBackfilled.Add(float64(backfilled))
}

// SetStreamClients updates the connected websocket client gauge.
func SetStreamClients(n int) {
	DefaultMetrics.StreamClients.Set(float64(n))
}

// RecordStreamPublish increments the published signal counter.
func RecordStreamPublish() {
	DefaultMetrics.StreamSignalsPublished.Inc()
}
