package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce                sync.Once
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestSeconds          *prometheus.HistogramVec
	matchOutcomesTotal          *prometheus.CounterVec
	reconciliationsTotal        *prometheus.CounterVec
	reconciliationSeconds       prometheus.Histogram
	assignmentsDistributedTotal *prometheus.CounterVec
	feedbackSavesTotal          *prometheus.CounterVec
	catalogImportRowsTotal      *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "annotation_http_requests_total",
			Help: "API requests by surface (admin or annotator), route and status.",
		}, []string{"surface", "method", "route", "status"})

		httpRequestSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "annotation_http_request_seconds",
			Help:    "API request latency by surface and route. Admin uploads dominate the upper buckets.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"surface", "method", "route"})

		matchOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "annotation_match_outcomes_total",
			Help: "Sheet rows matched against the catalog, by outcome and tier.",
		}, []string{"outcome", "tier"})

		reconciliationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "annotation_reconciliations_total",
			Help: "Reconciliation runs by result.",
		}, []string{"result"})

		reconciliationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "annotation_reconciliation_seconds",
			Help:    "Duration of reconciliation runs.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		})

		assignmentsDistributedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "annotation_assignments_distributed_total",
			Help: "Assignments created by bulk distribution, by policy.",
		}, []string{"policy"})

		feedbackSavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "annotation_feedback_saves_total",
			Help: "Feedback saves by resulting status, including rejected submissions.",
		}, []string{"status"})

		catalogImportRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "annotation_catalog_import_rows_total",
			Help: "Catalog rows processed by import mode.",
		}, []string{"mode"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestSeconds,
			matchOutcomesTotal,
			reconciliationsTotal,
			reconciliationSeconds,
			assignmentsDistributedTotal,
			feedbackSavesTotal,
			catalogImportRowsTotal,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpRequestSeconds
}

// MatchOutcomes exposes the counter for sheet row match results.
func MatchOutcomes() *prometheus.CounterVec {
	RegisterMetrics()
	return matchOutcomesTotal
}

// Reconciliations exposes the counter for reconciliation runs.
func Reconciliations() *prometheus.CounterVec {
	RegisterMetrics()
	return reconciliationsTotal
}

// ReconciliationDuration exposes the reconciliation latency histogram.
func ReconciliationDuration() prometheus.Histogram {
	RegisterMetrics()
	return reconciliationSeconds
}

// AssignmentsDistributed exposes the counter for bulk-distributed assignments.
func AssignmentsDistributed() *prometheus.CounterVec {
	RegisterMetrics()
	return assignmentsDistributedTotal
}

// FeedbackSaves exposes the counter for feedback saves.
func FeedbackSaves() *prometheus.CounterVec {
	RegisterMetrics()
	return feedbackSavesTotal
}

// CatalogImportRows exposes the counter for imported catalog rows.
func CatalogImportRows() *prometheus.CounterVec {
	RegisterMetrics()
	return catalogImportRowsTotal
}
