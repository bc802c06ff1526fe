// Package metrics exposes pipeline, report and HTTP counters for Prometheus.
//
// All methods are safe on a nil *Metrics so callers never need a guard.
package metrics

import (
	"strconv"
	"time"

	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DuplicateReason labels rows dropped by de-duplication.
const DuplicateReason = "duplicate"

type Metrics struct {
	InputRows       *prometheus.CounterVec
	DroppedRows     *prometheus.CounterVec
	CoercionNulls   *prometheus.CounterVec
	RowsWritten     *prometheus.CounterVec
	RowsLoaded      *prometheus.CounterVec
	EntityFailures  *prometheus.CounterVec
	ReportDuration  *prometheus.HistogramVec
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	LedgerPostings  *prometheus.CounterVec
	LimiterRejected prometheus.Counter
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		InputRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "banksight_pipeline_input_rows_total",
			Help: "Raw rows read per entity",
		}, []string{"entity"}),
		DroppedRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "banksight_pipeline_dropped_rows_total",
			Help: "Rows excluded during cleaning, by entity and reason",
		}, []string{"entity", "reason"}),
		CoercionNulls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "banksight_pipeline_coercion_nulls_total",
			Help: "Values that failed type coercion and became null",
		}, []string{"entity"}),
		RowsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "banksight_pipeline_rows_written_total",
			Help: "Cleaned rows written per entity",
		}, []string{"entity"}),
		RowsLoaded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "banksight_store_rows_loaded_total",
			Help: "Rows bulk loaded per table",
		}, []string{"table"}),
		EntityFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "banksight_pipeline_entity_failures_total",
			Help: "Entities that failed, by stage",
		}, []string{"entity", "stage"}),
		ReportDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "banksight_report_duration_seconds",
			Help:    "Report execution time",
			Buckets: prometheus.DefBuckets,
		}, []string{"report", "source"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "banksight_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "banksight_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		LedgerPostings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "banksight_ledger_postings_total",
			Help: "Deposits and withdrawals by outcome",
		}, []string{"type", "outcome"}),
		LimiterRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "banksight_report_limiter_rejected_total",
			Help: "Report requests rejected because every slot was busy",
		}),
	}
}

// ObserveClean records one entity's cleaning stats.
func (m *Metrics) ObserveClean(entity string, s core.Stats) {
	if m == nil {
		return
	}
	m.InputRows.WithLabelValues(entity).Add(float64(s.InputRows))
	if s.DuplicatesDropped > 0 {
		m.DroppedRows.WithLabelValues(entity, DuplicateReason).Add(float64(s.DuplicatesDropped))
	}
	for reason, n := range s.DroppedBy {
		m.DroppedRows.WithLabelValues(entity, string(reason)).Add(float64(n))
	}
	m.CoercionNulls.WithLabelValues(entity).Add(float64(s.CoercionNulls))
	m.RowsWritten.WithLabelValues(entity).Add(float64(s.RowsWritten))
}

// ObserveLoad records rows loaded into a table.
func (m *Metrics) ObserveLoad(table string, rows int64) {
	if m == nil {
		return
	}
	m.RowsLoaded.WithLabelValues(table).Add(float64(rows))
}

// ObserveFailure counts an entity that failed at stage (locate, load, clean, write, store).
func (m *Metrics) ObserveFailure(entity, stage string) {
	if m == nil {
		return
	}
	m.EntityFailures.WithLabelValues(entity, stage).Inc()
}

// ObserveReport records how long a report took. source is "store" or "cache".
func (m *Metrics) ObserveReport(id int, source string, d time.Duration) {
	if m == nil {
		return
	}
	m.ReportDuration.WithLabelValues(strconv.Itoa(id), source).Observe(d.Seconds())
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObservePosting counts a ledger posting. outcome is "committed", "rejected" or "failed".
func (m *Metrics) ObservePosting(kind, outcome string) {
	if m == nil {
		return
	}
	m.LedgerPostings.WithLabelValues(kind, outcome).Inc()
}

// ObserveRejected counts a report request turned away by the limiter.
func (m *Metrics) ObserveRejected() {
	if m == nil {
		return
	}
	m.LimiterRejected.Inc()
}
