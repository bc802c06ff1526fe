package metrics

import (
	"testing"
	"time"

	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveClean(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveClean("customers", core.Stats{
		InputRows:         10,
		DuplicatesDropped: 1,
		DroppedBy:         map[core.DropReason]int{"age_out_of_range": 2},
		CoercionNulls:     3,
		RowsWritten:       7,
	})

	checks := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"input", m.InputRows.WithLabelValues("customers"), 10},
		{"duplicates", m.DroppedRows.WithLabelValues("customers", DuplicateReason), 1},
		{"age", m.DroppedRows.WithLabelValues("customers", "age_out_of_range"), 2},
		{"coercion", m.CoercionNulls.WithLabelValues("customers"), 3},
		{"written", m.RowsWritten.WithLabelValues("customers"), 7},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(c.c); got != c.want {
			t.Errorf("%s = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestObserveCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveLoad("accounts", 5)
	m.ObserveLoad("accounts", 2)
	m.ObserveFailure("loans", "load")
	m.ObservePosting("Deposit", "committed")
	m.ObserveRejected()
	m.ObserveReport(1, "store", 20*time.Millisecond)
	m.ObserveHTTP("GET", "/api/reports/{id}", 200, time.Millisecond)

	if got := testutil.ToFloat64(m.RowsLoaded.WithLabelValues("accounts")); got != 7 {
		t.Errorf("rows loaded = %v, want 7", got)
	}
	if got := testutil.ToFloat64(m.EntityFailures.WithLabelValues("loans", "load")); got != 1 {
		t.Errorf("failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.LedgerPostings.WithLabelValues("Deposit", "committed")); got != 1 {
		t.Errorf("postings = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.LimiterRejected); got != 1 {
		t.Errorf("rejected = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.ReportDuration); got != 1 {
		t.Errorf("report series = %d, want 1", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/reports/{id}", "200")); got != 1 {
		t.Errorf("http requests = %v, want 1", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveClean("customers", core.Stats{InputRows: 1})
	m.ObserveLoad("customers", 1)
	m.ObserveFailure("customers", "clean")
	m.ObserveReport(1, "cache", time.Second)
	m.ObserveHTTP("GET", "/", 200, time.Second)
	m.ObservePosting("Withdrawal", "rejected")
	m.ObserveRejected()
}
