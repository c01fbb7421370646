package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordQuery("db", 0.004)
	m.RecordQuery("cache", 0.0002)
	m.RecordQuery("cache", 0.0003)
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordError("store", "unavailable")

	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")); got != 2 {
		t.Errorf("cache hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")); got != 1 {
		t.Errorf("cache misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("store", "unavailable")); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.QuerySeconds); got != 2 {
		t.Errorf("query histogram series = %d, want 2", got)
	}
}

func TestNew_SeparateRegistries(t *testing.T) {
	// Each registry gets its own collectors; registering twice on one would panic.
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
