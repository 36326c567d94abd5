package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordsWritten.WithLabelValues("train").Add(3)
	m.RecordsSkipped.Inc()

	if got := testutil.ToFloat64(m.RecordsWritten.WithLabelValues("train")); got != 3 {
		t.Fatalf("records written = %v, want 3", got)
	}
	n, err := testutil.GatherAndCount(reg, "birdrec_records_skipped_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 skipped series, got %d", n)
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Fatal("OrDiscard(nil) returned nil")
	}
}
