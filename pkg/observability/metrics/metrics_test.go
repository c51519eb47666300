package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRun(t *testing.T) {
	m := New(nil)
	m.ObserveRun("completed", 2*time.Second, time.Unix(1700000000, 0))
	m.ObserveRun("failed", time.Second, time.Unix(1700000100, 0))

	if got := testutil.ToFloat64(m.RunsTotal.WithLabelValues("completed")); got != 1 {
		t.Fatalf("expected 1 completed run, got %v", got)
	}
	if got := testutil.ToFloat64(m.LastSuccess); got != 1700000000 {
		t.Fatalf("failed runs must not move the success timestamp, got %v", got)
	}
}

func TestObserveDomainReplacesFlags(t *testing.T) {
	m := New(nil)
	m.ObserveDomain("labs", 10, map[string]int{"outlier_detected": 2, "negative_value": 1})
	m.ObserveDomain("labs", 12, map[string]int{"outlier_detected": 3})

	if got := testutil.ToFloat64(m.RecordsProcessed.WithLabelValues("labs")); got != 12 {
		t.Fatalf("expected 12 labs, got %v", got)
	}
	if got := testutil.CollectAndCount(m.RecordsFlagged); got != 1 {
		t.Fatalf("stale flag series should be dropped, got %d series", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(nil)
	m.ObserveQuality("patients_total", 42)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `readmission_quality_metric{metric="patients_total"} 42`) {
		t.Fatalf("metric missing from exposition:\n%s", body)
	}
}
