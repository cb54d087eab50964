package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector("dreamstream")
	c.PollCompleted()
	c.PollCompleted()
	c.RunFinished("success", 30*time.Second)
	c.RunFinished("download_failed", time.Second)
	c.Transition("idle", "generating")
	c.HistorySize(3)

	if got := testutil.ToFloat64(c.generationPolls); got != 2 {
		t.Fatalf("polls = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.generationRuns.WithLabelValues("success")); got != 1 {
		t.Fatalf("success runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.stateTransitions.WithLabelValues("idle", "generating")); got != 1 {
		t.Fatalf("transitions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.historySize); got != 3 {
		t.Fatalf("history = %v, want 3", got)
	}
}

func TestCollectorHandler(t *testing.T) {
	c := NewCollector("dreamstream")
	c.ObserveHTTP(http.MethodGet, "/v1/studio", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `dreamstream_http_requests_total{method="GET",route="/v1/studio",status="200"} 1`) {
		t.Fatalf("exposition missing request counter:\n%s", body)
	}
}
