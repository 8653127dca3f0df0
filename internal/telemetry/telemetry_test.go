package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/klytics/licensekit/internal/identity"
	"github.com/klytics/licensekit/internal/usage"
)

func TestRecorderGauges(t *testing.T) {
	r := NewRecorder()
	r.Ingest(usage.IngestStats{Table: "actions", Kept: 10, Dropped: map[string]int{"noise_category": 4}})
	r.Identity(&identity.Result{ByEmail: 5, ByNTID: 2, Dropped: 1})
	r.Classified(6, 4, 2)
	r.Stage("fetch", 1500*time.Millisecond)
	r.Finish(time.Unix(1700000000, 0), true)

	if got := testutil.ToFloat64(r.rows.WithLabelValues("actions")); got != 10 {
		t.Errorf("rows = %v, want 10", got)
	}
	if got := testutil.ToFloat64(r.dropped.WithLabelValues("actions", "noise_category")); got != 4 {
		t.Errorf("dropped = %v, want 4", got)
	}
	if got := testutil.ToFloat64(r.identity.WithLabelValues("matched_nt_id")); got != 2 {
		t.Errorf("nt_id matches = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.flagged); got != 2 {
		t.Errorf("flagged = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.stageDuration.WithLabelValues("fetch")); got != 1.5 {
		t.Errorf("stage duration = %v, want 1.5", got)
	}
	if got := testutil.ToFloat64(r.lastSuccess); got != 1 {
		t.Errorf("last success = %v, want 1", got)
	}
}

func TestPushSendsMetrics(t *testing.T) {
	var body, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		path = req.URL.Path
		b, _ := io.ReadAll(req.Body)
		body = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewRecorder()
	r.Classified(1, 2, 0)
	if err := r.Push(context.Background(), srv.URL, "licensekit"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(path, "/job/licensekit") {
		t.Errorf("unexpected push path %q", path)
	}
	if body == "" {
		t.Error("expected metrics in push body")
	}
}

func TestPushDisabled(t *testing.T) {
	if err := NewRecorder().Push(context.Background(), "", "job"); err != nil {
		t.Errorf("empty url should be a no-op, got %v", err)
	}
}
