// Package telemetry records per-run metrics and optionally pushes them to a
// Prometheus Pushgateway. Batch runs are too short-lived to be scraped.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/klytics/licensekit/internal/identity"
	"github.com/klytics/licensekit/internal/usage"
)

// Recorder holds the gauges of a single run on a private registry.
type Recorder struct {
	reg *prometheus.Registry

	rows          *prometheus.GaugeVec
	dropped       *prometheus.GaugeVec
	identity      *prometheus.GaugeVec
	events        *prometheus.GaugeVec
	flagged       prometheus.Gauge
	stageDuration *prometheus.GaugeVec
	lastRun       prometheus.Gauge
	lastSuccess   prometheus.Gauge
}

// NewRecorder returns a Recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		rows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "licensekit_rows",
			Help: "Rows kept per input table in the last run.",
		}, []string{"table"}),
		dropped: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "licensekit_dropped_rows",
			Help: "Rows dropped at ingestion, by table and reason.",
		}, []string{"table", "reason"}),
		identity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "licensekit_identity_users",
			Help: "Users by identity resolution outcome.",
		}, []string{"outcome"}),
		events: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "licensekit_classified_events",
			Help: "Classified action events by class.",
		}, []string{"class"}),
		flagged: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "licensekit_flagged_users",
			Help: "Users at or above the analyst threshold.",
		}),
		stageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "licensekit_stage_duration_seconds",
			Help: "Wall time of each pipeline stage.",
		}, []string{"stage"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "licensekit_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "licensekit_last_run_success",
			Help: "1 if the last run succeeded, 0 otherwise.",
		}),
	}
	r.reg.MustRegister(r.rows, r.dropped, r.identity, r.events, r.flagged, r.stageDuration, r.lastRun, r.lastSuccess)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Ingest records the outcome of one ingestion step.
func (r *Recorder) Ingest(st usage.IngestStats) {
	r.rows.WithLabelValues(st.Table).Set(float64(st.Kept))
	for reason, n := range st.Dropped {
		r.dropped.WithLabelValues(st.Table, reason).Set(float64(n))
	}
}

// Identity records resolution counters.
func (r *Recorder) Identity(res *identity.Result) {
	r.identity.WithLabelValues("matched_email").Set(float64(res.ByEmail))
	r.identity.WithLabelValues("matched_nt_id").Set(float64(res.ByNTID))
	r.identity.WithLabelValues("dropped").Set(float64(res.Dropped))
}

// Classified records event totals and the flagged-user count.
func (r *Recorder) Classified(analyst, nonAnalyst, flagged int) {
	r.events.WithLabelValues("analyst").Set(float64(analyst))
	r.events.WithLabelValues("non_analyst").Set(float64(nonAnalyst))
	r.flagged.Set(float64(flagged))
}

// Stage records a stage's duration.
func (r *Recorder) Stage(name string, d time.Duration) {
	r.stageDuration.WithLabelValues(name).Set(d.Seconds())
}

// Finish stamps the run end time and outcome.
func (r *Recorder) Finish(at time.Time, ok bool) {
	r.lastRun.Set(float64(at.Unix()))
	if ok {
		r.lastSuccess.Set(1)
	} else {
		r.lastSuccess.Set(0)
	}
}

// Push replaces the job's metric group on the Pushgateway at url.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(r.reg).PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}
