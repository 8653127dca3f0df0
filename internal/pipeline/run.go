package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/klytics/licensekit/internal/admin"
	"github.com/klytics/licensekit/internal/classify"
	"github.com/klytics/licensekit/internal/formats/table"
	"github.com/klytics/licensekit/internal/identity"
	"github.com/klytics/licensekit/internal/logging"
	"github.com/klytics/licensekit/internal/sink"
	"github.com/klytics/licensekit/internal/source"
	"github.com/klytics/licensekit/internal/taxonomy"
	"github.com/klytics/licensekit/internal/telemetry"
	"github.com/klytics/licensekit/internal/usage"
)

// Deps are the collaborators and settings of a run.
type Deps struct {
	Source   source.DataSource
	Sink     sink.ResultSink
	Taxonomy *taxonomy.Taxonomy

	Datasets        Datasets
	ContentColumn   string
	HRUpdatedColumn string

	Bucket string
	Prefix string
	Format table.Format

	// Location renders LAST_ACTIVITY. Defaults to UTC.
	Location *time.Location
	// Now anchors the lookback window. Defaults to time.Now.
	Now func() time.Time
	// Recorder is optional.
	Recorder *telemetry.Recorder
}

// Options tune one run.
type Options struct {
	RunID  string
	DryRun bool
	// Progress, when set, is called before each stage.
	Progress func(step, total int, stage string)
}

// Result exposes every table a run produced.
type Result struct {
	RunID  string    `json:"run_id"`
	Cutoff time.Time `json:"cutoff"`
	DryRun bool      `json:"dry_run"`

	Users   []usage.UserRecord  `json:"-"`
	Events  []usage.ActionEvent `json:"-"`
	Content []usage.ActionEvent `json:"-"`
	Logins  []usage.LoginEvent  `json:"-"`
	HR      []usage.HRRecord    `json:"-"`

	Ingest      []usage.IngestStats     `json:"ingest"`
	Utilization []admin.UserUtilization `json:"-"`
	Totals      admin.Totals            `json:"totals"`
	Identity    *identity.Result        `json:"identity"`
	Platform    classify.PlatformStats  `json:"platform"`

	UserReports     []admin.UserReport    `json:"-"`
	TopActions      []admin.ActionStat    `json:"-"`
	MostViewed      []admin.ContentStat   `json:"-"`
	Platforms       []admin.UserPlatform  `json:"-"`
	PlatformSummary []admin.PlatformTotal `json:"platform_summary"`

	Tables  []*table.Table `json:"-"`
	Outputs []sink.Outcome `json:"outputs,omitempty"`
	Stages  []StageResult  `json:"stages"`
}

// Table returns the output table named name, or nil.
func (r *Result) Table(name string) *table.Table {
	for _, t := range r.Tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Invalid returns the number of dropped rows with reason across all tables.
func (r *Result) Invalid(reason string) int {
	n := 0
	for _, st := range r.Ingest {
		n += st.Dropped[reason]
	}
	return n
}

// Run executes one full batch: fetch, ingest, classify, aggregate, resolve,
// build reports and export them. Any fetch or export failure aborts the run.
func Run(ctx context.Context, d Deps, opts Options) (*Result, error) {
	if d.Source == nil || d.Taxonomy == nil {
		return nil, errors.New("pipeline needs a data source and a taxonomy")
	}
	if d.Sink == nil && !opts.DryRun {
		return nil, errors.New("pipeline needs a sink unless dry-running")
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Format == "" {
		d.Format = table.FormatCSV
	}
	if opts.RunID == "" {
		opts.RunID = logging.NewRunID()
	}
	ctx = logging.WithRun(ctx, opts.RunID)
	log := logging.Ctx(ctx)

	tax := d.Taxonomy
	res := &Result{
		RunID:  opts.RunID,
		Cutoff: d.Now().UTC().AddDate(0, 0, -tax.LookbackDays),
		DryRun: opts.DryRun,
	}
	hrUpdated := usage.HRUpdatedColumn(d.HRUpdatedColumn)
	q := Queries{
		Datasets:        d.Datasets,
		ContentColumn:   d.ContentColumn,
		HRUpdatedColumn: hrUpdated,
		Tax:             tax,
		Cutoff:          res.Cutoff,
	}
	in := usage.NewIngestor(tax, d.ContentColumn)
	in.HRUpdatedColumn = hrUpdated

	var raw struct {
		users, actions, content, logins, hr source.Rows
	}
	fetch := func(ctx context.Context, dst *source.Rows, query source.Query) error {
		rows, err := d.Source.Fetch(ctx, query)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", query.Dataset, err)
		}
		*dst = rows
		return nil
	}
	record := func(st usage.IngestStats) {
		res.Ingest = append(res.Ingest, st)
		ev := log.Info().Str("table", st.Table).Int("rows", st.Rows).Int("kept", st.Kept)
		for _, reason := range st.Reasons() {
			ev = ev.Int("dropped_"+reason, st.Dropped[reason])
		}
		ev.Msg("ingested")
		if d.Recorder != nil {
			d.Recorder.Ingest(st)
		}
	}

	stages := []Stage{
		{Name: "fetch", Run: func(ctx context.Context) error {
			if err := fetch(ctx, &raw.users, q.Users()); err != nil {
				return err
			}
			if err := fetch(ctx, &raw.actions, q.Actions()); err != nil {
				return err
			}
			if cq, ok := q.Content(); ok {
				if err := fetch(ctx, &raw.content, cq); err != nil {
					return err
				}
			}
			if err := fetch(ctx, &raw.logins, q.Logins()); err != nil {
				return err
			}
			return fetch(ctx, &raw.hr, q.HR())
		}},
		{Name: "ingest", Run: func(ctx context.Context) error {
			var st usage.IngestStats
			res.Users, st = in.Users(raw.users)
			record(st)
			res.Events, st = in.Actions(raw.actions, res.Users)
			record(st)
			res.Content, st = in.ContentLoads(raw.content)
			record(st)
			res.Logins, st = in.Logins(raw.logins)
			record(st)
			res.HR, st = in.HR(raw.hr)
			record(st)
			return nil
		}},
		{Name: "classify", Run: func(ctx context.Context) error {
			res.Events = classify.NewClassifier(tax).Classify(res.Events)
			return nil
		}},
		{Name: "aggregate", Run: func(ctx context.Context) error {
			res.Utilization = admin.Utilization(res.Users, res.Events, tax.Threshold)
			res.Totals = admin.Summarize(res.Utilization)
			log.Info().
				Int("users", res.Totals.Users).
				Int("analyst_events", res.Totals.Analyst).
				Int("non_analyst_events", res.Totals.NonAnalyst).
				Int("flagged", res.Totals.Flagged).
				Msg("utilization computed")
			if d.Recorder != nil {
				d.Recorder.Classified(res.Totals.Analyst, res.Totals.NonAnalyst, res.Totals.Flagged)
			}
			return nil
		}},
		{Name: "resolve", Run: func(ctx context.Context) error {
			res.Identity = identity.Resolve(res.Users, res.HR)
			log.Info().
				Int("matched_email", res.Identity.ByEmail).
				Int("matched_nt_id", res.Identity.ByNTID).
				Int("dropped_no_match", res.Identity.Dropped).
				Int("hr_duplicates", res.Identity.HRDuplicates).
				Msg("identities resolved")
			if len(res.Identity.DroppedUsers) > 0 {
				log.Debug().Strs("users", res.Identity.DroppedUsers).Msg("users without directory match")
			}
			if d.Recorder != nil {
				d.Recorder.Identity(res.Identity)
			}
			return nil
		}},
		{Name: "platforms", Run: func(ctx context.Context) error {
			res.Logins, res.Platform = classify.NewPlatformClassifier(tax).Classify(res.Logins, res.Identity.Active())
			log.Info().
				Int("logins", len(res.Logins)).
				Int("failed", res.Platform.Failed).
				Int("inactive_user", res.Platform.InactiveUser).
				Int("other_channel", res.Platform.OtherChannel).
				Msg("logins classified")
			return nil
		}},
		{Name: "reports", Run: func(ctx context.Context) error {
			res.UserReports = admin.UserReports(res.Utilization, res.Identity, tax, d.Location)
			res.TopActions = admin.TopActions(res.Events)
			res.MostViewed = admin.MostViewed(res.Content)
			res.Platforms = admin.PlatformByUser(res.Logins, res.Identity, tax)
			res.PlatformSummary = admin.PlatformSummary(res.Platforms)
			res.Tables = []*table.Table{
				admin.UsersTable(res.UserReports),
				admin.TopActionsTable(res.TopActions),
				admin.ContentTable(res.MostViewed),
				admin.PlatformsTable(res.Platforms),
				admin.PlatformSummaryTable(res.PlatformSummary),
			}
			return nil
		}},
		{Name: "export", Export: true, Run: func(ctx context.Context) error {
			for _, t := range res.Tables {
				key := sink.Key(d.Prefix, t.Name, d.Format)
				out, err := sink.Export(ctx, d.Sink, d.Bucket, key, t, d.Format)
				if err != nil {
					return err
				}
				res.Outputs = append(res.Outputs, out)
				log.Info().Str("bucket", out.Bucket).Str("key", out.Key).Int("rows", out.Rows).
					Bool("replaced", out.Replaced).Msg("exported")
			}
			return nil
		}},
	}

	ex := NewExecutor()
	ex.SetDryRun(opts.DryRun)
	if opts.Progress != nil {
		ex.OnStart(opts.Progress)
	}
	if d.Recorder != nil {
		ex.OnStage(d.Recorder.Stage)
	}
	stageResults, err := ex.Run(ctx, stages)
	res.Stages = stageResults
	if d.Recorder != nil {
		d.Recorder.Finish(d.Now(), err == nil)
	}
	if err != nil {
		return res, err
	}
	return res, nil
}
