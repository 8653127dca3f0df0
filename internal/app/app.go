// Package app wires configuration into a runnable batch: it opens the data
// source and result sink, runs the pipeline, pushes metrics and appends the
// run to the history file.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/klytics/licensekit/internal/audit"
	"github.com/klytics/licensekit/internal/config"
	"github.com/klytics/licensekit/internal/formats/table"
	"github.com/klytics/licensekit/internal/logging"
	"github.com/klytics/licensekit/internal/output"
	"github.com/klytics/licensekit/internal/pipeline"
	"github.com/klytics/licensekit/internal/sink"
	"github.com/klytics/licensekit/internal/source"
	"github.com/klytics/licensekit/internal/taxonomy"
	"github.com/klytics/licensekit/internal/telemetry"
	"github.com/klytics/licensekit/internal/usage"
)

// Options are the per-invocation settings layered over the config file.
type Options struct {
	// TaxonomyFile overrides taxonomy.file.
	TaxonomyFile string
	Overrides    taxonomy.Overrides
	DryRun       bool

	// Command and Args are recorded in the run history.
	Command string
	Args    []string

	// Now anchors the lookback window. Defaults to time.Now.
	Now func() time.Time
	// Progress is passed to the pipeline.
	Progress func(step, total int, stage string)
}

// LoadTaxonomy returns the run's taxonomy: file (or taxonomy.file) layered
// over the built-in defaults, then the per-run overrides.
func LoadTaxonomy(cfg *config.Config, file string, o taxonomy.Overrides) (*taxonomy.Taxonomy, error) {
	if file == "" {
		file = cfg.Taxonomy.File
	}
	tax := taxonomy.Default()
	if file != "" {
		var err error
		if tax, err = taxonomy.Load(file); err != nil {
			return nil, err
		}
	}
	return tax.With(o)
}

// OpenSource opens the configured data source. The returned close function
// is never nil.
func OpenSource(ctx context.Context, cfg *config.Config) (source.DataSource, func() error, error) {
	nop := func() error { return nil }
	switch cfg.Source.Kind {
	case "sql":
		s, err := source.OpenSQL(ctx, cfg.Source.Driver, cfg.Source.DSN)
		if err != nil {
			return nil, nop, err
		}
		return s, s.Close, nil
	case "dir":
		s, err := source.NewDir(cfg.Source.Dir)
		if err != nil {
			return nil, nop, err
		}
		return s, nop, nil
	default:
		return nil, nop, fmt.Errorf("unsupported source kind %q (supported: sql, dir)", cfg.Source.Kind)
	}
}

// OpenSink opens the configured result sink.
func OpenSink(ctx context.Context, cfg *config.Config) (sink.ResultSink, error) {
	switch cfg.Sink.Kind {
	case "s3":
		return sink.OpenS3(ctx, sink.S3Options{
			Region:          cfg.Sink.S3.Region,
			Endpoint:        cfg.Sink.S3.Endpoint,
			ForcePathStyle:  cfg.Sink.S3.ForcePathStyle,
			AccessKeyID:     cfg.Sink.S3.AccessKeyID,
			SecretAccessKey: cfg.Sink.S3.SecretAccessKey,
		})
	case "dir":
		return sink.NewDir(cfg.Sink.Dir), nil
	default:
		return nil, fmt.Errorf("unsupported sink kind %q (supported: s3, dir)", cfg.Sink.Kind)
	}
}

// Runner executes batches for one configuration. Source and Sink may be
// preset, which tests use to substitute fakes.
type Runner struct {
	Config *config.Config
	Source source.DataSource
	Sink   sink.ResultSink
	// History defaults to the history.path file.
	History *audit.Logger
}

// NewRunner returns a Runner for cfg.
func NewRunner(cfg *config.Config) *Runner {
	return &Runner{Config: cfg, History: audit.NewLogger(cfg.History.Path)}
}

// Run performs one batch. Errors are tagged with output exit codes: input
// problems are user errors, source and sink failures are system errors.
// Every attempt that reaches the pipeline is appended to the history.
func (r *Runner) Run(ctx context.Context, opts Options) (*pipeline.Result, error) {
	cfg := r.Config
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	start := time.Now()

	tax, err := LoadTaxonomy(cfg, opts.TaxonomyFile, opts.Overrides)
	if err != nil {
		return nil, output.UserError(err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, output.UserError(fmt.Errorf("invalid report.timezone: %w", err))
	}
	format, err := table.ParseFormat(cfg.Sink.Format)
	if err != nil {
		return nil, output.UserError(err)
	}

	src := r.Source
	if src == nil {
		s, closeFn, err := OpenSource(ctx, cfg)
		if err != nil {
			return nil, output.SystemError(err)
		}
		defer closeFn()
		src = s
	}
	snk := r.Sink
	if snk == nil && !opts.DryRun {
		if snk, err = OpenSink(ctx, cfg); err != nil {
			return nil, output.SystemError(err)
		}
	}

	rec := telemetry.NewRecorder()
	runID := logging.NewRunID()
	res, runErr := pipeline.Run(ctx, pipeline.Deps{
		Source:   src,
		Sink:     snk,
		Taxonomy: tax,
		Datasets: pipeline.Datasets{
			Users:   cfg.Source.Datasets.Users,
			Actions: cfg.Source.Datasets.Actions,
			HR:      cfg.Source.Datasets.HR,
		},
		ContentColumn:   cfg.Source.ContentColumn,
		HRUpdatedColumn: cfg.Source.HRUpdatedColumn,
		Bucket:          cfg.Sink.Bucket,
		Prefix:          cfg.Sink.Prefix,
		Format:          format,
		Location:        loc,
		Now:             now,
		Recorder:        rec,
	}, pipeline.Options{RunID: runID, DryRun: opts.DryRun, Progress: opts.Progress})

	log := logging.Ctx(logging.WithRun(ctx, runID))
	if cfg.Metrics.PushgatewayURL != "" {
		if err := rec.Push(ctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
			log.Warn().Err(err).Msg("metrics push failed")
		}
	}

	entry := Entry(res, runErr, opts, tax, time.Since(start))
	entry.RunID = runID
	if err := r.History.Log(ctx, entry); err != nil {
		log.Warn().Err(err).Msg("could not append run history")
	}

	if runErr != nil {
		return res, output.SystemError(runErr)
	}
	return res, nil
}

// Entry builds the history record of a run.
func Entry(res *pipeline.Result, runErr error, opts Options, tax *taxonomy.Taxonomy, elapsed time.Duration) audit.Entry {
	host, _ := os.Hostname()
	e := audit.Entry{
		Timestamp:    time.Now().UTC(),
		Machine:      host,
		Command:      opts.Command,
		Args:         audit.Redact(opts.Args),
		Status:       audit.StatusOK,
		DryRun:       opts.DryRun,
		DurationMs:   elapsed.Milliseconds(),
		Threshold:    tax.Threshold,
		LookbackDays: tax.LookbackDays,
	}
	if runErr != nil {
		e.Status = audit.StatusFailed
		e.Error = runErr.Error()
		var se *pipeline.StageError
		if errors.As(runErr, &se) {
			e.FailedStage = se.Stage
		}
	}
	if res == nil {
		return e
	}
	e.RunID = res.RunID
	e.Users = res.Totals.Users
	e.Events = len(res.Events)
	e.FlaggedUsers = res.Totals.Flagged
	e.InvalidTimes = res.Invalid(usage.DropInvalidTime)
	if res.Identity != nil {
		e.Resolved = len(res.Identity.Matches)
		e.DroppedUsers = res.Identity.Dropped
	}
	for _, o := range res.Outputs {
		e.OutputObjects = append(e.OutputObjects, o.Bucket+"/"+o.Key)
	}
	return e
}
