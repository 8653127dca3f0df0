package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klytics/licensekit/internal/audit"
	"github.com/klytics/licensekit/internal/config"
	"github.com/klytics/licensekit/internal/output"
	"github.com/klytics/licensekit/internal/pipeline"
	"github.com/klytics/licensekit/internal/sink"
	"github.com/klytics/licensekit/internal/taxonomy"
)

var fixedNow = func() time.Time { return time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC) }

const (
	usersCSV = "user_id,user_name,email,last_login\n" +
		"1,alice,alice@x.com,2025-03-30 10:00:00\n" +
		"2,erin,erin@x.com,2025-03-29 10:00:00\n"
	actionsCSV = "user_name,log_category,log_action,logged_time,success,machine,arg1\n" +
		"alice,info_link,run_query,2025-03-20 10:00:00,1,,\n" +
		"alice,web_player,open,2025-03-21 10:00:00,1,,\n" +
		"alice,web_player,open,2025-03-22 10:00:00,1,,\n" +
		"alice,auth_pro,login,2025-03-21 08:00:00,1,10.1.1.1,\n" +
		"erin,analysis_pro,open,2025-03-21 10:00:00,1,,\n"
	hrCSV = "smtp,nt_id,cost_center_name,dept_name,title\n" +
		"alice@x.com,alice,CC1,Fab,Data Scientist\n"
	taxonomyYAML = "local_ips:\n  - 10.1.1.1\nanalyst_threshold: 40\n"
)

func fixtureConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	data := filepath.Join(root, "data")
	require.NoError(t, os.MkdirAll(data, 0o755))
	for name, body := range map[string]string{
		"users.csv":   usersCSV,
		"actions.csv": actionsCSV,
		"hr.csv":      hrCSV,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(data, name), []byte(body), 0o644))
	}
	taxFile := filepath.Join(root, "taxonomy.yaml")
	require.NoError(t, os.WriteFile(taxFile, []byte(taxonomyYAML), 0o644))

	return &config.Config{
		Source: config.SourceConfig{
			Kind:          "dir",
			Dir:           data,
			Datasets:      config.Datasets{Users: "users", Actions: "actions", HR: "hr"},
			ContentColumn: "arg1",
		},
		Sink: config.SinkConfig{
			Kind:   "dir",
			Dir:    filepath.Join(root, "out"),
			Bucket: "spotfire-admin",
			Prefix: "reports",
			Format: "csv",
		},
		Taxonomy: config.TaxonomyConfig{File: taxFile},
		Report:   config.ReportConfig{Timezone: "America/Chicago"},
		History:  config.HistoryConfig{Path: filepath.Join(root, "history.jsonl")},
	}
}

func TestRunnerWritesReportsAndHistory(t *testing.T) {
	cfg := fixtureConfig(t)
	r := NewRunner(cfg)

	res, err := r.Run(context.Background(), Options{
		Command: "run",
		Args:    []string{"licensekit", "run", "--dsn", "postgres://u:secret@db/x"},
		Now:     fixedNow,
	})
	require.NoError(t, err)
	require.Len(t, res.Outputs, 5)

	for _, o := range res.Outputs {
		assert.FileExists(t, filepath.Join(cfg.Sink.Dir, o.Bucket, filepath.FromSlash(o.Key)))
	}
	assert.Equal(t, "reports/analyst-functions-users.csv", res.Outputs[0].Key)
	assert.Equal(t, 1, res.Totals.Flagged, "erin is 100% analyst against a 40 threshold")

	entries, err := audit.ReadEntries(cfg.History.Path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, audit.StatusOK, e.Status)
	assert.Equal(t, res.RunID, e.RunID)
	assert.Equal(t, 40.0, e.Threshold)
	assert.Equal(t, 1, e.Resolved)
	assert.Equal(t, 1, e.DroppedUsers)
	assert.Contains(t, e.Args, "[REDACTED]")
	assert.NotContains(t, e.Args, "postgres://u:secret@db/x")
	assert.Len(t, e.OutputObjects, 5)
}

func TestRunnerOverridesAndDryRun(t *testing.T) {
	cfg := fixtureConfig(t)
	threshold := 20.0
	res, err := NewRunner(cfg).Run(context.Background(), Options{
		Overrides: taxonomy.Overrides{Threshold: &threshold},
		DryRun:    true,
		Now:       fixedNow,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Outputs)
	assert.Equal(t, 2, res.Totals.Flagged, "alice at 33.33% now crosses the threshold")
	assert.NoDirExists(t, cfg.Sink.Dir)
}

func TestRunnerUserErrors(t *testing.T) {
	cfg := fixtureConfig(t)
	cfg.Report.Timezone = "Mars/Olympus"
	_, err := NewRunner(cfg).Run(context.Background(), Options{Now: fixedNow})
	require.Error(t, err)
	assert.Equal(t, output.ExitUserError, output.ExitCode(err))

	cfg = fixtureConfig(t)
	bad := -1
	_, err = NewRunner(cfg).Run(context.Background(), Options{
		Overrides: taxonomy.Overrides{LookbackDays: &bad},
	})
	assert.Equal(t, output.ExitUserError, output.ExitCode(err))
}

func TestRunnerSystemErrors(t *testing.T) {
	cfg := fixtureConfig(t)
	cfg.Source.Dir = filepath.Join(t.TempDir(), "missing")
	_, err := NewRunner(cfg).Run(context.Background(), Options{Now: fixedNow})
	require.Error(t, err)
	assert.Equal(t, output.ExitSystemError, output.ExitCode(err))

	cfg = fixtureConfig(t)
	r := NewRunner(cfg)
	r.Sink = failingSink{}
	_, err = r.Run(context.Background(), Options{Now: fixedNow})
	require.Error(t, err)
	assert.Equal(t, output.ExitSystemError, output.ExitCode(err))

	entries, _ := audit.ReadEntries(cfg.History.Path)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.StatusFailed, entries[0].Status)
	assert.Equal(t, "export", entries[0].FailedStage)
}

func TestLoadTaxonomyDefaults(t *testing.T) {
	tax, err := LoadTaxonomy(&config.Config{}, "", taxonomy.Overrides{})
	require.NoError(t, err)
	assert.Equal(t, 50.0, tax.Threshold)
	assert.Equal(t, 90, tax.LookbackDays)

	_, err = LoadTaxonomy(&config.Config{}, filepath.Join(t.TempDir(), "nope.yaml"), taxonomy.Overrides{})
	assert.Error(t, err)
}

func TestOpenSourceAndSinkKinds(t *testing.T) {
	ctx := context.Background()
	_, closeFn, err := OpenSource(ctx, &config.Config{Source: config.SourceConfig{Kind: "ftp"}})
	assert.Error(t, err)
	assert.NotNil(t, closeFn)

	_, _, err = OpenSource(ctx, &config.Config{Source: config.SourceConfig{Kind: "sql", Driver: "oracle", DSN: "x"}})
	assert.Error(t, err)

	_, err = OpenSink(ctx, &config.Config{Sink: config.SinkConfig{Kind: "gcs"}})
	assert.Error(t, err)

	s, err := OpenSink(ctx, &config.Config{Sink: config.SinkConfig{Kind: "dir", Dir: t.TempDir()}})
	require.NoError(t, err)
	assert.IsType(t, &sink.DirSink{}, s)
}

func TestEntryForFailedStage(t *testing.T) {
	err := &pipeline.StageError{Stage: "fetch", Err: errors.New("warehouse down")}
	e := Entry(nil, err, Options{Command: "run"}, taxonomy.Default(), 1500*time.Millisecond)
	assert.Equal(t, audit.StatusFailed, e.Status)
	assert.Equal(t, "fetch", e.FailedStage)
	assert.Equal(t, int64(1500), e.DurationMs)
	assert.Equal(t, 90, e.LookbackDays)
}

type failingSink struct{}

func (failingSink) Exists(context.Context, string, string) (bool, error) {
	return false, errors.New("access denied")
}
func (failingSink) Delete(context.Context, string, string) error { return nil }
func (failingSink) WriteTable(context.Context, string, string, []byte, string) error {
	return nil
}
