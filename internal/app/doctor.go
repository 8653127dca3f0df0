package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/klytics/licensekit/internal/config"
	"github.com/klytics/licensekit/internal/sink"
	"github.com/klytics/licensekit/internal/source"
	"github.com/klytics/licensekit/internal/taxonomy"
)

// Check statuses.
const (
	CheckOK      = "ok"
	CheckWarning = "warning"
	CheckError   = "error"
)

// Check is one diagnostic result.
type Check struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// probeKey is looked up, never written, when checking an S3 sink.
const probeKey = ".licensekit-doctor"

// Diagnose checks that cfg can run a batch: configuration, taxonomy,
// data source datasets, sink access and the history file. Network checks
// honor ctx.
func Diagnose(ctx context.Context, cfg *config.Config) []Check {
	checks := []Check{{
		Name:    "Go Runtime",
		Status:  CheckOK,
		Message: fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
	}}
	add := func(name, status, format string, args ...any) {
		checks = append(checks, Check{Name: name, Status: status, Message: fmt.Sprintf(format, args...)})
	}

	if _, err := os.Stat(config.Path()); err == nil {
		add("Config File", CheckOK, "%s", config.Path())
	} else {
		add("Config File", CheckWarning, "%s not found, using defaults and environment", config.Path())
	}

	issues := config.Validate(cfg)
	if config.HasErrors(issues) {
		for _, is := range issues {
			if is.Severity == "error" {
				add("Configuration", CheckError, "%s: %s", is.Key, is.Message)
			}
		}
		return checks
	}
	add("Configuration", CheckOK, "valid")

	if loc, err := cfg.Location(); err != nil {
		add("Timezone", CheckError, "%v", err)
	} else {
		add("Timezone", CheckOK, "%s (now %s)", loc, time.Now().In(loc).Format("15:04 MST"))
	}

	if tax, err := LoadTaxonomy(cfg, "", taxonomy.Overrides{}); err != nil {
		add("Taxonomy", CheckError, "%v", err)
	} else {
		name := cfg.Taxonomy.File
		if name == "" {
			name = "built-in"
		}
		add("Taxonomy", CheckOK, "%s: threshold %g%%, lookback %d days, %d analyst categories",
			name, tax.Threshold, tax.LookbackDays, len(tax.AnalystCategories()))
	}

	checks = append(checks, checkSource(ctx, cfg)...)
	checks = append(checks, checkSink(ctx, cfg))
	checks = append(checks, checkHistory(cfg.History.Path))
	if cfg.Metrics.PushgatewayURL != "" {
		add("Metrics", CheckOK, "pushing to %s as job %s", cfg.Metrics.PushgatewayURL, cfg.Metrics.Job)
	}
	return checks
}

func checkSource(ctx context.Context, cfg *config.Config) []Check {
	src, closeFn, err := OpenSource(ctx, cfg)
	if err != nil {
		return []Check{{Name: "Data Source", Status: CheckError, Message: err.Error()}}
	}
	defer closeFn()

	dir, ok := src.(*source.DirSource)
	if !ok {
		return []Check{{Name: "Data Source", Status: CheckOK, Message: cfg.Source.Driver + " warehouse reachable"}}
	}
	out := []Check{{Name: "Data Source", Status: CheckOK, Message: dir.Dir}}
	ds := cfg.Source.Datasets
	for _, name := range []string{ds.Users, ds.Actions, ds.HR} {
		if p, err := dir.Path(name); err != nil {
			out = append(out, Check{Name: "Dataset " + name, Status: CheckError, Message: err.Error()})
		} else {
			out = append(out, Check{Name: "Dataset " + name, Status: CheckOK, Message: p})
		}
	}
	return out
}

func checkSink(ctx context.Context, cfg *config.Config) Check {
	c := Check{Name: "Result Sink"}
	s, err := OpenSink(ctx, cfg)
	if err != nil {
		c.Status, c.Message = CheckError, err.Error()
		return c
	}
	if d, ok := s.(*sink.DirSink); ok {
		if err := writable(filepath.Join(d.Root, cfg.Sink.Bucket)); err != nil {
			c.Status, c.Message = CheckError, err.Error()
			return c
		}
	} else if _, err := s.Exists(ctx, cfg.Sink.Bucket, probeKey); err != nil {
		c.Status, c.Message = CheckError, fmt.Sprintf("bucket %s: %v", cfg.Sink.Bucket, err)
		return c
	}
	c.Status, c.Message = CheckOK, fmt.Sprintf("%s bucket %s (%s)", cfg.Sink.Kind, cfg.Sink.Bucket, cfg.Sink.Format)
	return c
}

func checkHistory(path string) Check {
	c := Check{Name: "Run History"}
	if path == "" {
		c.Status, c.Message = CheckWarning, "disabled (history.path is empty)"
		return c
	}
	if err := writable(filepath.Dir(path)); err != nil {
		c.Status, c.Message = CheckError, err.Error()
		return c
	}
	c.Status, c.Message = CheckOK, path
	return c
}

// writable creates dir if needed and verifies a file can be created in it.
func writable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// Failed counts checks with status error.
func Failed(checks []Check) int {
	n := 0
	for _, c := range checks {
		if c.Status == CheckError {
			n++
		}
	}
	return n
}
