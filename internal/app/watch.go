package app

import (
	"fmt"
	"path/filepath"

	"github.com/klytics/licensekit/internal/config"
	"github.com/klytics/licensekit/internal/formats/table"
	"github.com/klytics/licensekit/internal/sink"
)

// ReportDir returns the local directory a dir sink writes report files to.
// It is empty for other sink kinds.
func ReportDir(cfg *config.Config) string {
	if cfg.Sink.Kind != "dir" {
		return ""
	}
	f, err := table.ParseFormat(cfg.Sink.Format)
	if err != nil {
		f = table.FormatCSV
	}
	key := sink.Key(cfg.Sink.Prefix, "report", f)
	return filepath.Dir(filepath.Join(cfg.Sink.Dir, cfg.Sink.Bucket, filepath.FromSlash(key)))
}

// CheckWatchable rejects configurations where each export would land in the
// watched source directory and trigger the next run.
func CheckWatchable(cfg *config.Config) error {
	if cfg.Source.Kind != "dir" {
		return fmt.Errorf("watch needs source.kind=dir, got %q", cfg.Source.Kind)
	}
	out := ReportDir(cfg)
	if out == "" {
		return nil
	}
	if samePath(out, cfg.Source.Dir) {
		return fmt.Errorf("sink writes reports into the watched directory %s; point sink.dir, sink.bucket or sink.prefix elsewhere", cfg.Source.Dir)
	}
	return nil
}

func samePath(a, b string) bool {
	return canonical(a) == canonical(b)
}

func canonical(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
