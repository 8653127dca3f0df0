//go:build ignore

// This program generates synthetic input files for licensekit.
//
//	go run testdata/generate_fixtures.go -users 500 -events 40 -out testdata/generated
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klytics/licensekit/internal/formats/table"
	"github.com/klytics/licensekit/internal/source"
	"github.com/klytics/licensekit/internal/usage/synth"
)

func main() {
	var (
		out    = flag.String("out", "testdata/generated", "output directory")
		users  = flag.Int("users", 200, "number of platform users")
		events = flag.Int("events", 30, "action log rows per user")
		seed   = flag.Uint64("seed", 1, "random seed")
		hrFmt  = flag.String("hr-format", "xlsx", "HR directory format (csv, xlsx, json)")
	)
	flag.Parse()

	if err := generate(*out, *users, *events, *seed, *hrFmt); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating fixtures: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Fixtures written to %s\n", *out)
}

func generate(dir string, users, events int, seed uint64, hrFormat string) error {
	hf, err := table.ParseFormat(hrFormat)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	d := synth.Generate(synth.Options{Seed: seed, Users: users, EventsPerUser: events})

	files := []struct {
		name   string
		cols   []string
		rows   source.Rows
		format table.Format
	}{
		{"spotfire_if2sf_users", synth.Columns.Users, d.Users, table.FormatCSV},
		{"spotfire_if2sf_actionlog", synth.Columns.Actions, d.Actions, table.FormatCSV},
		{"employee_ghr", synth.Columns.HR, d.HR, hf},
	}
	for _, f := range files {
		t := table.New(f.name, f.cols...)
		for _, r := range f.rows {
			vals := make([]string, len(f.cols))
			for i, c := range f.cols {
				vals[i] = r[c]
			}
			t.Append(vals...)
		}
		data, err := table.Encode(t, f.format)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, f.name+f.format.Ext()), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
