// Package run provides the "licensekit run" command.
package run

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/klytics/licensekit/internal/admin"
	"github.com/klytics/licensekit/internal/app"
	"github.com/klytics/licensekit/internal/output"
	"github.com/klytics/licensekit/internal/pipeline"
	"github.com/klytics/licensekit/internal/progress"
	"github.com/klytics/licensekit/internal/taxonomy"
	"github.com/klytics/licensekit/internal/usage"
)

// showTables maps --show values to report table names.
var showTables = map[string]string{
	"users":     admin.KeyUsers,
	"actions":   admin.KeyTopActions,
	"content":   admin.KeyContent,
	"platforms": admin.KeyPlatforms,
	"summary":   admin.KeyPlatformSum,
}

func showChoices() string {
	keys := make([]string, 0, len(showTables))
	for k := range showTables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

// NewCommand returns the run command.
func NewCommand() *cobra.Command {
	var (
		dryRun       bool
		threshold    float64
		lookbackDays int
		taxonomyFile string
		show         []string
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the utilization batch once",
		Long: `Fetch users, action logs and the HR directory, compute per-user analyst
utilization and write the five report tables to the configured sink.

Example:
  licensekit run
  licensekit run --dry-run --show users --show summary
  licensekit run --threshold 60 --lookback-days 30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range show {
				if _, ok := showTables[s]; !ok {
					return output.UserError(fmt.Errorf("unknown --show table %q (supported: %s)", s, showChoices()))
				}
			}

			g := app.GlobalsFrom(cmd)
			cfg, err := app.Setup(g)
			if err != nil {
				return err
			}

			opts := app.Options{
				TaxonomyFile: taxonomyFile,
				DryRun:       dryRun,
				Command:      "run",
				Args:         os.Args,
			}
			if cmd.Flags().Changed("threshold") {
				opts.Overrides.Threshold = &threshold
			}
			if cmd.Flags().Changed("lookback-days") {
				opts.Overrides.LookbackDays = &lookbackDays
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			bar := progress.New("licensekit")
			bar.Enabled = bar.Enabled && !g.JSON
			opts.Progress = bar.Step

			start := time.Now()
			res, err := app.NewRunner(cfg).Run(ctx, opts)
			if err != nil {
				bar.Clear()
				return err
			}
			bar.Finish(fmt.Sprintf("%d stages in %s", len(res.Stages), time.Since(start).Round(time.Millisecond)))

			if g.JSON {
				return output.PrintJSON("run", jsonResult(res, show))
			}
			printSummary(output.NewWriter(), res)
			for _, s := range show {
				t := res.Table(showTables[s])
				if t == nil {
					continue
				}
				fmt.Println()
				output.NewWriter().Heading(t.Name)
				if err := output.Show(output.FormatTable(t, limit)); err != nil {
					return output.SystemError(err)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute reports without writing to the sink")
	cmd.Flags().Float64Var(&threshold, "threshold", taxonomy.DefaultThreshold, "Analyst percentage at or above which a user is flagged")
	cmd.Flags().IntVar(&lookbackDays, "lookback-days", taxonomy.DefaultLookbackDays, "Days of activity to analyze")
	cmd.Flags().StringVar(&taxonomyFile, "taxonomy", "", "Taxonomy YAML file (overrides taxonomy.file)")
	cmd.Flags().StringSliceVar(&show, "show", nil, "Print report tables: "+showChoices())
	cmd.Flags().IntVar(&limit, "limit", 25, "Rows to print per --show table (0 for all)")

	return cmd
}

type runJSON struct {
	*pipeline.Result
	Invalid map[string]int                 `json:"invalid_rows"`
	Tables  map[string][]map[string]string `json:"tables,omitempty"`
}

func jsonResult(res *pipeline.Result, show []string) runJSON {
	out := runJSON{
		Result:  res,
		Invalid: map[string]int{usage.DropInvalidTime: res.Invalid(usage.DropInvalidTime)},
	}
	if len(show) > 0 {
		out.Tables = make(map[string][]map[string]string, len(show))
		for _, s := range show {
			if t := res.Table(showTables[s]); t != nil {
				out.Tables[t.Name] = t.Records()
			}
		}
	}
	return out
}

func printSummary(w *output.Writer, res *pipeline.Result) {
	w.Heading("Run " + res.RunID)
	w.Field("Window since", res.Cutoff.Format("2006-01-02"))
	w.Field("Users", res.Totals.Users)
	w.Field("Analyst actions", res.Totals.Analyst)
	w.Field("Other actions", res.Totals.NonAnalyst)
	w.Field("Flagged users", res.Totals.Flagged)
	w.Field("Idle users", res.Totals.Idle)
	if res.Identity != nil {
		w.Field("HR match (email)", res.Identity.ByEmail)
		w.Field("HR match (nt_id)", res.Identity.ByNTID)
		w.Field("No HR match", res.Identity.Dropped)
	}
	if n := res.Invalid(usage.DropInvalidTime); n > 0 {
		w.Warn("%d action rows had an unparseable logged_time and were skipped", n)
	}
	if res.DryRun {
		w.Warn("dry run: %d tables not exported", len(res.Tables))
		return
	}
	for _, o := range res.Outputs {
		verb := "wrote"
		if o.Replaced {
			verb = "replaced"
		}
		w.OK("%s %s/%s (%d rows)", verb, o.Bucket, o.Key, o.Rows)
	}
}
