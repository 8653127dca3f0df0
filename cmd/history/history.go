// Package history provides the "licensekit history" commands for the run history.
package history

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/klytics/licensekit/internal/app"
	"github.com/klytics/licensekit/internal/audit"
	"github.com/klytics/licensekit/internal/output"
)

// NewCommand creates the "history" command.
func NewCommand() *cobra.Command {
	var (
		last   int
		since  string
		until  string
		status string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past runs",
		Long:  "List runs recorded in the history file, newest last.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g := app.GlobalsFrom(cmd)
			cfg, err := app.Setup(g)
			if err != nil {
				return err
			}

			sinceTime, err := parseDate("--since", since)
			if err != nil {
				return err
			}
			untilTime, err := parseDate("--until", until)
			if err != nil {
				return err
			}
			if !untilTime.IsZero() {
				untilTime = untilTime.AddDate(0, 0, 1)
			}
			if status != "" && status != audit.StatusOK && status != audit.StatusFailed {
				return output.UserError(fmt.Errorf("invalid --status %q (use ok or failed)", status))
			}

			path := cfg.History.Path
			entries, err := audit.ReadEntries(path)
			if err != nil {
				return output.SystemError(err)
			}
			filtered := audit.FilterEntries(entries, sinceTime, untilTime, status)
			if last > 0 && len(filtered) > last {
				filtered = filtered[len(filtered)-last:]
			}

			if g.JSON {
				return output.PrintJSON("history", filtered)
			}
			if len(filtered) == 0 {
				fmt.Println("No runs recorded.")
				return nil
			}

			output.NewWriter().Heading(fmt.Sprintf("Run History (%d runs)", len(filtered)))
			fmt.Printf("File: %s\n\n", path)

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "TIMESTAMP\tRUN\tCOMMAND\tSTATUS\tDURATION\tUSERS\tFLAGGED\tNO HR\tDETAIL\n")
			for _, e := range filtered {
				detail := strings.Join(e.OutputObjects, " ")
				if e.Status == audit.StatusFailed {
					detail = e.FailedStage + ": " + e.Error
				} else if e.DryRun {
					detail = "dry run"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.RunID, e.Command, e.Status,
					formatDuration(e.DurationMs), e.Users, e.FlaggedUsers, e.DroppedUsers, detail)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&last, "last", 20, "Show last N runs")
	cmd.Flags().StringVar(&since, "since", "", "Only runs on or after date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&until, "until", "", "Only runs on or before date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status: ok or failed")

	cmd.AddCommand(newClearCmd())
	return cmd
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the run history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g := app.GlobalsFrom(cmd)
			cfg, err := app.Setup(g)
			if err != nil {
				return err
			}
			if err := audit.Clear(cfg.History.Path); err != nil {
				return output.SystemError(err)
			}
			if g.JSON {
				return output.PrintJSON("history clear", map[string]string{"cleared": cfg.History.Path})
			}
			fmt.Printf("Run history cleared: %s\n", cfg.History.Path)
			return nil
		},
	}
}

func parseDate(flag, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return time.Time{}, output.UserError(fmt.Errorf("invalid %s date: %w (use YYYY-MM-DD)", flag, err))
	}
	return t, nil
}

func formatDuration(ms int64) string {
	if ms >= 1000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	return fmt.Sprintf("%dms", ms)
}
