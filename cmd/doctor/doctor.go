// Package doctor provides the "licensekit doctor" command for checking a setup.
package doctor

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/licensekit/internal/app"
	"github.com/klytics/licensekit/internal/config"
	"github.com/klytics/licensekit/internal/output"
	"github.com/klytics/licensekit/internal/progress"
)

// NewCommand creates the "doctor" command.
func NewCommand() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, data source and sink access",
		Long:  "Run diagnostic checks to verify a batch can read its inputs and write its reports.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g := app.GlobalsFrom(cmd)
			if g.NoColor {
				color.NoColor = true
			}
			cfg, err := config.Load(g.ConfigPath)
			if err != nil {
				return output.UserError(err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			spin := progress.NewSpinner("checking data source and sink")
			spin.Enabled = spin.Enabled && !g.JSON
			spin.Start()
			checks := app.Diagnose(ctx, cfg)
			spin.Stop()

			if g.JSON {
				if err := output.PrintJSON("doctor", checks); err != nil {
					return err
				}
			} else {
				printChecks(checks)
			}
			if n := app.Failed(checks); n > 0 {
				return output.SystemError(fmt.Errorf("%d check(s) failed", n))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Time limit for network checks")
	return cmd
}

func printChecks(checks []app.Check) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Println("licensekit doctor")
	fmt.Println("=================")
	fmt.Println()

	okCount, warnCount, errCount := 0, 0, 0
	for _, c := range checks {
		var icon string
		switch c.Status {
		case app.CheckOK:
			icon = green("✓")
			okCount++
		case app.CheckWarning:
			icon = yellow("!")
			warnCount++
		default:
			icon = red("✗")
			errCount++
		}
		fmt.Printf("  %s %s: %s\n", icon, c.Name, c.Message)
	}
	fmt.Println()
	fmt.Printf("  %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)
}
