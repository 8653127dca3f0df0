// Package cmd contains all CLI commands for the licensekit binary.
package cmd

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/licensekit/cmd/completion"
	cmdconfig "github.com/klytics/licensekit/cmd/config"
	"github.com/klytics/licensekit/cmd/doctor"
	"github.com/klytics/licensekit/cmd/history"
	"github.com/klytics/licensekit/cmd/run"
	cmdtaxonomy "github.com/klytics/licensekit/cmd/taxonomy"
	"github.com/klytics/licensekit/cmd/version"
	cmdwatch "github.com/klytics/licensekit/cmd/watch"
	"github.com/klytics/licensekit/internal/output"
)

var (
	jsonOutput bool
	verbose    bool
	noColor    bool
	configPath string
)

// NewRootCommand creates and returns the root cobra command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "licensekit",
		Short: "License utilization reports for analytics platform seats",
		Long: `licensekit reads platform users, action logs and the HR directory,
classifies every action as analyst or non-analyst functionality and writes
per-user utilization, top actions, most viewed content and platform login
reports to a bucket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as machine-readable JSON")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable ANSI color output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.licensekit/config.yaml)")

	rootCmd.AddCommand(run.NewCommand())
	rootCmd.AddCommand(cmdwatch.NewCommand())
	rootCmd.AddCommand(history.NewCommand())
	rootCmd.AddCommand(cmdtaxonomy.NewCommand())
	rootCmd.AddCommand(cmdconfig.NewCommand())
	rootCmd.AddCommand(doctor.NewCommand())
	rootCmd.AddCommand(completion.NewCommand(rootCmd))
	rootCmd.AddCommand(version.NewCommand())

	return rootCmd
}

// Execute runs the root command and exits with the code its error maps to.
func Execute() {
	rootCmd := NewRootCommand()
	c, err := rootCmd.ExecuteC()
	if err == nil {
		return
	}
	if jsonOutput {
		_ = output.PrintJSONError(c.Name(), err)
	} else {
		output.WriteError("%s", err)
	}
	os.Exit(output.ExitCode(err))
}
