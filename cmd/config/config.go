// Package config provides CLI commands for configuration management.
package config

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/licensekit/internal/app"
	"github.com/klytics/licensekit/internal/config"
	"github.com/klytics/licensekit/internal/output"
)

// NewCommand returns the config command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect licensekit configuration",
		Long: `Show and validate the settings read from ~/.licensekit/config.yaml
(or --config) and LICENSEKIT_* environment variables.`,
	}

	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newPathCommand())

	return cmd
}

func load(cmd *cobra.Command) (*config.Config, app.Globals, error) {
	g := app.GlobalsFrom(cmd)
	if g.NoColor {
		color.NoColor = true
	}
	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		return nil, g, output.UserError(err)
	}
	return cfg, g, nil
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, g, err := load(cmd)
			if err != nil {
				return err
			}
			if g.JSON {
				return output.PrintJSON("config show", cfg.Redacted())
			}
			fmt.Print(config.Show(cfg))
			return nil
		},
	}
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, g, err := load(cmd)
			if err != nil {
				return err
			}
			issues := config.Validate(cfg)

			if g.JSON {
				if err := output.PrintJSON("config validate", issues); err != nil {
					return err
				}
			} else {
				printIssues(issues)
			}
			if config.HasErrors(issues) {
				return output.UserError(fmt.Errorf("configuration has errors"))
			}
			return nil
		},
	}
}

func printIssues(issues []config.ConfigIssue) {
	errs, warns := 0, 0
	for _, is := range issues {
		switch is.Severity {
		case "error":
			errs++
		case "warning":
			warns++
		}
	}
	if errs == 0 && warns == 0 {
		color.New(color.FgGreen).Println("Configuration is valid")
	} else {
		fmt.Printf("Config validation: %d errors, %d warnings\n\n", errs, warns)
	}

	for _, is := range issues {
		var c *color.Color
		switch is.Severity {
		case "error":
			c = color.New(color.FgRed)
		case "warning":
			c = color.New(color.FgYellow)
		default:
			c = color.New(color.FgGreen)
		}
		c.Printf("  %s: %s\n", is.Key, is.Message)
		if is.Fix != "" {
			fmt.Printf("    fix: %s\n", is.Fix)
		}
	}
}

func newPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := load(cmd); err != nil {
				return err
			}
			fmt.Println(config.Path())
			return nil
		},
	}
}
