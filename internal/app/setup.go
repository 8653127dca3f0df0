package app

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/licensekit/internal/config"
	"github.com/klytics/licensekit/internal/logging"
	"github.com/klytics/licensekit/internal/output"
)

// Globals are the persistent root flags.
type Globals struct {
	ConfigPath string
	JSON       bool
	Verbose    bool
	NoColor    bool
}

// GlobalsFrom reads the persistent flags visible to cmd.
func GlobalsFrom(cmd *cobra.Command) Globals {
	var g Globals
	g.ConfigPath, _ = cmd.Flags().GetString("config")
	g.JSON, _ = cmd.Flags().GetBool("json")
	g.Verbose, _ = cmd.Flags().GetBool("verbose")
	g.NoColor, _ = cmd.Flags().GetBool("no-color")
	return g
}

// Setup loads and validates the configuration, then initializes logging
// from it. --verbose forces debug level.
func Setup(g Globals) (*config.Config, error) {
	if g.NoColor {
		color.NoColor = true
	}
	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		return nil, output.UserError(err)
	}

	level := cfg.Log.Level
	if g.Verbose {
		level = "debug"
	}
	logging.Init(logging.Config{Level: level, Format: cfg.Log.Format, NoColor: color.NoColor})

	issues := config.Validate(cfg)
	if config.HasErrors(issues) {
		var msgs []string
		for _, is := range issues {
			if is.Severity == "error" {
				msgs = append(msgs, is.Message)
			}
		}
		return nil, output.UserError(fmt.Errorf("invalid configuration in %s: %s", config.Path(), strings.Join(msgs, "; ")))
	}
	return cfg, nil
}
