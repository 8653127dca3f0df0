// Package watch provides the "licensekit watch" command.
package watch

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/klytics/licensekit/internal/app"
	"github.com/klytics/licensekit/internal/config"
	"github.com/klytics/licensekit/internal/logging"
	"github.com/klytics/licensekit/internal/output"
	w "github.com/klytics/licensekit/internal/watch"
)

// NewCommand returns the watch command.
func NewCommand() *cobra.Command {
	var (
		debounce     time.Duration
		extensions   []string
		initial      bool
		dryRun       bool
		taxonomyFile string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the batch whenever the source directory changes",
		Long: `Watch source.dir and run the full batch each time its input files
change. Only available with source.kind=dir.

Example:
  licensekit watch
  licensekit watch --debounce 2s --initial=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Setup(app.GlobalsFrom(cmd))
			if err != nil {
				return err
			}
			if err := app.CheckWatchable(cfg); err != nil {
				return output.UserError(err)
			}

			stateDir := config.Dir()
			if pid, err := w.ReadPIDFile(stateDir); err == nil && processAlive(pid) {
				return output.UserError(fmt.Errorf("a watcher is already running (PID %d)", pid))
			}
			if err := w.WritePIDFile(stateDir); err != nil {
				logging.Ctx(cmd.Context()).Warn().Err(err).Msg("could not write PID file")
			}
			defer w.RemovePIDFile(stateDir)

			runner := app.NewRunner(cfg)
			opts := app.Options{TaxonomyFile: taxonomyFile, DryRun: dryRun, Command: "watch", Args: os.Args}
			handler := func(ctx context.Context, changed []string) error {
				_, err := runner.Run(ctx, opts)
				return err
			}

			watcher, err := w.New(w.Config{Dir: cfg.Source.Dir, Extensions: extensions, Debounce: debounce}, handler)
			if err != nil {
				return output.SystemError(err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx = logging.WithLogger(ctx, w.Logger())

			if initial {
				if err := handler(ctx, nil); err != nil {
					logging.Ctx(ctx).Error().Err(err).Msg("initial run failed")
				}
			}
			if err := watcher.Start(ctx); err != nil {
				return output.SystemError(err)
			}

			st := watcher.Status()
			if app.GlobalsFrom(cmd).JSON {
				return output.PrintJSON("watch", map[string]any{"status": st, "triggers": watcher.Triggers()})
			}
			output.NewWriter().OK("watcher stopped after %d triggered runs", st.Triggers)
			return nil
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 2*time.Second, "Quiet period before a change triggers a run")
	cmd.Flags().StringSliceVar(&extensions, "ext", nil, "File extensions to watch (default .csv,.json,.xlsx)")
	cmd.Flags().BoolVar(&initial, "initial", true, "Run once at startup")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute reports without writing to the sink")
	cmd.Flags().StringVar(&taxonomyFile, "taxonomy", "", "Taxonomy YAML file (overrides taxonomy.file)")

	return cmd
}

func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}
