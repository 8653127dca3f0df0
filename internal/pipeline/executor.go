// Package pipeline runs the license-utilization batch as a sequence of named
// stages.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/klytics/licensekit/internal/logging"
)

// Stage is one named step of a run.
type Stage struct {
	Name string
	// Export marks stages that write to the sink; they are skipped in dry-run mode.
	Export bool
	Run    func(ctx context.Context) error
}

// StageResult records how a stage went.
type StageResult struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ns"`
	Skipped  bool          `json:"skipped,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// StageError reports the stage a run failed in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %q failed: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// Executor runs stages sequentially and stops at the first failure.
type Executor struct {
	dryRun  bool
	onStart func(step, total int, name string)
	onStage func(name string, d time.Duration)
}

// NewExecutor creates an executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// SetDryRun enables dry-run mode. Export stages are skipped and reported.
func (e *Executor) SetDryRun(dryRun bool) {
	e.dryRun = dryRun
}

// OnStage registers fn to be called after each executed stage.
func (e *Executor) OnStage(fn func(name string, d time.Duration)) {
	e.onStage = fn
}

// OnStart registers fn to be called before each stage, with its 1-based step.
func (e *Executor) OnStart(fn func(step, total int, name string)) {
	e.onStart = fn
}

// Run executes stages in order.
func (e *Executor) Run(ctx context.Context, stages []Stage) ([]StageResult, error) {
	log := logging.Ctx(ctx)
	results := make([]StageResult, 0, len(stages))

	for i, st := range stages {
		if err := ctx.Err(); err != nil {
			return results, &StageError{Stage: st.Name, Err: err}
		}
		if e.dryRun && st.Export {
			log.Info().Str("stage", st.Name).Msg("dry run: export skipped")
			results = append(results, StageResult{Name: st.Name, Skipped: true})
			continue
		}

		if e.onStart != nil {
			e.onStart(i+1, len(stages), st.Name)
		}
		log.Debug().Int("step", i+1).Int("of", len(stages)).Str("stage", st.Name).Msg("stage started")
		start := time.Now()
		err := st.Run(ctx)
		d := time.Since(start)

		res := StageResult{Name: st.Name, Duration: d}
		if err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)
		if e.onStage != nil {
			e.onStage(st.Name, d)
		}

		if err != nil {
			log.Error().Err(err).Str("stage", st.Name).Dur("duration", d).Msg("stage failed")
			return results, &StageError{Stage: st.Name, Err: err}
		}
		log.Info().Str("stage", st.Name).Dur("duration", d).Msg("stage done")
	}
	return results, nil
}
