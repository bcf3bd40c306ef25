package steps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrRunFailed is returned by Execute when the selected plan did not succeed.
var ErrRunFailed = errors.New("run failed")

// CleanupFunc performs the global cleanup using the parsed flag values.
type CleanupFunc func(ctx context.Context, v Values) error

// Mode identifies which plan a Report belongs to.
type Mode string

const (
	// ModeCleanup is the global cleanup.
	ModeCleanup Mode = "cleanup"
	// ModeRollback is a single-step rollback.
	ModeRollback Mode = "rollback"
	// ModeIsolate is a single-step forward run.
	ModeIsolate Mode = "isolate"
	// ModeDefault is the filtered catalogue run.
	ModeDefault Mode = "default"
)

// Report is the outcome of a successful Execute.
type Report struct {
	Mode    Mode
	Steps   []string
	Outputs []Output
}

// Execute runs plan. The global cleanup is delegated to cleanup; every other
// mode goes through a Runner. It returns ErrRunFailed when the plan failed.
func Execute(ctx context.Context, plan Plan, cleanup CleanupFunc, logger *slog.Logger) (Report, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch p := plan.(type) {
	case CleanupPlan:
		logger.Info("running global cleanup")
		if cleanup == nil {
			return Report{}, fmt.Errorf("%w: no cleanup action configured", ErrRunFailed)
		}
		if err := cleanup(ctx, p.Values); err != nil {
			logger.Error("cleanup failed", "error", err)
			return Report{}, fmt.Errorf("%w: cleanup: %w", ErrRunFailed, err)
		}
		logger.Info("cleanup complete")
		return Report{Mode: ModeCleanup, Outputs: []Output{}}, nil

	case RollbackPlan:
		logger.Info("cleaning up single step", "step", p.Step.Name(), "description", p.Step.Description())
		if !p.Step.Undo(context.WithoutCancel(ctx), logger, true) {
			return Report{}, fmt.Errorf("%w: rollback of step %q", ErrRunFailed, p.Step.Name())
		}
		return Report{Mode: ModeRollback, Steps: []string{p.Step.Name()}, Outputs: []Output{}}, nil

	case IsolatePlan:
		logger.Info("running single step", "step", p.Step.Name(), "description", p.Step.Description())
		runner := NewRunner([]*Step{p.Step}, p.AutoRollback, logger)
		if !runner.ExecuteAll(ctx) {
			return Report{}, fmt.Errorf("%w: step %q", ErrRunFailed, p.Step.Name())
		}
		logger.Info("step complete", "step", p.Step.Name())
		return Report{Mode: ModeIsolate, Steps: runner.Completed(), Outputs: runner.Outputs()}, nil

	case DefaultPlan:
		names := make([]string, 0, len(p.Steps))
		for _, st := range p.Steps {
			names = append(names, st.Name())
		}
		logger.Info("running steps", "steps", names, "auto_rollback", p.AutoRollback)
		runner := NewRunner(p.Steps, p.AutoRollback, logger)
		if !runner.ExecuteAll(ctx) {
			return Report{}, fmt.Errorf("%w: setup failed", ErrRunFailed)
		}
		return Report{Mode: ModeDefault, Steps: runner.Completed(), Outputs: runner.Outputs()}, nil

	default:
		panic(fmt.Sprintf("steps: unknown plan %T", plan))
	}
}
