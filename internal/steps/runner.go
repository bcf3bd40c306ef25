package steps

import (
	"context"
	"log/slog"
)

// Runner executes an ordered list of steps and unwinds the completed ones
// in reverse order when a step fails.
type Runner struct {
	steps        []*Step
	autoRollback bool
	logger       *slog.Logger
	completed    []*Step
	outputs      []Output
}

// NewRunner constructs a Runner over steps. When autoRollback is false a
// failed run leaves completed steps in place.
func NewRunner(steps []*Step, autoRollback bool, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		steps:        steps,
		autoRollback: autoRollback,
		logger:       logger,
	}
}

// ExecuteAll runs every step in order and reports overall success.
// Execution stops at the first failure. A cancelled ctx is treated as a
// failure of the step that was about to start.
func (r *Runner) ExecuteAll(ctx context.Context) bool {
	total := len(r.steps)

	for i, step := range r.steps {
		index := i + 1

		var res Result
		if err := ctx.Err(); err != nil {
			r.logger.Warn("run cancelled", "step", step.Name(), "error", err)
			res = Result{Outputs: []Output{}}
		} else {
			res = step.Execute(ctx, r.logger, index, total)
		}

		r.outputs = append(r.outputs, res.Outputs...)

		if res.OK {
			r.completed = append(r.completed, step)
			continue
		}

		r.logger.Error("step failed, aborting run", "index", index, "total", total, "step", step.Name())
		if r.autoRollback && len(r.completed) > 0 {
			r.logger.Warn("rolling back completed steps", "count", len(r.completed))
			if !r.RollbackCompleted(ctx) {
				r.logger.Error("rollback finished with errors")
			}
		}
		return false
	}

	return true
}

// RollbackCompleted undoes every completed step, last completed first, and
// reports whether all rollbacks succeeded. Rollback actions receive a context
// that is not cancelled together with ctx.
func (r *Runner) RollbackCompleted(ctx context.Context) bool {
	ctx = context.WithoutCancel(ctx)
	ok := true
	for i := len(r.completed) - 1; i >= 0; i-- {
		if !r.completed[i].Undo(ctx, r.logger, false) {
			ok = false
		}
	}
	return ok
}

// Outputs returns the outputs accumulated so far, in the order produced.
func (r *Runner) Outputs() []Output {
	return append([]Output(nil), r.outputs...)
}

// Completed returns the names of the steps that completed, in order.
func (r *Runner) Completed() []string {
	names := make([]string, 0, len(r.completed))
	for _, s := range r.completed {
		names = append(names, s.Name())
	}
	return names
}
