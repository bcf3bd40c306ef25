package steps

import (
	"context"
	"io"
	"log/slog"
)

type recorder struct {
	calls []string
}

func (r *recorder) add(call string) {
	r.calls = append(r.calls, call)
}

type testParams struct {
	Port  int
	Host  string
	Force bool
}

type stepOpts struct {
	fail        bool
	panics      bool
	noRollback  bool
	rollbackErr error
	outputs     []Output
	kind        Kind
	perform     string
	rollback    string
	dependsOn   []string
}

func testStep(rec *recorder, name string, o stepOpts) Template {
	def := Definition[testParams]{
		Name:         name,
		Description:  "run " + name,
		PerformFlag:  o.perform,
		RollbackFlag: o.rollback,
		Kind:         o.kind,
		DependsOn:    o.dependsOn,
		Perform: func(_ context.Context, _ testParams) ([]Output, error) {
			rec.add("perform:" + name)
			if o.panics {
				panic("boom")
			}
			if o.fail {
				return nil, ErrStepFailed
			}
			return o.outputs, nil
		},
	}
	if !o.noRollback {
		def.Rollback = func(_ context.Context, _ testParams) error {
			rec.add("undo:" + name)
			return o.rollbackErr
		}
	}
	return New(def)
}

func instances(templates ...Template) []*Step {
	out := make([]*Step, 0, len(templates))
	for _, t := range templates {
		out = append(out, t.Instantiate())
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
