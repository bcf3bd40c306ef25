package steps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrStepFailed is the plain failure result of a step action. Actions return
// it when they have nothing more specific to report.
var ErrStepFailed = errors.New("step failed")

// Output is a structured record emitted by a successful step and reported to
// the user after the run.
type Output struct {
	Title string
	Body  string
}

// Result is the normalized outcome of a step's forward action.
// Outputs is never nil.
type Result struct {
	OK      bool
	Outputs []Output
}

// PerformFunc is a step's forward action.
type PerformFunc[P any] func(ctx context.Context, params P) ([]Output, error)

// RollbackFunc is a step's compensating action.
type RollbackFunc[P any] func(ctx context.Context, params P) error

// Binding maps a parsed CLI flag onto a field of the step's parameters.
type Binding[P any] struct {
	// Param names the parameter field for listings and error messages.
	Param string
	// Flag is the CliArg name the value is read from.
	Flag string
	// Type is the value type the setter accepts.
	Type ArgType
	set  func(p *P, v any)
}

// BindInt binds an integer flag to a parameter field.
func BindInt[P any](param, flag string, set func(p *P, v int)) Binding[P] {
	return Binding[P]{Param: param, Flag: flag, Type: ArgInt, set: func(p *P, v any) { set(p, v.(int)) }}
}

// BindString binds a string flag to a parameter field.
func BindString[P any](param, flag string, set func(p *P, v string)) Binding[P] {
	return Binding[P]{Param: param, Flag: flag, Type: ArgString, set: func(p *P, v any) { set(p, v.(string)) }}
}

// BindBool binds a boolean flag to a parameter field.
func BindBool[P any](param, flag string, set func(p *P, v bool)) Binding[P] {
	return Binding[P]{Param: param, Flag: flag, Type: ArgBool, set: func(p *P, v any) { set(p, v.(bool)) }}
}

// Definition is the immutable declaration of a step with parameters of type P.
// P should be a plain value type: every run works on its own copy.
type Definition[P any] struct {
	// Name is the unique identity of the step.
	Name string
	// Description is the user-facing summary logged when the step runs.
	Description string
	// Params is the parameter template copied into every instance.
	Params P
	// Perform is the forward action.
	Perform PerformFunc[P]
	// Rollback is the optional compensating action; nil means none is needed.
	Rollback RollbackFunc[P]
	// PerformFlag names a flag that runs only this step, e.g. "registry_only".
	PerformFlag string
	// RollbackFlag names a flag that rolls back only this step, e.g. "cleanup_registry".
	RollbackFlag string
	// Kind controls participation in a default run. Nil means Required.
	Kind Kind
	// CLIArgs are the flags this step contributes to the shared surface.
	CLIArgs []CliArg
	// Bindings inject parsed flag values into Params before execution.
	Bindings []Binding[P]
	// DependsOn lists the names of steps that must run before this one.
	DependsOn []string
}

// BindingInfo is the type-erased view of a Binding.
type BindingInfo struct {
	Param string
	Flag  string
	Type  ArgType
}

// Meta is the type-erased metadata of a step template.
type Meta struct {
	Name         string
	Description  string
	PerformFlag  string
	RollbackFlag string
	Kind         Kind
	CLIArgs      []CliArg
	Bindings     []BindingInfo
	DependsOn    []string
	HasRollback  bool
}

// Template is an immutable catalogue entry that produces fresh step instances.
type Template interface {
	Meta() Meta
	Instantiate() *Step
}

type definitionTemplate[P any] struct {
	def Definition[P]
}

// New wraps a Definition into a Template.
func New[P any](def Definition[P]) Template {
	if def.Kind == nil {
		def.Kind = Required{}
	}
	def.CLIArgs = append([]CliArg(nil), def.CLIArgs...)
	def.Bindings = append([]Binding[P](nil), def.Bindings...)
	def.DependsOn = append([]string(nil), def.DependsOn...)
	return &definitionTemplate[P]{def: def}
}

func (t *definitionTemplate[P]) Meta() Meta {
	bindings := make([]BindingInfo, 0, len(t.def.Bindings))
	for _, b := range t.def.Bindings {
		bindings = append(bindings, BindingInfo{Param: b.Param, Flag: b.Flag, Type: b.Type})
	}
	return Meta{
		Name:         t.def.Name,
		Description:  t.def.Description,
		PerformFlag:  t.def.PerformFlag,
		RollbackFlag: t.def.RollbackFlag,
		Kind:         t.def.Kind,
		CLIArgs:      append([]CliArg(nil), t.def.CLIArgs...),
		Bindings:     bindings,
		DependsOn:    append([]string(nil), t.def.DependsOn...),
		HasRollback:  t.def.Rollback != nil,
	}
}

func (t *definitionTemplate[P]) Instantiate() *Step {
	params := t.def.Params
	def := t.def
	s := &Step{
		meta: t.Meta(),
		perform: func(ctx context.Context) ([]Output, error) {
			if def.Perform == nil {
				return nil, fmt.Errorf("step %q has no perform action", def.Name)
			}
			return def.Perform(ctx, params)
		},
		apply: func(v Values) error {
			for _, b := range def.Bindings {
				raw, ok := v.Lookup(b.Flag)
				if !ok {
					continue
				}
				if !valueHasType(raw, b.Type) {
					return fmt.Errorf("%w: step %q binds %q to flag --%s as %s, got %T",
						ErrFlagType, def.Name, b.Param, FlagName(b.Flag), b.Type, raw)
				}
				b.set(&params, raw)
			}
			return nil
		},
		params: func() any { return params },
	}
	if def.Rollback != nil {
		s.rollback = func(ctx context.Context) error { return def.Rollback(ctx, params) }
	}
	return s
}

// Step is one mutable instance of a Template, owned by a single run.
type Step struct {
	meta      Meta
	completed bool
	perform   func(ctx context.Context) ([]Output, error)
	rollback  func(ctx context.Context) error
	apply     func(v Values) error
	params    func() any
}

// Name returns the step identity.
func (s *Step) Name() string { return s.meta.Name }

// Description returns the user-facing description.
func (s *Step) Description() string { return s.meta.Description }

// Meta returns the template metadata of the step.
func (s *Step) Meta() Meta { return s.meta }

// Completed reports whether the forward action has succeeded.
func (s *Step) Completed() bool { return s.completed }

// Params returns a copy of the current parameter value.
func (s *Step) Params() any { return s.params() }

// Apply injects bound flag values into the step parameters.
func (s *Step) Apply(v Values) error { return s.apply(v) }

// ShouldPerformOnly reports whether the user requested running only this step.
func (s *Step) ShouldPerformOnly(v Values) bool {
	return s.meta.PerformFlag != "" && Flag(v, s.meta.PerformFlag)
}

// ShouldRollback reports whether the user requested rolling back only this step.
func (s *Step) ShouldRollback(v Values) bool {
	return s.meta.RollbackFlag != "" && Flag(v, s.meta.RollbackFlag)
}

// Execute runs the forward action. Errors and panics are logged and turned
// into a failed Result; they never escape.
func (s *Step) Execute(ctx context.Context, logger *slog.Logger, index, total int) Result {
	logger.Info(fmt.Sprintf("[%d/%d] %s", index, total, s.meta.Description), "step", s.meta.Name)

	outputs, err := guard(func() ([]Output, error) { return s.perform(ctx) })
	if err != nil {
		logger.Error("step failed", "step", s.meta.Name, "error", err)
		return Result{OK: false, Outputs: []Output{}}
	}

	s.completed = true
	if outputs == nil {
		outputs = []Output{}
	}
	return Result{OK: true, Outputs: outputs}
}

// Undo runs the rollback action when the step completed, or unconditionally
// when force is set. A missing rollback action counts as success.
func (s *Step) Undo(ctx context.Context, logger *slog.Logger, force bool) bool {
	if !s.completed && !force {
		return true
	}
	if s.rollback == nil {
		logger.Info("no rollback defined", "step", s.meta.Name)
		return true
	}

	logger.Info("rolling back step", "step", s.meta.Name)
	_, err := guard(func() ([]Output, error) { return nil, s.rollback(ctx) })
	if err != nil {
		logger.Error("rollback failed", "step", s.meta.Name, "error", err)
		return false
	}
	return true
}

// guard calls fn and converts a panic into an error.
func guard(fn func() ([]Output, error)) (outputs []Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			outputs = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func valueHasType(v any, t ArgType) bool {
	switch t {
	case ArgBool:
		_, ok := v.(bool)
		return ok
	case ArgInt:
		_, ok := v.(int)
		return ok
	case ArgString:
		_, ok := v.(string)
		return ok
	default:
		return false
	}
}
