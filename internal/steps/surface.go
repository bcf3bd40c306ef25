package steps

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
)

const (
	// CleanupFlag requests the global cleanup instead of running steps.
	CleanupFlag = "cleanup"
	// NoRollbackFlag disables the automatic unwind of a failed run.
	NoRollbackFlag = "no-rollback"
)

type argUsage struct {
	step        string
	description string
}

type mergedArg struct {
	arg    CliArg
	usages []argUsage
}

type controlFlag struct {
	name string
	help string
}

// Surface is the command-line namespace derived from a catalogue: one flag
// per distinct CliArg, one boolean per distinct control flag, and the two
// global flags.
type Surface struct {
	catalogue *Catalogue
	args      []mergedArg
	controls  []controlFlag
	types     map[string]ArgType
}

// NewSurface merges the flag declarations of every step in c.
func NewSurface(c *Catalogue) *Surface {
	s := &Surface{
		catalogue: c,
		types: map[string]ArgType{
			CleanupFlag:    ArgBool,
			NoRollbackFlag: ArgBool,
		},
	}

	pos := make(map[string]int)
	for _, m := range c.metas {
		for _, a := range m.CLIArgs {
			name := a.FlagName()
			u := argUsage{step: m.Name, description: a.StepDescription}
			if i, ok := pos[name]; ok {
				s.args[i].usages = append(s.args[i].usages, u)
				continue
			}
			pos[name] = len(s.args)
			s.args = append(s.args, mergedArg{arg: a, usages: []argUsage{u}})
			s.types[name] = a.Type
		}
	}

	for _, m := range c.metas {
		for _, cf := range controlFlags(m) {
			name := FlagName(cf[0])
			if _, ok := s.types[name]; ok {
				continue
			}
			s.types[name] = ArgBool
			s.controls = append(s.controls, controlFlag{name: name, help: controlHelp(cf[1], m.Name)})
		}
	}

	return s
}

func controlHelp(label, step string) string {
	switch label {
	case "skip flag":
		return fmt.Sprintf("Step-specific argument. Skip step '%s'", step)
	case "enable flag":
		return fmt.Sprintf("Step-specific argument. Enable step '%s'", step)
	case "perform flag":
		return fmt.Sprintf("Step-specific argument. Only run step '%s'", step)
	default:
		return fmt.Sprintf("Step-specific argument. Rollback step '%s'", step)
	}
}

// FlagNames returns every flag of the surface in registration order.
func (s *Surface) FlagNames() []string {
	names := []string{CleanupFlag, NoRollbackFlag}
	for _, a := range s.args {
		names = append(names, a.arg.FlagName())
	}
	for _, c := range s.controls {
		names = append(names, c.name)
	}
	return names
}

// Register adds every flag of the surface to fs.
func (s *Surface) Register(fs *pflag.FlagSet) {
	fs.Bool(CleanupFlag, false, "Global argument. Performs complete cleanup")
	fs.Bool(NoRollbackFlag, false, "Global argument. Disable automatic rollback on failure")

	for _, m := range s.args {
		help := mergedHelp(m)
		name := m.arg.FlagName()
		switch m.arg.Type {
		case ArgBool:
			def, _ := m.arg.Default.(bool)
			fs.Bool(name, def, help)
		case ArgInt:
			fs.Int(name, intDefault(m.arg.Default), help)
		case ArgString:
			def, _ := m.arg.Default.(string)
			fs.String(name, def, help)
		default:
			panic(fmt.Sprintf("steps: unknown arg type %v", m.arg.Type))
		}
	}

	for _, c := range s.controls {
		fs.Bool(c.name, false, c.help)
	}
}

func mergedHelp(m mergedArg) string {
	help := m.arg.Help
	if help == "" {
		help = m.arg.Name + " option"
	}
	first := "Step-specific argument. " + help
	if len(m.usages) > 1 {
		first += fmt.Sprintf(" [used in %d steps]", len(m.usages))
	} else {
		first += fmt.Sprintf(" [used in step '%s']", m.usages[0].step)
	}

	lines := []string{first}
	for _, u := range m.usages {
		desc := u.description
		if desc == "" {
			desc = "used by this step"
		}
		lines = append(lines, fmt.Sprintf("  * In step '%s': %s", u.step, desc))
	}
	return strings.Join(lines, "\n")
}

func intDefault(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	default:
		return 0
	}
}

// Values returns a Values view over a FlagSet parsed against this surface.
func (s *Surface) Values(fs *pflag.FlagSet) Values {
	return flagSetValues{fs: fs, types: s.types}
}

// Plan is the run mode selected for one invocation. Implementations are
// CleanupPlan, RollbackPlan, IsolatePlan and DefaultPlan.
type Plan interface {
	isPlan()
}

// CleanupPlan bypasses the step engine and runs the global cleanup.
type CleanupPlan struct {
	Values Values
}

// RollbackPlan force-rolls back exactly one step.
type RollbackPlan struct {
	Step *Step
}

// IsolatePlan runs exactly one step's forward action.
type IsolatePlan struct {
	Step         *Step
	AutoRollback bool
}

// DefaultPlan runs the filtered catalogue.
type DefaultPlan struct {
	Steps        []*Step
	AutoRollback bool
}

func (CleanupPlan) isPlan()  {}
func (RollbackPlan) isPlan() {}
func (IsolatePlan) isPlan()  {}
func (DefaultPlan) isPlan()  {}

// Included reports whether a step of the given kind takes part in a default run.
func Included(kind Kind, v Values) bool {
	switch k := kind.(type) {
	case Required:
		return true
	case Optional:
		if k.SkipFlag != "" && Flag(v, k.SkipFlag) {
			return false
		}
		if k.EnableFlag != "" && !Flag(v, k.EnableFlag) {
			return false
		}
		return true
	default:
		panic(fmt.Sprintf("steps: unknown kind %T", kind))
	}
}

// Resolve selects the plan for flags parsed into fs.
func (s *Surface) Resolve(fs *pflag.FlagSet, logger *slog.Logger) (Plan, error) {
	return s.ResolveValues(s.Values(fs), logger)
}

// ResolveValues selects the plan for v. Precedence, highest first: global
// cleanup, a step's rollback flag, a step's perform flag, the default run.
// Among several rollback or perform flags the first step in catalogue
// order wins.
func (s *Surface) ResolveValues(v Values, logger *slog.Logger) (Plan, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if Flag(v, CleanupFlag) {
		return CleanupPlan{Values: v}, nil
	}

	instances := s.catalogue.Instantiate()
	for _, st := range instances {
		if err := st.Apply(v); err != nil {
			return nil, err
		}
	}
	autoRollback := !Flag(v, NoRollbackFlag)

	var rollback, perform []*Step
	for _, st := range instances {
		if st.ShouldRollback(v) {
			rollback = append(rollback, st)
		}
		if st.ShouldPerformOnly(v) {
			perform = append(perform, st)
		}
	}

	if len(rollback) > 0 {
		warnIgnored(logger, rollback[0], rollback[1:], perform)
		return RollbackPlan{Step: rollback[0]}, nil
	}
	if len(perform) > 0 {
		warnIgnored(logger, perform[0], perform[1:], nil)
		return IsolatePlan{Step: perform[0], AutoRollback: autoRollback}, nil
	}

	var selected []*Step
	for _, st := range instances {
		if Included(st.Meta().Kind, v) {
			selected = append(selected, st)
		}
	}
	return DefaultPlan{Steps: s.catalogue.Order(selected), AutoRollback: autoRollback}, nil
}

func warnIgnored(logger *slog.Logger, chosen *Step, groups ...[]*Step) {
	var ignored []string
	for _, g := range groups {
		for _, st := range g {
			if st != chosen {
				ignored = append(ignored, st.Name())
			}
		}
	}
	if len(ignored) > 0 {
		logger.Warn("several isolation flags set, only the first is honoured", "step", chosen.Name(), "ignored", ignored)
	}
}
