package steps

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrDuplicateStep is returned when two templates share a name.
	ErrDuplicateStep = errors.New("duplicate step name")
	// ErrUnknownDependency is returned when a step depends on an undeclared step.
	ErrUnknownDependency = errors.New("unknown dependency")
	// ErrDependencyCycle is returned when depends_on declarations form a cycle.
	ErrDependencyCycle = errors.New("dependency cycle")
	// ErrUnknownFlag is returned when a binding references a flag no step declares.
	ErrUnknownFlag = errors.New("unknown flag")
	// ErrFlagType is returned when a flag is used with conflicting types.
	ErrFlagType = errors.New("flag type mismatch")
	// ErrFlagConflict is returned when a step flag collides with a global flag.
	ErrFlagConflict = errors.New("flag conflict")
)

// Catalogue is a validated, ordered list of step templates.
type Catalogue struct {
	templates []Template
	metas     []Meta
	index     map[string]int
}

// NewCatalogue validates templates and returns them as a Catalogue. The
// declared order is kept as the tie-breaker for dependency ordering.
func NewCatalogue(templates ...Template) (*Catalogue, error) {
	c := &Catalogue{
		templates: templates,
		metas:     make([]Meta, 0, len(templates)),
		index:     make(map[string]int, len(templates)),
	}

	for i, t := range templates {
		m := t.Meta()
		if strings.TrimSpace(m.Name) == "" {
			return nil, fmt.Errorf("step #%d has an empty name", i+1)
		}
		if _, dup := c.index[m.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateStep, m.Name)
		}
		c.index[m.Name] = i
		c.metas = append(c.metas, m)
	}

	for _, m := range c.metas {
		for _, dep := range m.DependsOn {
			if _, ok := c.index[dep]; !ok || dep == m.Name {
				return nil, fmt.Errorf("%w: step %q depends on %q", ErrUnknownDependency, m.Name, dep)
			}
		}
	}

	if _, err := c.order(c.allIndexes()); err != nil {
		return nil, err
	}

	if err := c.validateFlags(); err != nil {
		return nil, err
	}

	return c, nil
}

// Templates returns the templates in declared order.
func (c *Catalogue) Templates() []Template {
	return append([]Template(nil), c.templates...)
}

// Metas returns the metadata of every template in declared order.
func (c *Catalogue) Metas() []Meta {
	return append([]Meta(nil), c.metas...)
}

// Instantiate creates a fresh step for every template in declared order.
func (c *Catalogue) Instantiate() []*Step {
	out := make([]*Step, 0, len(c.templates))
	for _, t := range c.templates {
		out = append(out, t.Instantiate())
	}
	return out
}

// Order sorts steps so that every step comes after the steps it depends on.
// Dependencies on steps missing from the list are ignored, and ties are
// broken by catalogue order, so a list already in dependency order is
// returned unchanged.
func (c *Catalogue) Order(steps []*Step) []*Step {
	byIndex := make(map[int]*Step, len(steps))
	idx := make([]int, 0, len(steps))
	for _, s := range steps {
		i, ok := c.index[s.Name()]
		if !ok {
			continue
		}
		byIndex[i] = s
		idx = append(idx, i)
	}

	ordered, err := c.order(idx)
	if err != nil {
		// The full catalogue is acyclic, so any subset is too.
		panic(err)
	}

	out := make([]*Step, 0, len(ordered))
	for _, i := range ordered {
		out = append(out, byIndex[i])
	}
	return out
}

func (c *Catalogue) allIndexes() []int {
	idx := make([]int, len(c.metas))
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// order is Kahn's algorithm over the given catalogue indexes, always picking
// the ready node with the lowest catalogue index.
func (c *Catalogue) order(idx []int) ([]int, error) {
	present := make(map[int]bool, len(idx))
	for _, i := range idx {
		present[i] = true
	}

	inDegree := make(map[int]int, len(idx))
	dependents := make(map[int][]int, len(idx))
	for _, i := range idx {
		for _, dep := range c.metas[i].DependsOn {
			d := c.index[dep]
			if !present[d] {
				continue
			}
			inDegree[i]++
			dependents[d] = append(dependents[d], i)
		}
	}

	var ready []int
	for _, i := range idx {
		if inDegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	out := make([]int, 0, len(idx))
	for len(ready) > 0 {
		sort.Ints(ready)
		next := ready[0]
		ready = ready[1:]
		out = append(out, next)
		for _, d := range dependents[next] {
			inDegree[d]--
			if inDegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}

	if len(out) != len(idx) {
		var stuck []string
		for _, i := range idx {
			if inDegree[i] > 0 {
				stuck = append(stuck, c.metas[i].Name)
			}
		}
		return nil, fmt.Errorf("%w between steps: %s", ErrDependencyCycle, strings.Join(stuck, ", "))
	}
	return out, nil
}

// argTypes returns the type of every CliArg flag, first declaration wins.
func (c *Catalogue) argTypes() map[string]ArgType {
	types := make(map[string]ArgType)
	for _, m := range c.metas {
		for _, a := range m.CLIArgs {
			name := a.FlagName()
			if _, ok := types[name]; !ok {
				types[name] = a.Type
			}
		}
	}
	return types
}

// controlFlags returns the control flags of a step with a label for each.
func controlFlags(m Meta) [][2]string {
	var out [][2]string
	switch k := m.Kind.(type) {
	case Required:
	case Optional:
		if k.SkipFlag != "" {
			out = append(out, [2]string{k.SkipFlag, "skip flag"})
		}
		if k.EnableFlag != "" {
			out = append(out, [2]string{k.EnableFlag, "enable flag"})
		}
	default:
		panic(fmt.Sprintf("steps: unknown kind %T", m.Kind))
	}
	if m.PerformFlag != "" {
		out = append(out, [2]string{m.PerformFlag, "perform flag"})
	}
	if m.RollbackFlag != "" {
		out = append(out, [2]string{m.RollbackFlag, "rollback flag"})
	}
	return out
}

func (c *Catalogue) validateFlags() error {
	types := c.argTypes()
	global := map[string]bool{CleanupFlag: true, NoRollbackFlag: true}

	for name := range types {
		if global[name] {
			return fmt.Errorf("%w: --%s is a global flag", ErrFlagConflict, name)
		}
	}

	for _, m := range c.metas {
		for _, cf := range controlFlags(m) {
			name := FlagName(cf[0])
			if global[name] {
				return fmt.Errorf("%w: %s --%s of step %q is a global flag", ErrFlagConflict, cf[1], name, m.Name)
			}
			if t, ok := types[name]; ok && t != ArgBool {
				return fmt.Errorf("%w: %s --%s of step %q is declared as %s", ErrFlagType, cf[1], name, m.Name, t)
			}
		}
		for _, b := range m.Bindings {
			t, ok := types[FlagName(b.Flag)]
			if !ok {
				return fmt.Errorf("%w: step %q binds %q to undeclared flag --%s", ErrUnknownFlag, m.Name, b.Param, FlagName(b.Flag))
			}
			if t != b.Type {
				return fmt.Errorf("%w: step %q binds %q as %s but --%s is %s", ErrFlagType, m.Name, b.Param, b.Type, FlagName(b.Flag), t)
			}
		}
	}
	return nil
}
