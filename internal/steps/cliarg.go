// Package steps contains the step orchestration engine: step templates,
// the runner that executes them with automatic rollback, and the flag
// surface that derives the command line from step metadata.
package steps

import (
	"fmt"
	"strings"
)

// ArgType enumerates the value types a CliArg can carry.
type ArgType int

const (
	// ArgBool is a presence flag (--name).
	ArgBool ArgType = iota
	// ArgInt is an integer-valued flag.
	ArgInt
	// ArgString is a string-valued flag.
	ArgString
)

// String returns the lower-case name of the type.
func (t ArgType) String() string {
	switch t {
	case ArgBool:
		return "bool"
	case ArgInt:
		return "int"
	case ArgString:
		return "string"
	default:
		return fmt.Sprintf("ArgType(%d)", int(t))
	}
}

// CliArg describes a typed command-line flag a step wants exposed.
// Two steps may declare a CliArg with the same Name; they share one flag
// and therefore one value.
type CliArg struct {
	// Name is the flag identity without dashes, e.g. "force_rebuild".
	Name string
	// Type is the value type of the flag.
	Type ArgType
	// Default is the value used when the flag is not given. It must match Type.
	Default any
	// Help is the general help text.
	Help string
	// StepDescription explains why the declaring step needs the value.
	StepDescription string
}

// FlagName returns the external flag spelling without leading dashes:
// "force_rebuild" becomes "force-rebuild".
func (a CliArg) FlagName() string {
	return FlagName(a.Name)
}

// FlagName converts an internal name into its dash-separated flag form.
func FlagName(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), "_", "-")
}
