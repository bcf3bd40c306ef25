package steps

import "fmt"

// Kind describes how a step participates in a default run.
// It is a closed set: Required and Optional are the only implementations.
type Kind interface {
	isKind()
}

// Required steps always run in a default run.
type Required struct{}

// Optional steps run unless SkipFlag is set, or EnableFlag is declared and
// left unset. With neither flag declared an Optional step behaves like
// Required.
type Optional struct {
	// SkipFlag names a flag that excludes the step when set, e.g. "skip_build".
	SkipFlag string
	// EnableFlag names a flag that must be set for the step to run, e.g. "deploy_dashboard".
	EnableFlag string
}

func (Required) isKind() {}
func (Optional) isKind() {}

// KindName returns a short human-readable label for kind.
func KindName(kind Kind) string {
	switch k := kind.(type) {
	case Required:
		return "required"
	case Optional:
		switch {
		case k.SkipFlag != "" && k.EnableFlag != "":
			return fmt.Sprintf("optional (--%s / --%s)", FlagName(k.EnableFlag), FlagName(k.SkipFlag))
		case k.SkipFlag != "":
			return fmt.Sprintf("optional (skip with --%s)", FlagName(k.SkipFlag))
		case k.EnableFlag != "":
			return fmt.Sprintf("optional (enable with --%s)", FlagName(k.EnableFlag))
		default:
			return "optional"
		}
	default:
		panic(fmt.Sprintf("steps: unknown kind %T", kind))
	}
}
