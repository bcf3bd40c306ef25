package steps

import "github.com/spf13/pflag"

// Values exposes parsed flag values by name. Names may use either the
// underscore or the dash spelling.
type Values interface {
	Lookup(name string) (any, bool)
}

// MapValues is a Values backed by a plain map keyed by flag name.
type MapValues map[string]any

// Lookup implements Values.
func (m MapValues) Lookup(name string) (any, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	v, ok := m[FlagName(name)]
	return v, ok
}

// Flag reports whether the boolean flag name is set to true in v.
func Flag(v Values, name string) bool {
	if v == nil || name == "" {
		return false
	}
	raw, ok := v.Lookup(name)
	if !ok {
		return false
	}
	b, ok := raw.(bool)
	return ok && b
}

// flagSetValues reads typed values out of a parsed pflag.FlagSet.
type flagSetValues struct {
	fs    *pflag.FlagSet
	types map[string]ArgType
}

func (f flagSetValues) Lookup(name string) (any, bool) {
	flag := FlagName(name)
	t, ok := f.types[flag]
	if !ok {
		return nil, false
	}
	var (
		v   any
		err error
	)
	switch t {
	case ArgBool:
		v, err = f.fs.GetBool(flag)
	case ArgInt:
		v, err = f.fs.GetInt(flag)
	case ArgString:
		v, err = f.fs.GetString(flag)
	default:
		return nil, false
	}
	if err != nil {
		return nil, false
	}
	return v, true
}
