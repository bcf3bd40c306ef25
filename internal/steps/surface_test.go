package steps

import (
	"context"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func portStep(name string, seen map[string]int) Template {
	return New(Definition[testParams]{
		Name:   name,
		Params: testParams{Port: 5000},
		Perform: func(_ context.Context, p testParams) ([]Output, error) {
			seen[name] = p.Port
			return nil, nil
		},
		CLIArgs: []CliArg{{
			Name:            "port",
			Type:            ArgInt,
			Default:         5000,
			Help:            "Registry port",
			StepDescription: "port used by " + name,
		}},
		Bindings: []Binding[testParams]{
			BindInt("port", "port", func(p *testParams, v int) { p.Port = v }),
		},
	})
}

func parse(t *testing.T, c *Catalogue, args ...string) (*Surface, *pflag.FlagSet) {
	t.Helper()
	s := NewSurface(c)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	s.Register(fs)
	require.NoError(t, fs.Parse(args))
	return s, fs
}

func TestSharedCliArgRegisteredOnceAndInjectedIntoBothSteps(t *testing.T) {
	seen := map[string]int{}
	c, err := NewCatalogue(portStep("s1", seen), portStep("s2", seen))
	require.NoError(t, err)

	s, fs := parse(t, c, "--port", "9000")

	count := 0
	for _, n := range s.FlagNames() {
		if n == "port" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	flag := fs.Lookup("port")
	require.NotNil(t, flag)
	assert.Contains(t, flag.Usage, "[used in 2 steps]")
	assert.Contains(t, flag.Usage, "* In step 's1': port used by s1")
	assert.Contains(t, flag.Usage, "* In step 's2': port used by s2")

	plan, err := s.Resolve(fs, discardLogger())
	require.NoError(t, err)
	def, ok := plan.(DefaultPlan)
	require.True(t, ok)
	require.Len(t, def.Steps, 2)
	for _, st := range def.Steps {
		assert.Equal(t, 9000, st.Params().(testParams).Port)
	}

	_, err = Execute(context.Background(), plan, nil, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"s1": 9000, "s2": 9000}, seen)
}

func TestSharedCliArgDefaultIsInjected(t *testing.T) {
	seen := map[string]int{}
	c, err := NewCatalogue(portStep("s1", seen))
	require.NoError(t, err)

	s, fs := parse(t, c)
	flag := fs.Lookup("port")
	require.NotNil(t, flag)
	assert.Contains(t, flag.Usage, "[used in step 's1']")

	plan, err := s.Resolve(fs, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 5000, plan.(DefaultPlan).Steps[0].Params().(testParams).Port)
}

func TestIncluded(t *testing.T) {
	tests := []struct {
		name   string
		kind   Kind
		values MapValues
		want   bool
	}{
		{"required", Required{}, MapValues{}, true},
		{"optional without flags", Optional{}, MapValues{}, true},
		{"skip flag untouched", Optional{SkipFlag: "skip_build"}, MapValues{"skip-build": false}, true},
		{"skip flag set", Optional{SkipFlag: "skip_build"}, MapValues{"skip-build": true}, false},
		{"enable flag unset", Optional{EnableFlag: "deploy_dashboard"}, MapValues{"deploy-dashboard": false}, false},
		{"enable flag set", Optional{EnableFlag: "deploy_dashboard"}, MapValues{"deploy-dashboard": true}, true},
		{"skip wins over enable", Optional{SkipFlag: "skip_x", EnableFlag: "enable_x"}, MapValues{"skip-x": true, "enable-x": true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Included(tt.kind, tt.values))
		})
	}
}

func bootstrapLike(rec *recorder) (*Catalogue, error) {
	return NewCatalogue(
		testStep(rec, "s1", stepOpts{perform: "s1_only", rollback: "cleanup_s1"}),
		testStep(rec, "s2", stepOpts{kind: Optional{SkipFlag: "skip_s2"}, rollback: "cleanup_s2"}),
		testStep(rec, "s3", stepOpts{perform: "s3_only", rollback: "cleanup_s3", dependsOn: []string{"s1"}}),
		testStep(rec, "s4", stepOpts{kind: Optional{EnableFlag: "with_s4"}, perform: "s4_only"}),
	)
}

func TestResolveDefaultRun(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"no flags", nil, []string{"s1", "s2", "s3"}},
		{"skip optional", []string{"--skip-s2"}, []string{"s1", "s3"}},
		{"enable optional", []string{"--with-s4"}, []string{"s1", "s2", "s3", "s4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			c, err := bootstrapLike(rec)
			require.NoError(t, err)
			s, fs := parse(t, c, tt.args...)

			plan, err := s.Resolve(fs, discardLogger())
			require.NoError(t, err)
			def, ok := plan.(DefaultPlan)
			require.True(t, ok)
			assert.Equal(t, tt.want, names(def.Steps))
			assert.True(t, def.AutoRollback)
		})
	}
}

func TestResolveRollbackOnlyRunsThatStep(t *testing.T) {
	rec := &recorder{}
	c, err := bootstrapLike(rec)
	require.NoError(t, err)
	s, fs := parse(t, c, "--cleanup-s3")

	plan, err := s.Resolve(fs, discardLogger())
	require.NoError(t, err)
	rb, ok := plan.(RollbackPlan)
	require.True(t, ok)
	assert.Equal(t, "s3", rb.Step.Name())

	report, err := Execute(context.Background(), plan, nil, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, ModeRollback, report.Mode)
	assert.Equal(t, []string{"undo:s3"}, rec.calls)
}

func TestResolveRollbackFailureFailsRun(t *testing.T) {
	rec := &recorder{}
	c, err := NewCatalogue(testStep(rec, "s1", stepOpts{rollback: "cleanup_s1", rollbackErr: assert.AnError}))
	require.NoError(t, err)
	s, fs := parse(t, c, "--cleanup-s1")

	plan, err := s.Resolve(fs, discardLogger())
	require.NoError(t, err)
	_, err = Execute(context.Background(), plan, nil, discardLogger())
	assert.ErrorIs(t, err, ErrRunFailed)
}

func TestResolvePrecedence(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantPlan string
		wantStep string
	}{
		{"cleanup beats everything", []string{"--cleanup", "--cleanup-s1", "--s3-only"}, "cleanup", ""},
		{"rollback beats perform-only", []string{"--s1-only", "--cleanup-s3"}, "rollback", "s3"},
		{"first rollback in catalogue order", []string{"--cleanup-s3", "--cleanup-s1"}, "rollback", "s1"},
		{"first perform-only in catalogue order", []string{"--s4-only", "--s3-only"}, "isolate", "s3"},
		{"perform-only ignores enable flag", []string{"--s4-only"}, "isolate", "s4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			c, err := bootstrapLike(rec)
			require.NoError(t, err)
			s, fs := parse(t, c, tt.args...)

			plan, err := s.Resolve(fs, discardLogger())
			require.NoError(t, err)
			switch p := plan.(type) {
			case CleanupPlan:
				assert.Equal(t, "cleanup", tt.wantPlan)
			case RollbackPlan:
				assert.Equal(t, "rollback", tt.wantPlan)
				assert.Equal(t, tt.wantStep, p.Step.Name())
			case IsolatePlan:
				assert.Equal(t, "isolate", tt.wantPlan)
				assert.Equal(t, tt.wantStep, p.Step.Name())
			default:
				t.Fatalf("unexpected plan %T", plan)
			}
		})
	}
}

func TestIsolatedRunHonoursNoRollback(t *testing.T) {
	rec := &recorder{}
	c, err := bootstrapLike(rec)
	require.NoError(t, err)
	s, fs := parse(t, c, "--s3-only", "--no-rollback")

	plan, err := s.Resolve(fs, discardLogger())
	require.NoError(t, err)
	iso := plan.(IsolatePlan)
	assert.False(t, iso.AutoRollback)

	report, err := Execute(context.Background(), plan, nil, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, ModeIsolate, report.Mode)
	assert.Equal(t, []string{"perform:s3"}, rec.calls)
}

func TestExecuteCleanupPlan(t *testing.T) {
	rec := &recorder{}
	c, err := bootstrapLike(rec)
	require.NoError(t, err)
	s, fs := parse(t, c, "--cleanup")

	plan, err := s.Resolve(fs, discardLogger())
	require.NoError(t, err)

	called := false
	report, err := Execute(context.Background(), plan, func(_ context.Context, v Values) error {
		called = true
		assert.True(t, Flag(v, CleanupFlag))
		return nil
	}, discardLogger())
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, ModeCleanup, report.Mode)
	assert.Empty(t, rec.calls)

	_, err = Execute(context.Background(), plan, func(context.Context, Values) error { return assert.AnError }, discardLogger())
	assert.ErrorIs(t, err, ErrRunFailed)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestExecuteDefaultPlanFailure(t *testing.T) {
	rec := &recorder{}
	c, err := NewCatalogue(
		testStep(rec, "s1", stepOpts{}),
		testStep(rec, "s2", stepOpts{fail: true}),
	)
	require.NoError(t, err)
	s, fs := parse(t, c)

	plan, err := s.Resolve(fs, discardLogger())
	require.NoError(t, err)
	_, err = Execute(context.Background(), plan, nil, discardLogger())
	assert.ErrorIs(t, err, ErrRunFailed)
	assert.Equal(t, []string{"perform:s1", "perform:s2", "undo:s1"}, rec.calls)
}
