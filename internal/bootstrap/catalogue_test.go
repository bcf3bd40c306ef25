package bootstrap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/kindctl/internal/shell/shelltest"
	"github.com/codex-k8s/kindctl/internal/steps"
)

var allSteps = []string{
	StepStartRegistry,
	StepBuildAndPushImages,
	StepInitializeKindCluster,
	StepConnectToKind,
	StepInstallGatewayAPICRDs,
	StepInstallMetalLB,
	StepDeployGatewayAPIImpl,
	StepCreateGatewayClass,
	StepCreateGateway,
	StepDeployDashboard,
	StepCreateDashboardAdmin,
	StepCreateDashboardRoute,
	StepAddGrafanaChartRepo,
	StepDeployLoki,
}

func names(list []*steps.Step) []string {
	out := make([]string, 0, len(list))
	for _, st := range list {
		out = append(out, st.Name())
	}
	return out
}

func without(list []string, drop ...string) []string {
	skip := map[string]bool{}
	for _, d := range drop {
		skip[d] = true
	}
	var out []string
	for _, s := range list {
		if !skip[s] {
			out = append(out, s)
		}
	}
	return out
}

func TestCatalogueIsValidAndOrdered(t *testing.T) {
	c, err := Catalogue(newTestEnv(t, shelltest.NewFake()))
	require.NoError(t, err)

	var got []string
	for _, m := range c.Metas() {
		got = append(got, m.Name)
	}
	assert.Equal(t, allSteps, got)
	assert.Equal(t, allSteps, names(c.Order(c.Instantiate())))
}

func TestSurfaceFlags(t *testing.T) {
	c, err := Catalogue(newTestEnv(t, shelltest.NewFake()))
	require.NoError(t, err)

	fs := pflag.NewFlagSet("up", pflag.ContinueOnError)
	steps.NewSurface(c).Register(fs)

	for _, flag := range []string{
		"cleanup", "no-rollback", "port", "force-rebuild", "skip-build", "deploy-dashboard",
		"registry-only", "cleanup-registry", "cleanup-images", "cleanup-cluster",
		"initialize-cluster-only", "connect-to-kind-only", "install-gateway-api-crds-only",
		"install-metallb-only", "deploy-gateway-api-implementation-only", "create-gatewayclass-only",
		"create-gateway-only", "deploy-dashboard-only", "create-dashboard-admin-only",
		"create-kubernetes-dashboard-httproute-only", "deploy-loki-only",
	} {
		assert.NotNil(t, fs.Lookup(flag), flag)
	}

	port := fs.Lookup("port")
	assert.Equal(t, "5000", port.DefValue)
	assert.Contains(t, port.Usage, "Step-specific argument. Registry port [used in 2 steps]")
	assert.Contains(t, port.Usage, "* In step 'start_registry': Port to expose the Docker registry on")
	assert.Contains(t, port.Usage, "* In step 'build_and_push_images': Registry port for pushing built images")
}

func resolve(t *testing.T, args ...string) steps.Plan {
	t.Helper()
	c, err := Catalogue(newTestEnv(t, shelltest.NewFake()))
	require.NoError(t, err)
	surface := steps.NewSurface(c)
	fs := pflag.NewFlagSet("up", pflag.ContinueOnError)
	surface.Register(fs)
	require.NoError(t, fs.Parse(args))
	plan, err := surface.Resolve(fs, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return plan
}

func TestDefaultRunSelection(t *testing.T) {
	dashboard := []string{StepDeployDashboard, StepCreateDashboardAdmin, StepCreateDashboardRoute}
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "no flags", want: without(allSteps, dashboard...)},
		{name: "skip build", args: []string{"--skip-build"}, want: without(allSteps, append(dashboard, StepBuildAndPushImages)...)},
		{name: "deploy dashboard", args: []string{"--deploy-dashboard"}, want: allSteps},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := resolve(t, tt.args...)
			def, ok := plan.(steps.DefaultPlan)
			require.True(t, ok, "%T", plan)
			assert.Equal(t, tt.want, names(def.Steps))
			assert.True(t, def.AutoRollback)
		})
	}
}

func TestPortIsSharedByBothRegistrySteps(t *testing.T) {
	plan := resolve(t, "--port", "5001", "--force-rebuild", "--no-rollback")
	def := plan.(steps.DefaultPlan)
	assert.False(t, def.AutoRollback)

	registry := def.Steps[0].Params().(RegistryParams)
	build := def.Steps[1].Params().(BuildParams)
	assert.Equal(t, 5001, registry.Port)
	assert.Equal(t, 5001, build.RegistryPort)
	assert.True(t, build.ForceRebuild)
	assert.Equal(t, "main-line-registry", registry.Name)
}

func TestIsolationFlags(t *testing.T) {
	rb, ok := resolve(t, "--cleanup-cluster", "--registry-only").(steps.RollbackPlan)
	require.True(t, ok)
	assert.Equal(t, StepInitializeKindCluster, rb.Step.Name())

	iso, ok := resolve(t, "--deploy-loki-only").(steps.IsolatePlan)
	require.True(t, ok)
	assert.Equal(t, StepDeployLoki, iso.Step.Name())

	_, ok = resolve(t, "--cleanup", "--cleanup-images").(steps.CleanupPlan)
	assert.True(t, ok)
}

func TestCleanupRemovesImagesThenRegistry(t *testing.T) {
	fake := shelltest.NewFake().
		On("docker images -q", shelltest.Response{Output: "0f1e"}).
		On("docker rmi localhost:6000/main-line-a", shelltest.Response{Err: errors.New("in use")}).
		On("docker ps -a", shelltest.Response{Output: "main-line-registry"})
	e := newTestEnv(t, fake)
	writeFile(t, e.Config.ProjectRoot, "images.yaml", "images:\n  - name: main-line-a\n    dockerfile: Dockerfile.a\n    purpose: setup\n")
	writeFile(t, e.Config.ProjectRoot, "Dockerfile.a", "FROM scratch\n")

	err := Cleanup(e)(context.Background(), steps.MapValues{"port": 6000})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "images:")
	assert.NotContains(t, err.Error(), "registry:")

	calls := fake.Calls()
	rmiLocal := indexOf(calls, "docker rmi main-line-a")
	removeRegistry := indexOf(calls, "docker container rm -f main-line-registry")
	require.NotEqual(t, -1, rmiLocal)
	require.NotEqual(t, -1, removeRegistry)
	assert.Less(t, rmiLocal, removeRegistry)
}

func TestCleanupDefaultsPort(t *testing.T) {
	fake := shelltest.NewFake()
	e := newTestEnv(t, fake)
	writeFile(t, e.Config.ProjectRoot, "images.yaml", "images:\n  - name: main-line-a\n    dockerfile: Dockerfile.a\n    purpose: setup\n")
	writeFile(t, e.Config.ProjectRoot, "Dockerfile.a", "FROM scratch\n")

	require.NoError(t, Cleanup(e)(context.Background(), steps.MapValues{}))
	assert.True(t, fake.Called("docker images -q localhost:5000/main-line-a"))
	assert.False(t, fake.Called("docker container rm"))
}
