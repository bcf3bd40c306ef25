package helm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/kindctl/internal/shell/shelltest"
)

func TestReleaseArgs(t *testing.T) {
	tests := []struct {
		name string
		rel  Release
		want []string
	}{
		{
			name: "minimal",
			rel:  Release{Name: "metallb", Chart: "metallb/metallb"},
			want: []string{"upgrade", "--install", "metallb", "metallb/metallb"},
		},
		{
			name: "full",
			rel: Release{
				Name:            "metallb-config",
				Chart:           "/repo/k8s/metallb",
				Namespace:       "metallb-system",
				Version:         "v1",
				ValuesFiles:     []string{"values.yaml"},
				Set:             map[string]string{"b": "2", "a": "1"},
				CreateNamespace: true,
				SkipCRDs:        true,
				Wait:            true,
			},
			want: []string{
				"upgrade", "--install", "metallb-config", "/repo/k8s/metallb",
				"--version", "v1",
				"--values", "values.yaml",
				"--namespace", "metallb-system",
				"--create-namespace",
				"--skip-crds",
				"--set", "a=1",
				"--set", "b=2",
				"--wait",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rel.Args())
		})
	}
}

func TestClient(t *testing.T) {
	ctx := context.Background()
	fake := shelltest.NewFake().On("helm upgrade --install loki", shelltest.Response{Err: errors.New("exit 1")})
	c := NewClient(fake)

	assert.True(t, c.Installed(ctx))
	require.NoError(t, c.AddRepo(ctx, "grafana", "https://grafana.github.io/helm-charts"))
	err := c.UpgradeInstall(ctx, Release{Name: "loki", Chart: "grafana/loki"})
	assert.ErrorContains(t, err, "helm upgrade --install loki")

	assert.Equal(t, []string{
		"helm version --short",
		"helm repo add grafana https://grafana.github.io/helm-charts --force-update",
		"helm upgrade --install loki grafana/loki",
	}, fake.Calls())
}
