package bootstrap

import (
	"context"

	"github.com/codex-k8s/kindctl/internal/helm"
	"github.com/codex-k8s/kindctl/internal/steps"
)

const (
	grafanaRepoName = "grafana"
	grafanaRepoURL  = "https://grafana.github.io/helm-charts"
)

// LokiParams configures the Loki release.
type LokiParams struct {
	Namespace string
}

func (e *Env) addGrafanaRepo(ctx context.Context, _ struct{}) ([]steps.Output, error) {
	if err := e.requireHelm(ctx); err != nil {
		return nil, err
	}
	if err := e.Helm.AddRepo(ctx, grafanaRepoName, grafanaRepoURL); err != nil {
		return nil, err
	}
	e.Logger.Info("helm repository added", "repo", grafanaRepoName)
	return nil, nil
}

func (e *Env) deployLoki(ctx context.Context, p LokiParams) ([]steps.Output, error) {
	values, err := e.path(ctx, "k8s", "loki", "values.yaml")
	if err != nil {
		return nil, err
	}
	if err := e.Helm.UpgradeInstall(ctx, helm.Release{
		Name:            "loki",
		Chart:           "grafana/loki",
		Namespace:       p.Namespace,
		ValuesFiles:     []string{values},
		CreateNamespace: true,
	}); err != nil {
		return nil, err
	}
	e.Logger.Info("loki deployed", "namespace", p.Namespace)
	return nil, nil
}
