package bootstrap

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/codex-k8s/kindctl/internal/helm"
	"github.com/codex-k8s/kindctl/internal/steps"
)

const (
	dashboardNamespace = "kubernetes-dashboard"
	dashboardRepoName  = "kubernetes-dashboard"
	dashboardRepoURL   = "https://kubernetes.github.io/dashboard/"
	dashboardListener  = "dashboard-direct"
)

// gatewayManifest is the part of k8s/gateway.yaml the dashboard route needs.
type gatewayManifest struct {
	Spec struct {
		Listeners []struct {
			Name string `yaml:"name"`
			Port int    `yaml:"port"`
		} `yaml:"listeners"`
	} `yaml:"spec"`
}

// httpRouteValues is the part of the dashboard HTTPRoute chart values the step reads.
type httpRouteValues struct {
	Gateway struct {
		Name      string `yaml:"name"`
		Namespace string `yaml:"namespace"`
	} `yaml:"gateway"`
	Hostnames struct {
		Domain []string `yaml:"domain"`
	} `yaml:"hostnames"`
}

func readYAML(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// listenerPort returns the port of the named listener in a Gateway manifest.
func listenerPort(path, name string) (int, error) {
	var gw gatewayManifest
	if err := readYAML(path, &gw); err != nil {
		return 0, err
	}
	for _, l := range gw.Spec.Listeners {
		if l.Name == name {
			return l.Port, nil
		}
	}
	return 0, fmt.Errorf("listener %q not found in %s", name, path)
}

func (e *Env) deployDashboard(ctx context.Context, p ClusterParams) ([]steps.Output, error) {
	if err := e.useCluster(ctx, p.ClusterName); err != nil {
		return nil, err
	}
	if err := e.requireHelm(ctx); err != nil {
		return nil, err
	}
	if err := e.Helm.AddRepo(ctx, dashboardRepoName, dashboardRepoURL); err != nil {
		return nil, err
	}
	if err := e.Helm.UpgradeInstall(ctx, helm.Release{
		Name:            "kubernetes-dashboard",
		Chart:           "kubernetes-dashboard/kubernetes-dashboard",
		Namespace:       dashboardNamespace,
		CreateNamespace: true,
		Set: map[string]string{
			"kong.proxy.http.enabled": "true",
			"kong.proxy.tls.enabled":  "false",
		},
	}); err != nil {
		return nil, err
	}
	e.Logger.Info("kubernetes dashboard deployed", "cluster", p.ClusterName, "namespace", dashboardNamespace)
	return nil, nil
}

func (e *Env) createDashboardAdmin(ctx context.Context, p ClusterParams) ([]steps.Output, error) {
	if err := e.useCluster(ctx, p.ClusterName); err != nil {
		return nil, err
	}
	for _, rel := range [][]string{
		{"k8s", "kubernetes-dashboard", "kubernetes-dashboard-admin.yaml"},
		{"k8s", "base", "cluster-admin-role-binding.yaml"},
	} {
		manifest, err := e.path(ctx, rel...)
		if err != nil {
			return nil, err
		}
		if err := e.Kube.ApplyFile(ctx, manifest); err != nil {
			return nil, err
		}
		e.Logger.Info("manifest applied", "manifest", manifest)
	}
	return nil, nil
}

func (e *Env) createDashboardHTTPRoute(ctx context.Context, p ClusterParams) ([]steps.Output, error) {
	if err := e.useCluster(ctx, p.ClusterName); err != nil {
		return nil, err
	}
	gatewayPath, err := e.path(ctx, "k8s", "gateway.yaml")
	if err != nil {
		return nil, err
	}
	port, err := listenerPort(gatewayPath, dashboardListener)
	if err != nil {
		return nil, err
	}

	chart := e.Config.Path("k8s", "kubernetes-dashboard", "httproute")
	var values httpRouteValues
	if err := readYAML(e.Config.Path("k8s", "kubernetes-dashboard", "httproute", "values.yaml"), &values); err != nil {
		return nil, err
	}
	if values.Gateway.Name == "" || values.Gateway.Namespace == "" {
		return nil, fmt.Errorf("gateway name or namespace missing in %s values", chart)
	}
	if len(values.Hostnames.Domain) == 0 {
		return nil, fmt.Errorf("dashboard hostnames missing in %s values", chart)
	}
	hostname := values.Hostnames.Domain[0]

	gatewayIP, err := e.Kube.GetJSONPath(ctx, values.Gateway.Namespace, "gateway", values.Gateway.Name, "{.status.addresses[0].value}")
	if err != nil {
		return nil, err
	}

	release := helm.Release{
		Name:            "kubernetes-dashboard-httproute",
		Chart:           chart,
		Namespace:       dashboardNamespace,
		CreateNamespace: true,
	}
	if gatewayIP != "" {
		release.Set = map[string]string{"hostnames.gatewayIP": gatewayIP}
	} else {
		e.Logger.Warn("gateway load balancer IP not assigned yet, deploying route without it", "gateway", values.Gateway.Name)
	}
	if err := e.Helm.UpgradeInstall(ctx, release); err != nil {
		return nil, err
	}

	direct := e.Config.Path("k8s", "kubernetes-dashboard", "httproute-direct.yaml")
	if err := e.Kube.ApplyFile(ctx, direct); err != nil {
		e.Logger.Warn("failed to create direct access HTTPRoute", "manifest", direct, "error", err)
	}

	body := fmt.Sprintf("http://%s, http://localhost:%d", hostname, port)
	if gatewayIP != "" {
		body = fmt.Sprintf("http://%s (Gateway IP: %s), http://localhost:%d", hostname, gatewayIP, port)
	}
	e.Logger.Info("kubernetes dashboard route created", "hostname", hostname, "gateway_ip", gatewayIP, "port", port)
	return []steps.Output{{Title: "Dashboard URL", Body: body}}, nil
}
