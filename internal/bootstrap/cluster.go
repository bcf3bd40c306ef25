package bootstrap

import (
	"context"
	"encoding/binary"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/codex-k8s/kindctl/internal/helm"
	"github.com/codex-k8s/kindctl/internal/kind"
	"github.com/codex-k8s/kindctl/internal/steps"
)

const (
	gatewayAPICRDsURL = "https://github.com/kubernetes-sigs/gateway-api/releases/download/v1.4.1/standard-install.yaml"

	envoyGatewayChart   = "oci://docker.io/envoyproxy/gateway-helm"
	envoyGatewayVersion = "v1.6.2"
	envoyGatewayRelease = "eg"

	metallbRepoName  = "metallb"
	metallbRepoURL   = "https://metallb.github.io/metallb"
	metallbNamespace = "metallb-system"

	gatewayName          = "main-line-gateway"
	gatewayOwnerLabel    = "gateway.envoyproxy.io/owning-gateway-name"
	hostNetworkPatch     = `{"spec":{"template":{"spec":{"hostNetwork":true}}}}`
	resourceSettleDelay  = 5 * time.Second
	gatewayWaitTimeout   = "5m"
	metallbWaitTimeout   = "90s"
	loadBalancerRangeLo  = 200
	loadBalancerRangeHi  = 250
	loadBalancerRangeNet = 255
)

// ClusterParams names the kind cluster a step works on.
type ClusterParams struct {
	ClusterName string
}

// GatewayParams names the cluster and the namespace of the gateway implementation.
type GatewayParams struct {
	ClusterName string
	Namespace   string
}

func (e *Env) initializeCluster(ctx context.Context, p ClusterParams) ([]steps.Output, error) {
	configPath, err := e.path(ctx, "public-configs", "kind", "kind-config.yaml")
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("kind config file: %w", err)
	}

	exists, err := e.Kind.ClusterExists(ctx, p.ClusterName)
	if err != nil {
		return nil, err
	}
	if exists {
		e.Logger.Info("kind cluster already exists", "cluster", p.ClusterName)
		return nil, nil
	}

	e.Logger.Info("creating kind cluster", "cluster", p.ClusterName, "config", configPath)
	if err := e.Kind.CreateCluster(ctx, p.ClusterName, configPath); err != nil {
		return nil, err
	}
	e.Logger.Info("kind cluster created", "cluster", p.ClusterName)
	return nil, nil
}

func (e *Env) deleteCluster(ctx context.Context, p ClusterParams) error {
	exists, err := e.Kind.ClusterExists(ctx, p.ClusterName)
	if err != nil {
		return err
	}
	if !exists {
		e.Logger.Info("kind cluster does not exist", "cluster", p.ClusterName)
		return nil
	}
	if err := e.Kind.DeleteCluster(ctx, p.ClusterName); err != nil {
		return err
	}
	e.Logger.Info("kind cluster deleted", "cluster", p.ClusterName)
	return nil
}

func (e *Env) installGatewayAPICRDs(ctx context.Context, p ClusterParams) ([]steps.Output, error) {
	if err := e.useCluster(ctx, p.ClusterName); err != nil {
		return nil, err
	}
	if err := e.Kube.ApplyFile(ctx, gatewayAPICRDsURL); err != nil {
		return nil, err
	}
	e.Logger.Info("gateway API CRDs installed", "cluster", p.ClusterName)
	return nil, nil
}

func (e *Env) installMetalLB(ctx context.Context, p ClusterParams) ([]steps.Output, error) {
	if err := e.useCluster(ctx, p.ClusterName); err != nil {
		return nil, err
	}
	if err := e.Helm.AddRepo(ctx, metallbRepoName, metallbRepoURL); err != nil {
		return nil, err
	}
	if err := e.Helm.UpgradeInstall(ctx, helm.Release{
		Name:            "metallb",
		Chart:           "metallb/metallb",
		Namespace:       metallbNamespace,
		CreateNamespace: true,
	}); err != nil {
		return nil, err
	}

	e.Logger.Info("waiting for metallb controller", "namespace", metallbNamespace)
	if err := e.Sleep(ctx, resourceSettleDelay); err != nil {
		return nil, err
	}
	if err := e.Kube.WaitForDeployment(ctx, metallbNamespace, "metallb-controller", metallbWaitTimeout); err != nil {
		return nil, err
	}

	subnet, err := e.Docker.NetworkSubnet(ctx, kind.NetworkName)
	if err != nil {
		return nil, err
	}
	start, end, err := loadBalancerRange(subnet)
	if err != nil {
		return nil, err
	}

	chart, err := e.path(ctx, "k8s", "metallb")
	if err != nil {
		return nil, err
	}
	if err := e.Helm.UpgradeInstall(ctx, helm.Release{
		Name:      "metallb-config",
		Chart:     chart,
		Namespace: metallbNamespace,
		Set: map[string]string{
			"ipAddressPool.addressRangeStart": start,
			"ipAddressPool.addressRangeEnd":   end,
		},
		Wait: true,
	}); err != nil {
		return nil, err
	}
	e.Logger.Info("metallb installed", "range_start", start, "range_end", end)
	return nil, nil
}

// loadBalancerRange picks x.y.255.200-x.y.255.250 from an IPv4 subnet such as
// the /16 docker assigns to the kind network.
func loadBalancerRange(subnet string) (string, string, error) {
	prefix, err := netip.ParsePrefix(strings.TrimSpace(subnet))
	if err != nil {
		return "", "", fmt.Errorf("parse kind subnet %q: %w", subnet, err)
	}
	if !prefix.Addr().Is4() {
		return "", "", fmt.Errorf("kind subnet %s is not IPv4", subnet)
	}
	base := prefix.Masked().Addr().As4()
	n := binary.BigEndian.Uint32(base[:]) + loadBalancerRangeNet<<8

	addr := func(off uint32) (netip.Addr, error) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], n+off)
		a := netip.AddrFrom4(b)
		if !prefix.Contains(a) {
			return netip.Addr{}, fmt.Errorf("kind subnet %s is too small for the load balancer range", subnet)
		}
		return a, nil
	}
	lo, err := addr(loadBalancerRangeLo)
	if err != nil {
		return "", "", err
	}
	hi, err := addr(loadBalancerRangeHi)
	if err != nil {
		return "", "", err
	}
	return lo.String(), hi.String(), nil
}

func (e *Env) deployGatewayImplementation(ctx context.Context, p GatewayParams) ([]steps.Output, error) {
	if err := e.useCluster(ctx, p.ClusterName); err != nil {
		return nil, err
	}
	if err := e.requireHelm(ctx); err != nil {
		return nil, err
	}
	if err := e.Helm.UpgradeInstall(ctx, helm.Release{
		Name:            envoyGatewayRelease,
		Chart:           envoyGatewayChart,
		Version:         envoyGatewayVersion,
		Namespace:       p.Namespace,
		CreateNamespace: true,
		SkipCRDs:        true,
	}); err != nil {
		return nil, err
	}
	e.Logger.Info("envoy gateway deployed", "cluster", p.ClusterName, "namespace", p.Namespace)
	return nil, nil
}

func (e *Env) createGatewayClass(ctx context.Context, p ClusterParams) ([]steps.Output, error) {
	if err := e.useCluster(ctx, p.ClusterName); err != nil {
		return nil, err
	}
	manifest, err := e.path(ctx, "k8s", "gatewayclass.yaml")
	if err != nil {
		return nil, err
	}
	if err := e.Kube.ApplyFile(ctx, manifest); err != nil {
		return nil, err
	}
	e.Logger.Info("gatewayclass created", "manifest", manifest)
	return nil, nil
}

func (e *Env) createGateway(ctx context.Context, p GatewayParams) ([]steps.Output, error) {
	if err := e.useCluster(ctx, p.ClusterName); err != nil {
		return nil, err
	}
	if err := e.Kube.WaitForDeployment(ctx, p.Namespace, "envoy-gateway", gatewayWaitTimeout); err != nil {
		return nil, fmt.Errorf("gateway controller is unavailable: %w", err)
	}
	manifest, err := e.path(ctx, "k8s", "gateway.yaml")
	if err != nil {
		return nil, err
	}
	if err := e.Kube.ApplyFile(ctx, manifest); err != nil {
		return nil, err
	}
	e.Logger.Info("gateway created", "manifest", manifest)

	e.Logger.Info("waiting for envoy proxy deployment")
	if err := e.Sleep(ctx, resourceSettleDelay); err != nil {
		return nil, err
	}
	if err := e.enableProxyHostNetwork(ctx, p.Namespace); err != nil {
		e.Logger.Warn("failed to enable hostNetwork on envoy proxy, patch it manually",
			"namespace", p.Namespace, "patch", hostNetworkPatch, "error", err)
	}
	return nil, nil
}

// enableProxyHostNetwork patches the envoy proxy deployment so kind port mappings reach it.
func (e *Env) enableProxyHostNetwork(ctx context.Context, namespace string) error {
	names, err := e.Kube.DeploymentNames(ctx, namespace, gatewayOwnerLabel+"="+gatewayName)
	if err != nil {
		return err
	}
	deployment := strings.TrimSpace(strings.SplitN(names, "\n", 2)[0])
	if deployment == "" {
		return fmt.Errorf("no envoy proxy deployment owned by gateway %s", gatewayName)
	}
	if err := e.Kube.PatchStrategic(ctx, namespace, deployment, hostNetworkPatch); err != nil {
		return err
	}
	e.Logger.Info("hostNetwork enabled on envoy proxy", "deployment", deployment)
	return nil
}
