package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/codex-k8s/kindctl/internal/steps"
)

// Step names.
const (
	StepStartRegistry         = "start_registry"
	StepBuildAndPushImages    = "build_and_push_images"
	StepInitializeKindCluster = "initialize_kind_cluster"
	StepConnectToKind         = "connect_to_kind"
	StepInstallGatewayAPICRDs = "install_gateway_api_crds"
	StepInstallMetalLB        = "install_metallb"
	StepDeployGatewayAPIImpl  = "deploy_gateway_api_implementation"
	StepCreateGatewayClass    = "create_gatewayclass"
	StepCreateGateway         = "create_gateway"
	StepDeployDashboard       = "deploy_kubernetes_dashboard"
	StepCreateDashboardAdmin  = "create_kubernetes_dashboard_admin"
	StepCreateDashboardRoute  = "create_kubernetes_dashboard_httproute"
	StepAddGrafanaChartRepo   = "add_grafana_chart_repo"
	StepDeployLoki            = "deploy_loki"
)

const (
	defaultRegistryPort     = 5000
	gatewayImplementationNS = "envoy-gateway-system"
	lokiNamespace           = "loki"

	registryPortFlag    = "port"
	forceRebuildFlag    = "force_rebuild"
	skipBuildFlag       = "skip_build"
	deployDashboardFlag = "deploy_dashboard"
	registryPortHelp    = "Registry port"
)

// Catalogue declares every bootstrap step in execution order.
func Catalogue(e *Env) (*steps.Catalogue, error) {
	cfg := e.Config
	cluster := ClusterParams{ClusterName: cfg.ClusterName}
	gateway := GatewayParams{ClusterName: cfg.ClusterName, Namespace: gatewayImplementationNS}

	return steps.NewCatalogue(
		steps.New(steps.Definition[RegistryParams]{
			Name:        StepStartRegistry,
			Description: "Starts a private Docker registry for the main-line project",
			Params: RegistryParams{
				Name:  cfg.RegistryName,
				Image: cfg.RegistryImage,
				Host:  cfg.RegistryHost,
				Port:  defaultRegistryPort,
			},
			Perform: e.startRegistry,
			Rollback: func(ctx context.Context, p RegistryParams) error {
				return e.removeRegistry(ctx, p.Name)
			},
			PerformFlag:  "registry_only",
			RollbackFlag: "cleanup_registry",
			Kind:         steps.Required{},
			CLIArgs: []steps.CliArg{{
				Name:            registryPortFlag,
				Type:            steps.ArgInt,
				Default:         defaultRegistryPort,
				Help:            registryPortHelp,
				StepDescription: "Port to expose the Docker registry on",
			}},
			Bindings: []steps.Binding[RegistryParams]{
				steps.BindInt("port", registryPortFlag, func(p *RegistryParams, v int) { p.Port = v }),
			},
		}),
		steps.New(steps.Definition[BuildParams]{
			Name:        StepBuildAndPushImages,
			Description: "Builds and pushes all Docker images to the private registry so that they can be accessed by the 'kind'-powered cluster",
			Params: BuildParams{
				RegistryHost: cfg.RegistryHost,
				RegistryPort: defaultRegistryPort,
			},
			Perform: e.buildAndPushImages,
			Rollback: func(ctx context.Context, p BuildParams) error {
				return e.removeImages(ctx, p.RegistryHost, p.RegistryPort)
			},
			RollbackFlag: "cleanup_images",
			Kind:         steps.Optional{SkipFlag: skipBuildFlag},
			CLIArgs: []steps.CliArg{
				{
					Name:            registryPortFlag,
					Type:            steps.ArgInt,
					Default:         defaultRegistryPort,
					Help:            registryPortHelp,
					StepDescription: "Registry port for pushing built images",
				},
				{
					Name:            forceRebuildFlag,
					Type:            steps.ArgBool,
					Default:         false,
					Help:            "Force rebuild Docker images",
					StepDescription: "Rebuild all images even if they already exist",
				},
			},
			Bindings: []steps.Binding[BuildParams]{
				steps.BindInt("registry_port", registryPortFlag, func(p *BuildParams, v int) { p.RegistryPort = v }),
				steps.BindBool("force_rebuild", forceRebuildFlag, func(p *BuildParams, v bool) { p.ForceRebuild = v }),
			},
			DependsOn: []string{StepStartRegistry},
		}),
		steps.New(steps.Definition[ClusterParams]{
			Name:         StepInitializeKindCluster,
			Description:  "Uses 'kind' Kubernetes cluster provider to initialize a cluster with a config file",
			Params:       cluster,
			Perform:      e.initializeCluster,
			Rollback:     e.deleteCluster,
			PerformFlag:  "initialize_cluster_only",
			RollbackFlag: "cleanup_cluster",
		}),
		steps.New(steps.Definition[ConnectParams]{
			Name:        StepConnectToKind,
			Description: "Connects the private Docker registry to the 'kind' network ('docker network connect kind main-line-registry')",
			Params:      ConnectParams{RegistryName: cfg.RegistryName, ClusterName: cfg.ClusterName},
			Perform:     e.connectToKind,
			PerformFlag: "connect_to_kind_only",
			DependsOn:   []string{StepInitializeKindCluster, StepStartRegistry},
		}),
		steps.New(steps.Definition[ClusterParams]{
			Name:        StepInstallGatewayAPICRDs,
			Description: "Installs the Gateway API CRDs into the Kind cluster",
			Params:      cluster,
			Perform:     e.installGatewayAPICRDs,
			PerformFlag: "install_gateway_api_crds_only",
			DependsOn:   []string{StepInitializeKindCluster},
		}),
		steps.New(steps.Definition[ClusterParams]{
			Name:        StepInstallMetalLB,
			Description: "Installs MetalLB to provide LoadBalancer support in Kind on Linux via Bridge",
			Params:      cluster,
			Perform:     e.installMetalLB,
			PerformFlag: "install_metallb_only",
			DependsOn:   []string{StepInitializeKindCluster},
		}),
		steps.New(steps.Definition[GatewayParams]{
			Name:        StepDeployGatewayAPIImpl,
			Description: "Deploys a Gateway API implementation (Envoy Gateway) into the Kind cluster",
			Params:      gateway,
			Perform:     e.deployGatewayImplementation,
			PerformFlag: "deploy_gateway_api_implementation_only",
			DependsOn:   []string{StepInstallGatewayAPICRDs},
		}),
		steps.New(steps.Definition[ClusterParams]{
			Name:        StepCreateGatewayClass,
			Description: "Creates a GatewayClass resource in the Kind cluster",
			Params:      cluster,
			Perform:     e.createGatewayClass,
			PerformFlag: "create_gatewayclass_only",
			DependsOn:   []string{StepDeployGatewayAPIImpl},
		}),
		steps.New(steps.Definition[GatewayParams]{
			Name:        StepCreateGateway,
			Description: "Creates a Gateway resource in the Kind cluster",
			Params:      gateway,
			Perform:     e.createGateway,
			PerformFlag: "create_gateway_only",
			DependsOn:   []string{StepCreateGatewayClass},
		}),
		steps.New(steps.Definition[ClusterParams]{
			Name:        StepDeployDashboard,
			Description: "Deploys the Kubernetes Dashboard in the Kind cluster",
			Params:      cluster,
			Perform:     e.deployDashboard,
			PerformFlag: "deploy_dashboard_only",
			Kind:        steps.Optional{EnableFlag: deployDashboardFlag},
			DependsOn:   []string{StepInitializeKindCluster},
		}),
		steps.New(steps.Definition[ClusterParams]{
			Name:        StepCreateDashboardAdmin,
			Description: "Creates the service account and cluster role binding for the Kubernetes Dashboard admin user",
			Params:      cluster,
			Perform:     e.createDashboardAdmin,
			PerformFlag: "create_dashboard_admin_only",
			Kind:        steps.Optional{EnableFlag: deployDashboardFlag},
			DependsOn:   []string{StepDeployDashboard},
		}),
		steps.New(steps.Definition[ClusterParams]{
			Name:        StepCreateDashboardRoute,
			Description: "Creates the HTTPRoute for the Kubernetes Dashboard",
			Params:      cluster,
			Perform:     e.createDashboardHTTPRoute,
			PerformFlag: "create_kubernetes_dashboard_httproute_only",
			Kind:        steps.Optional{EnableFlag: deployDashboardFlag},
			DependsOn:   []string{StepCreateGateway, StepCreateDashboardAdmin},
		}),
		steps.New(steps.Definition[struct{}]{
			Name:        StepAddGrafanaChartRepo,
			Description: "Adds the Grafana Helm chart repository",
			Perform:     e.addGrafanaRepo,
			DependsOn:   []string{StepInitializeKindCluster},
		}),
		steps.New(steps.Definition[LokiParams]{
			Name:        StepDeployLoki,
			Description: "Deploys Loki for log aggregation in the Kind cluster",
			Params:      LokiParams{Namespace: lokiNamespace},
			Perform:     e.deployLoki,
			PerformFlag: "deploy_loki_only",
			DependsOn:   []string{StepInitializeKindCluster, StepAddGrafanaChartRepo},
		}),
	)
}

// Cleanup removes the built images first, while the registry may still be
// running, then the registry container. Both always run.
func Cleanup(e *Env) steps.CleanupFunc {
	return func(ctx context.Context, v steps.Values) error {
		port := defaultRegistryPort
		if raw, ok := v.Lookup(registryPortFlag); ok {
			if p, ok := raw.(int); ok {
				port = p
			}
		}

		var errs []error
		if err := e.removeImages(ctx, e.Config.RegistryHost, port); err != nil {
			errs = append(errs, fmt.Errorf("images: %w", err))
		}
		if err := e.removeRegistry(ctx, e.Config.RegistryName); err != nil {
			errs = append(errs, fmt.Errorf("registry: %w", err))
		}
		if len(errs) > 0 {
			e.Logger.Warn("cleanup completed with errors")
			return errors.Join(errs...)
		}
		e.Logger.Info("cleanup complete")
		return nil
	}
}
