package bootstrap

import (
	"context"
	"fmt"

	"github.com/codex-k8s/kindctl/internal/docker"
	"github.com/codex-k8s/kindctl/internal/kind"
	"github.com/codex-k8s/kindctl/internal/steps"
)

// RegistryParams configures the private registry container.
type RegistryParams struct {
	Name  string
	Image string
	Host  string
	Port  int
}

// ConnectParams names the registry container and the cluster whose network it joins.
type ConnectParams struct {
	RegistryName string
	ClusterName  string
}

func (e *Env) startRegistry(ctx context.Context, p RegistryParams) ([]steps.Output, error) {
	if p.Port < 1 || p.Port > 65535 {
		return nil, fmt.Errorf("registry port %d out of range 1-65535", p.Port)
	}
	logger := e.Logger.With("container", p.Name, "port", p.Port)

	exists, err := e.Docker.ContainerExists(ctx, p.Name)
	if err != nil {
		return nil, err
	}
	if exists {
		logger.Info("removing existing registry container")
		if err := e.Docker.RemoveContainer(ctx, p.Name); err != nil {
			return nil, err
		}
	}

	present, err := e.Docker.ImageExists(ctx, p.Image)
	if err != nil {
		return nil, err
	}
	if !present {
		logger.Info("pulling registry image", "image", p.Image)
		if err := e.Docker.PullImage(ctx, p.Image); err != nil {
			return nil, err
		}
	}

	logger.Info("starting registry container", "image", p.Image)
	if err := e.Docker.RunRegistry(ctx, p.Name, p.Image, p.Port); err != nil {
		return nil, err
	}

	running, err := e.Docker.ContainerRunning(ctx, p.Name)
	if err != nil {
		return nil, err
	}
	if !running {
		return nil, fmt.Errorf("registry container %s was created but is not running", p.Name)
	}

	addr := registryAddress(p.Host, p.Port)
	logger.Info("registry started", "address", addr)
	return []steps.Output{{Title: "Registry Started", Body: addr}}, nil
}

func (e *Env) removeRegistry(ctx context.Context, name string) error {
	exists, err := e.Docker.ContainerExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		e.Logger.Info("registry container does not exist", "container", name)
		return nil
	}
	if err := e.Docker.RemoveContainer(ctx, name); err != nil {
		return err
	}
	e.Logger.Info("registry container removed", "container", name)
	return nil
}

func (e *Env) connectToKind(ctx context.Context, p ConnectParams) ([]steps.Output, error) {
	network := kind.NetworkName
	logger := e.Logger.With("container", p.RegistryName, "network", network)

	exists, err := e.Docker.ContainerExists(ctx, p.RegistryName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("registry container %s does not exist", p.RegistryName)
	}
	running, err := e.Docker.ContainerRunning(ctx, p.RegistryName)
	if err != nil {
		return nil, err
	}
	if !running {
		return nil, fmt.Errorf("registry container %s is not running", p.RegistryName)
	}

	netExists, err := e.Docker.NetworkExists(ctx, network)
	if err != nil {
		return nil, err
	}
	if !netExists {
		return nil, fmt.Errorf("kind network %s does not exist, is cluster %s running?", network, p.ClusterName)
	}

	connected, err := e.Docker.ConnectedToNetwork(ctx, p.RegistryName, network)
	if err != nil {
		return nil, err
	}
	if connected {
		logger.Info("registry already connected to kind network")
		return nil, nil
	}

	if err := e.Docker.ConnectNetwork(ctx, network, p.RegistryName); err != nil {
		return nil, err
	}
	logger.Info("registry connected to kind network", "in_cluster_address", registryAddress(p.RegistryName, docker.RegistryContainerPort))
	return nil, nil
}
