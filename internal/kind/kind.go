// Package kind wraps the kind CLI.
package kind

import (
	"context"
	"fmt"
	"strings"

	"github.com/codex-k8s/kindctl/internal/shell"
)

// NetworkName is the docker network kind attaches its nodes to.
const NetworkName = "kind"

// ContextName returns the kubeconfig context kind creates for cluster.
func ContextName(cluster string) string {
	return "kind-" + cluster
}

// Client runs kind commands through a shell.Commander.
type Client struct {
	sh shell.Commander
}

// NewClient constructs a kind client.
func NewClient(sh shell.Commander) *Client {
	return &Client{sh: sh}
}

// Clusters lists existing kind clusters.
func (c *Client) Clusters(ctx context.Context) ([]string, error) {
	out, err := c.sh.Output(ctx, shell.Command{Name: "kind", Args: []string{"get", "clusters"}})
	if err != nil {
		return nil, fmt.Errorf("list kind clusters: %w", err)
	}
	var clusters []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			clusters = append(clusters, line)
		}
	}
	return clusters, nil
}

// ClusterExists reports whether a cluster with the exact name exists.
func (c *Client) ClusterExists(ctx context.Context, name string) (bool, error) {
	clusters, err := c.Clusters(ctx)
	if err != nil {
		return false, err
	}
	for _, cl := range clusters {
		if cl == name {
			return true, nil
		}
	}
	return false, nil
}

// CreateCluster creates a cluster, using configPath when it is not empty.
func (c *Client) CreateCluster(ctx context.Context, name, configPath string) error {
	args := []string{"create", "cluster", "--name", name}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	if err := c.sh.Run(ctx, shell.Command{Name: "kind", Args: args}); err != nil {
		return fmt.Errorf("create kind cluster %s: %w", name, err)
	}
	return nil
}

// DeleteCluster deletes the named cluster.
func (c *Client) DeleteCluster(ctx context.Context, name string) error {
	if err := c.sh.Run(ctx, shell.Command{Name: "kind", Args: []string{"delete", "cluster", "--name", name}}); err != nil {
		return fmt.Errorf("delete kind cluster %s: %w", name, err)
	}
	return nil
}
