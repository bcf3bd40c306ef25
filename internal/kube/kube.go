// Package kube provides low-level integration with Kubernetes via kubectl.
package kube

import (
	"context"
	"fmt"

	"github.com/codex-k8s/kindctl/internal/shell"
)

// Client wraps kubectl execution with optional kubeconfig and context selection.
type Client struct {
	Kubeconfig string
	Context    string

	sh shell.Commander
}

// NewClient constructs a new Kubernetes client wrapper.
func NewClient(sh shell.Commander, kubeconfig, context string) *Client {
	return &Client{
		Kubeconfig: kubeconfig,
		Context:    context,
		sh:         sh,
	}
}

// WithContext returns a copy of the client pinned to the given kubeconfig context.
func (c *Client) WithContext(name string) *Client {
	cp := *c
	cp.Context = name
	return &cp
}

// UseContext switches the current kubeconfig context.
func (c *Client) UseContext(ctx context.Context, name string) error {
	if err := c.runKubectl(ctx, "config", "use-context", name); err != nil {
		return fmt.Errorf("use kubectl context %s: %w", name, err)
	}
	return nil
}

// ApplyFile applies a manifest from a local path or URL.
func (c *Client) ApplyFile(ctx context.Context, pathOrURL string) error {
	if err := c.runKubectl(ctx, "apply", "-f", pathOrURL); err != nil {
		return fmt.Errorf("apply %s: %w", pathOrURL, err)
	}
	return nil
}

// WaitForDeployment waits until the named deployment in namespace is Available.
func (c *Client) WaitForDeployment(ctx context.Context, namespace, name, timeout string) error {
	if timeout == "" {
		timeout = "300s"
	}
	args := []string{"wait", "--for=condition=Available", "deployment/" + name, "--timeout=" + timeout}
	if namespace != "" {
		args = append(args, "-n", namespace)
	}
	if err := c.runKubectl(ctx, args...); err != nil {
		return fmt.Errorf("wait for deployment %s/%s: %w", namespace, name, err)
	}
	return nil
}

// DeploymentNames lists deployments matching selector in namespace as kind/name references.
func (c *Client) DeploymentNames(ctx context.Context, namespace, selector string) (string, error) {
	args := []string{"get", "deployment", "-o", "name"}
	if namespace != "" {
		args = append(args, "-n", namespace)
	}
	if selector != "" {
		args = append(args, "-l", selector)
	}
	out, err := c.outputKubectl(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("list deployments in %s: %w", namespace, err)
	}
	return out, nil
}

// PatchStrategic applies a strategic merge patch to resource (kind/name) in namespace.
func (c *Client) PatchStrategic(ctx context.Context, namespace, resource, patch string) error {
	args := []string{"patch", resource, "--type", "strategic", "-p", patch}
	if namespace != "" {
		args = append(args, "-n", namespace)
	}
	if err := c.runKubectl(ctx, args...); err != nil {
		return fmt.Errorf("patch %s: %w", resource, err)
	}
	return nil
}

// GetJSONPath reads a single field of a resource using a jsonpath expression.
func (c *Client) GetJSONPath(ctx context.Context, namespace, kind, name, path string) (string, error) {
	args := []string{"get", kind, name, "-o", "jsonpath=" + path}
	if namespace != "" {
		args = append(args, "-n", namespace)
	}
	out, err := c.outputKubectl(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("get %s %s: %w", kind, name, err)
	}
	return out, nil
}

func (c *Client) command(args ...string) shell.Command {
	cmdArgs := make([]string, 0, len(args)+2)
	if c.Context != "" {
		cmdArgs = append(cmdArgs, "--context", c.Context)
	}
	cmdArgs = append(cmdArgs, args...)

	cmd := shell.Command{Name: "kubectl", Args: cmdArgs}
	if c.Kubeconfig != "" {
		cmd.Env = []string{"KUBECONFIG=" + c.Kubeconfig}
	}
	return cmd
}

func (c *Client) runKubectl(ctx context.Context, args ...string) error {
	if err := c.sh.Run(ctx, c.command(args...)); err != nil {
		return fmt.Errorf("kubectl %v failed: %w", args, err)
	}
	return nil
}

func (c *Client) outputKubectl(ctx context.Context, args ...string) (string, error) {
	out, err := c.sh.Output(ctx, c.command(args...))
	if err != nil {
		return "", fmt.Errorf("kubectl %v failed: %w", args, err)
	}
	return out, nil
}
