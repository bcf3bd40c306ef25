// Package docker wraps the docker CLI operations used to manage the local
// registry, the built images and the kind network.
package docker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/codex-k8s/kindctl/internal/shell"
)

// RegistryContainerPort is the port the registry listens on inside its container.
const RegistryContainerPort = 5000

// Client runs docker commands through a shell.Commander.
type Client struct {
	sh shell.Commander
}

// NewClient constructs a docker client.
func NewClient(sh shell.Commander) *Client {
	return &Client{sh: sh}
}

func (c *Client) run(ctx context.Context, args ...string) error {
	return c.sh.Run(ctx, shell.Command{Name: "docker", Args: args})
}

func (c *Client) output(ctx context.Context, args ...string) (string, error) {
	return c.sh.Output(ctx, shell.Command{Name: "docker", Args: args})
}

// RegistryTaggedName returns image tagged for the registry at host:port.
func RegistryTaggedName(image, registry string) string {
	return strings.TrimSuffix(registry, "/") + "/" + image
}

// ImageExists reports whether a local image with the given reference exists.
func (c *Client) ImageExists(ctx context.Context, image string) (bool, error) {
	out, err := c.output(ctx, "images", "-q", image)
	if err != nil {
		return false, fmt.Errorf("inspect image %s: %w", image, err)
	}
	return out != "", nil
}

// PullImage pulls image from its upstream registry.
func (c *Client) PullImage(ctx context.Context, image string) error {
	if err := c.run(ctx, "pull", image); err != nil {
		return fmt.Errorf("pull image %s: %w", image, err)
	}
	return nil
}

// BuildImage builds dockerfile from contextDir and tags the result as tag.
func (c *Client) BuildImage(ctx context.Context, contextDir, dockerfile, tag string) error {
	cmd := shell.Command{
		Name: "docker",
		Args: []string{"build", "-f", dockerfile, "-t", tag, "."},
		Dir:  contextDir,
	}
	if err := c.sh.Run(ctx, cmd); err != nil {
		return fmt.Errorf("build image %s from %s: %w", tag, dockerfile, err)
	}
	return nil
}

// TagImage adds target as a new reference to source.
func (c *Client) TagImage(ctx context.Context, source, target string) error {
	if err := c.run(ctx, "tag", source, target); err != nil {
		return fmt.Errorf("tag image %s as %s: %w", source, target, err)
	}
	return nil
}

// PushImage pushes image to the registry encoded in its reference.
func (c *Client) PushImage(ctx context.Context, image string) error {
	if err := c.run(ctx, "push", image); err != nil {
		return fmt.Errorf("push image %s: %w", image, err)
	}
	return nil
}

// RemoveImage deletes a local image reference.
func (c *Client) RemoveImage(ctx context.Context, image string) error {
	if err := c.run(ctx, "rmi", image); err != nil {
		return fmt.Errorf("remove image %s: %w", image, err)
	}
	return nil
}

// ContainerExists reports whether a container with the exact name exists, running or not.
func (c *Client) ContainerExists(ctx context.Context, name string) (bool, error) {
	out, err := c.output(ctx, "ps", "-a", "--filter", "name=^/"+name+"$", "--format", "{{.Names}}")
	if err != nil {
		return false, fmt.Errorf("inspect container %s: %w", name, err)
	}
	return containsLine(out, name), nil
}

// ContainerRunning reports whether the named container is running.
func (c *Client) ContainerRunning(ctx context.Context, name string) (bool, error) {
	out, err := c.output(ctx, "ps", "--filter", "name=^/"+name+"$", "--filter", "status=running", "--format", "{{.Names}}")
	if err != nil {
		return false, fmt.Errorf("inspect container %s: %w", name, err)
	}
	return containsLine(out, name), nil
}

// RunRegistry starts the registry container publishing hostPort.
func (c *Client) RunRegistry(ctx context.Context, name, image string, hostPort int) error {
	args := []string{
		"run", "-d",
		"--name", name,
		"-p", fmt.Sprintf("%d:%d", hostPort, RegistryContainerPort),
		"--restart=always",
		image,
	}
	if err := c.run(ctx, args...); err != nil {
		return fmt.Errorf("start registry container %s: %w", name, err)
	}
	return nil
}

// CreateContainer creates a stopped container named name from image.
func (c *Client) CreateContainer(ctx context.Context, name, image string) error {
	if err := c.run(ctx, "container", "create", "--name", name, image, "true"); err != nil {
		return fmt.Errorf("create container %s: %w", name, err)
	}
	return nil
}

// RemoveContainer force-removes the named container.
func (c *Client) RemoveContainer(ctx context.Context, name string) error {
	if err := c.run(ctx, "container", "rm", "-f", name); err != nil {
		return fmt.Errorf("remove container %s: %w", name, err)
	}
	return nil
}

// CopyFromContainer copies src out of container into dest, creating dest's parent.
func (c *Client) CopyFromContainer(ctx context.Context, container, src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}
	if err := c.run(ctx, "cp", container+":"+src, dest); err != nil {
		return fmt.Errorf("copy %s from %s: %w", src, container, err)
	}
	return nil
}

// NetworkExists reports whether the docker network exists.
func (c *Client) NetworkExists(ctx context.Context, network string) (bool, error) {
	out, err := c.output(ctx, "network", "ls", "--filter", "name=^"+network+"$", "--format", "{{.Name}}")
	if err != nil {
		return false, fmt.Errorf("inspect network %s: %w", network, err)
	}
	return containsLine(out, network), nil
}

// ConnectedToNetwork reports whether container is attached to network.
func (c *Client) ConnectedToNetwork(ctx context.Context, container, network string) (bool, error) {
	out, err := c.output(ctx, "inspect", "-f", "{{range $k, $v := .NetworkSettings.Networks}}{{$k}}\n{{end}}", container)
	if err != nil {
		return false, fmt.Errorf("inspect container %s networks: %w", container, err)
	}
	return containsLine(out, network), nil
}

// ConnectNetwork attaches container to network.
func (c *Client) ConnectNetwork(ctx context.Context, network, container string) error {
	if err := c.run(ctx, "network", "connect", network, container); err != nil {
		return fmt.Errorf("connect %s to network %s: %w", container, network, err)
	}
	return nil
}

// NetworkSubnet returns the first IPAM subnet of network in CIDR form.
func (c *Client) NetworkSubnet(ctx context.Context, network string) (string, error) {
	out, err := c.output(ctx, "network", "inspect", network, "-f", "{{(index .IPAM.Config 0).Subnet}}")
	if err != nil {
		return "", fmt.Errorf("inspect network %s subnet: %w", network, err)
	}
	if out == "" {
		return "", fmt.Errorf("network %s has no IPAM subnet", network)
	}
	return out, nil
}

func containsLine(out, want string) bool {
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == want {
			return true
		}
	}
	return false
}
