// Package helm wraps the helm CLI for repository and release management.
package helm

import (
	"context"
	"fmt"
	"sort"

	"github.com/codex-k8s/kindctl/internal/shell"
)

// Release describes a helm upgrade --install invocation.
type Release struct {
	Name            string
	Chart           string
	Namespace       string
	Version         string
	ValuesFiles     []string
	Set             map[string]string
	CreateNamespace bool
	SkipCRDs        bool
	Wait            bool
}

// Args renders the helm arguments for the release. Set keys are emitted in sorted order.
func (r Release) Args() []string {
	args := []string{"upgrade", "--install", r.Name, r.Chart}
	if r.Version != "" {
		args = append(args, "--version", r.Version)
	}
	for _, f := range r.ValuesFiles {
		args = append(args, "--values", f)
	}
	if r.Namespace != "" {
		args = append(args, "--namespace", r.Namespace)
	}
	if r.CreateNamespace {
		args = append(args, "--create-namespace")
	}
	if r.SkipCRDs {
		args = append(args, "--skip-crds")
	}
	keys := make([]string, 0, len(r.Set))
	for k := range r.Set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--set", k+"="+r.Set[k])
	}
	if r.Wait {
		args = append(args, "--wait")
	}
	return args
}

// Client runs helm commands through a shell.Commander.
type Client struct {
	sh shell.Commander
}

// NewClient constructs a helm client.
func NewClient(sh shell.Commander) *Client {
	return &Client{sh: sh}
}

// Installed reports whether helm is callable.
func (c *Client) Installed(ctx context.Context) bool {
	_, err := c.sh.Output(ctx, shell.Command{Name: "helm", Args: []string{"version", "--short"}})
	return err == nil
}

// AddRepo registers a chart repository, replacing an existing entry with the same name.
func (c *Client) AddRepo(ctx context.Context, name, url string) error {
	cmd := shell.Command{Name: "helm", Args: []string{"repo", "add", name, url, "--force-update"}}
	if err := c.sh.Run(ctx, cmd); err != nil {
		return fmt.Errorf("add helm repo %s: %w", name, err)
	}
	return nil
}

// UpgradeInstall installs or upgrades the release.
func (c *Client) UpgradeInstall(ctx context.Context, r Release) error {
	if err := c.sh.Run(ctx, shell.Command{Name: "helm", Args: r.Args()}); err != nil {
		return fmt.Errorf("helm upgrade --install %s: %w", r.Name, err)
	}
	return nil
}
