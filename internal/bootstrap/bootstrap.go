// Package bootstrap declares the steps that bring up a local kind cluster
// backed by a private docker registry, together with their global cleanup.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codex-k8s/kindctl/internal/config"
	"github.com/codex-k8s/kindctl/internal/docker"
	"github.com/codex-k8s/kindctl/internal/helm"
	"github.com/codex-k8s/kindctl/internal/kind"
	"github.com/codex-k8s/kindctl/internal/kube"
	"github.com/codex-k8s/kindctl/internal/shell"
)

// Env carries the collaborators every step works with.
type Env struct {
	Config *config.Config
	Shell  shell.Commander
	Docker *docker.Client
	Kind   *kind.Client
	Kube   *kube.Client
	Helm   *helm.Client
	Logger *slog.Logger

	// Sleep pauses between resource creation and readiness checks.
	Sleep func(ctx context.Context, d time.Duration) error

	images *config.Images
}

// NewEnv wires the CLI clients on top of sh.
func NewEnv(cfg *config.Config, sh shell.Commander, logger *slog.Logger) *Env {
	if logger == nil {
		logger = slog.Default()
	}
	return &Env{
		Config: cfg,
		Shell:  sh,
		Docker: docker.NewClient(sh),
		Kind:   kind.NewClient(sh),
		Kube:   kube.NewClient(sh, cfg.Kubeconfig, ""),
		Helm:   helm.NewClient(sh),
		Logger: logger,
		Sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// root returns the project root, resolving it from git on first use.
func (e *Env) root(ctx context.Context) (string, error) {
	if e.Config.ProjectRoot == "" {
		if err := e.Config.ResolveProjectRoot(ctx, e.Shell); err != nil {
			return "", err
		}
	}
	return e.Config.ProjectRoot, nil
}

// path joins elem onto the project root.
func (e *Env) path(ctx context.Context, elem ...string) (string, error) {
	if _, err := e.root(ctx); err != nil {
		return "", err
	}
	return e.Config.Path(elem...), nil
}

// catalogue loads and validates the image catalogue once.
func (e *Env) catalogue(ctx context.Context) (*config.Images, error) {
	if e.images != nil {
		return e.images, nil
	}
	root, err := e.root(ctx)
	if err != nil {
		return nil, err
	}
	imgs, err := config.LoadImages(e.Config.ImagesPath(), root)
	if err != nil {
		return nil, err
	}
	e.images = imgs
	return imgs, nil
}

// useCluster points kubectl at the kind cluster.
func (e *Env) useCluster(ctx context.Context, cluster string) error {
	name := kind.ContextName(cluster)
	if err := e.Kube.UseContext(ctx, name); err != nil {
		return fmt.Errorf("set kubectl context for kind cluster %s: %w", cluster, err)
	}
	e.Logger.Debug("kubectl context set", "context", name)
	return nil
}

func (e *Env) requireHelm(ctx context.Context) error {
	if !e.Helm.Installed(ctx) {
		return fmt.Errorf("helm is not installed or not in PATH")
	}
	return nil
}

func registryAddress(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
