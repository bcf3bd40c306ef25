// Package config loads kindctl runtime configuration: KINDCTL_* variables,
// an optional .env file and the image catalogue.
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	envparse "github.com/caarlos0/env/v11"

	"github.com/codex-k8s/kindctl/internal/env"
	"github.com/codex-k8s/kindctl/internal/shell"
)

// DefaultEnvFile is the dotenv file read from the working directory.
const DefaultEnvFile = ".env"

// Config holds settings shared by every step.
type Config struct {
	// ClusterName is the kind cluster name from KINDCTL_CLUSTER_NAME.
	ClusterName string `env:"KINDCTL_CLUSTER_NAME" envDefault:"main-line"`
	// RegistryName is the registry container name from KINDCTL_REGISTRY_NAME.
	RegistryName string `env:"KINDCTL_REGISTRY_NAME" envDefault:"main-line-registry"`
	// RegistryImage is the registry image from KINDCTL_REGISTRY_IMAGE.
	RegistryImage string `env:"KINDCTL_REGISTRY_IMAGE" envDefault:"registry:2"`
	// RegistryHost is the host images are pushed to from KINDCTL_REGISTRY_HOST.
	RegistryHost string `env:"KINDCTL_REGISTRY_HOST" envDefault:"localhost"`
	// ProjectRoot is the repository root from KINDCTL_PROJECT_ROOT; empty means git toplevel.
	ProjectRoot string `env:"KINDCTL_PROJECT_ROOT"`
	// ImagesFile is the image catalogue path from KINDCTL_IMAGES_FILE, relative to ProjectRoot.
	ImagesFile string `env:"KINDCTL_IMAGES_FILE" envDefault:"images.yaml"`
	// Kubeconfig is an explicit kubeconfig from KINDCTL_KUBECONFIG.
	Kubeconfig string `env:"KINDCTL_KUBECONFIG"`
	// LogLevel is the default log level from KINDCTL_LOG_LEVEL.
	LogLevel string `env:"KINDCTL_LOG_LEVEL" envDefault:"info"`
	// LogFormat is the default log handler from KINDCTL_LOG_FORMAT.
	LogFormat string `env:"KINDCTL_LOG_FORMAT" envDefault:"tint"`
}

// LoadOptions describes where configuration values come from.
type LoadOptions struct {
	// EnvFile is a dotenv file; a missing file is ignored.
	EnvFile string
	// Environ overrides the process environment, mainly for tests.
	Environ env.Vars
}

// Load merges the dotenv file with the environment (environment wins) and
// parses the result into Config.
func Load(opts LoadOptions) (*Config, error) {
	fileVars, err := env.LoadOptionalEnvFile(opts.EnvFile)
	if err != nil {
		return nil, err
	}

	environ := opts.Environ
	if environ == nil {
		environ = env.FromOS()
	}

	var cfg Config
	if err := envparse.ParseWithOptions(&cfg, envparse.Options{Environment: env.Merge(fileVars, environ)}); err != nil {
		return nil, fmt.Errorf("parse KINDCTL_* environment: %w", err)
	}
	return &cfg, nil
}

// ResolveProjectRoot fills ProjectRoot from git when it is not set and makes it absolute.
func (c *Config) ResolveProjectRoot(ctx context.Context, sh shell.Commander) error {
	root := strings.TrimSpace(c.ProjectRoot)
	if root == "" {
		out, err := sh.Output(ctx, shell.Command{Name: "git", Args: []string{"rev-parse", "--show-toplevel"}})
		if err != nil {
			return fmt.Errorf("determine git root (set KINDCTL_PROJECT_ROOT to override): %w", err)
		}
		root = out
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve project root %q: %w", root, err)
	}
	c.ProjectRoot = abs
	return nil
}

// Path joins elements onto ProjectRoot.
func (c *Config) Path(elem ...string) string {
	return filepath.Join(append([]string{c.ProjectRoot}, elem...)...)
}

// ImagesPath returns the absolute image catalogue path.
func (c *Config) ImagesPath() string {
	if filepath.IsAbs(c.ImagesFile) {
		return c.ImagesFile
	}
	return c.Path(c.ImagesFile)
}
