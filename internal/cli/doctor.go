package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/kindctl/internal/config"
)

// requiredTools are the binaries the bootstrap steps shell out to.
var requiredTools = []string{"docker", "kind", "kubectl", "helm", "git"}

// lookPath is replaced in tests.
var lookPath = exec.LookPath

// newDoctorCommand creates the "doctor" subcommand that runs environment preflight checks.
func newDoctorCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check required tools and the image catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			toolsErr := checkTools(logger)
			catalogueErr := checkCatalogue(ctx, logger, opts)
			if err := errors.Join(toolsErr, catalogueErr); err != nil {
				return err
			}

			logger.Info("doctor checks completed successfully")
			return nil
		},
	}
}

func checkTools(logger *slog.Logger) error {
	var missing []string
	for _, tool := range requiredTools {
		path, err := lookPath(tool)
		if err != nil {
			logger.Error("doctor check failed: missing required tool", "tool", tool)
			missing = append(missing, tool)
			continue
		}
		logger.Info("doctor check ok", "tool", tool, "path", path)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required tools: %v", missing)
	}
	return nil
}

// checkCatalogue validates the image catalogue when the project root and file exist.
func checkCatalogue(ctx context.Context, logger *slog.Logger, opts *Options) error {
	cfg := *opts.Config
	if err := cfg.ResolveProjectRoot(ctx, opts.commander(logger)); err != nil {
		logger.Warn("doctor check skipped: project root unknown", "error", err)
		return nil
	}

	path := cfg.ImagesPath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Warn("doctor check skipped: image catalogue not found", "path", path)
		return nil
	}

	images, err := config.LoadImages(path, cfg.ProjectRoot)
	if err != nil {
		logger.Error("doctor check failed: image catalogue", "path", path, "error", err)
		return err
	}
	logger.Info("doctor check ok", "catalogue", path, "images", len(images.Images))
	return nil
}
