package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/kindctl/internal/bootstrap"
	"github.com/codex-k8s/kindctl/internal/config"
	"github.com/codex-k8s/kindctl/internal/env"
	"github.com/codex-k8s/kindctl/internal/steps"
)

const upLong = `Bootstrap a local Docker registry and Kind cluster for main-line development.

Without flags every required step runs in order. A *-only flag runs a single
step in isolation, a cleanup flag rolls a single step back, and --cleanup
removes the project images and the registry.`

// newUpCommand creates the "up" subcommand that runs the bootstrap steps.
func newUpCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Bootstrap the registry and kind cluster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			e := bootstrap.NewEnv(opts.Config, opts.commander(logger), logger)
			_, surface, err := newSurface(e)
			if err != nil {
				return err
			}

			plan, err := surface.Resolve(cmd.Flags(), logger)
			if err != nil {
				return err
			}

			report, err := steps.Execute(cmd.Context(), plan, bootstrap.Cleanup(e), logger)
			if err != nil {
				return err
			}

			if report.Mode == steps.ModeDefault {
				logger.Info("bootstrap completed", "steps", len(report.Steps))
			}
			return renderReport(cmd.OutOrStdout(), report)
		},
	}

	// Flag registration only needs names and defaults, so the catalogue is
	// built here from built-in configuration and rebuilt at run time.
	defaults, err := config.Load(config.LoadOptions{Environ: env.Vars{}})
	if err != nil {
		defaults = &config.Config{}
	}
	cat, surface, err := newSurface(bootstrap.NewEnv(defaults, nil, slog.Default()))
	if err != nil {
		cmd.RunE = func(*cobra.Command, []string) error {
			return fmt.Errorf("invalid step catalogue: %w", err)
		}
		return cmd
	}
	surface.Register(cmd.Flags())
	cmd.Long = upLong + "\n\n" + stepsHelp(cat.Metas())

	return cmd
}

func newSurface(e *bootstrap.Env) (*steps.Catalogue, *steps.Surface, error) {
	cat, err := bootstrap.Catalogue(e)
	if err != nil {
		return nil, nil, err
	}
	return cat, steps.NewSurface(cat), nil
}

// stepsHelp lists every step with its description.
func stepsHelp(metas []steps.Meta) string {
	var b strings.Builder
	b.WriteString("Available Steps:\n")
	for _, m := range metas {
		fmt.Fprintf(&b, "  '%s': %s\n", m.Name, m.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}
