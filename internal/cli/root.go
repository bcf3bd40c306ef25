// Package cli defines the command-line interface for kindctl.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/codex-k8s/kindctl/internal/config"
	"github.com/codex-k8s/kindctl/internal/logging"
	"github.com/codex-k8s/kindctl/internal/shell"
)

// Options stores global CLI options shared between commands.
type Options struct {
	EnvFile   string
	LogLevel  logging.Level
	LogFormat logging.Format

	// Config is loaded before any subcommand runs.
	Config *config.Config
	// Shell overrides the command runner; nil means os/exec.
	Shell shell.Commander
}

// Execute builds the root command, runs it with the provided args and logger, and returns any error.
func Execute(args []string, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewLogger(os.Stderr, logging.LevelInfo)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand(&Options{}, logger)
	rootCmd.SetArgs(args)

	return rootCmd.ExecuteContext(ctx)
}

// newRootCommand constructs the root cobra.Command with global flags and subcommands.
func newRootCommand(opts *Options, logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "kindctl",
		Short:         "kindctl bootstraps a local kind cluster with a private Docker registry",
		Long:          "kindctl runs the ordered setup steps for a local Kubernetes development environment: a private Docker registry, project images, a kind cluster, Gateway API, MetalLB, the Kubernetes Dashboard and Loki.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.LoadOptions{EnvFile: opts.EnvFile})
			if err != nil {
				return err
			}
			opts.Config = cfg

			levelName := cfg.LogLevel
			if f := cmd.Flag("log-level"); f != nil && f.Changed {
				levelName = f.Value.String()
			}
			formatName := cfg.LogFormat
			if f := cmd.Flag("log-format"); f != nil && f.Changed {
				formatName = f.Value.String()
			}
			format, err := logging.ParseFormat(formatName)
			if err != nil {
				return err
			}
			opts.LogLevel = logging.ParseLevel(levelName)
			opts.LogFormat = format

			logger = logging.NewLoggerWithFormat(cmd.ErrOrStderr(), opts.LogLevel, format).With("run", uuid.NewString())
			cmd.SetContext(context.WithValue(cmd.Context(), loggerKey{}, logger))
			logger.Debug("logger initialized", "level", levelName, "format", format)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", config.DefaultEnvFile, "Path to a .env file with KINDCTL_* settings (ignored when missing)")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error); defaults to KINDCTL_LOG_LEVEL")
	cmd.PersistentFlags().String("log-format", "tint", "Log format (tint, text, json); defaults to KINDCTL_LOG_FORMAT")

	cmd.AddCommand(
		newUpCommand(opts),
		newStepsCommand(opts),
		newDoctorCommand(opts),
	)

	return cmd
}

// loggerKey is a private context key used to store a logger in command contexts.
type loggerKey struct{}

// LoggerFromContext extracts a logger from the context or falls back to a default logger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return logging.NewLogger(os.Stderr, logging.LevelInfo)
	}
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return logging.NewLogger(os.Stderr, logging.LevelInfo)
}

// commander returns the configured shell or an os/exec runner logging to logger.
func (o *Options) commander(logger *slog.Logger) shell.Commander {
	if o.Shell != nil {
		return o.Shell
	}
	return shell.NewRunner(logger)
}
