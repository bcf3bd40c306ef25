package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/codex-k8s/kindctl/internal/bootstrap"
	"github.com/codex-k8s/kindctl/internal/steps"
)

// newStepsCommand creates the "steps" subcommand that lists the catalogue.
func newStepsCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "steps",
		Short: "List bootstrap steps with their flags and dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, _, err := newSurface(bootstrap.NewEnv(opts.Config, nil, slog.Default()))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), stepsTable(cat.Metas()))
			return err
		},
	}
}

// stepsTable renders metas in catalogue order.
func stepsTable(metas []steps.Meta) string {
	rows := make([][]string, 0, len(metas))
	for _, m := range metas {
		rows = append(rows, []string{
			m.Name,
			steps.KindName(m.Kind),
			stepFlags(m),
			strings.Join(m.DependsOn, ", "),
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorMuted)).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return outputTitleStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers("STEP", "KIND", "FLAGS", "DEPENDS ON").
		Rows(rows...).
		Render()
}

func stepFlags(m steps.Meta) string {
	var flags []string
	if m.PerformFlag != "" {
		flags = append(flags, "--"+steps.FlagName(m.PerformFlag))
	}
	if m.RollbackFlag != "" {
		flags = append(flags, "--"+steps.FlagName(m.RollbackFlag))
	}
	for _, arg := range m.CLIArgs {
		flags = append(flags, "--"+arg.FlagName())
	}
	return strings.Join(flags, " ")
}
