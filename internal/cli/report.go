package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/codex-k8s/kindctl/internal/steps"
)

var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#0550AE", Dark: "#58A6FF"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#57606A", Dark: "#8B949E"}

	reportTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	outputTitleStyle = lipgloss.NewStyle().Bold(true)
	outputBodyStyle  = lipgloss.NewStyle().PaddingLeft(2).Foreground(colorMuted)
	reportBoxStyle   = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorAccent).
				Padding(0, 1)
)

// reportTitle returns the heading for a report mode, or "" when the mode prints nothing.
func reportTitle(mode steps.Mode) string {
	switch mode {
	case steps.ModeDefault:
		return "Setup Complete - Important Information"
	case steps.ModeIsolate:
		return "Step Complete - Important Information"
	default:
		return ""
	}
}

// renderReport writes the collected step outputs as a boxed block.
func renderReport(w io.Writer, report steps.Report) error {
	title := reportTitle(report.Mode)
	if title == "" || len(report.Outputs) == 0 {
		return nil
	}

	lines := []string{reportTitleStyle.Render(title), ""}
	for _, out := range report.Outputs {
		lines = append(lines, outputTitleStyle.Render(out.Title+":"))
		for _, line := range strings.Split(out.Body, "\n") {
			lines = append(lines, outputBodyStyle.Render(line))
		}
	}

	_, err := fmt.Fprintln(w, reportBoxStyle.Render(strings.Join(lines, "\n")))
	return err
}
