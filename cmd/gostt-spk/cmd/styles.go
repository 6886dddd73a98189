package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/chaz8081/gostt-spk/internal/config"
)

var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorOK      = lipgloss.Color("#10B981")
	colorWarn    = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#6B7280")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	bannerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)

	keyStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Width(12)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	okStyle    = lipgloss.NewStyle().Foreground(colorOK)
	warnStyle  = lipgloss.NewStyle().Foreground(colorWarn)
	errorStyle = lipgloss.NewStyle().Foreground(colorError)
)

// printBanner displays the configuration summary a recognition run uses.
func printBanner(w io.Writer, cfg *config.Config) {
	speaker := cfg.Models.SpeakerModel
	if speaker == "" {
		speaker = "(disabled)"
	}
	rows := [][2]string{
		{"Model", cfg.Models.ModelPath},
		{"Speaker", speaker},
		{"Signatures", fmt.Sprintf("%s (%s)", cfg.Signatures.Dir, cfg.Signatures.Backend)},
		{"Threshold", fmt.Sprintf("%.2f", cfg.Signatures.Threshold)},
		{"Audio", fmt.Sprintf("%dHz, %dch", cfg.Audio.SampleRate, cfg.Audio.Channels)},
	}
	lines := []string{titleStyle.Render("gostt-spk")}
	for _, r := range rows {
		lines = append(lines, keyStyle.Render(r[0])+r[1])
	}
	fmt.Fprintln(w, bannerStyle.Render(strings.Join(lines, "\n")))
}

// printTable writes rows under a bold header, columns padded to the widest cell.
func printTable(w io.Writer, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i, c := range r {
			if i < len(widths) && lipgloss.Width(c) > widths[i] {
				widths[i] = lipgloss.Width(c)
			}
		}
	}

	cells := make([]string, len(header))
	for i, h := range header {
		cells[i] = headerStyle.Width(widths[i] + 2).Render(h)
	}
	fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, ""), " "))
	for _, r := range rows {
		for i := range cells {
			c := ""
			if i < len(r) {
				c = r[i]
			}
			cells[i] = lipgloss.NewStyle().Width(widths[i] + 2).Render(c)
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, ""), " "))
	}
}
