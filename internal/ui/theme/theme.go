package theme

import "github.com/charmbracelet/lipgloss"

var (
	Text     = lipgloss.Color("#cdd6f4")
	Subtext0 = lipgloss.Color("#a6adc8")
	Sapphire = lipgloss.Color("#74c7ec")
	Green    = lipgloss.Color("#a6e3a1")
	Red      = lipgloss.Color("#f38ba8")
	Peach    = lipgloss.Color("#fab387")
	Yellow   = lipgloss.Color("#f9e2af")

	Title   = lipgloss.NewStyle().Foreground(Sapphire).Bold(true)
	Muted   = lipgloss.NewStyle().Foreground(Subtext0)
	Hot     = lipgloss.NewStyle().Foreground(Peach).Bold(true)
	Success = lipgloss.NewStyle().Foreground(Green)
	Failure = lipgloss.NewStyle().Foreground(Red).Bold(true)
	Warning = lipgloss.NewStyle().Foreground(Yellow)
	Plain   = lipgloss.NewStyle().Foreground(Text)
)

// Status renders a test or load status word in its color.
func Status(status string) string {
	switch status {
	case "success", "ok", "loaded":
		return Success.Render(status)
	case "failure", "failed":
		return Failure.Render(status)
	case "not-implemented", "disabled":
		return Warning.Render(status)
	case "running":
		return Hot.Render(status)
	default:
		return Muted.Render(status)
	}
}

// Flag renders a yes/no column.
func Flag(on bool, label string) string {
	if on {
		return Success.Render(label)
	}
	return Muted.Render("-")
}
