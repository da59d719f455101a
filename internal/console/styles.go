package console

import "github.com/charmbracelet/lipgloss"

const (
	colorMuted   = lipgloss.Color("#6B7280")
	colorSuccess = lipgloss.Color("#10B981")
	colorError   = lipgloss.Color("#EF4444")
	colorWarning = lipgloss.Color("#F59E0B")
	colorAccent  = lipgloss.Color("#3B82F6")
)

var (
	statusStyles = map[Kind]lipgloss.Style{
		NotReady: lipgloss.NewStyle().Foreground(colorMuted),
		Loading:  lipgloss.NewStyle().Foreground(colorWarning),
		Ready:    lipgloss.NewStyle().Foreground(colorSuccess),
		Running:  lipgloss.NewStyle().Foreground(colorAccent),
		Error:    lipgloss.NewStyle().Bold(true).Foreground(colorError),
	}

	// PromptStyle renders the REPL prompt.
	PromptStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)

	// HintStyle renders secondary REPL text.
	HintStyle = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
)

// RenderStatus returns the status as a styled single line.
func RenderStatus(s Status) string {
	style, ok := statusStyles[s.Kind]
	if !ok {
		style = lipgloss.NewStyle()
	}
	return style.Render("● " + s.Text)
}
