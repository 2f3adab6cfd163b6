package console

import "github.com/charmbracelet/lipgloss"

// Colors
var (
	primaryColor   = lipgloss.Color("39")  // Blue
	secondaryColor = lipgloss.Color("245") // Gray
	accentColor    = lipgloss.Color("212") // Pink
	errorColor     = lipgloss.Color("196") // Red
	successColor   = lipgloss.Color("82")  // Green
	warningColor   = lipgloss.Color("214") // Orange
)

// Theme holds the styles used for console output. A plain theme writes
// text unstyled, for pipes and tests.
type Theme struct {
	Plain bool

	Title     lipgloss.Style
	Prompt    lipgloss.Style
	Heading   lipgloss.Style
	Bold      lipgloss.Style
	Italic    lipgloss.Style
	Code      lipgloss.Style
	Quote     lipgloss.Style
	Link      lipgloss.Style
	Strike    lipgloss.Style
	Indicator lipgloss.Style
	Help      lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Success   lipgloss.Style
}

// DefaultTheme returns the colored theme
func DefaultTheme() *Theme {
	return &Theme{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor),

		Prompt: lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")). // Cyan
			Bold(true),

		Heading: lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true),

		Bold:   lipgloss.NewStyle().Bold(true),
		Italic: lipgloss.NewStyle().Italic(true),

		Code: lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")), // Light yellow

		Quote: lipgloss.NewStyle().
			Foreground(secondaryColor),

		Link: lipgloss.NewStyle().
			Foreground(primaryColor).
			Underline(true),

		Strike: lipgloss.NewStyle().Strikethrough(true),

		Indicator: lipgloss.NewStyle().
			Foreground(secondaryColor).
			Italic(true),

		Help: lipgloss.NewStyle().
			Foreground(secondaryColor).
			Italic(true),

		Error:   lipgloss.NewStyle().Foreground(errorColor),
		Warning: lipgloss.NewStyle().Foreground(warningColor),
		Success: lipgloss.NewStyle().Foreground(successColor),
	}
}

// PlainTheme returns a theme that applies no styling
func PlainTheme() *Theme {
	return &Theme{Plain: true}
}

// Apply renders text with s unless the theme is plain
func (t *Theme) Apply(s lipgloss.Style, text string) string {
	if t == nil || t.Plain || text == "" {
		return text
	}
	return s.Render(text)
}
