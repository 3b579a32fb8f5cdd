package ui

import "github.com/charmbracelet/lipgloss"

// Color palette - single cyan accent plus status colors.
const (
	ColorCyan     = "51"  // Primary accent - bright cyan
	ColorCyanDim  = "30"  // Dimmed cyan for hints/borders
	ColorWhite    = "255" // Important text
	ColorGray     = "245" // Secondary text, labels
	ColorDarkGray = "238" // Separators
	ColorRed      = "196" // Errors
	ColorYellow   = "220" // Warnings
)

// Styles holds the console rendering styles.
type Styles struct {
	Header  lipgloss.Style
	Hint    lipgloss.Style
	Prompt  lipgloss.Style
	Answer  lipgloss.Style
	Source  lipgloss.Style
	Label   lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Spinner lipgloss.Style
	Border  lipgloss.Style
}

// DefaultStyles returns styled components for interactive terminals.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorCyan)),
		Hint:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Prompt:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorCyan)),
		Answer:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorWhite)),
		Source:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorCyanDim)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Spinner: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorCyan)),
		Border:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
	}
}

// NoColorStyles returns unstyled components for plain mode.
func NoColorStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle(),
		Hint:    lipgloss.NewStyle(),
		Prompt:  lipgloss.NewStyle(),
		Answer:  lipgloss.NewStyle(),
		Source:  lipgloss.NewStyle(),
		Label:   lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
		Spinner: lipgloss.NewStyle(),
		Border:  lipgloss.NewStyle(),
	}
}

// GetStyles returns the appropriate styles based on color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
