// Package styles contains Lip Gloss style definitions for the shell.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Core palette. Adaptive colors pick the right variant for light and dark
// terminal backgrounds.
var (
	AccentColor  = lipgloss.AdaptiveColor{Light: "#7D56F4", Dark: "#A78BFA"}
	SubtleColor  = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6B7280"}
	ErrorColor   = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#F87171"}
	WarnColor    = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}
	SuccessColor = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}
)

// Pane chrome.
var (
	PaneBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(SubtleColor)

	PaneBorderFocused = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(AccentColor)

	PaneTitle = lipgloss.NewStyle().
			Foreground(AccentColor).
			Bold(true).
			Padding(0, 1)

	StatusBar = lipgloss.NewStyle().
			Foreground(SubtleColor)

	StatusWarning = lipgloss.NewStyle().
			Foreground(WarnColor).
			Bold(true)
)

// Editor surface.
var (
	Cursor = lipgloss.NewStyle().Reverse(true)

	Selection = lipgloss.NewStyle().
			Background(lipgloss.AdaptiveColor{Light: "#DDD6FE", Dark: "#4C1D95"})

	Placeholder = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Italic(true)
)

// Toast borders.
var (
	ToastBorderErrorColor   = ErrorColor
	ToastBorderWarnColor    = WarnColor
	ToastBorderInfoColor    = AccentColor
	ToastBorderSuccessColor = SuccessColor
)

// DefaultPreviewStyle returns the glamour style name matching the terminal
// background. An explicit theme setting overrides detection.
func DefaultPreviewStyle(theme string) string {
	switch theme {
	case "dark", "light":
		return theme
	}
	if termenv.HasDarkBackground() {
		return "dark"
	}
	return "light"
}
