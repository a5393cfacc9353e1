package app

import "github.com/charmbracelet/lipgloss"

var (
	textColor      = lipgloss.AdaptiveColor{Light: "#1F2328", Dark: "#E6EDF3"}
	mutedTextColor = lipgloss.AdaptiveColor{Light: "#57606A", Dark: "#8B949E"}
	borderColor    = lipgloss.AdaptiveColor{Light: "#D0D7DE", Dark: "#30363D"}
	panelBgColor   = lipgloss.AdaptiveColor{Light: "#F6F8FA", Dark: "#0D1117"}
	accentColor    = lipgloss.AdaptiveColor{Light: "#0969DA", Dark: "#58A6FF"}
	accentBgColor  = lipgloss.AdaptiveColor{Light: "#DDF4FF", Dark: "#1F2937"}
	successColor   = lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#3FB950"}
	errorFgColor   = lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#F85149"}
	warningColor   = lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#D29922"}

	pageStyle = lipgloss.NewStyle().Padding(0, 2)

	titleBadgeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("31")).
			Padding(0, 1)

	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(textColor)
	labelStyle   = lipgloss.NewStyle().Bold(true).Foreground(textColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorFgColor)
	hintStyle    = lipgloss.NewStyle().Foreground(mutedTextColor)
	warnStyle    = lipgloss.NewStyle().Foreground(warningColor).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(successColor)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Background(panelBgColor).
			Padding(0, 2)

	overlayStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 2)

	alertStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(errorFgColor).
			PaddingLeft(1)

	helpPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)

	rowStyle         = lipgloss.NewStyle().Foreground(textColor)
	rowSelectedStyle = lipgloss.NewStyle().
				Foreground(textColor).
				Background(accentBgColor).
				Bold(true)
	rowFlashStyle = rowSelectedStyle.Foreground(successColor)

	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)

	inputFocusStyle = inputStyle.BorderForeground(accentColor)

	diffAddStyle  = lipgloss.NewStyle().Foreground(successColor)
	diffDelStyle  = lipgloss.NewStyle().Foreground(errorFgColor)
	diffHunkStyle = lipgloss.NewStyle().Foreground(accentColor)
)
