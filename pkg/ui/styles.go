package ui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	userLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	botLabelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	userTextStyle  = lipgloss.NewStyle().PaddingLeft(2)

	welcomeStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("245")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	chipStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	chipFocusedStyle = chipStyle.
				BorderForeground(lipgloss.Color("205")).
				Foreground(lipgloss.Color("205")).
				Bold(true)

	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)
