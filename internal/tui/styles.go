package tui

import "github.com/charmbracelet/lipgloss"

var (
	cursorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))            // purple
	markStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))           // gray
	markSelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true) // green
	nameSelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	sizeStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("45")) // cyan
	dimStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	videoStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("208")) // orange
	headerStyle       = lipgloss.NewStyle().Bold(true)
	filterStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("227")).Bold(true) // yellow

	toastStyle      = lipgloss.NewStyle().Padding(0, 1).Background(lipgloss.Color("22")).Foreground(lipgloss.Color("255"))
	toastErrorStyle = lipgloss.NewStyle().Padding(0, 1).Background(lipgloss.Color("124")).Foreground(lipgloss.Color("255"))

	chromeStyle  = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("252")).Background(lipgloss.Color("236"))
	contentStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("99")).Padding(1, 2)
	fadingStyle  = contentStyle.BorderForeground(lipgloss.Color("238")).Foreground(lipgloss.Color("238"))
	helpBoxStyle = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.NormalBorder())
)
