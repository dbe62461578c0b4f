package tui

import "github.com/charmbracelet/lipgloss"

// Ink on manuscript paper.
var (
	inkBlue    = lipgloss.Color("#3B5BA5")
	parchment  = lipgloss.Color("#F3E9D2")
	staffGray  = lipgloss.Color("#A8A8A8")
	rehearsal  = lipgloss.Color("#D4A017")
	forte      = lipgloss.Color("#E0474C")
	cadence    = lipgloss.Color("#5FB36A")
	marginGray = lipgloss.Color("#666666")

	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(inkBlue).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(staffGray).
			MarginBottom(1)

	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(parchment).
			Background(inkBlue).
			Padding(0, 1)

	entryStyle  = lipgloss.NewStyle().Foreground(staffGray).PaddingLeft(2)
	cursorStyle = lipgloss.NewStyle().Foreground(parchment).Bold(true).PaddingLeft(2)
	blurbStyle  = lipgloss.NewStyle().Foreground(rehearsal).PaddingLeft(4)
	labelStyle  = lipgloss.NewStyle().Foreground(staffGray).Width(10)
	failStyle   = lipgloss.NewStyle().Foreground(forte).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(cadence).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(rehearsal)
	keysStyle   = lipgloss.NewStyle().Foreground(marginGray).MarginTop(1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(inkBlue).
			Padding(1, 2)
)
