package tui

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var stateKeys = map[State]string{
	StateMenu:       "↑/↓ move • enter choose • q quit",
	StateFilePicker: "↑/↓ move • enter open • esc menu • q quit",
	StateConverting: "q quit",
	StateResult:     "↑/↓ scroll warnings • enter menu • q quit",
}

// View renders the TUI
func (m Model) View() string {
	var body string
	switch m.state {
	case StateMenu:
		body = m.viewMenu()
	case StateFilePicker:
		body = headingStyle.Render("Pick a MusicXML score") + "\n\n" + m.filePicker.View()
	case StateConverting:
		body = panelStyle.Render(fmt.Sprintf("%s %s %s", m.spinner.View(), m.chosenVerb(), filepath.Base(m.source)))
	case StateResult:
		body = m.viewResult()
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		bannerStyle.Render("𝄞 score2mei"),
		body,
		keysStyle.Render(stateKeys[m.state]),
	)
}

func (m Model) chosenVerb() string {
	if m.chosen.Action == ActionInspect {
		return "Inspecting"
	}
	return "Converting to " + strings.ToUpper(string(m.chosen.Target)) + ":"
}

func (m Model) viewMenu() string {
	lines := []string{headingStyle.Render("What should happen to the score?"), ""}
	for i, item := range menuItems {
		if i != m.menuIndex {
			lines = append(lines, entryStyle.Render("  "+item.Title))
			continue
		}
		lines = append(lines, cursorStyle.Render("▸ "+item.Title), blurbStyle.Render(item.Description))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) viewResult() string {
	if m.err != nil {
		return panelStyle.BorderForeground(forte).Render(failStyle.Render("✗ " + m.err.Error()))
	}

	r := m.report
	heading := okStyle.Render("✓ Converted")
	if r.output == "" {
		heading = okStyle.Render("✓ Inspected")
	}
	lines := []string{heading, "", field("Source", filepath.Base(r.input))}
	if r.output != "" {
		lines = append(lines, field("Output", filepath.Base(r.output)))
	}
	if r.title != "" {
		lines = append(lines, field("Title", r.title))
	}
	lines = append(lines, field("Measures", strconv.Itoa(r.measures)))

	if len(r.controls) > 0 {
		lines = append(lines, "", controlTable(r.controls))
	}

	lines = append(lines, "", field("Warnings", strconv.Itoa(len(r.warnings))))
	end := min(m.scroll+warningRows, len(r.warnings))
	for _, w := range r.warnings[m.scroll:end] {
		lines = append(lines, warnStyle.Render("  ! "+w.String()))
	}
	if len(r.warnings) > warningRows {
		lines = append(lines, keysStyle.Render(fmt.Sprintf("  %d-%d of %d", m.scroll+1, end, len(r.warnings))))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func field(label, value string) string {
	return labelStyle.Render(label) + value
}

func controlTable(counts []controlCount) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(staffGray)).
		Headers("control", "count").
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Bold(true).Foreground(inkBlue)
			}
			if col == 1 {
				return s.Align(lipgloss.Right)
			}
			return s
		})
	for _, c := range counts {
		t.Row(c.element, strconv.Itoa(c.count))
	}
	return t.Render()
}
