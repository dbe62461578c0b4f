// Package tui provides a terminal user interface for score2mei
package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/james-see/score2mei/internal/logging"
	"github.com/james-see/score2mei/pkg/converter"
)

// warningRows is how many warnings the result screen shows at once.
const warningRows = 6

// State represents the current TUI state
type State int

const (
	StateMenu State = iota
	StateFilePicker
	StateConverting
	StateResult
)

// Action is what a menu entry does with the picked score.
type Action int

const (
	ActionConvert Action = iota
	ActionInspect
	ActionQuit
)

// MenuItem represents a menu option
type MenuItem struct {
	Title       string
	Description string
	Action      Action
	Target      converter.Format
}

var menuItems = []MenuItem{
	{Title: "MusicXML → MEI", Description: "Write an MEI 5 file next to the score", Action: ActionConvert, Target: converter.FormatMEI},
	{Title: "MusicXML → MIDI", Description: "Write a Standard MIDI File next to the score", Action: ActionConvert, Target: converter.FormatMIDI},
	{Title: "Inspect score", Description: "Convert in memory and list controls and warnings", Action: ActionInspect, Target: converter.FormatMEI},
	{Title: "Exit", Description: "Leave score2mei", Action: ActionQuit},
}

var sourceTypes = []string{".musicxml", ".xml", ".mxl"}

// controlCount is one row of the control summary.
type controlCount struct {
	element string
	count   int
}

// report is what the result screen shows about one conversion.
type report struct {
	input    string
	output   string // empty when only inspected
	title    string
	measures int
	controls []controlCount
	warnings []converter.ConversionWarning
}

func newReport(input string, result *converter.Result) report {
	r := report{input: input, output: result.Output, warnings: result.Warnings}
	doc := result.Document
	if doc == nil {
		return r
	}
	if doc.Head != nil {
		r.title = doc.Head.Title
	}
	r.measures = len(doc.Measures())

	counts := make(map[string]int)
	for _, c := range doc.Controls() {
		counts[c.ElementName()]++
	}
	for name, n := range counts {
		r.controls = append(r.controls, controlCount{element: name, count: n})
	}
	sort.Slice(r.controls, func(i, j int) bool { return r.controls[i].element < r.controls[j].element })
	return r
}

// Model represents the TUI model
type Model struct {
	conv       *converter.Converter
	state      State
	menuIndex  int
	filePicker filepicker.Model
	spinner    spinner.Model
	chosen     MenuItem
	source     string
	report     report
	scroll     int
	err        error
	width      int
	height     int
}

// conversionDoneMsg carries the outcome of a background conversion.
type conversionDoneMsg struct {
	report report
	err    error
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// New creates a new TUI model around conv. A nil conv gets the defaults.
func New(conv *converter.Converter) Model {
	if conv == nil {
		conv = converter.New()
	}
	// The TUI owns the terminal; log lines would corrupt the screen.
	conv.SetLogger(logging.Discard())

	fp := filepicker.New()
	fp.AllowedTypes = sourceTypes
	fp.CurrentDirectory, _ = os.Getwd()

	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(rehearsal)

	return Model{conv: conv, state: StateMenu, filePicker: fp, spinner: s}
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.filePicker.SetHeight(max(msg.Height-10, 4))
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case conversionDoneMsg:
		m.state = StateResult
		m.report, m.err, m.scroll = msg.report, msg.err, 0
		return m, nil
	}

	switch m.state {
	case StateFilePicker:
		return m.updatePicker(msg)
	case StateMenu:
		if k, ok := msg.(tea.KeyMsg); ok {
			return m.updateMenu(k)
		}
	case StateResult:
		if k, ok := msg.(tea.KeyMsg); ok {
			return m.updateResult(k)
		}
	}
	return m, nil
}

// updatePicker forwards everything to the file picker, which also needs
// its own directory listing messages.
func (m Model) updatePicker(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "esc":
			m.state = StateMenu
			return m, nil
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.filePicker, cmd = m.filePicker.Update(msg)
	if ok, path := m.filePicker.DidSelectFile(msg); ok {
		m.source = path
		m.state = StateConverting
		return m, tea.Batch(m.spinner.Tick, m.run())
	}
	return m, cmd
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.menuIndex = max(m.menuIndex-1, 0)
	case "down", "j":
		m.menuIndex = min(m.menuIndex+1, len(menuItems)-1)
	case "enter":
		m.chosen = menuItems[m.menuIndex]
		if m.chosen.Action == ActionQuit {
			return m, tea.Quit
		}
		m.state = StateFilePicker
		return m, m.filePicker.Init()
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.scroll = max(m.scroll-1, 0)
	case "down", "j":
		m.scroll = min(m.scroll+1, max(len(m.report.warnings)-warningRows, 0))
	case "enter", "esc":
		m.state = StateMenu
		m.source, m.report, m.err, m.scroll = "", report{}, nil, 0
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) run() tea.Cmd {
	conv, input, item := m.conv, m.source, m.chosen
	return func() tea.Msg {
		if item.Action == ActionInspect {
			return inspectFile(conv, input)
		}
		return convertFile(conv, input, item.Target)
	}
}

// convertFile writes the output next to the input, swapping the extension.
func convertFile(conv *converter.Converter, input string, target converter.Format) conversionDoneMsg {
	output := filepath.Join(filepath.Dir(input), converter.OutputName(input, converter.Extension(target)))
	result, err := conv.ConvertFile(input, output)
	if err != nil {
		return conversionDoneMsg{err: err}
	}
	return conversionDoneMsg{report: newReport(input, result)}
}

// inspectFile converts to MEI without writing anything.
func inspectFile(conv *converter.Converter, input string) conversionDoneMsg {
	data, err := os.ReadFile(input)
	if err != nil {
		return conversionDoneMsg{err: fmt.Errorf("failed to read input file: %w", err)}
	}
	result, err := conv.ConvertWithContext(conv.NewContext(), data, input, converter.FormatMEI)
	if err != nil {
		return conversionDoneMsg{err: err}
	}
	return conversionDoneMsg{report: newReport(input, result)}
}

// Run starts the TUI application
func Run(conv *converter.Converter) error {
	p := tea.NewProgram(New(conv), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
