package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-see/score2mei/pkg/converter"
)

const score = `<?xml version="1.0"?>
<score-partwise version="4.0">
  <part-list><score-part id="P1"><part-name>Flute</part-name></score-part></part-list>
  <part id="P1">
    <measure number="1">
      <attributes><divisions>1</divisions></attributes>
      <note><pitch><step>C</step><octave>4</octave></pitch><duration>1</duration><voice>1</voice><type>quarter</type><notations><slur type="stop"/></notations></note>
    </measure>
  </part>
</score-partwise>`

const inspected = `<?xml version="1.0"?>
<score-partwise version="4.0">
  <work><work-title>Air</work-title></work>
  <part-list><score-part id="P1"><part-name>Flute</part-name></score-part></part-list>
  <part id="P1">
    <measure number="1">
      <attributes><divisions>1</divisions></attributes>
      <direction><direction-type><dynamics><p/></dynamics></direction-type></direction>
      <note><pitch><step>C</step><octave>4</octave></pitch><duration>1</duration><voice>1</voice><type>quarter</type><notations><slur type="start"/></notations></note>
      <note><pitch><step>D</step><octave>4</octave></pitch><duration>1</duration><voice>1</voice><type>quarter</type><notations><slur type="stop"/></notations></note>
    </measure>
  </part>
</score-partwise>`

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func TestMenuNavigation(t *testing.T) {
	m := New(nil)
	assert.Equal(t, StateMenu, m.state)

	m, _ = update(t, m, key("up"))
	assert.Equal(t, 0, m.menuIndex)
	for range menuItems {
		m, _ = update(t, m, key("j"))
	}
	assert.Equal(t, len(menuItems)-1, m.menuIndex)

	m, _ = update(t, m, key("k"))
	m, _ = update(t, m, key("up"))
	m, cmd := update(t, m, key("enter"))
	assert.Equal(t, StateFilePicker, m.state)
	assert.Equal(t, ActionConvert, m.chosen.Action)
	assert.Equal(t, converter.FormatMIDI, m.chosen.Target)
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Pick a MusicXML score")

	m, _ = update(t, m, key("esc"))
	assert.Equal(t, StateMenu, m.state)
	assert.Contains(t, m.View(), "MusicXML → MIDI")
}

func TestMenuExit(t *testing.T) {
	m := New(nil)
	m.menuIndex = len(menuItems) - 1
	_, cmd := update(t, m, key("enter"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "flute.musicxml")
	require.NoError(t, os.WriteFile(in, []byte(score), 0644))

	m := New(nil)
	msg := convertFile(m.conv, in, converter.FormatMEI)
	require.NoError(t, msg.err)
	assert.Equal(t, filepath.Join(dir, "flute.mei"), msg.report.output)
	assert.FileExists(t, msg.report.output)
	assert.Equal(t, 1, msg.report.measures)
	assert.Len(t, msg.report.warnings, 1)

	m.state = StateConverting
	m.source = in
	m, _ = update(t, m, msg)
	assert.Equal(t, StateResult, m.state)
	view := m.View()
	assert.Contains(t, view, "Converted")
	assert.Contains(t, view, "flute.mei")
	assert.Contains(t, view, "slur stop without matching start")

	m, _ = update(t, m, key("enter"))
	assert.Equal(t, StateMenu, m.state)
	assert.Nil(t, m.report.warnings)
}

func TestInspectFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "flute.musicxml")
	require.NoError(t, os.WriteFile(in, []byte(inspected), 0644))

	msg := inspectFile(New(nil).conv, in)
	require.NoError(t, msg.err)
	assert.Empty(t, msg.report.output)
	assert.NoFileExists(t, filepath.Join(dir, "flute.mei"))
	assert.Equal(t, "Air", msg.report.title)
	assert.Equal(t, []controlCount{{element: "dynam", count: 1}, {element: "slur", count: 1}}, msg.report.controls)

	m := New(nil)
	m, _ = update(t, m, msg)
	view := m.View()
	assert.Contains(t, view, "Inspected")
	assert.Contains(t, view, "dynam")
	assert.Contains(t, view, "Air")
}

func TestResultScroll(t *testing.T) {
	m := New(nil)
	var warnings []converter.ConversionWarning
	for i := 0; i < warningRows+2; i++ {
		warnings = append(warnings, converter.ConversionWarning{Message: fmt.Sprintf("warning %d", i)})
	}
	m, _ = update(t, m, conversionDoneMsg{report: report{input: "a.musicxml", warnings: warnings}})
	assert.NotContains(t, m.View(), "warning 7")

	for i := 0; i < 5; i++ {
		m, _ = update(t, m, key("down"))
	}
	assert.Equal(t, 2, m.scroll)
	view := m.View()
	assert.Contains(t, view, "warning 7")
	assert.NotContains(t, view, "warning 1")
	assert.Contains(t, view, "3-8 of 8")

	m, _ = update(t, m, key("k"))
	assert.Equal(t, 1, m.scroll)
}

func TestConvertFileFailure(t *testing.T) {
	m := New(nil)
	msg := convertFile(m.conv, filepath.Join(t.TempDir(), "missing.musicxml"), converter.FormatMIDI)
	require.Error(t, msg.err)

	m.state = StateConverting
	m, _ = update(t, m, msg)
	assert.Contains(t, m.View(), "failed to read input file")
}
