package converter

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/smf"
)

type sounded struct {
	key        uint8
	start, end int64
}

// readNotes returns the notes of every track after the conductor track.
func readNotes(t *testing.T, data []byte) (tracks int, tempo uint32, notes []sounded) {
	t.Helper()
	s, err := smf.ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)

	mt, ok := s.TimeFormat.(smf.MetricTicks)
	require.True(t, ok)
	assert.Equal(t, uint16(480), uint16(mt))

	for ti, track := range s.Tracks {
		var tick int64
		open := make(map[uint8]int64)
		for _, ev := range track {
			tick += int64(ev.Delta)
			msg := ev.Message
			if len(msg) >= 6 && msg[0] == 0xFF && msg[1] == 0x51 && msg[2] == 0x03 {
				tempo = uint32(msg[3])<<16 | uint32(msg[4])<<8 | uint32(msg[5])
			}
			if ti == 0 || len(msg) < 3 {
				continue
			}
			status, key, vel := msg[0]&0xF0, msg[1], msg[2]
			switch {
			case status == 0x90 && vel > 0:
				open[key] = tick
			case status == 0x80 || status == 0x90:
				if start, ok := open[key]; ok {
					notes = append(notes, sounded{key: key, start: start, end: tick})
					delete(open, key)
				}
			}
		}
	}
	return len(s.Tracks), tempo, notes
}

func TestMIDIRender(t *testing.T) {
	data := partwise(2,
		note("C", 4, 2, "quarter", `<notations><tied type="start"/></notations>`)+
			note("C", 4, 2, "quarter", `<notations><tied type="stop"/></notations>`)+
			`<note><rest/><duration>2</duration><voice>1</voice><type>quarter</type></note>`+
			`<note><pitch><step>F</step><alter>1</alter><octave>4</octave></pitch><duration>1</duration><voice>1</voice><type>eighth</type></note>`+
			chordNote("A", 4, 1, "eighth", ""),
	)
	doc, _ := mustConvert(t, data)

	out, err := NewMIDIRenderer().Render(doc)
	require.NoError(t, err)
	assert.Equal(t, "MThd", string(out[:4]))

	tracks, tempo, notes := readNotes(t, out)
	assert.Equal(t, 2, tracks)
	assert.Equal(t, uint32(500000), tempo)
	assert.Equal(t, []sounded{
		{key: 60, start: 0, end: 960},
		{key: 66, start: 1440, end: 1680},
		{key: 69, start: 1440, end: 1680},
	}, notes)
}

func TestMIDIRenderSetTempo(t *testing.T) {
	doc, _ := mustConvert(t, partwise(1, note("G", 4, 1, "quarter", "")))
	r := NewMIDIRenderer()
	r.SetTempo(60)
	r.SetTempo(-5)

	out, err := r.Render(doc)
	require.NoError(t, err)
	_, tempo, notes := readNotes(t, out)
	assert.Equal(t, uint32(1000000), tempo)
	assert.Equal(t, []sounded{{key: 67, start: 0, end: 480}}, notes)
}

func TestMIDIRenderSkipsGrace(t *testing.T) {
	data := partwise(1,
		`<note><grace/><pitch><step>B</step><octave>3</octave></pitch><voice>1</voice><type>eighth</type></note>`+
			note("C", 4, 1, "quarter", ""),
	)
	doc, _ := mustConvert(t, data)

	out, err := NewMIDIRenderer().Render(doc)
	require.NoError(t, err)
	_, _, notes := readNotes(t, out)
	assert.Equal(t, []sounded{{key: 60, start: 0, end: 480}}, notes)
}

func TestMIDIRenderNilDocument(t *testing.T) {
	_, err := NewMIDIRenderer().Render(nil)
	assert.Error(t, err)
}

func TestWriteMIDIFile(t *testing.T) {
	doc, _ := mustConvert(t, partwise(1, note("C", 4, 1, "quarter", "")))
	path := filepath.Join(t.TempDir(), "out.mid")
	require.NoError(t, NewMIDIRenderer().WriteMIDIFile(doc, path))
	assert.FileExists(t, path)
}

func TestMIDILengthFallback(t *testing.T) {
	r := NewMIDIRenderer()
	assert.Equal(t, int64(480), r.length(0, "4", 0, 0))
	assert.Equal(t, int64(720), r.length(0, "4", 1, 0))
	assert.Equal(t, int64(1920), r.length(0, "1", 0, 0))
	assert.Equal(t, int64(240), r.length(1, "", 0, 2))
	assert.Equal(t, int64(0), r.length(0, "", 0, 0))
}

type tempoAt struct {
	tick         int64
	usPerQuarter uint32
}

func readTempos(t *testing.T, data []byte) []tempoAt {
	t.Helper()
	s, err := smf.ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)
	require.NotEmpty(t, s.Tracks)

	var out []tempoAt
	var tick int64
	for _, ev := range s.Tracks[0] {
		tick += int64(ev.Delta)
		msg := ev.Message
		if len(msg) >= 6 && msg[0] == 0xFF && msg[1] == 0x51 && msg[2] == 0x03 {
			out = append(out, tempoAt{tick: tick, usPerQuarter: uint32(msg[3])<<16 | uint32(msg[4])<<8 | uint32(msg[5])})
		}
	}
	return out
}

func TestMIDIRenderFollowsTempoMarks(t *testing.T) {
	metronome := func(unit, perMinute string) string {
		return `<direction><direction-type><metronome><beat-unit>` + unit + `</beat-unit><per-minute>` + perMinute + `</per-minute></metronome></direction-type></direction>`
	}
	data := partwise(1,
		metronome("quarter", "60")+note("C", 4, 4, "whole", ""),
		metronome("half", "40")+note("D", 4, 4, "whole", ""),
	)
	doc, warnings := mustConvert(t, data)
	require.Empty(t, warnings)

	r := NewMIDIRenderer()
	r.SetTempo(90)
	out, err := r.Render(doc)
	require.NoError(t, err)

	// The mark at the downbeat replaces the configured tempo; a half note
	// at 40 is a quarter at 80.
	assert.Equal(t, []tempoAt{
		{tick: 0, usPerQuarter: 1000000},
		{tick: 1920, usPerQuarter: 750000},
	}, readTempos(t, out))
}
