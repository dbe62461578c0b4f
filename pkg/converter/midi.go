package converter

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/james-see/score2mei/pkg/mei"
)

// MIDIRenderer plays a converted MEI document back as a Standard MIDI File:
// a conductor track followed by one track per staff. The configured tempo
// holds until the first <tempo> mark with @mm; marks take over from there.
type MIDIRenderer struct {
	ticksPerQuarter uint16
	tempo           float64
	velocity        uint8
}

// NewMIDIRenderer creates a new MIDI renderer
func NewMIDIRenderer() *MIDIRenderer {
	return &MIDIRenderer{
		ticksPerQuarter: 480,
		tempo:           120.0,
		velocity:        90,
	}
}

func (*MIDIRenderer) Name() string   { return "MIDI" }
func (*MIDIRenderer) Format() Format { return FormatMIDI }

// SetTempo sets the tempo in beats per minute
func (m *MIDIRenderer) SetTempo(bpm float64) {
	if bpm > 0 {
		m.tempo = bpm
	}
}

type midiNote struct {
	start, end int64
	key        uint8
}

type staffTrack struct {
	n       int
	label   string
	channel uint8
	notes   []*midiNote
	// sounding notes by key, for extending ties
	open map[uint8]*midiNote
}

// Render creates MIDI data from a document
func (m *MIDIRenderer) Render(doc *mei.Document) ([]byte, error) {
	if doc == nil || doc.Score == nil || doc.Score.Section == nil {
		return nil, errors.New("nil document")
	}

	ppq := make(map[string]int)
	tracks := make(map[int]*staffTrack)
	var order []int
	labels := make(map[int]string)

	applyScoreDef := func(sd *mei.ScoreDef) {
		if sd == nil || sd.StaffGrp == nil {
			return
		}
		for _, def := range sd.StaffGrp.StaffDefs {
			if def.PPQ > 0 {
				ppq[def.N] = def.PPQ
			}
			if def.Label != "" {
				if n, err := strconv.Atoi(def.N); err == nil {
					labels[n] = def.Label
				}
			}
		}
	}
	applyScoreDef(doc.Score.ScoreDef)

	trackFor := func(n int) *staffTrack {
		t, ok := tracks[n]
		if !ok {
			t = &staffTrack{n: n, label: labels[n], channel: staffChannel(n), open: make(map[uint8]*midiNote)}
			tracks[n] = t
			order = append(order, n)
		}
		return t
	}

	onsets := make(map[string]int64)
	var tempos []tempoChange

	var measureStart int64
	for _, child := range doc.Score.Section.Children {
		switch c := child.(type) {
		case *mei.ScoreDef:
			applyScoreDef(c)
		case *mei.Measure:
			var measureLen int64
			for _, st := range c.Staves {
				t := trackFor(st.N)
				resolution := ppq[strconv.Itoa(st.N)]
				for _, l := range st.Layers {
					cursor := measureStart
					for _, ev := range l.Children {
						recordOnset(onsets, ev, cursor)
						cursor += m.place(t, ev, cursor, resolution)
					}
					if cursor-measureStart > measureLen {
						measureLen = cursor - measureStart
					}
				}
			}
			measureStart += measureLen
			tempos = append(tempos, m.tempoMarks(c, onsets)...)
		}
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(m.ticksPerQuarter)

	if err := s.Add(m.conductorTrack(doc.Score.ScoreDef, tempos)); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}
	sort.Ints(order)
	for _, n := range order {
		if err := s.Add(m.noteTrack(tracks[n])); err != nil {
			return nil, fmt.Errorf("failed to add track: %w", err)
		}
	}

	// Write to buffer
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return buf.Bytes(), nil
}

// place adds the sounding notes of ev at cursor and returns how far it advances.
func (m *MIDIRenderer) place(t *staffTrack, ev mei.LayerChild, cursor int64, resolution int) int64 {
	switch e := ev.(type) {
	case *mei.Note:
		length := m.length(e.Ges.DurPPQ, e.Log.Dur, e.Log.Dots, resolution)
		if e.Log.Grace != "" {
			return 0
		}
		t.sound(e, cursor, length)
		return length
	case *mei.Chord:
		if e.Grace != "" {
			return 0
		}
		length := m.length(e.DurPPQ, e.Dur, e.Dots, resolution)
		for _, n := range e.Notes {
			t.sound(n, cursor, length)
		}
		return length
	case *mei.Rest:
		return m.length(e.DurPPQ, e.Dur, e.Dots, resolution)
	case *mei.MRest:
		return m.length(e.DurPPQ, "", 0, resolution)
	}
	return 0
}

func recordOnset(onsets map[string]int64, ev mei.LayerChild, cursor int64) {
	if id := ev.ElementID(); id != "" {
		onsets[id] = cursor
	}
	if ch, ok := ev.(*mei.Chord); ok {
		for _, n := range ch.Notes {
			if n.ID != "" {
				onsets[n.ID] = cursor
			}
		}
	}
}

type tempoChange struct {
	tick int64
	bpm  float64 // quarter notes per minute
}

// tempoMarks reads the <tempo> controls of a measure that carry @mm and
// whose start event has sounded.
func (m *MIDIRenderer) tempoMarks(measure *mei.Measure, onsets map[string]int64) []tempoChange {
	var out []tempoChange
	for _, ce := range measure.Controls {
		t, ok := ce.(*mei.Tempo)
		if !ok || t.MM == "" {
			continue
		}
		tick, ok := onsets[t.StartID]
		if !ok {
			continue
		}
		mm, err := strconv.ParseFloat(t.MM, 64)
		if err != nil || mm <= 0 {
			continue
		}
		unit := t.MMUnit
		if unit == "" {
			unit = "4"
		}
		ticks := m.length(0, unit, t.MMDots, 0)
		if ticks <= 0 {
			continue
		}
		out = append(out, tempoChange{tick: tick, bpm: mm * float64(ticks) / float64(m.ticksPerQuarter)})
	}
	return out
}

// length converts a duration to output ticks, preferring dur.ppq.
func (m *MIDIRenderer) length(durPPQ int, dur string, dots, resolution int) int64 {
	tpq := int64(m.ticksPerQuarter)
	if durPPQ > 0 && resolution > 0 {
		return int64(durPPQ) * tpq / int64(resolution)
	}
	for _, t := range noteTypes {
		if t.MEI != dur {
			continue
		}
		// exp can be negative, so scale up before shifting down.
		base := (tpq << 8) << (t.Exp + 8) >> 16
		total, inc := base, base/2
		for i := 0; i < dots; i++ {
			total += inc
			inc /= 2
		}
		return total
	}
	return 0
}

func (t *staffTrack) sound(n *mei.Note, start, length int64) {
	key, ok := midiKey(n)
	if !ok || length <= 0 {
		return
	}
	if n.Log.Tie == "m" || n.Log.Tie == "t" {
		if prev, ok := t.open[key]; ok && prev.end == start {
			prev.end += length
			return
		}
	}
	note := &midiNote{start: start, end: start + length, key: key}
	t.notes = append(t.notes, note)
	t.open[key] = note
}

var pitchClasses = map[string]int{"c": 0, "d": 2, "e": 4, "f": 5, "g": 7, "a": 9, "b": 11}

// semitones for @accid.ges; quarter tones round toward the natural.
var accidSemitones = map[string]int{
	"s": 1, "f": -1, "ss": 2, "x": 2, "ff": -2, "ts": 3, "tf": -3, "n": 0,
	"su": 1, "fd": -1, "sd": 0, "fu": 0, "xu": 2, "ffd": -2,
}

func midiKey(n *mei.Note) (uint8, bool) {
	pc, ok := pitchClasses[n.Log.Pname]
	if !ok || n.Log.Oct == nil {
		return 0, false
	}
	key := (*n.Log.Oct+1)*12 + pc + accidSemitones[n.Ges.AccidGes]
	if key < 0 || key > 127 {
		return 0, false
	}
	return uint8(key), true
}

// staffChannel spreads staves over channels, skipping the percussion channel.
func staffChannel(n int) uint8 {
	ch := (n - 1) % 15
	if ch >= 9 {
		ch++
	}
	return uint8(ch)
}

func (m *MIDIRenderer) conductorTrack(sd *mei.ScoreDef, changes []tempoChange) smf.Track {
	var track smf.Track

	sort.SliceStable(changes, func(i, j int) bool { return changes[i].tick < changes[j].tick })
	initial := m.tempo
	if len(changes) > 0 && changes[0].tick == 0 {
		initial = changes[0].bpm
	}
	track.Add(0, tempoMessage(initial))

	if sd != nil {
		num, errN := strconv.Atoi(sd.MeterCount)
		den, errD := strconv.Atoi(sd.MeterUnit)
		if errN == nil && errD == nil && num > 0 && den > 0 && num < 256 {
			pow := 0
			for v := den; v > 1; v >>= 1 {
				pow++
			}
			track.Add(0, smf.Message([]byte{0xFF, 0x58, 0x04, byte(num), byte(pow), 0x18, 0x08}))
		}
	}

	var current int64
	for _, c := range changes {
		if c.tick == 0 {
			continue
		}
		track.Add(uint32(c.tick-current), tempoMessage(c.bpm))
		current = c.tick
	}

	track.Close(0)
	return track
}

// tempoMessage is a set-tempo meta event for bpm quarter notes per minute.
func tempoMessage(bpm float64) smf.Message {
	microsecondsPerBeat := uint32(60000000.0 / bpm)
	return smf.Message([]byte{
		0xFF, 0x51, 0x03,
		byte(microsecondsPerBeat >> 16),
		byte(microsecondsPerBeat >> 8),
		byte(microsecondsPerBeat),
	})
}

type midiEvent struct {
	tick int64
	on   bool
	key  uint8
}

func (m *MIDIRenderer) noteTrack(t *staffTrack) smf.Track {
	var track smf.Track
	if t.label != "" && len(t.label) < 128 {
		name := append([]byte{0xFF, 0x03, byte(len(t.label))}, t.label...)
		track.Add(0, smf.Message(name))
	}

	events := make([]midiEvent, 0, len(t.notes)*2)
	for _, n := range t.notes {
		events = append(events, midiEvent{tick: n.start, on: true, key: n.key}, midiEvent{tick: n.end, key: n.key})
	}
	// Offs before ons at the same tick so repeated keys retrigger.
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		if events[i].on != events[j].on {
			return !events[i].on
		}
		return events[i].key < events[j].key
	})

	var current int64
	for _, ev := range events {
		delta := uint32(ev.tick - current)
		current = ev.tick
		if ev.on {
			track.Add(delta, midi.NoteOn(t.channel, ev.key, m.velocity))
		} else {
			track.Add(delta, midi.NoteOff(t.channel, ev.key))
		}
	}

	track.Close(0)
	return track
}

// WriteMIDIFile writes a rendered document to a file
func (m *MIDIRenderer) WriteMIDIFile(doc *mei.Document, filename string) error {
	data, err := m.Render(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
