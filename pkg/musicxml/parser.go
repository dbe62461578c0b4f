package musicxml

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

var (
	// ErrNotMusicXML is returned when the document root is neither
	// <score-partwise> nor <score-timewise>.
	ErrNotMusicXML = errors.New("not a MusicXML score")

	partwiseExpr  = xpath.MustCompile("/score-partwise")
	timewiseExpr  = xpath.MustCompile("/score-timewise")
	scorePartExpr = xpath.MustCompile("part-list/score-part")
	creatorExpr   = xpath.MustCompile("identification/creator")
	rightsExpr    = xpath.MustCompile("identification/rights")
	softwareExpr  = xpath.MustCompile("identification/encoding/software")
)

// ReadFile reads a .musicxml, .xml or .mxl file.
func ReadFile(path string) (*Score, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read score: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes parses either a plain MusicXML document or an .mxl container.
func ParseBytes(data []byte) (*Score, error) {
	if IsMXL(data) {
		return ReadMXL(data)
	}
	return Parse(bytes.NewReader(data))
}

// Parse reads an uncompressed MusicXML document.
func Parse(r io.Reader) (*Score, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}

	if root := xmlquery.QuerySelector(doc, partwiseExpr); root != nil {
		return parsePartwise(root), nil
	}
	if root := xmlquery.QuerySelector(doc, timewiseExpr); root != nil {
		return parseTimewise(root), nil
	}
	return nil, ErrNotMusicXML
}

func parsePartwise(root *xmlquery.Node) *Score {
	score := &Score{Header: parseHeader(root)}
	parts := parsePartList(root)

	for _, pn := range children(root, "part") {
		part := lookupPart(&parts, pn.SelectAttr("id"))
		for _, mn := range children(pn, "measure") {
			part.Measures = append(part.Measures, parseMeasure(mn))
		}
	}
	score.Parts = usedParts(parts)
	return score
}

// parseTimewise regroups measure/part nesting into part/measure.
func parseTimewise(root *xmlquery.Node) *Score {
	score := &Score{Header: parseHeader(root)}
	parts := parsePartList(root)

	for _, mn := range children(root, "measure") {
		for _, pn := range children(mn, "part") {
			part := lookupPart(&parts, pn.SelectAttr("id"))
			m := parseMeasure(pn)
			m.Number = mn.SelectAttr("number")
			m.ID = mn.SelectAttr("id")
			m.Implicit = mn.SelectAttr("implicit") == "yes"
			part.Measures = append(part.Measures, m)
		}
	}
	score.Parts = usedParts(parts)
	return score
}

func parseHeader(root *xmlquery.Node) Header {
	h := Header{
		MovementTitle:  text(root, "movement-title"),
		MovementNumber: text(root, "movement-number"),
	}
	if work := child(root, "work"); work != nil {
		h.WorkTitle = text(work, "work-title")
		h.WorkNumber = text(work, "work-number")
	}
	for _, n := range xmlquery.QuerySelectorAll(root, creatorExpr) {
		h.Creators = append(h.Creators, Creator{
			Type: n.SelectAttr("type"),
			Name: strings.TrimSpace(n.InnerText()),
		})
	}
	for _, n := range xmlquery.QuerySelectorAll(root, rightsExpr) {
		h.Rights = append(h.Rights, strings.TrimSpace(n.InnerText()))
	}
	for _, n := range xmlquery.QuerySelectorAll(root, softwareExpr) {
		h.Software = append(h.Software, strings.TrimSpace(n.InnerText()))
	}
	if enc := child(child(root, "identification"), "encoding"); enc != nil {
		h.EncodingDate = text(enc, "encoding-date")
	}
	return h
}

func parsePartList(root *xmlquery.Node) []*Part {
	var parts []*Part
	for _, sp := range xmlquery.QuerySelectorAll(root, scorePartExpr) {
		parts = append(parts, &Part{
			ID:           sp.SelectAttr("id"),
			Name:         text(sp, "part-name"),
			Abbreviation: text(sp, "part-abbreviation"),
		})
	}
	return parts
}

// lookupPart finds the part-list entry for id, appending one when the
// part is missing from the part-list.
func lookupPart(parts *[]*Part, id string) *Part {
	for _, p := range *parts {
		if p.ID == id {
			return p
		}
	}
	p := &Part{ID: id}
	*parts = append(*parts, p)
	return p
}

func usedParts(parts []*Part) []*Part {
	out := parts[:0]
	for _, p := range parts {
		if len(p.Measures) > 0 {
			out = append(out, p)
		}
	}
	return out
}

// measureReader tracks the time cursor while walking a measure's children.
type measureReader struct {
	m         *Measure
	voices    map[string]*Voice
	cursor    int
	lastStart int
	lastEvent map[int]*Event
	pending   map[int]*directionMarks
	dirStaves []int
}

// directionMarks are direction contents waiting for a note on their staff.
type directionMarks struct {
	dynamics   []string
	wedges     []WedgeMarker
	words      []Words
	metronomes []Metronome
}

// attachTo hands the marks to ev, ahead of its own marks when before is set.
func (d *directionMarks) attachTo(ev *Event, before bool) {
	if before {
		ev.Dynamics = append(append([]string(nil), d.dynamics...), ev.Dynamics...)
	} else {
		ev.Dynamics = append(ev.Dynamics, d.dynamics...)
	}
	ev.Wedges = append(ev.Wedges, d.wedges...)
	ev.Words = append(ev.Words, d.words...)
	ev.Metronomes = append(ev.Metronomes, d.metronomes...)
}

func parseMeasure(mn *xmlquery.Node) *Measure {
	r := &measureReader{
		m: &Measure{
			Number:   mn.SelectAttr("number"),
			ID:       mn.SelectAttr("id"),
			Implicit: mn.SelectAttr("implicit") == "yes",
		},
		voices:    make(map[string]*Voice),
		lastEvent: make(map[int]*Event),
		pending:   make(map[int]*directionMarks),
	}

	for c := mn.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		switch c.Data {
		case "attributes":
			r.attributes(c)
		case "note":
			r.note(parseNote(c))
		case "backup":
			r.cursor -= intText(c, "duration")
			if r.cursor < 0 {
				r.cursor = 0
			}
		case "forward":
			r.cursor += intText(c, "duration")
		case "direction":
			r.direction(c)
		}
	}

	// Directions after the last note of a staff stick to that note.
	for _, staff := range r.dirStaves {
		d := r.pending[staff]
		if ev := r.lastEvent[staff]; ev != nil && d != nil {
			d.attachTo(ev, false)
		}
	}
	return r.m
}

func (r *measureReader) note(ev *Event) {
	if ev.Chord {
		ev.Offset = r.lastStart
	} else {
		ev.Offset = r.cursor
		r.lastStart = r.cursor
		if ev.Grace == nil {
			r.cursor += ev.Duration
		}
	}

	if !ev.Chord {
		if d := r.pending[ev.Staff]; d != nil {
			d.attachTo(ev, true)
			delete(r.pending, ev.Staff)
		}
	}
	r.lastEvent[ev.Staff] = ev

	v, ok := r.voices[ev.Voice]
	if !ok {
		v = &Voice{Number: ev.Voice, Staff: ev.Staff}
		r.voices[ev.Voice] = v
		r.m.Voices = append(r.m.Voices, v)
	}
	v.Events = append(v.Events, ev)
}

func (r *measureReader) attributes(n *xmlquery.Node) {
	if r.m.Attributes == nil {
		r.m.Attributes = &Attributes{}
	}
	a := r.m.Attributes
	if d := intText(n, "divisions"); d > 0 {
		a.Divisions = d
	}
	if s := intText(n, "staves"); s > 0 {
		a.Staves = s
	}
	if k := child(n, "key"); k != nil {
		a.Key = &Key{Fifths: intText(k, "fifths"), Mode: text(k, "mode")}
	}
	if t := child(n, "time"); t != nil {
		a.Time = &Time{
			Beats:    text(t, "beats"),
			BeatType: text(t, "beat-type"),
			Symbol:   t.SelectAttr("symbol"),
		}
	}
	for _, c := range children(n, "clef") {
		staff := 1
		if s, err := strconv.Atoi(c.SelectAttr("number")); err == nil {
			staff = s
		}
		a.Clefs = append(a.Clefs, Clef{
			Staff:        staff,
			Sign:         text(c, "sign"),
			Line:         intText(c, "line"),
			OctaveChange: intText(c, "clef-octave-change"),
		})
	}
}

func (r *measureReader) direction(n *xmlquery.Node) {
	staff := 1
	if s := intText(n, "staff"); s > 0 {
		staff = s
	}
	placement := n.SelectAttr("placement")

	d := r.pending[staff]
	if d == nil {
		d = &directionMarks{}
	}
	for _, dt := range children(n, "direction-type") {
		for _, dyn := range children(dt, "dynamics") {
			d.dynamics = append(d.dynamics, dynamicMarks(dyn)...)
		}
		for _, w := range children(dt, "wedge") {
			d.wedges = append(d.wedges, WedgeMarker{
				Type:      WedgeType(w.SelectAttr("type")),
				Number:    w.SelectAttr("number"),
				Niente:    w.SelectAttr("niente") == "yes",
				Placement: placement,
			})
		}
		var words []string
		for _, w := range children(dt, "words") {
			words = append(words, w.InnerText())
		}
		if len(words) > 0 {
			d.words = append(d.words, Words{Text: strings.Join(words, " "), Placement: placement})
		}
		for _, m := range children(dt, "metronome") {
			met := parseMetronome(m)
			met.Placement = placement
			d.metronomes = append(d.metronomes, met)
		}
	}

	if d.empty() {
		return
	}
	if _, seen := r.pending[staff]; !seen {
		r.dirStaves = appendUnique(r.dirStaves, staff)
	}
	r.pending[staff] = d
}

func (d *directionMarks) empty() bool {
	return len(d.dynamics) == 0 && len(d.wedges) == 0 && len(d.words) == 0 && len(d.metronomes) == 0
}

// parseMetronome reads beat-unit, its dots, then either per-minute or a
// second beat-unit with dots.
func parseMetronome(n *xmlquery.Node) Metronome {
	var m Metronome
	units := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		switch c.Data {
		case "beat-unit":
			units++
			if units == 1 {
				m.BeatUnit = strings.TrimSpace(c.InnerText())
			} else {
				m.EquivalentUnit = strings.TrimSpace(c.InnerText())
			}
		case "beat-unit-dot":
			if units == 1 {
				m.BeatUnitDots++
			} else {
				m.EquivalentDots++
			}
		case "per-minute":
			m.PerMinute = strings.TrimSpace(c.InnerText())
		}
	}
	return m
}

func parseNote(n *xmlquery.Node) *Event {
	ev := &Event{
		ID:         n.SelectAttr("id"),
		Chord:      child(n, "chord") != nil,
		Cue:        child(n, "cue") != nil,
		Duration:   intText(n, "duration"),
		Type:       text(n, "type"),
		Dots:       len(children(n, "dot")),
		Voice:      text(n, "voice"),
		Staff:      intText(n, "staff"),
		Stem:       text(n, "stem"),
		Accidental: text(n, "accidental"),
	}
	if ev.Voice == "" {
		ev.Voice = "1"
	}
	if ev.Staff <= 0 {
		ev.Staff = 1
	}
	if g := child(n, "grace"); g != nil {
		ev.Grace = &Grace{Slash: g.SelectAttr("slash") == "yes"}
	}

	switch {
	case child(n, "rest") != nil:
		rest := child(n, "rest")
		ev.Kind = KindRest
		ev.MeasureRest = rest.SelectAttr("measure") == "yes"
		ev.DisplayStep, ev.DisplayOctave, ev.HasDisplay = display(rest)
	case child(n, "unpitched") != nil:
		ev.Kind = KindUnpitched
		ev.DisplayStep, ev.DisplayOctave, ev.HasDisplay = display(child(n, "unpitched"))
	default:
		ev.Kind = KindNote
		if p := child(n, "pitch"); p != nil {
			alter, _ := strconv.ParseFloat(text(p, "alter"), 64)
			ev.Pitch = &Pitch{Step: text(p, "step"), Alter: alter, Octave: intText(p, "octave")}
		}
	}

	if tm := child(n, "time-modification"); tm != nil {
		ev.TimeModification = &TimeModification{
			ActualNotes: intText(tm, "actual-notes"),
			NormalNotes: intText(tm, "normal-notes"),
		}
	}

	var soundTies []TieMarker
	for _, t := range children(n, "tie") {
		soundTies = append(soundTies, TieMarker{Type: MarkerType(t.SelectAttr("type"))})
	}
	for _, notations := range children(n, "notations") {
		parseNotations(notations, ev)
	}
	// <tied> is the notated tie; fall back to the playback <tie> when absent.
	if len(ev.Ties) == 0 {
		ev.Ties = soundTies
	}

	for _, l := range children(n, "lyric") {
		ev.Lyrics = append(ev.Lyrics, Lyric{
			Number:   l.SelectAttr("number"),
			Syllabic: text(l, "syllabic"),
			Text:     text(l, "text"),
			Extend:   child(l, "extend") != nil,
		})
	}
	return ev
}

func parseNotations(n *xmlquery.Node, ev *Event) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		switch c.Data {
		case "tied":
			if t := MarkerType(c.SelectAttr("type")); t == MarkerStart || t == MarkerStop || t == MarkerContinue {
				ev.Ties = append(ev.Ties, TieMarker{Type: t})
			}
		case "slur":
			ev.Slurs = append(ev.Slurs, SlurMarker{
				Type:      MarkerType(c.SelectAttr("type")),
				Number:    c.SelectAttr("number"),
				Placement: c.SelectAttr("placement"),
			})
		case "tuplet":
			ev.Tuplets = append(ev.Tuplets, TupletMarker{
				Type:         MarkerType(c.SelectAttr("type")),
				Number:       c.SelectAttr("number"),
				Bracket:      c.SelectAttr("bracket"),
				ShowNumber:   c.SelectAttr("show-number"),
				Placement:    c.SelectAttr("placement"),
				ActualNumber: intText(child(c, "tuplet-actual"), "tuplet-number"),
				NormalNumber: intText(child(c, "tuplet-normal"), "tuplet-number"),
			})
		case "articulations":
			ev.Articulations = append(ev.Articulations, elementNames(c)...)
		case "technical":
			ev.Technical = append(ev.Technical, elementNames(c)...)
		case "ornaments":
			ev.Ornaments = append(ev.Ornaments, elementNames(c)...)
		case "fermata":
			ev.Fermata = &Fermata{Type: c.SelectAttr("type"), Shape: strings.TrimSpace(c.InnerText())}
		case "dynamics":
			ev.Dynamics = append(ev.Dynamics, dynamicMarks(c)...)
		}
	}
}

func display(n *xmlquery.Node) (string, int, bool) {
	step := text(n, "display-step")
	if step == "" {
		return "", 0, false
	}
	return step, intText(n, "display-octave"), true
}

// dynamicMarks lists the marks inside <dynamics>; <other-dynamics> yields its text.
func dynamicMarks(n *xmlquery.Node) []string {
	var marks []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		if c.Data == "other-dynamics" {
			marks = append(marks, strings.TrimSpace(c.InnerText()))
			continue
		}
		marks = append(marks, c.Data)
	}
	return marks
}

func elementNames(n *xmlquery.Node) []string {
	var names []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			names = append(names, c.Data)
		}
	}
	return names
}

func child(n *xmlquery.Node, name string) *xmlquery.Node {
	if n == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == name {
			return c
		}
	}
	return nil
}

func children(n *xmlquery.Node, name string) []*xmlquery.Node {
	var out []*xmlquery.Node
	if n == nil {
		return out
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == name {
			out = append(out, c)
		}
	}
	return out
}

func text(n *xmlquery.Node, name string) string {
	c := child(n, name)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.InnerText())
}

func intText(n *xmlquery.Node, name string) int {
	v, err := strconv.Atoi(text(n, name))
	if err != nil {
		return 0
	}
	return v
}

func appendUnique(xs []int, x int) []int {
	for _, v := range xs {
		if v == x {
			return xs
		}
	}
	return append(xs, x)
}
