package converter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/james-see/score2mei/pkg/mei"
	"github.com/james-see/score2mei/pkg/musicxml"
)

// ConvertEvent converts one source event into a note, rest or measure rest,
// records its id correspondence and feeds its span markers to the context.
// Problems become warnings; it never fails.
func ConvertEvent(ev *musicxml.Event, ctx *ConversionContext) mei.LayerChild {
	var (
		out     mei.LayerChild
		id, key string
	)
	switch {
	case ev.Kind == musicxml.KindRest && ev.MeasureRest:
		id, key = identify(ev, "mRest", ctx)
		out = &mei.MRest{Common: mei.Common{ID: id}, DurPPQ: ev.Duration, Cue: ev.Cue}
	case ev.Kind == musicxml.KindRest:
		id, key = identify(ev, "rest", ctx)
		out = convertRest(ev, id, ctx)
	default:
		id, key = identify(ev, "note", ctx)
		out = convertNote(ev, id, ctx)
	}

	processSpans(ev, id, key, ctx)
	convertControlMarks(ev, id, ctx)
	convertDirections(ev, id, ctx)
	return out
}

// identify assigns the target id and records the correspondence. The
// target id is also mapped to itself and returned as the key spans opened
// here are stored under, so a later duplicate of the source id cannot
// redirect them.
func identify(ev *musicxml.Event, kind string, ctx *ConversionContext) (id, key string) {
	id = ctx.TargetID(ev.ID, kind)
	if ev.ID != "" {
		ctx.MapID(ev.ID, id)
	}
	ctx.MapID(id, id)
	ctx.registerElement(id)
	return id, id
}

func convertRest(ev *musicxml.Event, id string, ctx *ConversionContext) *mei.Rest {
	r := &mei.Rest{Common: mei.Common{ID: id}, DurPPQ: ev.Duration, Cue: ev.Cue}
	r.Dur, r.Dots = resolveDuration(ev, ctx)
	if ev.HasDisplay {
		r.Ploc = strings.ToLower(ev.DisplayStep)
		oct := ev.DisplayOctave
		r.Oloc = &oct
	}
	return r
}

func convertNote(ev *musicxml.Event, id string, ctx *ConversionContext) *mei.Note {
	n := &mei.Note{Common: mei.Common{ID: id}}
	n.Ges.DurPPQ = ev.Duration
	n.Log.Cue = ev.Cue
	n.Log.Dur, n.Log.Dots = resolveDuration(ev, ctx)

	switch ev.Kind {
	case musicxml.KindNote:
		if ev.Pitch == nil {
			ctx.Warnf("note %s has no pitch", id)
			break
		}
		n.Log.Pname = strings.ToLower(ev.Pitch.Step)
		oct := ev.Pitch.Octave
		n.Log.Oct = &oct
		if ev.Pitch.Alter != 0 {
			if accid, ok := gesturalAccidentals[ev.Pitch.Alter]; ok {
				n.Ges.AccidGes = accid
			} else {
				ctx.Warnf("unsupported alter %s on note %s", formatAlter(ev.Pitch.Alter), id)
			}
		}
	case musicxml.KindUnpitched:
		if ev.HasDisplay {
			if idx := stepIndex(ev.DisplayStep); idx >= 0 {
				loc := ev.DisplayOctave*7 + idx
				n.Vis.Loc = &loc
			}
		}
	}

	if ev.Grace != nil {
		n.Log.Grace = "acc"
		if ev.Grace.Slash {
			n.Log.Grace = "unacc"
		}
	}
	n.Vis.StemDir = stemDirections[ev.Stem]
	n.Log.Tie = tieAttribute(ev.Ties)

	if ev.Accidental != "" {
		if accid, ok := writtenAccidentals[ev.Accidental]; ok {
			n.Children = append(n.Children, &mei.Accid{Accid: accid})
		} else {
			ctx.Warnf("unsupported accidental %q on note %s", ev.Accidental, id)
		}
	}

	for _, a := range ev.Articulations {
		tokens, ok := articulations[a]
		if !ok {
			ctx.Warnf("unsupported articulation %q on note %s", a, id)
			continue
		}
		n.Anl.Artic = append(n.Anl.Artic, tokens...)
	}
	for _, t := range ev.Technical {
		token, ok := technicalMarks[t]
		if !ok {
			ctx.Warnf("unsupported technical mark %q on note %s", t, id)
			continue
		}
		n.Anl.Artic = append(n.Anl.Artic, token)
	}

	for _, v := range convertLyrics(ev.Lyrics) {
		n.Children = append(n.Children, v)
	}
	return n
}

// resolveDuration prefers the written type and falls back to inference.
func resolveDuration(ev *musicxml.Event, ctx *ConversionContext) (string, int) {
	dc := ctx.DurationContext()
	if ev.Type != "" {
		if dur, ok := meiDur(ev.Type); ok {
			dc.LastDur, dc.LastDots = dur, ev.Dots
			return dur, ev.Dots
		}
		ctx.Warnf("unknown note type %q, inferring from duration", ev.Type)
	}

	// Grace notes take no time; reuse the last written value.
	if ev.Grace != nil && ev.Duration == 0 {
		if dc.LastDur != "" {
			return dc.LastDur, 0
		}
		return "8", 0
	}

	ticks, divisions := ev.Duration, ctx.Divisions()
	if tm := ev.TimeModification; tm != nil && tm.ActualNotes > 0 && tm.NormalNotes > 0 {
		ticks *= tm.ActualNotes
		divisions *= tm.NormalNotes
	}

	inf, ok := InferDuration(ticks, divisions)
	if !ok {
		ctx.Warnf("cannot infer duration from %d ticks at %d divisions", ev.Duration, ctx.Divisions())
		return "", 0
	}
	if inf.Approximate {
		ctx.Warnf("approximate duration: %d ticks at %d divisions written as %s", ev.Duration, ctx.Divisions(), inf.Dur)
	}
	dc.LastDur, dc.LastDots = inf.Dur, inf.Dots
	return inf.Dur, inf.Dots
}

func stepIndex(step string) int {
	return strings.Index("CDEFGAB", strings.ToUpper(step))
}

func tieAttribute(ties []musicxml.TieMarker) string {
	var start, stop bool
	for _, t := range ties {
		switch t.Type {
		case musicxml.MarkerStart:
			start = true
		case musicxml.MarkerStop:
			stop = true
		case musicxml.MarkerContinue:
			start, stop = true, true
		}
	}
	switch {
	case start && stop:
		return "m"
	case start:
		return "i"
	case stop:
		return "t"
	default:
		return ""
	}
}

// pitchKey disambiguates ties: each pitch of a chord ties independently.
func pitchKey(ev *musicxml.Event) string {
	switch {
	case ev.Pitch != nil:
		return ev.Pitch.Step + formatAlter(ev.Pitch.Alter) + "/" + strconv.Itoa(ev.Pitch.Octave)
	case ev.HasDisplay:
		return ev.DisplayStep + "/" + strconv.Itoa(ev.DisplayOctave)
	default:
		return ""
	}
}

type spanMarker struct {
	key  SpanKey
	meta SpanMetadata
}

// processSpans closes before it opens, so an event that ends one tie and
// starts the next chains correctly. Stops resolve against id, the event's
// target id; starts are recorded under sourceKey, its id-map key.
func processSpans(ev *musicxml.Event, id, sourceKey string, ctx *ConversionContext) {
	scope := ctx.Position().VoiceScope()
	var starts, stops []spanMarker

	if ev.Kind != musicxml.KindRest {
		tieKey := SpanKey{Flavor: FlavorTie, Voice: scope, Number: pitchKey(ev)}
		for _, t := range ev.Ties {
			if t.Type == musicxml.MarkerStop || t.Type == musicxml.MarkerContinue {
				stops = append(stops, spanMarker{key: tieKey})
			}
			if t.Type == musicxml.MarkerStart || t.Type == musicxml.MarkerContinue {
				starts = append(starts, spanMarker{key: tieKey})
			}
		}
	}

	for _, s := range ev.Slurs {
		key := SpanKey{Flavor: FlavorSlur, Voice: scope, Number: s.Number}
		switch s.Type {
		case musicxml.MarkerStop:
			stops = append(stops, spanMarker{key: key})
		case musicxml.MarkerStart:
			starts = append(starts, spanMarker{key: key, meta: SpanMetadata{Placement: s.Placement}})
		}
	}

	for _, w := range ev.Wedges {
		wk := SpanKey{Flavor: FlavorHairpin, Voice: ctx.Position().StaffScope(), Number: w.Number}
		switch w.Type {
		case musicxml.WedgeStop:
			stops = append(stops, spanMarker{key: wk})
		case musicxml.WedgeCrescendo, musicxml.WedgeDiminuendo:
			form := "cres"
			if w.Type == musicxml.WedgeDiminuendo {
				form = "dim"
			}
			starts = append(starts, spanMarker{key: wk, meta: SpanMetadata{Form: form, Niente: w.Niente, Placement: w.Placement}})
		}
	}

	var tupletStops []spanMarker
	for _, t := range ev.Tuplets {
		key := SpanKey{Flavor: FlavorTuplet, Voice: scope, Number: t.Number}
		switch t.Type {
		case musicxml.MarkerStop:
			tupletStops = append(tupletStops, spanMarker{key: key})
		case musicxml.MarkerStart:
			starts = append(starts, spanMarker{key: key, meta: tupletMetadata(ev, t)})
		}
	}
	// Nested tuplets ending together close innermost first.
	sort.SliceStable(tupletStops, func(i, j int) bool {
		return ctx.topSeq(tupletStops[i].key) > ctx.topSeq(tupletStops[j].key)
	})
	stops = append(stops, tupletStops...)

	for _, m := range stops {
		if !ctx.firstInGroup(markerName(m.key, musicxml.MarkerStop)) {
			continue
		}
		open, ok := ctx.CloseSpan(m.key)
		if !ok {
			continue
		}
		if ce := ResolveSpan(open, id, ctx); ce != nil {
			ctx.AddControlEvent(open.StartPosition.MeasureIndex, ce)
		}
	}
	for _, m := range starts {
		if !ctx.firstInGroup(markerName(m.key, musicxml.MarkerStart)) {
			continue
		}
		ctx.OpenSpan(m.key, sourceKey, m.meta)
	}
}

func tupletMetadata(ev *musicxml.Event, t musicxml.TupletMarker) SpanMetadata {
	meta := SpanMetadata{
		Num:        t.ActualNumber,
		NumBase:    t.NormalNumber,
		Bracket:    t.Bracket,
		ShowNumber: t.ShowNumber,
		Placement:  t.Placement,
	}
	if tm := ev.TimeModification; tm != nil {
		if meta.Num == 0 {
			meta.Num = tm.ActualNotes
		}
		if meta.NumBase == 0 {
			meta.NumBase = tm.NormalNotes
		}
	}
	return meta
}

func markerName(key SpanKey, t musicxml.MarkerType) string {
	return string(key.Flavor) + "|" + string(t) + "|" + key.Number
}

// convertControlMarks turns point decorations into control events anchored at id.
func convertControlMarks(ev *musicxml.Event, id string, ctx *ConversionContext) {
	pos := ctx.Position()
	anchors := mei.Anchors{StartID: id, Staff: pos.Staff, Layer: pos.Layer}

	for _, o := range ev.Ornaments {
		kind, ok := ornaments[o]
		if !ok {
			ctx.Warnf("unsupported ornament %q on %s", o, id)
			continue
		}
		var ce mei.ControlEvent
		switch kind.Element {
		case "trill":
			ce = &mei.Trill{Common: mei.Common{ID: ctx.GenerateID("trill")}, Anchors: anchors}
		case "mordent":
			ce = &mei.Mordent{Common: mei.Common{ID: ctx.GenerateID("mordent")}, Anchors: anchors, Form: kind.Form}
		case "turn":
			ce = &mei.Turn{Common: mei.Common{ID: ctx.GenerateID("turn")}, Anchors: anchors, Form: kind.Form}
		}
		ctx.AddControlEvent(pos.MeasureIndex, ce)
	}

	if f := ev.Fermata; f != nil {
		shape, ok := fermataShapes[f.Shape]
		if !ok {
			ctx.Warnf("unsupported fermata shape %q on %s", f.Shape, id)
			shape = "curved"
		}
		form := "norm"
		if f.Type == "inverted" {
			form = "inv"
		}
		ctx.AddControlEvent(pos.MeasureIndex, &mei.Fermata{
			Common:  mei.Common{ID: ctx.GenerateID("fermata")},
			Anchors: anchors,
			Form:    form,
			Shape:   shape,
		})
	}

	for _, d := range ev.Dynamics {
		if !dynamicMarks[d] {
			ctx.Warnf("unsupported dynamic %q on %s", d, id)
			continue
		}
		ctx.AddControlEvent(pos.MeasureIndex, &mei.Dynam{
			Common:  mei.Common{ID: ctx.GenerateID("dynam")},
			Anchors: anchors,
			Text:    d,
		})
	}
}

// convertDirections turns the words and metronome marks attached to an event
// into <dir> and <tempo> control events anchored at id.
func convertDirections(ev *musicxml.Event, id string, ctx *ConversionContext) {
	pos := ctx.Position()
	anchors := mei.Anchors{StartID: id, Staff: pos.Staff}

	for _, w := range ev.Words {
		if strings.TrimSpace(w.Text) == "" {
			continue
		}
		ctx.AddControlEvent(pos.MeasureIndex, &mei.Dir{
			Common:  mei.Common{ID: ctx.GenerateID("dir")},
			Anchors: anchors,
			Text:    w.Text,
			Place:   curveDirection(w.Placement),
		})
	}

	for _, m := range ev.Metronomes {
		if t := convertMetronome(m, anchors, ctx); t != nil {
			ctx.AddControlEvent(pos.MeasureIndex, t)
		}
	}
}

func convertMetronome(m musicxml.Metronome, anchors mei.Anchors, ctx *ConversionContext) *mei.Tempo {
	t := &mei.Tempo{Anchors: anchors, Place: curveDirection(m.Placement)}

	if m.EquivalentUnit != "" {
		t.Func = "metricmod"
		t.Text = fmt.Sprintf("%s = %s", beatUnitText(m.BeatUnit, m.BeatUnitDots), beatUnitText(m.EquivalentUnit, m.EquivalentDots))
		t.ID = ctx.GenerateID("tempo")
		return t
	}

	unit, ok := meiDur(m.BeatUnit)
	if !ok {
		ctx.Warnf("unsupported metronome beat unit %q", m.BeatUnit)
		return nil
	}
	t.Func = "instantaneous"
	t.MMUnit = unit
	t.MMDots = m.BeatUnitDots
	if bpm, err := strconv.ParseFloat(strings.TrimSpace(m.PerMinute), 64); err == nil && bpm > 0 {
		t.MM = strconv.FormatFloat(bpm, 'f', -1, 64)
	} else if m.PerMinute != "" {
		ctx.Warnf("metronome per-minute %q is not a number; kept as text", m.PerMinute)
	}
	t.Text = beatUnitText(m.BeatUnit, m.BeatUnitDots)
	if m.PerMinute != "" {
		t.Text += " = " + m.PerMinute
	}
	t.ID = ctx.GenerateID("tempo")
	return t
}

var beatUnitSymbols = map[string]string{
	"whole":   "𝅝",
	"half":    "𝅗𝅥",
	"quarter": "♩",
	"eighth":  "♪",
	"16th":    "𝅘𝅥𝅯",
}

func beatUnitText(unit string, dots int) string {
	sym, ok := beatUnitSymbols[unit]
	if !ok {
		sym = unit
	}
	return sym + strings.Repeat(".", dots)
}

func convertLyrics(lyrics []musicxml.Lyric) []*mei.Verse {
	var verses []*mei.Verse
	for _, l := range lyrics {
		if l.Text == "" {
			continue
		}
		n := l.Number
		if n == "" {
			n = "1"
		}
		syl := &mei.Syl{Text: l.Text, Wordpos: wordPositions[l.Syllabic]}
		switch {
		case l.Syllabic == "begin" || l.Syllabic == "middle":
			syl.Con = "d"
		case l.Extend:
			syl.Con = "u"
		}
		verses = append(verses, &mei.Verse{Common: mei.Common{N: n}, Syls: []*mei.Syl{syl}})
	}
	return verses
}
