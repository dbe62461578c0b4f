package converter

import (
	"strconv"

	"github.com/james-see/score2mei/pkg/mei"
	"github.com/james-see/score2mei/pkg/musicxml"
)

// Convert converts a score with a fresh context.
func Convert(score *musicxml.Score, opts ...ContextOption) (*mei.Document, []ConversionWarning, error) {
	return ConvertWithContext(score, NewConversionContext(opts...))
}

// ConvertWithContext converts a score with a caller-supplied context, so id
// counters carry over across a batch. All other context state is reset.
//
// Only structural problems fail; everything else is reported as a warning
// and the document is still produced.
func ConvertWithContext(score *musicxml.Score, ctx *ConversionContext) (*mei.Document, []ConversionWarning, error) {
	if err := validateScore(score); err != nil {
		return nil, nil, err
	}
	ctx.BeginDocument()
	reserveSourceIDs(score, ctx)

	w := &walker{
		score:  score,
		ctx:    ctx,
		layout: newStaffLayout(score.Parts),
	}

	doc := &mei.Document{
		Head: ConvertHeader(&score.Header, ctx),
		Score: &mei.Score{
			ScoreDef: ConvertScoreDef(score, ctx),
			Section:  &mei.Section{},
		},
	}
	w.state = newScoreDefState(doc.Score.ScoreDef)

	count := w.measureCount()
	measures := make([]*mei.Measure, 0, count)
	for mi := 0; mi < count; mi++ {
		if mi > 0 {
			if sd := w.scoreDefChange(mi); sd != nil {
				doc.Score.Section.Children = append(doc.Score.Section.Children, sd)
			}
		}
		m := w.measure(mi)
		measures = append(measures, m)
		doc.Score.Section.Children = append(doc.Score.Section.Children, m)
	}

	w.finish(doc, measures)
	return doc, ctx.Warnings(), nil
}

func validateScore(score *musicxml.Score) error {
	if score == nil || len(score.Parts) == 0 {
		return &StructuralError{Message: "score has no parts", Err: ErrNoPlayableContent}
	}
	hasMeasures := false
	for _, p := range score.Parts {
		if len(p.Measures) > 0 {
			hasMeasures = true
			break
		}
	}
	if !hasMeasures {
		return &StructuralError{Message: "score has no measures", Err: ErrNoPlayableContent}
	}
	if !score.HasContent() {
		return &StructuralError{Message: "score has no notes or rests", Err: ErrNoPlayableContent}
	}
	return nil
}

// reserveSourceIDs claims every id present in the source before anything is
// generated, so source ids always win over generated ones.
func reserveSourceIDs(score *musicxml.Score, ctx *ConversionContext) {
	for _, p := range score.Parts {
		for _, m := range p.Measures {
			ctx.ReserveID(m.ID)
		}
	}
	score.Events(func(_ *musicxml.Part, _ *musicxml.Measure, ev *musicxml.Event) {
		ctx.ReserveID(ev.ID)
	})
}

type walker struct {
	score  *musicxml.Score
	ctx    *ConversionContext
	layout staffLayout
	state  *scoreDefState
}

func (w *walker) measureCount() int {
	n := 0
	for _, p := range w.score.Parts {
		if len(p.Measures) > n {
			n = len(p.Measures)
		}
	}
	return n
}

// measure builds measure mi across all parts: staves in global order, one
// layer per voice of each staff.
func (w *walker) measure(mi int) *mei.Measure {
	ctx := w.ctx
	var src *musicxml.Measure
	for _, p := range w.score.Parts {
		if mi < len(p.Measures) {
			src = p.Measures[mi]
			break
		}
	}

	number := src.Number
	if number == "" {
		number = strconv.Itoa(mi + 1)
	}
	m := &mei.Measure{Common: mei.Common{N: number}}
	measurePos := Position{Measure: number, MeasureIndex: mi}
	ctx.SetPosition(measurePos)
	m.ID = ctx.TargetID(src.ID, "measure")
	if src.ID != "" {
		ctx.MapID(src.ID, m.ID)
	}
	if src.Implicit {
		m.Metcon = "false"
	}

	for pi, part := range w.score.Parts {
		ctx.SetPosition(measurePos)
		ctx.EnterPart(part.ID)
		offset, staves := w.layout.offsets[pi], w.layout.staves[pi]

		if mi >= len(part.Measures) {
			ctx.Warnf("part has no measure %s", number)
			for s := 1; s <= staves; s++ {
				m.Staves = append(m.Staves, &mei.Staff{N: offset + s, Layers: []*mei.Layer{{N: 1}}})
			}
			continue
		}

		pm := part.Measures[mi]
		if pm.Attributes != nil && pm.Attributes.Divisions > 0 {
			ctx.SetDivisions(pm.Attributes.Divisions)
		}

		for s := 1; s <= staves; s++ {
			staff := &mei.Staff{N: offset + s}
			for _, v := range pm.Voices {
				if v.Staff != s {
					continue
				}
				layer := &mei.Layer{N: len(staff.Layers) + 1}
				ctx.SetPosition(Position{
					Part:         part.ID,
					Measure:      number,
					MeasureIndex: mi,
					Staff:        staff.N,
					Voice:        v.Number,
					Layer:        layer.N,
				})
				layer.Children = convertVoice(v.Events, ctx)
				staff.Layers = append(staff.Layers, layer)
			}
			if len(staff.Layers) == 0 {
				staff.Layers = []*mei.Layer{{N: 1}}
			}
			m.Staves = append(m.Staves, staff)
		}
	}
	return m
}

// convertVoice splits a voice into chord runs and single events.
func convertVoice(events []*musicxml.Event, ctx *ConversionContext) []mei.LayerChild {
	var out []mei.LayerChild
	for i := 0; i < len(events); {
		j := i + 1
		if events[i].Kind != musicxml.KindRest {
			for j < len(events) && events[j].Chord && events[j].Kind != musicxml.KindRest {
				j++
			}
		}
		if child := AssembleChord(events[i:j], ctx); child != nil {
			out = append(out, child)
		}
		i = j
	}
	return out
}

// finish reports unclosed spans, places control events in the measure where
// each span started and drops any whose endpoints are missing from the tree.
func (w *walker) finish(doc *mei.Document, measures []*mei.Measure) {
	ctx := w.ctx
	for _, p := range ctx.PendingSpans() {
		start := p.OpenSourceID
		if id, ok := ctx.ResolveID(start); ok {
			start = id
		}
		ctx.AddWarning(p.StartPosition.String(), "unterminated "+string(p.Key.Flavor)+" starting at "+start)
	}
	ctx.clearPendingSpans()

	for _, pc := range ctx.controls {
		idx := pc.measure
		if idx < 0 || idx >= len(measures) {
			idx = len(measures) - 1
		}
		measures[idx].Controls = append(measures[idx].Controls, pc.event)
	}

	events := doc.EventIndex()
	for _, m := range measures {
		kept := m.Controls[:0]
		for _, ce := range m.Controls {
			a := ce.Endpoints()
			_, startOK := events[a.StartID]
			_, endOK := events[a.EndID]
			if !startOK || (a.EndID != "" && !endOK) {
				ctx.AddWarning("measure "+m.N, "dropped "+ce.ElementName()+" "+ce.ElementID()+" with a missing endpoint")
				continue
			}
			kept = append(kept, ce)
		}
		m.Controls = kept
	}
}
