package converter

import (
	"strconv"
	"strings"

	"github.com/james-see/score2mei/pkg/mei"
	"github.com/james-see/score2mei/pkg/musicxml"
)

// Application names this converter in <encodingDesc>.
const Application = "score2mei"

// ConvertHeader maps score identification metadata into <meiHead>.
func ConvertHeader(h *musicxml.Header, ctx *ConversionContext) *mei.Head {
	head := &mei.Head{
		Title:        h.WorkTitle,
		EncodingDate: h.EncodingDate,
	}
	switch {
	case head.Title == "":
		head.Title = h.MovementTitle
	case h.MovementTitle != "" && h.MovementTitle != h.WorkTitle:
		head.Subtitle = h.MovementTitle
	}
	if head.Title == "" {
		head.Title = "Untitled"
	}

	for _, c := range h.Creators {
		if c.Name == "" {
			ctx.AddWarning("identification", "creator without a name dropped")
			continue
		}
		role := c.Type
		if role == "" {
			role = "creator"
		}
		head.Respons = append(head.Respons, mei.Respons{Role: role, Name: c.Name})
	}

	head.Availability = strings.Join(h.Rights, "; ")
	head.Applications = append(head.Applications, h.Software...)
	head.Applications = append(head.Applications, Application)
	return head
}

// staffLayout assigns global staff numbers: each part's staves follow the
// previous part's.
type staffLayout struct {
	offsets []int
	staves  []int
}

func newStaffLayout(parts []*musicxml.Part) staffLayout {
	l := staffLayout{offsets: make([]int, len(parts)), staves: make([]int, len(parts))}
	next := 0
	for i, p := range parts {
		l.offsets[i] = next
		l.staves[i] = p.Staves()
		next += l.staves[i]
	}
	return l
}

// ConvertScoreDef builds the initial <scoreDef> from each part's first
// attributes: one staffDef per staff, labelled with the part name.
func ConvertScoreDef(score *musicxml.Score, ctx *ConversionContext) *mei.ScoreDef {
	layout := newStaffLayout(score.Parts)
	sd := &mei.ScoreDef{StaffGrp: &mei.StaffGrp{}}
	if len(score.Parts) > 1 {
		sd.StaffGrp.Symbol = "bracket"
	}

	for pi, part := range score.Parts {
		attrs := firstAttributes(part)
		if pi == 0 && attrs != nil {
			if attrs.Time != nil {
				sd.MeterCount, sd.MeterUnit, sd.MeterSym = meter(attrs.Time)
			}
			if attrs.Key != nil {
				sd.KeySig = keySig(attrs.Key.Fifths)
			}
		}

		for s := 1; s <= layout.staves[pi]; s++ {
			def := &mei.StaffDef{
				Common: mei.Common{N: strconv.Itoa(layout.offsets[pi] + s)},
				Lines:  5,
				PPQ:    1,
			}
			if s == 1 {
				def.Label = part.Name
			}
			def.ClefShape, def.ClefLine = "G", 2
			if attrs != nil {
				if attrs.Divisions > 0 {
					def.PPQ = attrs.Divisions
				}
				if attrs.Key != nil {
					def.KeySig = keySig(attrs.Key.Fifths)
				}
				if clef := clefFor(attrs, s); clef != nil {
					applyClef(def, clef, ctx)
				}
			}
			sd.StaffGrp.StaffDefs = append(sd.StaffGrp.StaffDefs, def)
		}
	}
	return sd
}

func firstAttributes(p *musicxml.Part) *musicxml.Attributes {
	if len(p.Measures) == 0 {
		return nil
	}
	return p.Measures[0].Attributes
}

func clefFor(a *musicxml.Attributes, staff int) *musicxml.Clef {
	for i := range a.Clefs {
		if a.Clefs[i].Staff == staff {
			return &a.Clefs[i]
		}
	}
	return nil
}

func applyClef(def *mei.StaffDef, c *musicxml.Clef, ctx *ConversionContext) {
	switch strings.ToUpper(c.Sign) {
	case "G", "F", "C":
		def.ClefShape = strings.ToUpper(c.Sign)
		def.Lines = 5
	case "PERCUSSION":
		def.ClefShape = "perc"
		def.Lines = 5
	case "TAB":
		def.ClefShape = "TAB"
		def.Lines = 6
	case "NONE":
		def.ClefShape, def.ClefLine = "", 0
		return
	default:
		ctx.Warnf("unsupported clef sign %q", c.Sign)
		return
	}
	def.ClefLine = c.Line
	def.ClefDis, def.ClefPlace = 0, ""
	if c.OctaveChange != 0 {
		amount := c.OctaveChange
		def.ClefPlace = "above"
		if amount < 0 {
			amount = -amount
			def.ClefPlace = "below"
		}
		def.ClefDis = amount*7 + 1
	}
}

func keySig(fifths int) string {
	switch {
	case fifths > 0:
		return strconv.Itoa(fifths) + "s"
	case fifths < 0:
		return strconv.Itoa(-fifths) + "f"
	default:
		return "0"
	}
}

func meter(t *musicxml.Time) (count, unit, sym string) {
	switch t.Symbol {
	case "common", "cut":
		sym = t.Symbol
	}
	return t.Beats, t.BeatType, sym
}
