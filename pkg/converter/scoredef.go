package converter

import (
	"strconv"

	"github.com/james-see/score2mei/pkg/mei"
)

// scoreDefState tracks the meter, key, clefs and ppq in force so mid-score
// attributes only produce a <scoreDef> when something actually changes.
type scoreDefState struct {
	meterCount string
	meterUnit  string
	meterSym   string
	keySig     string
	staves     map[string]mei.StaffDef
}

func newScoreDefState(sd *mei.ScoreDef) *scoreDefState {
	s := &scoreDefState{
		meterCount: sd.MeterCount,
		meterUnit:  sd.MeterUnit,
		meterSym:   sd.MeterSym,
		keySig:     sd.KeySig,
		staves:     make(map[string]mei.StaffDef),
	}
	if sd.StaffGrp != nil {
		for _, def := range sd.StaffGrp.StaffDefs {
			s.staves[def.N] = *def
		}
	}
	return s
}

// scoreDefChange returns the <scoreDef> to insert before measure mi, or nil.
func (w *walker) scoreDefChange(mi int) *mei.ScoreDef {
	ctx, st := w.ctx, w.state
	sd := &mei.ScoreDef{}
	changed := false

	for pi, part := range w.score.Parts {
		if mi >= len(part.Measures) || part.Measures[mi].Attributes == nil {
			continue
		}
		a := part.Measures[mi].Attributes
		ctx.SetPosition(Position{Part: part.ID, Measure: part.Measures[mi].Number, MeasureIndex: mi})

		if a.Time != nil {
			count, unit, sym := meter(a.Time)
			if count != st.meterCount || unit != st.meterUnit || sym != st.meterSym {
				st.meterCount, st.meterUnit, st.meterSym = count, unit, sym
				sd.MeterCount, sd.MeterUnit, sd.MeterSym = count, unit, sym
				changed = true
			}
		}
		if a.Key != nil {
			if k := keySig(a.Key.Fifths); k != st.keySig {
				st.keySig = k
				sd.KeySig = k
				changed = true
			}
		}

		for s := 1; s <= w.layout.staves[pi]; s++ {
			n := strconv.Itoa(w.layout.offsets[pi] + s)
			cur := st.staves[n]
			upd := mei.StaffDef{Common: mei.Common{N: n}}
			dirty := false

			if clef := clefFor(a, s); clef != nil {
				next := cur
				applyClef(&next, clef, ctx)
				if next.ClefShape != cur.ClefShape || next.ClefLine != cur.ClefLine ||
					next.ClefDis != cur.ClefDis || next.ClefPlace != cur.ClefPlace {
					upd.ClefShape, upd.ClefLine = next.ClefShape, next.ClefLine
					upd.ClefDis, upd.ClefPlace = next.ClefDis, next.ClefPlace
					if next.Lines != cur.Lines {
						upd.Lines = next.Lines
					}
					cur = next
					dirty = true
				}
			}
			if a.Divisions > 0 && a.Divisions != cur.PPQ {
				upd.PPQ = a.Divisions
				cur.PPQ = a.Divisions
				dirty = true
			}

			if dirty {
				st.staves[n] = cur
				if sd.StaffGrp == nil {
					sd.StaffGrp = &mei.StaffGrp{}
				}
				def := upd
				sd.StaffGrp.StaffDefs = append(sd.StaffGrp.StaffDefs, &def)
				changed = true
			}
		}
	}

	if !changed {
		return nil
	}
	return sd
}
