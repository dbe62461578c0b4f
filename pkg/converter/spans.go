package converter

import "github.com/james-see/score2mei/pkg/mei"

// ResolveSpan turns a closed pending span into a control event anchored at
// the opening and closing events. The opening event is looked up through
// the id map, so a start on a chord member lands on the chord. It returns
// nil, after recording a warning, when the opening id is unmapped or never
// made it into the target tree.
func ResolveSpan(open PendingSpan, closeEventID string, ctx *ConversionContext) mei.ControlEvent {
	startID, ok := ctx.ResolveID(open.OpenSourceID)
	if !ok || !ctx.HasElement(startID) {
		ctx.Warnf("%s start %q is not in the converted tree; span dropped", open.Key.Flavor, open.OpenSourceID)
		return nil
	}

	anchors := mei.Anchors{
		StartID: startID,
		EndID:   closeEventID,
		Staff:   open.StartPosition.Staff,
		Layer:   open.StartPosition.Layer,
	}

	switch open.Key.Flavor {
	case FlavorTie:
		return &mei.Tie{
			Common:  mei.Common{ID: ctx.GenerateID("tie")},
			Anchors: anchors,
		}
	case FlavorSlur:
		return &mei.Slur{
			Common:   mei.Common{ID: ctx.GenerateID("slur"), N: open.Key.Number},
			Anchors:  anchors,
			Curvedir: curveDirection(open.Metadata.Placement),
		}
	case FlavorTuplet:
		meta := open.Metadata
		return &mei.TupletSpan{
			Common:       mei.Common{ID: ctx.GenerateID("tupletSpan")},
			Anchors:      anchors,
			Num:          meta.Num,
			NumBase:      meta.NumBase,
			BracketVis:   bracketVisible(meta.Bracket),
			NumVisible:   numVisible(meta.ShowNumber),
			NumFormat:    numFormat(meta.ShowNumber),
			BracketPlace: meta.Placement,
			NumPlace:     meta.Placement,
		}
	case FlavorHairpin:
		return &mei.Hairpin{
			Common:  mei.Common{ID: ctx.GenerateID("hairpin"), N: open.Key.Number},
			Anchors: anchors,
			Form:    open.Metadata.Form,
			Niente:  open.Metadata.Niente,
			Place:   curveDirection(open.Metadata.Placement),
		}
	default:
		ctx.Warnf("unknown span flavor %q", open.Key.Flavor)
		return nil
	}
}

func curveDirection(placement string) string {
	switch placement {
	case "above", "below":
		return placement
	default:
		return ""
	}
}

func bracketVisible(bracket string) string {
	switch bracket {
	case "yes":
		return "true"
	case "no":
		return "false"
	default:
		return ""
	}
}

func numVisible(show string) string {
	if show == "none" {
		return "false"
	}
	return ""
}

func numFormat(show string) string {
	if show == "both" {
		return "ratio"
	}
	return ""
}
