package converter

import (
	"strings"

	"github.com/james-see/score2mei/pkg/mei"
	"github.com/james-see/score2mei/pkg/musicxml"
)

// AssembleChord converts a run of simultaneous events into one chord. The
// caller detects the run: the first event opens it and each following event
// flagged as a chord member extends it. Rests never extend a run, so events
// from the first rest on are left to the caller. A run of one converts as a
// plain event.
//
// Span markers repeated on several members are honored once, and every span
// endpoint naming a member is moved to the chord afterwards. Duration, grace,
// cue and stem direction come from the first member.
func AssembleChord(events []*musicxml.Event, ctx *ConversionContext) mei.LayerChild {
	if len(events) == 0 {
		return nil
	}
	run := []*musicxml.Event{events[0]}
	if events[0].Kind != musicxml.KindRest {
		for _, ev := range events[1:] {
			if ev.Kind == musicxml.KindRest {
				break
			}
			run = append(run, ev)
		}
	}
	if len(run) == 1 {
		return ConvertEvent(run[0], ctx)
	}
	events = run

	chordID := ctx.GenerateID("chord")
	ctx.registerElement(chordID)

	ctx.beginGroup()
	var members []*mei.Note
	for _, ev := range events {
		members = append(members, ConvertEvent(ev, ctx).(*mei.Note))
	}
	ctx.endGroup()

	first := members[0]
	chord := &mei.Chord{
		Common:  mei.Common{ID: chordID},
		Dur:     first.Log.Dur,
		Dots:    first.Log.Dots,
		DurPPQ:  first.Ges.DurPPQ,
		Grace:   first.Log.Grace,
		Cue:     first.Log.Cue,
		StemDir: first.Vis.StemDir,
	}

	memberIDs := make([]string, 0, len(members))
	for _, n := range members {
		if n.Log.Dur != chord.Dur || n.Log.Dots != chord.Dots || n.Ges.DurPPQ != chord.DurPPQ {
			ctx.Warnf("chord member %s duration %s differs from %s; using the first", n.ID, describeDur(n.Log.Dur, n.Log.Dots), describeDur(chord.Dur, chord.Dots))
		}
		n.Vis.StemDir = ""
		n.Log.Dur, n.Log.Dots, n.Ges.DurPPQ = "", 0, 0
		n.Log.Grace, n.Log.Cue = "", false
		memberIDs = append(memberIDs, n.ID)
	}
	chord.Notes = members

	FixupSpanIDsForGroup(memberIDs, chordID, ctx)
	return chord
}

// FixupSpanIDsForGroup rewrites every resolved control event that names a
// member so it names the container instead, and remaps every source id that
// resolved to a member onto the container. Pending spans hold source ids, so
// the remap redirects them when they close. Control events made identical by
// the rewrite collapse into one.
func FixupSpanIDsForGroup(memberIDs []string, containerID string, ctx *ConversionContext) {
	members := make(map[string]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		members[id] = struct{}{}
	}
	moved := func(id string) bool {
		_, ok := members[id]
		return ok
	}

	ctx.remapTargets(moved, containerID)

	touched := false
	for _, pc := range ctx.controls {
		a := pc.event.Endpoints()
		if moved(a.StartID) {
			a.StartID = containerID
			touched = true
		}
		if moved(a.EndID) {
			a.EndID = containerID
			touched = true
		}
	}

	if touched {
		ctx.controls = dedupeControls(ctx.controls, containerID)
	}
}

// dedupeControls drops later copies of control events anchored at id.
func dedupeControls(controls []placedControl, id string) []placedControl {
	out := controls[:0]
	for _, pc := range controls {
		a := pc.event.Endpoints()
		dup := false
		if a.StartID == id || a.EndID == id {
			for _, kept := range out {
				if mei.SameControl(kept.event, pc.event) {
					dup = true
					break
				}
			}
		}
		if !dup {
			out = append(out, pc)
		}
	}
	return out
}

func describeDur(dur string, dots int) string {
	if dur == "" {
		dur = "?"
	}
	return dur + strings.Repeat(".", dots)
}
