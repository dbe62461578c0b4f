package converter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-see/score2mei/pkg/mei"
)

func TestGenerateID(t *testing.T) {
	ctx := NewConversionContext()
	assert.Equal(t, "conv-note-1", ctx.GenerateID("note"))
	assert.Equal(t, "conv-note-2", ctx.GenerateID("note"))
	assert.Equal(t, "conv-rest-1", ctx.GenerateID("rest"))

	require.True(t, ctx.ReserveID("conv-note-3"))
	assert.Equal(t, "conv-note-4", ctx.GenerateID("note"))

	assert.False(t, ctx.ReserveID("conv-note-3"))
	assert.False(t, ctx.ReserveID(""))
}

func TestTargetID(t *testing.T) {
	ctx := NewConversionContext(WithIDPrefix("s"))
	assert.Equal(t, "n1", ctx.TargetID("n1", "note"))
	assert.Empty(t, ctx.Warnings())

	assert.Equal(t, "s-note-1", ctx.TargetID("n1", "note"))
	require.Len(t, ctx.Warnings(), 1)

	assert.Equal(t, "s-note-2", ctx.TargetID("", "note"))
}

func TestMapAndResolveID(t *testing.T) {
	ctx := NewConversionContext()
	ctx.MapID("a", "x")
	ctx.MapID("a", "y")

	id, ok := ctx.ResolveID("a")
	assert.True(t, ok)
	assert.Equal(t, "y", id)

	_, ok = ctx.ResolveID("b")
	assert.False(t, ok)
}

func TestSpanStacks(t *testing.T) {
	ctx := NewConversionContext()
	ctx.SetPosition(Position{Part: "P1", Measure: "1", Staff: 1, Voice: "1"})
	key := SpanKey{Flavor: FlavorSlur, Voice: ctx.Position().VoiceScope(), Number: "1"}
	other := SpanKey{Flavor: FlavorSlur, Voice: ctx.Position().VoiceScope(), Number: "2"}

	h1 := ctx.OpenSpan(key, "a", SpanMetadata{})
	h2 := ctx.OpenSpan(key, "b", SpanMetadata{})
	ctx.OpenSpan(other, "c", SpanMetadata{})
	assert.Equal(t, 0, h1.Depth)
	assert.Equal(t, 1, h2.Depth)

	pending := ctx.PendingSpans()
	require.Len(t, pending, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{pending[0].OpenSourceID, pending[1].OpenSourceID, pending[2].OpenSourceID})
	assert.Equal(t, "P1", pending[0].StartPosition.Part)

	// LIFO per key, independent across keys.
	p, ok := ctx.CloseSpan(key)
	require.True(t, ok)
	assert.Equal(t, "b", p.OpenSourceID)
	p, ok = ctx.CloseSpan(other)
	require.True(t, ok)
	assert.Equal(t, "c", p.OpenSourceID)
	p, ok = ctx.CloseSpan(key)
	require.True(t, ok)
	assert.Equal(t, "a", p.OpenSourceID)

	_, ok = ctx.CloseSpan(key)
	assert.False(t, ok)
	require.Len(t, ctx.Warnings(), 1)
	assert.Equal(t, "part P1, measure 1, staff 1, voice 1: slur stop without matching start", ctx.Warnings()[0].String())
	assert.Empty(t, ctx.PendingSpans())
}

func TestVoiceScopesDoNotMix(t *testing.T) {
	ctx := NewConversionContext()
	a := SpanKey{Flavor: FlavorTie, Voice: "P1/1/1", Number: "C/4"}
	b := SpanKey{Flavor: FlavorTie, Voice: "P1/1/2", Number: "C/4"}

	ctx.OpenSpan(a, "x", SpanMetadata{})
	_, ok := ctx.CloseSpan(b)
	assert.False(t, ok)
	assert.Len(t, ctx.PendingSpans(), 1)
}

func TestBeginDocumentKeepsCounters(t *testing.T) {
	ctx := NewConversionContext()
	ctx.GenerateID("note")
	ctx.ReserveID("n1")
	ctx.OpenSpan(SpanKey{Flavor: FlavorSlur}, "x", SpanMetadata{})
	ctx.Warnf("something")
	ctx.AddControlEvent(0, &mei.Dynam{Text: "p"})

	ctx.BeginDocument()
	assert.Empty(t, ctx.Warnings())
	assert.Empty(t, ctx.PendingSpans())
	assert.Empty(t, ctx.ControlEvents())
	assert.True(t, ctx.ReserveID("n1"))
	assert.Equal(t, "conv-note-2", ctx.GenerateID("note"))
	assert.Equal(t, 1, ctx.Divisions())
}

func TestDivisionsPerPart(t *testing.T) {
	ctx := NewConversionContext()
	ctx.EnterPart("P1")
	ctx.SetDivisions(480)
	ctx.SetDivisions(0)
	assert.Equal(t, 480, ctx.Divisions())

	ctx.EnterPart("P2")
	assert.Equal(t, 1, ctx.Divisions())
	ctx.SetDivisions(4)

	ctx.EnterPart("P1")
	assert.Equal(t, 480, ctx.Divisions())
	ctx.EnterPart("P2")
	assert.Equal(t, 4, ctx.Divisions())
}

func TestPositionString(t *testing.T) {
	assert.Equal(t, "", Position{}.String())
	assert.Equal(t, "part P1, measure 3", Position{Part: "P1", Measure: "3"}.String())
	assert.Equal(t, "P1/2/1", Position{Part: "P1", Staff: 2, Voice: "1"}.VoiceScope())
	assert.Equal(t, "oops", ConversionWarning{Message: "oops"}.String())
}

func TestResolveSpanMissingStart(t *testing.T) {
	ctx := NewConversionContext()
	open := PendingSpan{Key: SpanKey{Flavor: FlavorSlur}, OpenSourceID: "ghost"}
	assert.Nil(t, ResolveSpan(open, "end", ctx))

	// Mapped, but the target never reached the tree.
	ctx.MapID("lost", "conv-note-9")
	open.OpenSourceID = "lost"
	assert.Nil(t, ResolveSpan(open, "end", ctx))

	require.Len(t, ctx.Warnings(), 2)
	for _, w := range ctx.Warnings() {
		assert.Contains(t, w.Message, "not in the converted tree")
	}
}

func TestResolveSpanThroughIDMap(t *testing.T) {
	ctx := NewConversionContext()
	ctx.registerElement("conv-note-1")
	ctx.MapID("src", "conv-note-1")

	slur, ok := ResolveSpan(PendingSpan{Key: SpanKey{Flavor: FlavorSlur, Number: "2"}, OpenSourceID: "src"}, "b", ctx).(*mei.Slur)
	require.True(t, ok)
	assert.Equal(t, "conv-note-1", slur.StartID)
	assert.Equal(t, "2", slur.N)
	assert.Empty(t, ctx.Warnings())
}

func TestResolveSpanFlavors(t *testing.T) {
	ctx := NewConversionContext()
	ctx.registerElement("a")
	ctx.MapID("a", "a")

	slur, ok := ResolveSpan(PendingSpan{
		Key:          SpanKey{Flavor: FlavorSlur},
		OpenSourceID: "a",
		Metadata:     SpanMetadata{Placement: "below"},
	}, "b", ctx).(*mei.Slur)
	require.True(t, ok)
	assert.Equal(t, "below", slur.Curvedir)
	assert.Equal(t, "a", slur.StartID)
	assert.Equal(t, "b", slur.EndID)

	tuplet, ok := ResolveSpan(PendingSpan{
		Key:          SpanKey{Flavor: FlavorTuplet},
		OpenSourceID: "a",
		Metadata:     SpanMetadata{Num: 3, NumBase: 2, Bracket: "no", ShowNumber: "none"},
	}, "b", ctx).(*mei.TupletSpan)
	require.True(t, ok)
	assert.Equal(t, "false", tuplet.BracketVis)
	assert.Equal(t, "false", tuplet.NumVisible)

	_, ok = ResolveSpan(PendingSpan{Key: SpanKey{Flavor: FlavorTie}, OpenSourceID: "a"}, "b", ctx).(*mei.Tie)
	assert.True(t, ok)

	hairpin, ok := ResolveSpan(PendingSpan{
		Key:          SpanKey{Flavor: FlavorHairpin},
		OpenSourceID: "a",
		Metadata:     SpanMetadata{Form: "dim", Niente: true, Placement: "below"},
	}, "b", ctx).(*mei.Hairpin)
	require.True(t, ok)
	assert.Equal(t, "dim", hairpin.Form)
	assert.True(t, hairpin.Niente)
	assert.Equal(t, "below", hairpin.Place)
	assert.Equal(t, "b", hairpin.EndID)
	assert.Empty(t, ctx.Warnings())
}

func TestFixupSpanIDsForGroup(t *testing.T) {
	ctx := NewConversionContext()
	ctx.AddControlEvent(0, &mei.Slur{Common: mei.Common{ID: "s1"}, Anchors: mei.Anchors{StartID: "x", EndID: "m1"}})
	ctx.AddControlEvent(0, &mei.Slur{Common: mei.Common{ID: "s2"}, Anchors: mei.Anchors{StartID: "x", EndID: "m2"}})
	ctx.AddControlEvent(0, &mei.Fermata{Common: mei.Common{ID: "f1"}, Anchors: mei.Anchors{StartID: "m2"}})
	ctx.MapID("n1", "m1")
	ctx.MapID("m1", "m1")
	ctx.MapID("other", "x")
	ctx.OpenSpan(SpanKey{Flavor: FlavorTie, Number: "C/4"}, "m1", SpanMetadata{})

	FixupSpanIDsForGroup([]string{"m1", "m2"}, "chord", ctx)

	controls := ctx.ControlEvents()
	require.Len(t, controls, 2)
	assert.Equal(t, "s1", controls[0].ElementID())
	assert.Equal(t, "chord", controls[0].Endpoints().EndID)
	assert.Equal(t, "f1", controls[1].ElementID())
	assert.Equal(t, "chord", controls[1].Endpoints().StartID)

	// Member ids, source and target alike, now resolve to the chord.
	for _, src := range []string{"n1", "m1"} {
		id, ok := ctx.ResolveID(src)
		require.True(t, ok)
		assert.Equal(t, "chord", id, src)
	}
	id, _ := ctx.ResolveID("other")
	assert.Equal(t, "x", id)

	pending := ctx.PendingSpans()
	require.Len(t, pending, 1)
	id, _ = ctx.ResolveID(pending[0].OpenSourceID)
	assert.Equal(t, "chord", id)
}
