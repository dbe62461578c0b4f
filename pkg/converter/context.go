package converter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/james-see/score2mei/pkg/mei"
)

// DefaultIDPrefix starts every generated xml:id.
const DefaultIDPrefix = "conv"

// Flavor names the kind of spanning construct.
type Flavor string

const (
	FlavorTie     Flavor = "tie"
	FlavorSlur    Flavor = "slur"
	FlavorTuplet  Flavor = "tuplet"
	FlavorHairpin Flavor = "hairpin"
)

// Position locates the event being converted.
type Position struct {
	Part         string
	Measure      string
	MeasureIndex int
	Staff        int
	Voice        string
	Layer        int
}

// VoiceScope identifies the stream a span lives in. Spans never cross it.
func (p Position) VoiceScope() string {
	return p.StaffScope() + "/" + p.Voice
}

// StaffScope is the scope of staff-level spans such as hairpins, which may
// start and end in different voices.
func (p Position) StaffScope() string {
	return p.Part + "/" + strconv.Itoa(p.Staff)
}

func (p Position) String() string {
	var parts []string
	if p.Part != "" {
		parts = append(parts, "part "+p.Part)
	}
	if p.Measure != "" {
		parts = append(parts, "measure "+p.Measure)
	}
	if p.Staff > 0 {
		parts = append(parts, "staff "+strconv.Itoa(p.Staff))
	}
	if p.Voice != "" {
		parts = append(parts, "voice "+p.Voice)
	}
	return strings.Join(parts, ", ")
}

// ConversionWarning is a recoverable problem. Conversion always continues.
type ConversionWarning struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

func (w ConversionWarning) String() string {
	if w.Location == "" {
		return w.Message
	}
	return w.Location + ": " + w.Message
}

// SpanKey selects one LIFO stack of pending spans. Number is the source
// number attribute for slurs and tuplets and the pitch for ties; it is
// empty when the source gives no disambiguator.
type SpanKey struct {
	Flavor Flavor
	Voice  string
	Number string
}

// SpanMetadata carries flavor-specific details captured at the start marker.
type SpanMetadata struct {
	Num        int
	NumBase    int
	Bracket    string
	ShowNumber string
	Placement  string
	Form       string // hairpin cres or dim
	Niente     bool
}

// PendingSpan is a span whose start marker has been seen but not its stop.
// OpenSourceID is the id-map key of the opening event; it is resolved to a
// target id only when the span closes.
type PendingSpan struct {
	Key           SpanKey
	OpenSourceID  string
	StartPosition Position
	Metadata      SpanMetadata

	// Seq orders spans across all stacks by when they were opened.
	Seq int
}

// SpanHandle identifies a pushed span: its stack and depth at push time.
type SpanHandle struct {
	Key   SpanKey
	Depth int
}

// DurationContext holds what duration inference needs from earlier events.
type DurationContext struct {
	Divisions int
	LastDur   string
	LastDots  int
}

type placedControl struct {
	measure int
	event   mei.ControlEvent
}

// ConversionContext is the state of one conversion pass. It is not safe for
// concurrent use; give each goroutine its own.
type ConversionContext struct {
	prefix   string
	counters map[string]int

	claimed  map[string]struct{}
	bound    map[string]struct{}
	elements map[string]struct{}
	ids      map[string]string

	stacks     map[SpanKey][]*PendingSpan
	stackOrder []SpanKey
	spanSeq    int

	group map[string]struct{}

	warnings  []ConversionWarning
	position  Position
	durations DurationContext
	partDivs  map[string]int
	controls  []placedControl
}

// ContextOption configures a ConversionContext.
type ContextOption func(*ConversionContext)

// WithIDPrefix replaces DefaultIDPrefix.
func WithIDPrefix(prefix string) ContextOption {
	return func(c *ConversionContext) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// NewConversionContext creates a context ready for one or more documents.
func NewConversionContext(opts ...ContextOption) *ConversionContext {
	c := &ConversionContext{
		prefix:   DefaultIDPrefix,
		counters: make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.BeginDocument()
	return c
}

// BeginDocument resets everything except the id counters, so a context can
// be reused across a batch without reissuing ids.
func (c *ConversionContext) BeginDocument() {
	c.claimed = make(map[string]struct{})
	c.bound = make(map[string]struct{})
	c.elements = make(map[string]struct{})
	c.ids = make(map[string]string)
	c.stacks = make(map[SpanKey][]*PendingSpan)
	c.stackOrder = nil
	c.spanSeq = 0
	c.group = nil
	c.warnings = nil
	c.position = Position{}
	c.durations = DurationContext{Divisions: 1}
	c.partDivs = make(map[string]int)
	c.controls = nil
}

// GenerateID returns "<prefix>-<kind>-<n>" with a per-kind counter,
// skipping any id already claimed in this document.
func (c *ConversionContext) GenerateID(kind string) string {
	for {
		c.counters[kind]++
		id := fmt.Sprintf("%s-%s-%d", c.prefix, kind, c.counters[kind])
		if _, taken := c.claimed[id]; !taken {
			c.claimed[id] = struct{}{}
			return id
		}
	}
}

// ReserveID claims a source id before conversion so the generator never
// produces it. It reports false when the id was already claimed.
func (c *ConversionContext) ReserveID(id string) bool {
	if id == "" {
		return false
	}
	if _, taken := c.claimed[id]; taken {
		return false
	}
	c.claimed[id] = struct{}{}
	return true
}

// TargetID picks the xml:id for a converted element: the source id when it
// is present and not yet used, otherwise a generated one.
func (c *ConversionContext) TargetID(sourceID, kind string) string {
	if sourceID == "" {
		return c.GenerateID(kind)
	}
	if _, used := c.bound[sourceID]; used {
		id := c.GenerateID(kind)
		c.Warnf("duplicate id %q, using %q", sourceID, id)
		return id
	}
	c.bound[sourceID] = struct{}{}
	c.claimed[sourceID] = struct{}{}
	return sourceID
}

// MapID records that sourceID became targetID. Last write wins.
func (c *ConversionContext) MapID(sourceID, targetID string) {
	c.ids[sourceID] = targetID
}

// ResolveID returns the target id recorded for sourceID.
func (c *ConversionContext) ResolveID(sourceID string) (string, bool) {
	id, ok := c.ids[sourceID]
	return id, ok
}

// remapTargets points every correspondence whose target matches at targetID.
func (c *ConversionContext) remapTargets(match func(string) bool, targetID string) {
	for src, id := range c.ids {
		if match(id) {
			c.ids[src] = targetID
		}
	}
}

func (c *ConversionContext) registerElement(id string) {
	c.elements[id] = struct{}{}
}

// HasElement reports whether id names an element already placed in the target tree.
func (c *ConversionContext) HasElement(id string) bool {
	_, ok := c.elements[id]
	return ok
}

// OpenSpan pushes a pending span for key, opened by the event recorded in
// the id map under openSourceID.
func (c *ConversionContext) OpenSpan(key SpanKey, openSourceID string, meta SpanMetadata) SpanHandle {
	stack, seen := c.stacks[key]
	if !seen {
		c.stackOrder = append(c.stackOrder, key)
	}
	c.spanSeq++
	c.stacks[key] = append(stack, &PendingSpan{
		Key:           key,
		OpenSourceID:  openSourceID,
		StartPosition: c.position,
		Metadata:      meta,
		Seq:           c.spanSeq,
	})
	return SpanHandle{Key: key, Depth: len(stack)}
}

// CloseSpan pops the most recent pending span for key. A stop with nothing
// to close records a warning and reports false.
func (c *ConversionContext) CloseSpan(key SpanKey) (PendingSpan, bool) {
	stack := c.stacks[key]
	if len(stack) == 0 {
		c.Warnf("%s stop without matching start", key.Flavor)
		return PendingSpan{}, false
	}
	top := stack[len(stack)-1]
	c.stacks[key] = stack[:len(stack)-1]
	return *top, true
}

// topSeq is the open order of the innermost pending span for key, or 0.
func (c *ConversionContext) topSeq(key SpanKey) int {
	stack := c.stacks[key]
	if len(stack) == 0 {
		return 0
	}
	return stack[len(stack)-1].Seq
}

// PendingSpans lists unclosed spans, stacks in first-use order, bottom to top.
func (c *ConversionContext) PendingSpans() []PendingSpan {
	var out []PendingSpan
	for _, key := range c.stackOrder {
		for _, p := range c.stacks[key] {
			out = append(out, *p)
		}
	}
	return out
}

func (c *ConversionContext) clearPendingSpans() {
	c.stacks = make(map[SpanKey][]*PendingSpan)
	c.stackOrder = nil
}

// AddWarning records a warning at an explicit location.
func (c *ConversionContext) AddWarning(location, message string) {
	c.warnings = append(c.warnings, ConversionWarning{Location: location, Message: message})
}

// Warnf records a warning at the current position.
func (c *ConversionContext) Warnf(format string, args ...any) {
	c.AddWarning(c.position.String(), fmt.Sprintf(format, args...))
}

// Warnings returns a copy of the warnings recorded so far.
func (c *ConversionContext) Warnings() []ConversionWarning {
	return append([]ConversionWarning(nil), c.warnings...)
}

// DurationContext exposes the duration state for the current part.
func (c *ConversionContext) DurationContext() *DurationContext {
	return &c.durations
}

func (c *ConversionContext) Divisions() int {
	return c.durations.Divisions
}

// SetDivisions changes divisions for the current part and remembers them
// for the next time the part is entered.
func (c *ConversionContext) SetDivisions(d int) {
	if d <= 0 {
		return
	}
	c.durations.Divisions = d
	c.partDivs[c.position.Part] = d
}

// EnterPart switches position and duration state to partID.
func (c *ConversionContext) EnterPart(partID string) {
	c.position.Part = partID
	d, ok := c.partDivs[partID]
	if !ok {
		d = 1
	}
	c.durations = DurationContext{Divisions: d}
}

func (c *ConversionContext) Position() Position {
	return c.position
}

func (c *ConversionContext) SetPosition(p Position) {
	c.position = p
}

// AddControlEvent queues a control event for the measure at measureIndex.
func (c *ConversionContext) AddControlEvent(measureIndex int, ev mei.ControlEvent) {
	c.controls = append(c.controls, placedControl{measure: measureIndex, event: ev})
}

// ControlEvents returns queued control events in emission order.
func (c *ConversionContext) ControlEvents() []mei.ControlEvent {
	out := make([]mei.ControlEvent, len(c.controls))
	for i, pc := range c.controls {
		out[i] = pc.event
	}
	return out
}

// beginGroup starts marker de-duplication for a chord run.
func (c *ConversionContext) beginGroup() {
	c.group = make(map[string]struct{})
}

func (c *ConversionContext) endGroup() {
	c.group = nil
}

// firstInGroup reports whether marker has not been seen yet in the current
// chord run. Outside a run every marker is first.
func (c *ConversionContext) firstInGroup(marker string) bool {
	if c.group == nil {
		return true
	}
	if _, seen := c.group[marker]; seen {
		return false
	}
	c.group[marker] = struct{}{}
	return true
}
