// Package musicxml holds the source document model read from MusicXML
// partwise or timewise scores, compressed or not.
package musicxml

// Score is a parsed MusicXML document.
type Score struct {
	Header Header
	Parts  []*Part
}

// Header carries score-level identification metadata.
type Header struct {
	WorkTitle      string
	WorkNumber     string
	MovementTitle  string
	MovementNumber string
	Creators       []Creator
	Rights         []string
	Software       []string
	EncodingDate   string
}

type Creator struct {
	Type string // composer, lyricist, arranger...
	Name string
}

// Part is one score-part with its measures in document order.
type Part struct {
	ID           string
	Name         string
	Abbreviation string
	Measures     []*Measure
}

// Staves returns the highest staff count declared anywhere in the part, at least 1.
func (p *Part) Staves() int {
	n := 1
	for _, m := range p.Measures {
		if m.Attributes != nil && m.Attributes.Staves > n {
			n = m.Attributes.Staves
		}
		for _, v := range m.Voices {
			if v.Staff > n {
				n = v.Staff
			}
		}
	}
	return n
}

// Measure is one measure of a part. Notes are split by voice.
type Measure struct {
	Number   string
	ID       string
	Implicit bool

	// Attributes merges every <attributes> block of the measure; nil when none.
	Attributes *Attributes

	Voices []*Voice
}

// Attributes is the subset of <attributes> the converter understands.
type Attributes struct {
	Divisions int
	Staves    int
	Key       *Key
	Time      *Time
	Clefs     []Clef
}

type Key struct {
	Fifths int
	Mode   string
}

type Time struct {
	Beats    string
	BeatType string
	Symbol   string // common, cut, single-number...
}

type Clef struct {
	Staff        int
	Sign         string
	Line         int
	OctaveChange int
}

// Voice is the linear event stream of one <voice> inside a measure.
type Voice struct {
	Number string
	Staff  int // staff of the first event
	Events []*Event
}

// EventKind distinguishes what sounds (or doesn't) at an event.
type EventKind int

const (
	KindNote EventKind = iota
	KindUnpitched
	KindRest
)

func (k EventKind) String() string {
	switch k {
	case KindNote:
		return "note"
	case KindUnpitched:
		return "unpitched"
	case KindRest:
		return "rest"
	default:
		return "unknown"
	}
}

// MarkerType is the role of a span marker on an event.
type MarkerType string

const (
	MarkerStart    MarkerType = "start"
	MarkerStop     MarkerType = "stop"
	MarkerContinue MarkerType = "continue"
)

// Event is one <note> element: a pitched note, an unpitched note or a rest.
type Event struct {
	ID   string
	Kind EventKind

	Pitch *Pitch // KindNote only

	// DisplayStep/DisplayOctave position unpitched notes and rests.
	DisplayStep   string
	DisplayOctave int
	HasDisplay    bool

	MeasureRest bool
	Chord       bool
	Grace       *Grace
	Cue         bool

	// Duration is in divisions. Grace notes have none.
	Duration int
	Type     string // MusicXML note-type value, empty when absent
	Dots     int

	TimeModification *TimeModification

	Staff  int
	Voice  string
	Offset int // divisions from the start of the measure

	Stem       string
	Accidental string

	Ties          []TieMarker
	Slurs         []SlurMarker
	Tuplets       []TupletMarker
	Articulations []string
	Technical     []string
	Ornaments     []string
	Fermata       *Fermata
	Lyrics        []Lyric

	// Direction contents attach to the next note on their staff, or to the
	// last one when nothing follows in the measure.
	Dynamics   []string
	Wedges     []WedgeMarker
	Words      []Words
	Metronomes []Metronome
}

type Pitch struct {
	Step   string
	Alter  float64
	Octave int
}

type Grace struct {
	Slash bool
}

type TimeModification struct {
	ActualNotes int
	NormalNotes int
}

type TieMarker struct {
	Type MarkerType
}

type SlurMarker struct {
	Type      MarkerType
	Number    string // empty when the source omits it
	Placement string
}

type TupletMarker struct {
	Type       MarkerType
	Number     string
	Bracket    string // yes, no, or empty
	ShowNumber string // actual, both, none, or empty
	Placement  string

	// Ratio from <tuplet-actual>/<tuplet-normal>; zero when absent.
	ActualNumber int
	NormalNumber int
}

// WedgeType is the type attribute of a <wedge>.
type WedgeType string

const (
	WedgeCrescendo  WedgeType = "crescendo"
	WedgeDiminuendo WedgeType = "diminuendo"
	WedgeStop       WedgeType = "stop"
	WedgeContinue   WedgeType = "continue"
)

type WedgeMarker struct {
	Type      WedgeType
	Number    string
	Niente    bool
	Placement string
}

type Words struct {
	Text      string
	Placement string
}

// Metronome is a <metronome> mark: either beat unit = per minute, or a
// metric modulation between two beat units.
type Metronome struct {
	BeatUnit       string
	BeatUnitDots   int
	PerMinute      string
	EquivalentUnit string
	EquivalentDots int
	Placement      string
}

type Fermata struct {
	Type  string // upright or inverted
	Shape string
}

type Lyric struct {
	Number   string
	Syllabic string
	Text     string
	Extend   bool
}

// HasContent reports whether any part holds at least one event.
func (s *Score) HasContent() bool {
	for _, p := range s.Parts {
		for _, m := range p.Measures {
			for _, v := range m.Voices {
				if len(v.Events) > 0 {
					return true
				}
			}
		}
	}
	return false
}

// Events walks every event of the score in document order.
func (s *Score) Events(fn func(p *Part, m *Measure, ev *Event)) {
	for _, p := range s.Parts {
		for _, m := range p.Measures {
			for _, v := range m.Voices {
				for _, ev := range v.Events {
					fn(p, m, ev)
				}
			}
		}
	}
}
