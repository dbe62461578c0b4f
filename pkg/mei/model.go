// Package mei is the target document model: a typed subset of MEI 5
// covering header metadata, score definitions, common music notation
// layers and id-referenced control events.
package mei

// Common carries the attributes every element shares.
type Common struct {
	ID    string // xml:id
	N     string
	Label string
}

// ElementID returns the xml:id of the element.
func (c *Common) ElementID() string { return c.ID }

// Attrs exposes the common attributes for rendering.
func (c *Common) Attrs() *Common { return c }

// Document is a complete <mei> tree.
type Document struct {
	Head  *Head
	Score *Score
}

// Head is the <meiHead> subset derived from source identification data.
type Head struct {
	Title        string
	Subtitle     string
	Respons      []Respons
	Availability string
	Applications []string
	EncodingDate string
}

// Respons is one <persName role> inside <respStmt>.
type Respons struct {
	Role string
	Name string
}

// Score holds the initial score definition and the single section of measures.
type Score struct {
	ScoreDef *ScoreDef
	Section  *Section
}

// ScoreDef declares meter, key and staves. Mid-score changes reuse it with
// only the changed fields set.
type ScoreDef struct {
	Common
	MeterCount string
	MeterUnit  string
	MeterSym   string
	KeySig     string
	StaffGrp   *StaffGrp
}

func (*ScoreDef) sectionChild() {}

type StaffGrp struct {
	Symbol    string
	StaffDefs []*StaffDef
}

type StaffDef struct {
	Common
	Lines     int
	ClefShape string
	ClefLine  int
	ClefDis   int
	ClefPlace string // above or below when ClefDis is set
	KeySig    string
	PPQ       int
}

// Section is the ordered sequence of measures and interleaved score definitions.
type Section struct {
	Children []SectionChild
}

// SectionChild is either *Measure or *ScoreDef.
type SectionChild interface {
	sectionChild()
}

type Measure struct {
	Common
	Metcon   string // "false" for implicit (pickup) measures
	Staves   []*Staff
	Controls []ControlEvent
}

func (*Measure) sectionChild() {}

type Staff struct {
	N      int
	Layers []*Layer
}

type Layer struct {
	N        int
	Children []LayerChild
}

// LayerChild is *Note, *Rest, *MRest or *Chord.
type LayerChild interface {
	ElementID() string
	layerChild()
}

// NoteLog is the logical domain of a note.
type NoteLog struct {
	Pname string
	Oct   *int
	Dur   string
	Dots  int
	Grace string // acc or unacc
	Cue   bool
	Tie   string // i, m or t
}

// NoteVis is the visual domain of a note.
type NoteVis struct {
	Loc     *int // staff location for unpitched notes
	StemDir string
}

// NoteGes is the gestural domain of a note.
type NoteGes struct {
	AccidGes string
	DurPPQ   int
}

// NoteAnl is the analytical domain of a note.
type NoteAnl struct {
	Artic []string
}

type Note struct {
	Common
	Log      NoteLog
	Vis      NoteVis
	Ges      NoteGes
	Anl      NoteAnl
	Children []NoteChild
}

func (*Note) layerChild() {}

// NoteChild is *Accid or *Verse.
type NoteChild interface {
	noteChild()
}

type Accid struct {
	Common
	Accid string
}

func (*Accid) noteChild() {}

type Verse struct {
	Common
	Syls []*Syl
}

func (*Verse) noteChild() {}

type Syl struct {
	Text    string
	Wordpos string // i, m or t
	Con     string // d for dash, u for extender
}

type Rest struct {
	Common
	Dur    string
	Dots   int
	DurPPQ int
	Cue    bool
	Ploc   string
	Oloc   *int
}

func (*Rest) layerChild() {}

// MRest is a whole-measure rest; it never carries a written duration.
type MRest struct {
	Common
	DurPPQ int
	Cue    bool
}

func (*MRest) layerChild() {}

type Chord struct {
	Common
	Dur     string
	Dots    int
	DurPPQ  int
	Grace   string
	Cue     bool
	StemDir string
	Notes   []*Note
}

func (*Chord) layerChild() {}
