package mei

// Anchors are the endpoints shared by every control event.
type Anchors struct {
	StartID string
	EndID   string // empty for point events such as fermatas
	Staff   int
	Layer   int
}

// Endpoints exposes the anchors for rewriting.
func (a *Anchors) Endpoints() *Anchors { return a }

// ControlEvent is an element attached to notes by id rather than by nesting.
type ControlEvent interface {
	ElementID() string
	ElementName() string
	Attrs() *Common
	Endpoints() *Anchors
}

type Tie struct {
	Common
	Anchors
	Curvedir string
}

func (*Tie) ElementName() string { return "tie" }

// Slur carries the source slur number in @n, so slurs sharing endpoints
// stay distinct.
type Slur struct {
	Common
	Anchors
	Curvedir string // above or below
}

func (*Slur) ElementName() string { return "slur" }

type TupletSpan struct {
	Common
	Anchors
	Num          int
	NumBase      int
	BracketVis   string // true or false
	NumVisible   string // true or false
	NumFormat    string // count or ratio
	BracketPlace string
	NumPlace     string
}

func (*TupletSpan) ElementName() string { return "tupletSpan" }

type Fermata struct {
	Common
	Anchors
	Form  string // norm or inv
	Shape string // curved, square, angular
}

func (*Fermata) ElementName() string { return "fermata" }

type Dynam struct {
	Common
	Anchors
	Text string
}

func (*Dynam) ElementName() string { return "dynam" }

type Trill struct {
	Common
	Anchors
}

func (*Trill) ElementName() string { return "trill" }

type Mordent struct {
	Common
	Anchors
	Form string // lower or upper
}

func (*Mordent) ElementName() string { return "mordent" }

type Turn struct {
	Common
	Anchors
	Form string // upper or lower
}

func (*Turn) ElementName() string { return "turn" }

type Hairpin struct {
	Common
	Anchors
	Form   string // cres or dim
	Niente bool
	Place  string
}

func (*Hairpin) ElementName() string { return "hairpin" }

type Dir struct {
	Common
	Anchors
	Text  string
	Place string
}

func (*Dir) ElementName() string { return "dir" }

// Tempo is a metronome mark. MM is in beats of MMUnit per minute.
type Tempo struct {
	Common
	Anchors
	Text   string
	MM     string
	MMUnit string
	MMDots int
	Func   string // instantaneous or metricmod
	Place  string
}

func (*Tempo) ElementName() string { return "tempo" }

// SameControl reports whether two control events would render identically
// at the same anchors. Only xml:id is ignored.
func SameControl(a, b ControlEvent) bool {
	switch x := a.(type) {
	case *Tie:
		y, ok := b.(*Tie)
		return ok && sameBody(*x, *y, func(v *Tie) { v.ID = "" })
	case *Slur:
		y, ok := b.(*Slur)
		return ok && sameBody(*x, *y, func(v *Slur) { v.ID = "" })
	case *TupletSpan:
		y, ok := b.(*TupletSpan)
		return ok && sameBody(*x, *y, func(v *TupletSpan) { v.ID = "" })
	case *Fermata:
		y, ok := b.(*Fermata)
		return ok && sameBody(*x, *y, func(v *Fermata) { v.ID = "" })
	case *Dynam:
		y, ok := b.(*Dynam)
		return ok && sameBody(*x, *y, func(v *Dynam) { v.ID = "" })
	case *Trill:
		y, ok := b.(*Trill)
		return ok && sameBody(*x, *y, func(v *Trill) { v.ID = "" })
	case *Mordent:
		y, ok := b.(*Mordent)
		return ok && sameBody(*x, *y, func(v *Mordent) { v.ID = "" })
	case *Turn:
		y, ok := b.(*Turn)
		return ok && sameBody(*x, *y, func(v *Turn) { v.ID = "" })
	case *Hairpin:
		y, ok := b.(*Hairpin)
		return ok && sameBody(*x, *y, func(v *Hairpin) { v.ID = "" })
	case *Dir:
		y, ok := b.(*Dir)
		return ok && sameBody(*x, *y, func(v *Dir) { v.ID = "" })
	case *Tempo:
		y, ok := b.(*Tempo)
		return ok && sameBody(*x, *y, func(v *Tempo) { v.ID = "" })
	}
	return false
}

// sameBody compares two copies after clear has blanked what may differ.
func sameBody[T comparable](x, y T, clear func(*T)) bool {
	clear(&x)
	clear(&y)
	return x == y
}
