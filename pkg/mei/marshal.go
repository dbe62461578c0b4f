package mei

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
)

const (
	Namespace = "http://www.music-encoding.org/ns/mei"
	Version   = "5.1"
)

// ErrEmptyDocument is returned when marshaling a document without a score.
var ErrEmptyDocument = errors.New("mei document has no score")

// Marshal renders the document as indented MEI XML.
func Marshal(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write renders the document to w.
func Write(w io.Writer, doc *Document) error {
	root, err := Build(doc)
	if err != nil {
		return err
	}
	if err := root.WriteWithOptions(w, xmlquery.WithIndentation("  "), xmlquery.WithEmptyTagSupport()); err != nil {
		return fmt.Errorf("failed to write MEI: %w", err)
	}
	return nil
}

// Build converts the typed document into an xmlquery tree.
func Build(doc *Document) (*xmlquery.Node, error) {
	if doc == nil || doc.Score == nil {
		return nil, ErrEmptyDocument
	}

	root := &xmlquery.Node{Type: xmlquery.DocumentNode}
	decl := &xmlquery.Node{Type: xmlquery.DeclarationNode, Data: "xml"}
	xmlquery.AddAttr(decl, "version", "1.0")
	xmlquery.AddAttr(decl, "encoding", "UTF-8")
	xmlquery.AddChild(root, decl)

	mei := elem(root, "mei")
	attr(mei, "xmlns", Namespace)
	attr(mei, "meiversion", Version)

	buildHead(mei, doc.Head)

	score := elem(elem(elem(elem(mei, "music"), "body"), "mdiv"), "score")
	if doc.Score.ScoreDef != nil {
		buildScoreDef(score, doc.Score.ScoreDef)
	}
	section := elem(score, "section")
	if doc.Score.Section != nil {
		for _, c := range doc.Score.Section.Children {
			switch c := c.(type) {
			case *Measure:
				buildMeasure(section, c)
			case *ScoreDef:
				buildScoreDef(section, c)
			}
		}
	}
	return root, nil
}

func buildHead(parent *xmlquery.Node, h *Head) {
	if h == nil {
		h = &Head{}
	}
	head := elem(parent, "meiHead")
	fileDesc := elem(head, "fileDesc")
	titleStmt := elem(fileDesc, "titleStmt")
	textElem(titleStmt, "title", h.Title)
	if h.Subtitle != "" {
		sub := textElem(titleStmt, "title", h.Subtitle)
		attr(sub, "type", "subordinate")
	}
	if len(h.Respons) > 0 {
		resp := elem(titleStmt, "respStmt")
		for _, r := range h.Respons {
			p := textElem(resp, "persName", r.Name)
			attr(p, "role", r.Role)
		}
	}
	pub := elem(fileDesc, "pubStmt")
	if h.Availability != "" {
		textElem(elem(pub, "availability"), "useRestrict", h.Availability)
	}

	if len(h.Applications) > 0 || h.EncodingDate != "" {
		enc := elem(head, "encodingDesc")
		appInfo := elem(enc, "appInfo")
		for _, name := range h.Applications {
			app := elem(appInfo, "application")
			attr(app, "isodate", h.EncodingDate)
			textElem(app, "name", name)
		}
	}
}

func buildScoreDef(parent *xmlquery.Node, sd *ScoreDef) {
	n := elem(parent, "scoreDef")
	common(n, &sd.Common)
	attr(n, "meter.count", sd.MeterCount)
	attr(n, "meter.unit", sd.MeterUnit)
	attr(n, "meter.sym", sd.MeterSym)
	attr(n, "keysig", sd.KeySig)
	if sd.StaffGrp == nil {
		return
	}
	grp := elem(n, "staffGrp")
	attr(grp, "symbol", sd.StaffGrp.Symbol)
	for _, def := range sd.StaffGrp.StaffDefs {
		s := elem(grp, "staffDef")
		common(s, &def.Common)
		attrInt(s, "lines", def.Lines)
		attr(s, "clef.shape", def.ClefShape)
		attrInt(s, "clef.line", def.ClefLine)
		attrInt(s, "clef.dis", def.ClefDis)
		attr(s, "clef.dis.place", def.ClefPlace)
		attr(s, "keysig", def.KeySig)
		attrInt(s, "ppq", def.PPQ)
	}
}

func buildMeasure(parent *xmlquery.Node, m *Measure) {
	n := elem(parent, "measure")
	common(n, &m.Common)
	attr(n, "metcon", m.Metcon)
	for _, st := range m.Staves {
		sn := elem(n, "staff")
		attrInt(sn, "n", st.N)
		for _, l := range st.Layers {
			ln := elem(sn, "layer")
			attrInt(ln, "n", l.N)
			for _, c := range l.Children {
				buildLayerChild(ln, c)
			}
		}
	}
	for _, c := range m.Controls {
		buildControl(n, c)
	}
}

func buildLayerChild(parent *xmlquery.Node, c LayerChild) {
	switch c := c.(type) {
	case *Note:
		buildNote(parent, c)
	case *Rest:
		n := elem(parent, "rest")
		common(n, &c.Common)
		attr(n, "dur", c.Dur)
		attrInt(n, "dots", c.Dots)
		attrInt(n, "dur.ppq", c.DurPPQ)
		attrBool(n, "cue", c.Cue)
		attr(n, "ploc", c.Ploc)
		if c.Oloc != nil {
			attr(n, "oloc", strconv.Itoa(*c.Oloc))
		}
	case *MRest:
		n := elem(parent, "mRest")
		common(n, &c.Common)
		attrInt(n, "dur.ppq", c.DurPPQ)
		attrBool(n, "cue", c.Cue)
	case *Chord:
		n := elem(parent, "chord")
		common(n, &c.Common)
		attr(n, "dur", c.Dur)
		attrInt(n, "dots", c.Dots)
		attrInt(n, "dur.ppq", c.DurPPQ)
		attr(n, "grace", c.Grace)
		attrBool(n, "cue", c.Cue)
		attr(n, "stem.dir", c.StemDir)
		for _, note := range c.Notes {
			buildNote(n, note)
		}
	}
}

func buildNote(parent *xmlquery.Node, note *Note) {
	n := elem(parent, "note")
	common(n, &note.Common)
	attr(n, "pname", note.Log.Pname)
	if note.Log.Oct != nil {
		attr(n, "oct", strconv.Itoa(*note.Log.Oct))
	}
	if note.Vis.Loc != nil {
		attr(n, "loc", strconv.Itoa(*note.Vis.Loc))
	}
	attr(n, "dur", note.Log.Dur)
	attrInt(n, "dots", note.Log.Dots)
	attrInt(n, "dur.ppq", note.Ges.DurPPQ)
	attr(n, "grace", note.Log.Grace)
	attrBool(n, "cue", note.Log.Cue)
	attr(n, "tie", note.Log.Tie)
	attr(n, "accid.ges", note.Ges.AccidGes)
	attr(n, "stem.dir", note.Vis.StemDir)
	attr(n, "artic", strings.Join(note.Anl.Artic, " "))

	for _, c := range note.Children {
		switch c := c.(type) {
		case *Accid:
			a := elem(n, "accid")
			common(a, &c.Common)
			attr(a, "accid", c.Accid)
		case *Verse:
			v := elem(n, "verse")
			common(v, &c.Common)
			for _, s := range c.Syls {
				syl := textElem(v, "syl", s.Text)
				attr(syl, "wordpos", s.Wordpos)
				attr(syl, "con", s.Con)
			}
		}
	}
}

func buildControl(parent *xmlquery.Node, c ControlEvent) {
	n := elem(parent, c.ElementName())
	a := c.Endpoints()
	common(n, c.Attrs())
	attrInt(n, "staff", a.Staff)
	attrInt(n, "layer", a.Layer)
	attr(n, "startid", ref(a.StartID))
	attr(n, "endid", ref(a.EndID))

	switch c := c.(type) {
	case *Tie:
		attr(n, "curvedir", c.Curvedir)
	case *Slur:
		attr(n, "curvedir", c.Curvedir)
	case *TupletSpan:
		attrInt(n, "num", c.Num)
		attrInt(n, "numbase", c.NumBase)
		attr(n, "bracket.visible", c.BracketVis)
		attr(n, "num.visible", c.NumVisible)
		attr(n, "num.format", c.NumFormat)
		attr(n, "bracket.place", c.BracketPlace)
		attr(n, "num.place", c.NumPlace)
	case *Fermata:
		attr(n, "form", c.Form)
		attr(n, "shape", c.Shape)
	case *Dynam:
		xmlquery.AddChild(n, &xmlquery.Node{Type: xmlquery.TextNode, Data: c.Text})
	case *Mordent:
		attr(n, "form", c.Form)
	case *Turn:
		attr(n, "form", c.Form)
	case *Hairpin:
		attr(n, "form", c.Form)
		attrBool(n, "niente", c.Niente)
		attr(n, "place", c.Place)
	case *Dir:
		attr(n, "place", c.Place)
		xmlquery.AddChild(n, &xmlquery.Node{Type: xmlquery.TextNode, Data: c.Text})
	case *Tempo:
		attr(n, "func", c.Func)
		attr(n, "mm", c.MM)
		attr(n, "mm.unit", c.MMUnit)
		attrInt(n, "mm.dots", c.MMDots)
		attr(n, "place", c.Place)
		if c.Text != "" {
			xmlquery.AddChild(n, &xmlquery.Node{Type: xmlquery.TextNode, Data: c.Text})
		}
	}
}

func ref(id string) string {
	if id == "" {
		return ""
	}
	return "#" + id
}

func elem(parent *xmlquery.Node, name string) *xmlquery.Node {
	n := &xmlquery.Node{Type: xmlquery.ElementNode, Data: name}
	xmlquery.AddChild(parent, n)
	return n
}

func textElem(parent *xmlquery.Node, name, text string) *xmlquery.Node {
	n := elem(parent, name)
	if text != "" {
		xmlquery.AddChild(n, &xmlquery.Node{Type: xmlquery.TextNode, Data: text})
	}
	return n
}

func common(n *xmlquery.Node, c *Common) {
	attr(n, "xml:id", c.ID)
	attr(n, "n", c.N)
	attr(n, "label", c.Label)
}

// attr skips empty values; MEI omits unset attributes.
func attr(n *xmlquery.Node, key, val string) {
	if val != "" {
		xmlquery.AddAttr(n, key, val)
	}
}

func attrInt(n *xmlquery.Node, key string, val int) {
	if val != 0 {
		xmlquery.AddAttr(n, key, strconv.Itoa(val))
	}
}

func attrBool(n *xmlquery.Node, key string, val bool) {
	if val {
		xmlquery.AddAttr(n, key, "true")
	}
}
