// Package converter converts MusicXML scores into MEI documents, resolving
// ties, slurs, tuplets and chords into id-referenced MEI structures, and
// renders the result as MEI XML or MIDI.
package converter

import (
	"log/slog"

	"github.com/james-see/score2mei/internal/logging"
	"github.com/james-see/score2mei/pkg/mei"
)

// Result holds the result of a conversion
type Result struct {
	Input    string              `json:"input,omitempty"`
	Output   string              `json:"output,omitempty"`
	Format   Format              `json:"format"`
	Warnings []ConversionWarning `json:"warnings"`

	Data     []byte        `json:"-"`
	Document *mei.Document `json:"-"`
}

// Renderer serializes a converted document into one output format
type Renderer interface {
	Name() string
	Format() Format
	Render(doc *mei.Document) ([]byte, error)
}

// Converter handles file and byte level conversions
type Converter struct {
	idPrefix  string
	renderers map[Format]Renderer
	logger    *slog.Logger
}

// New creates a Converter. With no renderers it renders MEI and MIDI.
func New(renderers ...Renderer) *Converter {
	if len(renderers) == 0 {
		renderers = []Renderer{NewMEIRenderer(), NewMIDIRenderer()}
	}
	c := &Converter{
		idPrefix:  DefaultIDPrefix,
		renderers: make(map[Format]Renderer, len(renderers)),
		logger:    logging.GetLogger(),
	}
	for _, r := range renderers {
		c.SetRenderer(r)
	}
	return c
}

// GetRenderer returns the renderer registered for a format
func (c *Converter) GetRenderer(f Format) (Renderer, bool) {
	r, ok := c.renderers[f]
	return r, ok
}

// SetRenderer registers r for its format, replacing any previous one
func (c *Converter) SetRenderer(r Renderer) {
	c.renderers[r.Format()] = r
}

// IDPrefix returns the prefix used for generated ids
func (c *Converter) IDPrefix() string {
	return c.idPrefix
}

// SetIDPrefix sets the prefix used for generated ids
func (c *Converter) SetIDPrefix(prefix string) {
	if prefix != "" {
		c.idPrefix = prefix
	}
}

// SetLogger replaces the logger used for conversion summaries
func (c *Converter) SetLogger(l *slog.Logger) {
	if l != nil {
		c.logger = l
	}
}

// NewContext returns a conversion context configured like this converter.
func (c *Converter) NewContext() *ConversionContext {
	return NewConversionContext(WithIDPrefix(c.idPrefix))
}

// MEIRenderer renders MEI XML
type MEIRenderer struct{}

func NewMEIRenderer() *MEIRenderer { return &MEIRenderer{} }

func (*MEIRenderer) Name() string   { return "MEI" }
func (*MEIRenderer) Format() Format { return FormatMEI }

func (*MEIRenderer) Render(doc *mei.Document) ([]byte, error) {
	return mei.Marshal(doc)
}
