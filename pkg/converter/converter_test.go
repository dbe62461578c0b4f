package converter

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/antchfx/xmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-see/score2mei/internal/logging"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		filename string
		expected Format
	}{
		{"test.musicxml", FormatMusicXML},
		{"test.XML", FormatMusicXML},
		{"test.mxl", FormatMXL},
		{"test.mei", FormatMEI},
		{"test.mid", FormatMIDI},
		{"test.midi", FormatMIDI},
		{"test.txt", FormatUnknown},
		{"test", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectFormat(tt.filename))
		})
	}
}

func TestDetectFormatFromContent(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected Format
	}{
		{"MIDI file", []byte("MThd\x00\x00\x00\x06"), FormatMIDI},
		{"zip archive", []byte("PK\x03\x04rest"), FormatMXL},
		{"partwise", []byte(`<?xml version="1.0"?><score-partwise>`), FormatMusicXML},
		{"timewise", []byte(`<score-timewise version="4.0">`), FormatMusicXML},
		{"MEI", []byte(`<?xml version="1.0"?><mei xmlns="http://www.music-encoding.org/ns/mei">`), FormatMEI},
		{"Short data", []byte{0x00, 0x01}, FormatUnknown},
		{"other XML", []byte(`<html><body/></html>`), FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectFormatFromContent(tt.data))
		})
	}
}

func TestConverterNew(t *testing.T) {
	conv := New()
	require.NotNil(t, conv)

	r, ok := conv.GetRenderer(FormatMEI)
	require.True(t, ok)
	assert.Equal(t, "MEI", r.Name())
	r, ok = conv.GetRenderer(FormatMIDI)
	require.True(t, ok)
	assert.Equal(t, "MIDI", r.Name())

	only := New(NewMEIRenderer())
	_, ok = only.GetRenderer(FormatMIDI)
	assert.False(t, ok)

	conv.SetIDPrefix("")
	assert.Equal(t, DefaultIDPrefix, conv.IDPrefix())
	conv.SetIDPrefix("doc")
	assert.Equal(t, "doc", conv.IDPrefix())
}

func newTestConverter() *Converter {
	c := New()
	c.SetLogger(logging.Discard())
	return c
}

func TestConverterConvertToMEI(t *testing.T) {
	c := newTestConverter()
	data := partwise(1,
		note("C", 4, 1, "quarter", `<notations><slur type="start"/></notations>`)+
			note("D", 4, 1, "quarter", `<notations><slur type="stop"/></notations>`),
	)

	res, err := c.Convert(data, FormatMEI)
	require.NoError(t, err)
	assert.Equal(t, FormatMEI, res.Format)
	assert.Empty(t, res.Warnings)
	require.NotNil(t, res.Document)

	doc, err := xmlquery.Parse(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Len(t, xmlquery.Find(doc, "//note"), 2)
	slur := xmlquery.FindOne(doc, "//slur")
	require.NotNil(t, slur)
	assert.Equal(t, "#conv-note-1", slur.SelectAttr("startid"))
	assert.Equal(t, "#conv-note-2", slur.SelectAttr("endid"))
}

func TestConverterConvertUnsupported(t *testing.T) {
	c := newTestConverter()

	_, err := c.Convert([]byte("MThd\x00\x00\x00\x06"), FormatMEI)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	_, err = c.Convert(partwise(1, note("C", 4, 1, "quarter", "")), FormatMusicXML)
	var unsupported *UnsupportedError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, FormatMusicXML, unsupported.To)
}

func TestConverterConvertParseError(t *testing.T) {
	c := newTestConverter()
	_, err := c.Convert([]byte(`<score-partwise><part-list></score-partwise>`), FormatMEI)
	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestConverterConvertNoContent(t *testing.T) {
	c := newTestConverter()
	data := []byte(`<score-partwise version="4.0"><part-list><score-part id="P1"/></part-list><part id="P1"><measure number="1"/></part></score-partwise>`)
	_, err := c.Convert(data, FormatMEI)
	assert.True(t, errors.Is(err, ErrNoPlayableContent))
}

func TestConverterConvertMXL(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("score.musicxml")
	require.NoError(t, err)
	_, err = w.Write(partwise(1, note("E", 5, 1, "quarter", "")))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	res, err := newTestConverter().Convert(buf.Bytes(), FormatMIDI)
	require.NoError(t, err)
	_, _, notes := readNotes(t, res.Data)
	assert.Equal(t, []sounded{{key: 76, start: 0, end: 480}}, notes)
}

func TestConverterConvertFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "song.musicxml")
	require.NoError(t, os.WriteFile(in, partwise(1, note("C", 4, 1, "quarter", `<notations><slur type="stop"/></notations>`)), 0644))

	c := newTestConverter()
	out := filepath.Join(dir, "song.mei")
	res, err := c.ConvertFile(in, out)
	require.NoError(t, err)
	assert.Equal(t, out, res.Output)
	assert.Len(t, res.Warnings, 1)
	assert.FileExists(t, out)

	_, err = c.ConvertFile(in, filepath.Join(dir, "song.txt"))
	assert.Error(t, err)
	_, err = c.ConvertFile(filepath.Join(dir, "missing.musicxml"), out)
	assert.Error(t, err)
}

func TestConverterConvertFilesSharesIDs(t *testing.T) {
	dir := t.TempDir()
	var inputs []string
	for _, name := range []string{"a.musicxml", "b.xml"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, partwise(1, note("C", 4, 1, "quarter", "")), 0644))
		inputs = append(inputs, p)
	}

	outDir := filepath.Join(dir, "out")
	results, err := newTestConverter().ConvertFiles(inputs, outDir, FormatMEI)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, filepath.Join(outDir, "a.mei"), results[0].Output)
	assert.Equal(t, filepath.Join(outDir, "b.mei"), results[1].Output)

	first := results[0].Document.IDs()
	second := results[1].Document.IDs()
	for _, id := range second {
		assert.NotContains(t, first, id)
	}

	_, err = newTestConverter().ConvertFiles(inputs, outDir, FormatMusicXML)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "song.mei", OutputName("/tmp/in/song.musicxml", Extension(FormatMEI)))
	assert.Equal(t, "song.mid", OutputName("song.mxl", Extension(FormatMIDI)))
	assert.Equal(t, "", Extension(FormatMusicXML))
}

func TestGetSupportedConversions(t *testing.T) {
	conversions := GetSupportedConversions()
	assert.Contains(t, conversions, "musicxml -> mei")
	assert.Contains(t, conversions, "mxl -> midi")
	assert.Len(t, conversions, 4)
}
