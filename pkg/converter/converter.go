package converter

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/james-see/score2mei/pkg/musicxml"
)

// Format represents a file format
type Format string

const (
	FormatMusicXML Format = "musicxml"
	FormatMXL      Format = "mxl"
	FormatMEI      Format = "mei"
	FormatMIDI     Format = "midi"
	FormatUnknown  Format = "unknown"
)

// IsSource reports whether f can be read as a score.
func (f Format) IsSource() bool {
	return f == FormatMusicXML || f == FormatMXL
}

// DetectFormat detects the format of a file based on extension
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".musicxml", ".xml":
		return FormatMusicXML
	case ".mxl":
		return FormatMXL
	case ".mei":
		return FormatMEI
	case ".mid", ".midi":
		return FormatMIDI
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent detects format from file content
func DetectFormatFromContent(data []byte) Format {
	if len(data) < 4 {
		return FormatUnknown
	}

	if musicxml.IsMXL(data) {
		return FormatMXL
	}

	// Check for MIDI file signature "MThd"
	if string(data[:4]) == "MThd" {
		return FormatMIDI
	}

	head := data
	if len(head) > 4096 {
		head = head[:4096]
	}
	switch {
	case bytes.Contains(head, []byte("<score-partwise")), bytes.Contains(head, []byte("<score-timewise")):
		return FormatMusicXML
	case bytes.Contains(head, []byte("<mei")):
		return FormatMEI
	default:
		return FormatUnknown
	}
}

// Parse reads a MusicXML or .mxl document. name is only used in errors.
func (c *Converter) Parse(data []byte, name string) (*musicxml.Score, error) {
	format := DetectFormatFromContent(data)
	if !format.IsSource() {
		return nil, &UnsupportedError{From: format, To: FormatMEI}
	}
	score, err := musicxml.ParseBytes(data)
	if err != nil {
		return nil, &ParseError{Format: string(format), Path: name, Err: err}
	}
	return score, nil
}

// Convert parses data and renders it as target with a fresh context.
func (c *Converter) Convert(data []byte, target Format) (*Result, error) {
	return c.ConvertWithContext(c.NewContext(), data, "", target)
}

// ConvertWithContext is Convert with a caller-owned context; batches share
// one so generated ids never repeat across documents.
func (c *Converter) ConvertWithContext(ctx *ConversionContext, data []byte, name string, target Format) (*Result, error) {
	renderer, ok := c.renderers[target]
	if !ok {
		return nil, &UnsupportedError{From: DetectFormatFromContent(data), To: target}
	}

	score, err := c.Parse(data, name)
	if err != nil {
		return nil, err
	}

	doc, warnings, err := ConvertWithContext(score, ctx)
	if err != nil {
		return nil, err
	}

	out, err := renderer.Render(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", renderer.Name(), err)
	}

	c.logger.Debug("converted score",
		"input", name,
		"format", string(target),
		"measures", len(doc.Measures()),
		"warnings", len(warnings),
	)
	return &Result{
		Input:    name,
		Format:   target,
		Warnings: warnings,
		Data:     out,
		Document: doc,
	}, nil
}

// ConvertFile converts a file from one format to another
func (c *Converter) ConvertFile(inputPath, outputPath string) (*Result, error) {
	return c.convertFile(c.NewContext(), inputPath, outputPath)
}

func (c *Converter) convertFile(ctx *ConversionContext, inputPath, outputPath string) (*Result, error) {
	outputFormat := DetectFormat(outputPath)
	if outputFormat == FormatUnknown {
		return nil, errors.New("cannot determine output format from filename")
	}

	// Read input
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}

	result, err := c.ConvertWithContext(ctx, data, inputPath, outputFormat)
	if err != nil {
		return nil, fmt.Errorf("conversion failed: %w", err)
	}

	// Write output
	if err := os.WriteFile(outputPath, result.Data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write output file: %w", err)
	}
	result.Output = outputPath

	for _, w := range result.Warnings {
		c.logger.Warn("conversion warning", "input", inputPath, "location", w.Location, "message", w.Message)
	}
	c.logger.Info("wrote output", "input", inputPath, "output", outputPath, "warnings", len(result.Warnings))
	return result, nil
}

// ConvertFiles converts every input into outputDir as target, sharing one
// context so ids stay unique across the batch. It stops at the first error.
func (c *Converter) ConvertFiles(inputs []string, outputDir string, target Format) ([]*Result, error) {
	ext, ok := extensions[target]
	if !ok {
		return nil, &UnsupportedError{From: FormatMusicXML, To: target}
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	ctx := c.NewContext()
	results := make([]*Result, 0, len(inputs))
	for _, in := range inputs {
		out := filepath.Join(outputDir, OutputName(in, ext))
		res, err := c.convertFile(ctx, in, out)
		if err != nil {
			return results, fmt.Errorf("%s: %w", in, err)
		}
		results = append(results, res)
	}
	return results, nil
}

var extensions = map[Format]string{
	FormatMEI:  ".mei",
	FormatMIDI: ".mid",
}

// Extension returns the file extension written for a target format.
func Extension(f Format) string {
	return extensions[f]
}

// OutputName replaces the extension of input with ext.
func OutputName(input, ext string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ext
}

// GetSupportedConversions returns a list of supported conversion paths
func GetSupportedConversions() []string {
	return []string{
		"musicxml -> mei",
		"musicxml -> midi",
		"mxl -> mei",
		"mxl -> midi",
	}
}
