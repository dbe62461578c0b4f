package converter

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNoPlayableContent indicates a score with no parts, measures or events.
	ErrNoPlayableContent = errors.New("no playable content")
	// ErrUnsupportedFormat indicates an input or output format the converter cannot handle.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrInvalidScore indicates a structurally malformed source tree.
	ErrInvalidScore = errors.New("invalid score")
)

// StructuralError is a fatal problem with the shape of the source document.
// Conversion stops and no partial document is returned.
type StructuralError struct {
	Part    string // part id, if the problem is local to one part
	Message string
	Err     error
}

func (e *StructuralError) Error() string {
	if e.Part != "" {
		return fmt.Sprintf("invalid score structure in part %s: %s", e.Part, e.Message)
	}
	return fmt.Sprintf("invalid score structure: %s", e.Message)
}

func (e *StructuralError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidScore
}

// ParseError wraps a failure to read the source document.
type ParseError struct {
	Format string
	Path   string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %v", e.Format, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to parse %s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// UnsupportedError names a conversion the converter does not offer.
type UnsupportedError struct {
	From Format
	To   Format
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported conversion: %s to %s", e.From, e.To)
}

func (e *UnsupportedError) Unwrap() error {
	return ErrUnsupportedFormat
}
