package musicxml

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/antchfx/xmlquery"
)

const containerPath = "META-INF/container.xml"

// ErrNoRootFile is returned when an .mxl archive has no score in it.
var ErrNoRootFile = errors.New("mxl archive has no root score file")

// IsMXL reports whether data starts with a zip local file header.
func IsMXL(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], []byte("PK\x03\x04"))
}

// ReadMXL extracts the root score of a compressed MusicXML archive and parses it.
func ReadMXL(data []byte) (*Score, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open mxl archive: %w", err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	name := rootFileName(files)
	if name == "" {
		return nil, ErrNoRootFile
	}
	f, ok := files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoRootFile, name)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer rc.Close()

	return Parse(rc)
}

// rootFileName reads META-INF/container.xml, falling back to the first
// score-looking file outside META-INF.
func rootFileName(files map[string]*zip.File) string {
	if c, ok := files[containerPath]; ok {
		if rc, err := c.Open(); err == nil {
			defer rc.Close()
			if name := containerRootFile(rc); name != "" {
				return name
			}
		}
	}

	var best string
	for name := range files {
		if strings.HasPrefix(name, "META-INF/") {
			continue
		}
		switch strings.ToLower(path.Ext(name)) {
		case ".xml", ".musicxml":
			if best == "" || name < best {
				best = name
			}
		}
	}
	return best
}

func containerRootFile(r io.Reader) string {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return ""
	}
	for _, rf := range xmlquery.Find(doc, "//rootfile") {
		mt := rf.SelectAttr("media-type")
		if mt == "" || strings.Contains(mt, "musicxml") {
			return rf.SelectAttr("full-path")
		}
	}
	return ""
}
