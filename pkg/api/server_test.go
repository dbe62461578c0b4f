package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/antchfx/xmlquery"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-see/score2mei/internal/config"
	"github.com/james-see/score2mei/internal/logging"
)

const slurredScore = `<?xml version="1.0" encoding="UTF-8"?>
<score-partwise version="4.0">
  <work><work-title>Pair</work-title></work>
  <part-list><score-part id="P1"><part-name>Flute</part-name></score-part></part-list>
  <part id="P1">
    <measure number="1">
      <attributes><divisions>1</divisions><time><beats>2</beats><beat-type>4</beat-type></time></attributes>
      <note><pitch><step>C</step><octave>4</octave></pitch><duration>1</duration><voice>1</voice><type>quarter</type><notations><slur type="start"/></notations></note>
      <note><pitch><step>D</step><octave>4</octave></pitch><duration>1</duration><voice>1</voice><type>quarter</type><notations><slur type="stop"/><slur type="stop" number="9"/></notations></note>
    </measure>
  </part>
</score-partwise>`

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logging.InitLoggerTo(&bytes.Buffer{}, logging.LevelError, logging.FormatText)
	cfg := &config.Config{
		Port:           "0",
		IDPrefix:       "api",
		MaxUploadBytes: 1 << 20,
		MIDITempo:      120,
	}
	return NewRouter(cfg)
}

func uploadRequest(t *testing.T, path, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, path, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	router := setupTestRouter(t)

	for _, path := range []string{"/health", "/api/v1/health"} {
		req, err := http.NewRequest(http.MethodGet, path, nil)
		require.NoError(t, err)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp["status"])
		assert.Equal(t, "score2mei", resp["service"])
	}
}

func TestRequestIDPassthrough(t *testing.T) {
	router := setupTestRouter(t)
	req, err := http.NewRequest(http.MethodGet, "/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "abc-123")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestListFormats(t *testing.T) {
	router := setupTestRouter(t)
	req, err := http.NewRequest(http.MethodGet, "/api/v1/formats", nil)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string][]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"musicxml", "mxl"}, resp["inputs"])
	assert.Equal(t, []string{"mei", "midi"}, resp["outputs"])
	assert.Contains(t, resp["conversions"], "musicxml -> mei")
}

func TestConvertToMEI(t *testing.T) {
	router := setupTestRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "/api/v1/convert/musicxml2mei", "pair.musicxml", []byte(slurredScore)))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/mei+xml", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="pair.mei"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "1", w.Header().Get(WarningsHeader))

	doc, err := xmlquery.Parse(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "Pair", xmlquery.FindOne(doc, "//titleStmt/title").InnerText())
	slur := xmlquery.FindOne(doc, "//slur")
	require.NotNil(t, slur)
	assert.Equal(t, "#api-note-1", slur.SelectAttr("startid"))
}

func TestConvertToMEIWithPrefix(t *testing.T) {
	router := setupTestRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "/api/v1/convert/musicxml2mei?id_prefix=req", "pair.xml", []byte(slurredScore)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `xml:id="req-note-1"`)
}

func TestConvertToMIDI(t *testing.T) {
	router := setupTestRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "/api/v1/convert/musicxml2midi?tempo=90", "pair.musicxml", []byte(slurredScore)))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "audio/midi", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="pair.mid"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "MThd", string(w.Body.Bytes()[:4]))
}

func TestConvertRejectsBadTempo(t *testing.T) {
	router := setupTestRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "/api/v1/convert/musicxml2midi?tempo=fast", "pair.musicxml", []byte(slurredScore)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInspect(t *testing.T) {
	router := setupTestRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "/api/v1/inspect", "pair.musicxml", []byte(slurredScore)))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp InspectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "pair.musicxml", resp.Filename)
	assert.Equal(t, "Pair", resp.Title)
	assert.Equal(t, 1, resp.Measures)
	assert.Equal(t, 1, resp.Controls)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0].Message, "slur stop without matching start")
}

func TestConvertErrors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		status   int
	}{
		{"not a score", "notes.txt", "just some text here", http.StatusUnsupportedMediaType},
		{"midi input", "song.mid", "MThd\x00\x00\x00\x06", http.StatusUnsupportedMediaType},
		{"malformed XML", "bad.musicxml", "<score-partwise><part-list></score-partwise>", http.StatusBadRequest},
		{"empty score", "empty.musicxml", `<score-partwise><part-list><score-part id="P1"/></part-list><part id="P1"><measure number="1"/></part></score-partwise>`, http.StatusUnprocessableEntity},
	}

	router := setupTestRouter(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, uploadRequest(t, "/api/v1/convert/musicxml2mei", tt.filename, []byte(tt.content)))
			assert.Equal(t, tt.status, w.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestConvertWithoutFile(t *testing.T) {
	router := setupTestRouter(t)
	req, err := http.NewRequest(http.MethodPost, "/api/v1/convert/musicxml2mei", nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConvertTooLarge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(&config.Config{IDPrefix: "api", MaxUploadBytes: 64, MIDITempo: 120})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "/api/v1/convert/musicxml2mei", "pair.musicxml", []byte(slurredScore)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	router := setupTestRouter(t)
	req, err := http.NewRequest(http.MethodOptions, "/api/v1/convert/musicxml2mei", nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
