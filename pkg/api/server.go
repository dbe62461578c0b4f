// Package api provides the REST API server for score2mei
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/james-see/score2mei/internal/config"
	"github.com/james-see/score2mei/internal/logging"
	"github.com/james-see/score2mei/pkg/converter"
)

// @title score2mei API
// @version 1.0
// @description API for converting MusicXML scores to MEI and MIDI
// @host localhost:8080
// @BasePath /api/v1

// WarningsHeader carries the number of conversion warnings on file responses.
const WarningsHeader = "X-Conversion-Warnings"

// StartServer starts the API server on the configured port
func StartServer(cfg *config.Config) error {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := NewRouter(cfg)
	logging.Info("starting API server", "port", cfg.Port, "swagger", fmt.Sprintf("http://localhost:%s/swagger/index.html", cfg.Port))
	return r.Run(":" + cfg.Port)
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(cfg *config.Config) *gin.Engine {
	h := &handlers{cfg: cfg}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestTracking())

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/formats", listFormats)
		v1.POST("/convert/musicxml2mei", h.handleMusicXMLToMEI)
		v1.POST("/convert/musicxml2midi", h.handleMusicXMLToMIDI)
		v1.POST("/inspect", h.handleInspect)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// requestTracking tags every request with an id and logs its outcome.
func requestTracking() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), requestID))

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		logger := logging.LoggerFromContext(c.Request.Context())
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request failed", args...)
		case status >= http.StatusBadRequest:
			logger.Warn("request rejected", args...)
		default:
			logger.Info("request completed", args...)
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID, "+WarningsHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "score2mei",
	})
}

// listFormats godoc
// @Summary List supported formats
// @Description Returns the accepted input formats and the available conversions
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/formats [get]
func listFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"inputs":      []string{string(converter.FormatMusicXML), string(converter.FormatMXL)},
		"outputs":     []string{string(converter.FormatMEI), string(converter.FormatMIDI)},
		"conversions": converter.GetSupportedConversions(),
	})
}

type handlers struct {
	cfg *config.Config
}

// InspectResponse reports what a conversion would produce without the output.
type InspectResponse struct {
	Filename string                        `json:"filename"`
	Title    string                        `json:"title"`
	Measures int                           `json:"measures"`
	Controls int                           `json:"controls"`
	Warnings []converter.ConversionWarning `json:"warnings"`
}

// handleMusicXMLToMEI godoc
// @Summary Convert MusicXML to MEI
// @Description Upload a .musicxml, .xml or .mxl file and receive an MEI document
// @Tags convert
// @Accept multipart/form-data
// @Produce application/xml
// @Param file formData file true "MusicXML file to convert"
// @Param id_prefix query string false "Prefix for generated xml:id values"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/convert/musicxml2mei [post]
func (h *handlers) handleMusicXMLToMEI(c *gin.Context) {
	h.handleConversion(c, converter.FormatMEI)
}

// handleMusicXMLToMIDI godoc
// @Summary Convert MusicXML to MIDI
// @Description Upload a .musicxml, .xml or .mxl file and receive a Standard MIDI File
// @Tags convert
// @Accept multipart/form-data
// @Produce audio/midi
// @Param file formData file true "MusicXML file to convert"
// @Param tempo query number false "Initial tempo in beats per minute, overridden by metronome marks"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/convert/musicxml2midi [post]
func (h *handlers) handleMusicXMLToMIDI(c *gin.Context) {
	h.handleConversion(c, converter.FormatMIDI)
}

// handleInspect godoc
// @Summary Inspect a MusicXML conversion
// @Description Converts to MEI and returns the warnings and a summary as JSON
// @Tags convert
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "MusicXML file to inspect"
// @Success 200 {object} InspectResponse
// @Failure 400 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/inspect [post]
func (h *handlers) handleInspect(c *gin.Context) {
	name, result, ok := h.convert(c, converter.FormatMEI)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, InspectResponse{
		Filename: name,
		Title:    result.Document.Head.Title,
		Measures: len(result.Document.Measures()),
		Controls: len(result.Document.Controls()),
		Warnings: nonNil(result.Warnings),
	})
}

func (h *handlers) handleConversion(c *gin.Context, target converter.Format) {
	name, result, ok := h.convert(c, target)
	if !ok {
		return
	}

	// Generate output filename
	outputName := converter.OutputName(name, converter.Extension(target))

	contentType := "application/octet-stream"
	switch target {
	case converter.FormatMEI:
		contentType = "application/mei+xml"
	case converter.FormatMIDI:
		contentType = "audio/midi"
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", outputName))
	c.Header(WarningsHeader, strconv.Itoa(len(result.Warnings)))
	c.Data(http.StatusOK, contentType, result.Data)
}

// convert reads the uploaded file and runs it through a per-request
// converter. On failure it has already written the error response.
func (h *handlers) convert(c *gin.Context, target converter.Format) (string, *converter.Result, bool) {
	if c.Request.Body != nil && h.cfg.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadBytes)
	}

	// Get uploaded file
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		if tooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return "", nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return "", nil, false
	}
	defer func() { _ = file.Close() }()

	// Read file content
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return "", nil, false
	}

	midi := converter.NewMIDIRenderer()
	midi.SetTempo(h.cfg.MIDITempo)
	if t := c.Query("tempo"); t != "" {
		bpm, err := strconv.ParseFloat(t, 64)
		if err != nil || bpm <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tempo"})
			return "", nil, false
		}
		midi.SetTempo(bpm)
	}

	conv := converter.New(converter.NewMEIRenderer(), midi)
	conv.SetIDPrefix(h.cfg.IDPrefix)
	conv.SetIDPrefix(c.Query("id_prefix"))
	conv.SetLogger(logging.LoggerFromContext(c.Request.Context()))

	result, err := conv.ConvertWithContext(conv.NewContext(), data, header.Filename, target)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return "", nil, false
	}
	return header.Filename, result, true
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

func statusFor(err error) int {
	var parseErr *converter.ParseError
	switch {
	case errors.Is(err, converter.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, converter.ErrNoPlayableContent), errors.Is(err, converter.ErrInvalidScore):
		return http.StatusUnprocessableEntity
	case errors.As(err, &parseErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func nonNil(w []converter.ConversionWarning) []converter.ConversionWarning {
	if w == nil {
		return []converter.ConversionWarning{}
	}
	return w
}
