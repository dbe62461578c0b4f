package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds the runtime configuration shared by the CLI and the API server.
// Values come from the environment; flags on the CLI override them.
type Config struct {
	Environment string
	Port        string

	// Logging
	LogLevel  string // debug, info, warn, error
	LogFormat string // json or text

	// Conversion
	IDPrefix       string // prefix for generated xml:id values
	MaxUploadBytes int64  // request body limit for the API
	MIDITempo      float64
}

func Load() *Config {
	return &Config{
		Environment:    getEnv("SCORE2MEI_ENV", "development"),
		Port:           getEnv("SCORE2MEI_PORT", getEnv("PORT", "8080")),
		LogLevel:       strings.ToLower(getEnv("SCORE2MEI_LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getEnv("SCORE2MEI_LOG_FORMAT", "text")),
		IDPrefix:       getEnv("SCORE2MEI_ID_PREFIX", "conv"),
		MaxUploadBytes: getEnvInt64("SCORE2MEI_MAX_UPLOAD_MB", 32) << 20,
		MIDITempo:      getEnvFloat("SCORE2MEI_MIDI_TEMPO", 120),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}

// IsProduction reports whether the server should run gin in release mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
