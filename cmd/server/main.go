// Package main is the entry point for the score2mei API server
package main

import (
	"flag"
	"os"

	"github.com/joho/godotenv"

	"github.com/james-see/score2mei/internal/config"
	"github.com/james-see/score2mei/internal/logging"
	"github.com/james-see/score2mei/pkg/api"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()
	cfg := config.Load()

	port := flag.String("port", cfg.Port, "Server port")
	flag.Parse()
	cfg.Port = *port

	logging.InitLogger(logging.ParseLevel(cfg.LogLevel), logging.ParseFormat(cfg.LogFormat))

	if err := api.StartServer(cfg); err != nil {
		logging.Error("server error", "error", err)
		os.Exit(1)
	}
}
