package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/zheli/bird/internal/config"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func init() {
	// A .env alongside the binary is a convenience for local use; absence
	// is the normal case.
	_ = godotenv.Load()
}

func main() {
	cfg, err := config.Load(config.BaseDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := newCLIApp(cfg)
	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}
