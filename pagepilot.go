package main

import (
	_ "embed"
	"fmt"
	"os"

	cli "github.com/pagepilot/pagepilot/cmd/pagepilot"
	"github.com/pagepilot/pagepilot/internal/config"

	"github.com/joho/godotenv"
)

//go:embed etc/pagepilot.yaml
var embeddedConfig []byte

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Load embedded config (defaults)
	c, err := config.LoadFromBytes(embeddedConfig)
	if err != nil {
		fmt.Printf("Failed to load embedded config: %v\n", err)
		os.Exit(1)
	}

	// Pass config to CLI and execute
	if err := cli.SetupRootCmd(&c).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
