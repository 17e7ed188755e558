package main

import (
	"fmt"
	"os"

	"github.com/dentascan/dentascan-go/cmd"
	"github.com/dentascan/dentascan-go/internal/conf"
	"github.com/dentascan/dentascan-go/internal/logging"
)

func main() {
	logging.Init()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	settings, err := conf.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if settings.Main.Log.Enabled {
		closeLog, err := logging.SetFileOutput(settings.LogPath())
		if err != nil {
			return fmt.Errorf("opening application log: %w", err)
		}
		defer func() {
			_ = closeLog()
		}()
	}

	return cmd.RootCommand(settings).Execute()
}
