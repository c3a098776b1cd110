package main

import (
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gotrader/schwab/cmd"
)

// main loads an optional .env file, sets up logging based on the DEBUG_SCHWAB
// environment variable, starts a goroutine to listen for interrupt signals,
// and executes the root command.
func main() {
	// The SCHWAB_* variables can live in a .env file next to the binary.
	_ = godotenv.Load()

	configureLogLevelFromEnv()

	stopChan := setupInterruptListener()
	go handleInterrupt(stopChan,
		func(msg string) { log.Error().Msg(msg) },
		os.Exit,
	)

	cmd.Execute()
}

// configureLogLevelFromEnv enables debug logging when DEBUG_SCHWAB is set to
// anything but "false" or "0", and disables logging otherwise.
func configureLogLevelFromEnv() {
	switch os.Getenv("DEBUG_SCHWAB") {
	case "", "false", "0":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	default:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// setupInterruptListener registers a channel for interrupt signals.
func setupInterruptListener() chan os.Signal {
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt)
	return stopChan
}

// handleInterrupt blocks until a signal arrives, then logs and exits through
// the provided functions.
func handleInterrupt(stopChan chan os.Signal, logFatal func(string), exit func(int)) {
	<-stopChan
	logFatal("Interrupt signal received. Exiting...")
	exit(1)
}
