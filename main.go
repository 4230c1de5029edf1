/*
FileCourier is a point-to-point network file transfer utility. A sender
offers a single file over raw TCP; receivers dial in and stream it to
disk, with bounded retry and resume for interrupted transfers.

The program operates in two modes:

1. Serve Mode: offers the selected file to every receiver that connects,
optionally watching a directory and serving files as they appear

2. Receive Mode: dials a sender, saves the offered file to the configured
destination and records the outcome in the transfer history
*/
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"filecourier/internal/client"
	"filecourier/internal/config"
	"filecourier/internal/console"
	"filecourier/internal/history"
	"filecourier/internal/logging"
	"filecourier/internal/server"
)

func main() {
	// Parse command line arguments
	cfg, err := config.ParseFlags()
	if err != nil {
		slog.Error("Configuration error", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	if err := logging.SetupLogger(cfg.LogDir); err != nil {
		slog.Error("Failed to setup logging", "error", err)
		os.Exit(1)
	}

	logging.LogConfig(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	ledger := history.NewLedger()

	// Run in appropriate mode
	var runErr error
	if cfg.IsServer {
		runErr = server.Run(ctx, cfg, ledger)
	} else {
		runErr = client.Run(ctx, cfg, ledger)
	}

	// Show the transfer history accumulated over this session
	if ledger.Len() > 0 {
		console.PrintHistory(os.Stdout, ledger.Records())
	}

	if runErr != nil {
		logging.LogError(runErr, "run")
		os.Exit(1)
	}
}

// setupSignalHandling cancels the run context on OS signals so both
// modes shut down cleanly.
func setupSignalHandling(cancel context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signals
		slog.Info("Received shutdown signal", "signal", sig)
		cancel()
	}()
}
