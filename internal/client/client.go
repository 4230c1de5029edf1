// Package client implements the receive role: it dials a sender, streams
// the offered file to the configured destination and records the outcome.
package client

import (
	"context"
	"log/slog"
	"os"
	"time"

	"filecourier/internal/config"
	"filecourier/internal/console"
	"filecourier/internal/history"
	"filecourier/internal/logging"
	"filecourier/internal/network"
	"filecourier/internal/transfer"
)

// Run executes one receive session against the configured sender. The
// retry controller owns dialing and resume; exactly one ledger record
// describes the terminal outcome.
func Run(ctx context.Context, cfg *config.Config, ledger *history.Ledger) error {
	logging.LogSessionStart("receive", cfg.ServerAddress, "", 0)
	start := time.Now()

	reporter := console.NewReporter("incoming", cfg.ShowProgress)

	controller := &transfer.Controller{
		Engine: transfer.NewEngine(),
		Dialer: &network.Dialer{Address: cfg.ServerAddress, Timeout: cfg.Timeout},
		Policy: transfer.RetryPolicy{MaxAttempts: cfg.Retries, Delay: cfg.RetryDelay},
		Ledger: ledger,
	}

	result, err := controller.Receive(ctx, cfg.OutputPath, reporter.Progress)
	reporter.Stop()

	name := result.Header.Name
	if name == "" {
		name = "unknown"
	}

	if records := ledger.Records(); len(records) > 0 {
		console.PrintStatus(os.Stdout, name, records[len(records)-1].Status)
	}

	duration := time.Since(start)
	if err != nil {
		logging.LogError(err, "receive file")
		logging.LogSessionEnd(false, result.Received, duration)
		return err
	}

	slog.Info("File received", "file", name, "path", result.Path, "bytes", result.Received)
	logging.LogTransferComplete(name, result.Received, duration)
	logging.LogSessionEnd(true, result.Received, duration)
	return nil
}
