package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"filecourier/internal/config"
	"filecourier/internal/errors"
	"filecourier/internal/filesystem"
)

// SetupLogger initializes structured logging with console output and a
// size-rotated log file.
func SetupLogger(logDir string) error {
	if err := filesystem.EnsureDirectoryExists(logDir); err != nil {
		return err
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "filecourier.log"),
		MaxSize:    10, // MB
		MaxBackups: 3,
		Compress:   false,
	}

	// Create multi-writer to log to both console and file
	multiWriter := io.MultiWriter(os.Stdout, rotator)

	// Create structured logger without source file/line information
	opts := &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: false,
	}

	// Use text handler for better console readability
	handler := slog.NewTextHandler(multiWriter, opts)
	logger := slog.New(handler)

	// Set as default logger
	slog.SetDefault(logger)

	slog.Info("Logging initialized", "log_file", rotator.Filename)
	return nil
}

// LogConfig logs the current configuration
func LogConfig(cfg *config.Config) {
	if cfg.IsServer {
		slog.Info("Configuration loaded",
			"mode", "serve",
			"listen_address", cfg.ListenAddress,
			"file", cfg.FilePath,
			"watch_dir", cfg.WatchDir,
			"retries", cfg.Retries,
			"retry_delay", cfg.RetryDelay)
	} else {
		slog.Info("Configuration loaded",
			"mode", "receive",
			"server_address", cfg.ServerAddress,
			"output", cfg.OutputPath,
			"retries", cfg.Retries,
			"retry_delay", cfg.RetryDelay)
	}
}

// LogError logs an error with appropriate context
func LogError(err error, context string) {
	switch e := err.(type) {
	case *errors.ConnectError:
		slog.Error("Connect error",
			"context", context,
			"operation", e.Op,
			"address", e.Addr,
			"error_type", "connect")
	case *errors.TransportError:
		slog.Error("Transport error",
			"context", context,
			"operation", e.Op,
			"address", e.Addr,
			"error_type", "transport")
	case *errors.MalformedHeaderError:
		slog.Error("Malformed header",
			"context", context,
			"message", e.Message,
			"error_type", "framing")
	case *errors.OversizedHeaderError:
		slog.Error("Oversized header",
			"context", context,
			"limit_bytes", e.Limit,
			"error_type", "framing")
	case *errors.PrematureCloseError:
		slog.Error("Premature close",
			"context", context,
			"received_bytes", e.Received,
			"total_bytes", e.Total,
			"error_type", "transport")
	case *errors.FileSystemError:
		slog.Error("File system error",
			"context", context,
			"operation", e.Op,
			"error_type", "filesystem")
	case *errors.ValidationError:
		slog.Error("Validation error",
			"context", context,
			"field", e.Field,
			"message", e.Message,
			"error_type", "validation")
	default:
		slog.Error("Unhandled error",
			"context", context,
			"error", err,
			"error_type", "unknown")
	}
}

// LogTransferComplete logs successful transfer completion
func LogTransferComplete(filename string, size int64, duration time.Duration) {
	rate := float64(size) / (1024 * 1024) / duration.Seconds()
	slog.Info("Transfer completed successfully",
		"file", filename,
		"total_size_mb", float64(size)/(1024*1024),
		"duration_seconds", int(duration.Seconds()),
		"average_rate_mbps", rate,
		"timestamp", time.Now().Format("15:04:05"))
}

// LogSessionStart logs the start of a transfer session
func LogSessionStart(mode, peer, filename string, size int64) {
	slog.Info("Transfer session started",
		"mode", mode,
		"peer", peer,
		"file", filename,
		"size_bytes", size,
		"session_start", time.Now().Format("15:04:05"))
}

// LogSessionEnd logs the end of a transfer session
func LogSessionEnd(success bool, totalBytes int64, duration time.Duration) {
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}

	avgRate := float64(totalBytes) / (1024 * 1024) / duration.Seconds()
	slog.Info("Transfer session ended",
		"status", status,
		"total_bytes_transferred", totalBytes,
		"session_duration_seconds", int(duration.Seconds()),
		"average_throughput_mbps", avgRate,
		"session_end", time.Now().Format("15:04:05"))
}
