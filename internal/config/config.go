package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Constants for default values
const (
	DefaultRetries    = 3
	DefaultRetryDelay = 2 * time.Second
	DefaultTimeout    = 2 * time.Minute
	DefaultListenAddr = "0.0.0.0:12345"
	DefaultServerAddr = "localhost:12345"
	DefaultOutputPath = "."
	DefaultLogDir     = "logs"

	// Network constants
	TCPBufferSize = 1024 * 1024 // 1MB

	// File system constants
	DirPerms  = 0755
	FilePerms = 0644

	// EnvPrefix namespaces the environment variables that seed flag defaults
	EnvPrefix = "FILECOURIER_"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Serve mode settings
	IsServer      bool
	ListenAddress string
	FilePath      string
	WatchDir      string

	// Receive mode settings
	ServerAddress string
	OutputPath    string

	// Common parameters
	Retries      int
	RetryDelay   time.Duration
	Timeout      time.Duration
	ShowProgress bool
	LogDir       string
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Retries <= 0 {
		return fmt.Errorf("retries must be positive")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if c.IsServer {
		if c.ListenAddress == "" {
			return fmt.Errorf("listen address is required in server mode")
		}
	} else {
		if c.ServerAddress == "" {
			return fmt.Errorf("server address is required in receive mode")
		}
		if c.OutputPath == "" {
			return fmt.Errorf("output path is required in receive mode")
		}
	}

	return nil
}

// ParseFlags parses command line arguments and returns a Config. Defaults
// are layered: built-in values, then FILECOURIER_* environment variables
// (including a .env file when present), then explicit flags.
func ParseFlags() (*Config, error) {
	LoadEnv()

	// Serve mode flags
	isServer := flag.Bool("server", false, "Run in server mode (serve a file to connecting receivers)")
	listenAddr := flag.String("listen", envOr("LISTEN", DefaultListenAddr), "Address to listen on (server mode)")
	filePath := flag.String("file", envOr("FILE", ""), "File to serve (server mode)")
	watchDir := flag.String("watch", envOr("WATCH", ""), "Directory to watch; new files become the served file (server mode)")

	// Receive mode flags
	serverAddr := flag.String("connect", envOr("CONNECT", DefaultServerAddr), "Server address to connect to (receive mode)")
	outputPath := flag.String("output", envOr("OUTPUT", DefaultOutputPath), "Destination file or directory (receive mode)")

	// Common flags
	retries := flag.Int("retries", envOrInt("RETRIES", DefaultRetries), "Maximum transfer attempts per call")
	retryDelay := flag.Duration("retry-delay", envOrDuration("RETRY_DELAY", DefaultRetryDelay), "Fixed wait between attempts")
	timeout := flag.Duration("timeout", envOrDuration("TIMEOUT", DefaultTimeout), "Dial timeout")
	showProgress := flag.Bool("progress", envOrBool("PROGRESS", true), "Show progress during transfer")
	logDir := flag.String("log-dir", envOr("LOG_DIR", DefaultLogDir), "Directory for log files")

	flag.Parse()

	config := &Config{
		IsServer:      *isServer,
		ListenAddress: *listenAddr,
		FilePath:      *filePath,
		WatchDir:      *watchDir,
		ServerAddress: *serverAddr,
		OutputPath:    *outputPath,
		Retries:       *retries,
		RetryDelay:    *retryDelay,
		Timeout:       *timeout,
		ShowProgress:  *showProgress,
		LogDir:        *logDir,
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadEnv loads a .env file from the working directory when one exists.
// Values already present in the process environment take precedence.
func LoadEnv() {
	_ = godotenv.Load()
}

// String returns a string representation of the config for logging
func (c *Config) String() string {
	if c.IsServer {
		return fmt.Sprintf("Config{Mode: Serve, Listen: %s, File: %s, Retries: %d, RetryDelay: %v}",
			c.ListenAddress, c.FilePath, c.Retries, c.RetryDelay)
	}
	return fmt.Sprintf("Config{Mode: Receive, Connect: %s, Output: %s, Retries: %d, RetryDelay: %v}",
		c.ServerAddress, c.OutputPath, c.Retries, c.RetryDelay)
}

// Environment helpers

func envOr(key, fallback string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envOrBool(key string, fallback bool) bool {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
