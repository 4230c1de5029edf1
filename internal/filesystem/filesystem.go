package filesystem

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filecourier/internal/config"
	"filecourier/internal/errors"
)

// Auto-generated destination names follow the original receiver convention:
// a fixed prefix plus a second-resolution timestamp, extension appended once
// the sender has declared one.
const (
	ReceiveNamePrefix = "received_file_"
	TimestampLayout   = "20060102_150405"
)

// FileInfo represents information about a file to be transferred
type FileInfo struct {
	Name     string
	Size     int64
	Path     string
	IsDir    bool
	Modified time.Time
}

// ValidateFilePath checks if a file path is safe and valid
func ValidateFilePath(path string) error {
	// Clean the path to prevent directory traversal
	cleanPath := filepath.Clean(path)

	// Check for directory traversal attempts
	if strings.Contains(cleanPath, "..") {
		return errors.NewValidationError("file_path", path, "path contains directory traversal")
	}

	if filepath.IsAbs(cleanPath) && strings.Contains(path, ":") {
		// Allow absolute paths but log them
		slog.Warn("Absolute path detected", "path", path)
	}

	return nil
}

// GetFileInfo returns information about a file
func GetFileInfo(path string) (*FileInfo, error) {
	if err := ValidateFilePath(path); err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, errors.NewFileSystemError("stat", path, err)
	}

	return &FileInfo{
		Name:     stat.Name(),
		Size:     stat.Size(),
		Path:     path,
		IsDir:    stat.IsDir(),
		Modified: stat.ModTime(),
	}, nil
}

// ResolveDestination turns the user-chosen output path into the concrete
// file path for an incoming transfer. A directory output gets an
// auto-generated file name; a path without an extension gets the
// sender-declared one appended.
func ResolveDestination(outputPath, extension string, now time.Time) (string, error) {
	if err := ValidateFilePath(outputPath); err != nil {
		return "", err
	}

	path := outputPath
	if stat, err := os.Stat(outputPath); err == nil && stat.IsDir() {
		path = filepath.Join(outputPath, ReceiveNamePrefix+now.Format(TimestampLayout))
	}

	if filepath.Ext(path) == "" {
		path += extension
	}

	return path, nil
}

// OpenDestination opens the destination file for writing, creating parent
// directories as needed. A resumed attempt appends to whatever is already
// on disk instead of truncating it.
func OpenDestination(path string, resume bool) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := EnsureDirectoryExists(dir); err != nil {
			return nil, err
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if resume {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, config.FilePerms)
	if err != nil {
		return nil, errors.NewFileSystemError("open", path, err)
	}

	return file, nil
}

// EnsureDirectoryExists creates a directory if it doesn't exist
func EnsureDirectoryExists(dir string) error {
	if err := ValidateFilePath(dir); err != nil {
		return err
	}

	if err := os.MkdirAll(dir, config.DirPerms); err != nil {
		return errors.NewFileSystemError("mkdir", dir, err)
	}

	return nil
}
