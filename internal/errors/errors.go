package errors

import (
	"errors"
	"fmt"
)

// Error types for different categories of failures
var (
	ErrConnect         = errors.New("connect error")
	ErrMalformedHeader = errors.New("malformed header")
	ErrOversizedHeader = errors.New("oversized header")
	ErrTransport       = errors.New("transport error")
	ErrPrematureClose  = errors.New("premature close")
	ErrFileSystem      = errors.New("file system error")
	ErrValidation      = errors.New("validation error")
	ErrCancelled       = errors.New("operation cancelled")
)

// ConnectError represents a failure to establish a connection
type ConnectError struct {
	Op   string
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect error during %s to %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

func (e *ConnectError) Is(target error) bool {
	return target == ErrConnect
}

// MalformedHeaderError represents a header line that does not match the
// expected field layout
type MalformedHeaderError struct {
	Line    string
	Message string
}

func (e *MalformedHeaderError) Error() string {
	return fmt.Sprintf("malformed header %q: %s", e.Line, e.Message)
}

func (e *MalformedHeaderError) Is(target error) bool {
	return target == ErrMalformedHeader
}

// OversizedHeaderError represents a header that exceeded the size cap
// before a delimiter was seen
type OversizedHeaderError struct {
	Limit int
}

func (e *OversizedHeaderError) Error() string {
	return fmt.Sprintf("header exceeded %d bytes without a delimiter", e.Limit)
}

func (e *OversizedHeaderError) Is(target error) bool {
	return target == ErrOversizedHeader
}

// TransportError represents a mid-stream socket failure
type TransportError struct {
	Op   string
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("transport error during %s on %s: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// PrematureCloseError represents a peer closing the stream before the
// declared payload size was reached
type PrematureCloseError struct {
	Received int64
	Total    int64
}

func (e *PrematureCloseError) Error() string {
	return fmt.Sprintf("connection closed after %d of %d bytes", e.Received, e.Total)
}

func (e *PrematureCloseError) Is(target error) bool {
	return target == ErrPrematureClose
}

// FileSystemError represents file system-related errors
type FileSystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileSystemError) Error() string {
	return fmt.Sprintf("file system error during %s on %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileSystemError) Unwrap() error {
	return e.Err
}

func (e *FileSystemError) Is(target error) bool {
	return target == ErrFileSystem
}

// ValidationError represents validation errors
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s='%v': %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Helper functions for creating errors

func NewConnectError(op, addr string, err error) error {
	return &ConnectError{Op: op, Addr: addr, Err: err}
}

func NewMalformedHeaderError(line, message string) error {
	return &MalformedHeaderError{Line: line, Message: message}
}

func NewOversizedHeaderError(limit int) error {
	return &OversizedHeaderError{Limit: limit}
}

func NewTransportError(op, addr string, err error) error {
	return &TransportError{Op: op, Addr: addr, Err: err}
}

func NewPrematureCloseError(received, total int64) error {
	return &PrematureCloseError{Received: received, Total: total}
}

func NewFileSystemError(op, path string, err error) error {
	return &FileSystemError{Op: op, Path: path, Err: err}
}

func NewValidationError(field string, value interface{}, message string) error {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// Retryable reports whether err is worth another attempt over a fresh
// connection. Framing violations are permanent; resending the same bytes
// cannot fix a protocol mismatch.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrConnect),
		errors.Is(err, ErrTransport),
		errors.Is(err, ErrPrematureClose):
		return true
	default:
		return false
	}
}
