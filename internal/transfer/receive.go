package transfer

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"filecourier/internal/errors"
	"filecourier/internal/filesystem"
	"filecourier/internal/protocol"
)

// ReceiveOptions selects the destination and carries resume state between
// retry attempts.
type ReceiveOptions struct {
	// OutputPath is the destination file or directory chosen by the user.
	OutputPath string

	// Resolved pins the concrete destination path chosen by an earlier
	// attempt so a resumed transfer appends to the same file.
	Resolved string

	// Offset is the number of payload bytes already written to Resolved.
	Offset int64

	// Expect holds the header announced on the first attempt. A resumed
	// stream announcing a different file aborts instead of appending
	// mismatched bytes.
	Expect *protocol.Header
}

// Result reports what a receive attempt accomplished. Path and Received
// remain meaningful on error so the retry controller can resume from them.
type Result struct {
	Header   protocol.Header
	Path     string
	Received int64
}

// Receive decodes the header from conn, resolves the destination and
// streams the payload to disk in ChunkSize reads. Intermediate progress
// callbacks are throttled to one per ProgressInterval with a guaranteed
// final callback at 100% on success. With a non-zero resume offset the
// sender replays the file from the start, so the first Offset payload
// bytes are discarded and the remainder appended.
func (e *Engine) Receive(ctx context.Context, conn io.Reader, opts ReceiveOptions, onProgress ProgressFunc) (Result, error) {
	result := Result{Path: opts.Resolved, Received: opts.Offset}

	header, leftover, err := protocol.Decode(ctx, conn)
	if err != nil {
		return result, err
	}
	result.Header = header

	if opts.Expect != nil && (header.Name != opts.Expect.Name || header.Size != opts.Expect.Size) {
		return result, errors.NewValidationError("header", header.Name,
			"resumed stream announced a different file")
	}

	path := opts.Resolved
	if path == "" {
		path, err = filesystem.ResolveDestination(opts.OutputPath, header.Extension, time.Now())
		if err != nil {
			return result, err
		}
	}
	result.Path = path

	out, err := filesystem.OpenDestination(path, opts.Offset > 0)
	if err != nil {
		return result, err
	}
	defer out.Close()

	slog.Debug("Receiving payload",
		"file", header.Name,
		"size", header.Size,
		"path", path,
		"offset", opts.Offset)

	leftover, err = e.skipReplayed(ctx, conn, leftover, opts.Offset, &result)
	if err != nil {
		return result, err
	}

	err = e.copyPayload(ctx, conn, out, leftover, &result, onProgress)
	return result, err
}

// skipReplayed discards the payload bytes a resumed sender replays from the
// start of the file. Leftover bytes from header decode count first.
func (e *Engine) skipReplayed(ctx context.Context, conn io.Reader, leftover []byte, offset int64, result *Result) ([]byte, error) {
	if offset <= 0 {
		return leftover, nil
	}

	drop := min(int64(len(leftover)), offset)
	leftover = leftover[drop:]
	skip := offset - drop

	buffer := make([]byte, protocol.ChunkSize)
	for skip > 0 {
		n, readErr := protocol.ReadWithContext(ctx, conn, buffer[:min(protocol.ChunkSize, skip)])
		if n > 0 {
			skip -= int64(n)
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return nil, readErr
			}
			if readErr == io.EOF {
				return nil, errors.NewPrematureCloseError(result.Received, result.Header.Size)
			}
			return nil, errors.NewTransportError("read_chunk", "", readErr)
		}
	}
	return leftover, nil
}

// copyPayload writes leftover bytes then streams the remaining payload,
// clamping at the declared size so the destination never grows past it.
func (e *Engine) copyPayload(ctx context.Context, conn io.Reader, out *os.File, leftover []byte, result *Result, onProgress ProgressFunc) error {
	size := result.Header.Size

	if keep := min(int64(len(leftover)), size-result.Received); keep > 0 {
		if _, err := out.Write(leftover[:keep]); err != nil {
			return errors.NewFileSystemError("write_chunk", result.Path, err)
		}
		result.Received += keep
	}

	lastReport := e.timeProvider.Now()
	buffer := make([]byte, protocol.ChunkSize)
	for result.Received < size {
		n, readErr := protocol.ReadWithContext(ctx, conn, buffer[:min(protocol.ChunkSize, size-result.Received)])
		if n > 0 {
			if _, err := out.Write(buffer[:n]); err != nil {
				return errors.NewFileSystemError("write_chunk", result.Path, err)
			}
			result.Received += int64(n)
			if onProgress != nil && e.timeProvider.Since(lastReport) > ProgressInterval {
				onProgress(percentOf(result.Received, size), result.Received, size)
				lastReport = e.timeProvider.Now()
			}
		}
		if result.Received >= size {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return readErr
			}
			if readErr == io.EOF {
				return errors.NewPrematureCloseError(result.Received, size)
			}
			return errors.NewTransportError("read_chunk", "", readErr)
		}
	}

	if onProgress != nil {
		onProgress(100, result.Received, size)
	}
	return nil
}
