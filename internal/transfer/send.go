package transfer

import (
	"context"
	"io"
	"log/slog"

	"filecourier/internal/errors"
	"filecourier/internal/protocol"
)

// Send writes the encoded header followed by the payload read from src in
// ChunkSize pieces. Each chunk is written in full before the next read, and
// onProgress fires after every chunk. The source is streamed until EOF, so
// a source shorter than header.Size returns a short count with a nil error
// and the caller decides how to record the outcome.
func (e *Engine) Send(ctx context.Context, conn io.Writer, header protocol.Header, src io.Reader, onProgress ProgressFunc) (int64, error) {
	line, err := header.Encode()
	if err != nil {
		return 0, err
	}
	if _, err := conn.Write(line); err != nil {
		return 0, errors.NewTransportError("send_header", "", err)
	}

	slog.Debug("Header sent", "file", header.Name, "size", header.Size)

	var sent int64
	buffer := make([]byte, protocol.ChunkSize)
	for {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}

		n, readErr := src.Read(buffer)
		if n > 0 {
			if _, err := conn.Write(buffer[:n]); err != nil {
				return sent, errors.NewTransportError("send_chunk", "", err)
			}
			sent += int64(n)
			if onProgress != nil {
				onProgress(percentOf(sent, header.Size), sent, header.Size)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return sent, errors.NewFileSystemError("read_source", header.Name, readErr)
		}
	}

	if sent >= header.Size && onProgress != nil {
		onProgress(100, sent, header.Size)
	}
	return sent, nil
}
