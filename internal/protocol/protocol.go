package protocol

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"filecourier/internal/errors"
)

// Wire format constants
const (
	// FieldDelimiter separates the fields of the metadata line.
	FieldDelimiter = "|"

	// HeaderTerminator ends the metadata line. Payload bytes follow
	// immediately after it with no further framing.
	HeaderTerminator = '\n'

	// MaxHeaderSize bounds header accumulation so a stream that never
	// delivers a terminator cannot buffer without limit.
	MaxHeaderSize = 1024000

	// ChunkSize is the fixed block size for payload reads and writes.
	ChunkSize = 4096
)

// Header describes the file offered on a connection: its logical name, the
// exact payload byte count, and an optional extension (leading dot included)
// the receiver appends when its destination path has none.
type Header struct {
	Name      string
	Size      int64
	Extension string
}

// Encode serializes the header as "{name}|{size}|{extension}\n", or the
// two-field form "{name}|{size}\n" when Extension is empty. The format has
// no escaping, so names and extensions containing delimiter or terminator
// bytes are rejected here rather than producing an ambiguous line.
func (h Header) Encode() ([]byte, error) {
	if h.Name == "" {
		return nil, errors.NewValidationError("name", h.Name, "file name must not be empty")
	}
	if strings.ContainsAny(h.Name, "|\n\r") {
		return nil, errors.NewValidationError("name", h.Name, "file name must not contain '|' or newline characters")
	}
	if strings.ContainsAny(h.Extension, "|\n\r") {
		return nil, errors.NewValidationError("extension", h.Extension, "extension must not contain '|' or newline characters")
	}
	if h.Size < 0 {
		return nil, errors.NewValidationError("size", h.Size, "size must be non-negative")
	}

	if h.Extension == "" {
		return []byte(fmt.Sprintf("%s|%d\n", h.Name, h.Size)), nil
	}
	return []byte(fmt.Sprintf("%s|%d|%s\n", h.Name, h.Size, h.Extension)), nil
}

// Decode reads from r until a terminator byte arrives and parses the line
// into a Header. Bytes that arrived after the terminator in the same read
// are the first payload bytes; they are returned as leftover, never
// discarded. A stream that ends before the terminator is a transport
// failure, not a framing one, so the caller may retry it.
func Decode(ctx context.Context, r io.Reader) (Header, []byte, error) {
	var accumulated []byte
	buf := make([]byte, ChunkSize)

	for {
		if i := bytes.IndexByte(accumulated, HeaderTerminator); i >= 0 {
			header, err := parseHeaderLine(string(accumulated[:i]))
			if err != nil {
				return Header{}, nil, err
			}
			leftover := append([]byte(nil), accumulated[i+1:]...)
			return header, leftover, nil
		}
		if len(accumulated) > MaxHeaderSize {
			return Header{}, nil, errors.NewOversizedHeaderError(MaxHeaderSize)
		}

		n, err := ReadWithContext(ctx, r, buf)
		if n > 0 {
			accumulated = append(accumulated, buf[:n]...)
			continue
		}
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return Header{}, nil, err
		}
		return Header{}, nil, errors.NewTransportError("read_header", "", err)
	}
}

func parseHeaderLine(line string) (Header, error) {
	display := line
	if len(display) > 64 {
		display = display[:64] + "..."
	}

	fields := strings.Split(line, FieldDelimiter)
	if len(fields) < 2 || len(fields) > 3 {
		return Header{}, errors.NewMalformedHeaderError(display, fmt.Sprintf("expected 2 or 3 fields, got %d", len(fields)))
	}

	size, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || size < 0 {
		return Header{}, errors.NewMalformedHeaderError(display, fmt.Sprintf("size field %q is not a non-negative integer", fields[1]))
	}

	header := Header{Name: fields[0], Size: size}
	if len(fields) == 3 {
		header.Extension = fields[2]
	}
	return header, nil
}

// ReadWithContext reads from r with context cancellation support. The
// blocked read itself cannot be interrupted; callers unblock it by closing
// the underlying connection.
func ReadWithContext(ctx context.Context, r io.Reader, buffer []byte) (int, error) {
	type readResult struct {
		n   int
		err error
	}

	resultCh := make(chan readResult, 1)
	readCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-readCtx.Done():
			return
		default:
			n, err := r.Read(buffer)
			select {
			case <-readCtx.Done():
				return
			default:
				resultCh <- readResult{n, err}
			}
		}
	}()

	select {
	case result := <-resultCh:
		return result.n, result.err
	case <-ctx.Done():
		cancel()
		return 0, ctx.Err()
	}
}
