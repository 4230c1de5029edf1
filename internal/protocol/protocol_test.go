package protocol

import (
	"bytes"
	"context"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filecourier/internal/errors"
)

func TestHeaderEncode(t *testing.T) {
	tests := []struct {
		name    string
		header  Header
		want    string
		wantErr bool
	}{
		{
			name:   "three field form",
			header: Header{Name: "report.pdf", Size: 2048, Extension: ".pdf"},
			want:   "report.pdf|2048|.pdf\n",
		},
		{
			name:   "two field form without extension",
			header: Header{Name: "archive", Size: 1000000},
			want:   "archive|1000000\n",
		},
		{
			name:   "zero size",
			header: Header{Name: "empty.txt", Size: 0, Extension: ".txt"},
			want:   "empty.txt|0|.txt\n",
		},
		{
			name:    "empty name rejected",
			header:  Header{Name: "", Size: 10},
			wantErr: true,
		},
		{
			name:    "delimiter in name rejected",
			header:  Header{Name: "bad|name.txt", Size: 10},
			wantErr: true,
		},
		{
			name:    "newline in name rejected",
			header:  Header{Name: "bad\nname.txt", Size: 10},
			wantErr: true,
		},
		{
			name:    "delimiter in extension rejected",
			header:  Header{Name: "file", Size: 10, Extension: ".t|t"},
			wantErr: true,
		},
		{
			name:    "negative size rejected",
			header:  Header{Name: "file.txt", Size: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.header.Encode()
			if tt.wantErr {
				assert.Error(t, err)
				assert.ErrorIs(t, err, errors.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	headers := []Header{
		{Name: "report.pdf", Size: 2048, Extension: ".pdf"},
		{Name: "no-extension", Size: 123456789},
		{Name: "empty-file.log", Size: 0, Extension: ".log"},
		{Name: "with spaces in name.tar.gz", Size: 1, Extension: ".gz"},
	}

	for _, original := range headers {
		t.Run(original.Name, func(t *testing.T) {
			encoded, err := original.Encode()
			require.NoError(t, err)

			decoded, leftover, err := Decode(context.Background(), bytes.NewReader(encoded))
			require.NoError(t, err)
			assert.Equal(t, original, decoded)
			assert.Empty(t, leftover)
		})
	}
}

func TestDecodeReturnsLeftoverPayload(t *testing.T) {
	payload := []byte("first payload bytes")
	stream := append([]byte("report.pdf|2048|.pdf\n"), payload...)

	header, leftover, err := Decode(context.Background(), bytes.NewReader(stream))

	require.NoError(t, err)
	assert.Equal(t, "report.pdf", header.Name)
	assert.Equal(t, int64(2048), header.Size)
	assert.Equal(t, ".pdf", header.Extension)
	assert.Equal(t, payload, leftover)
}

func TestDecodeHeaderSplitAcrossReads(t *testing.T) {
	stream := []byte("report.pdf|2048|.pdf\nabc")

	header, leftover, err := Decode(context.Background(), iotest.OneByteReader(bytes.NewReader(stream)))

	require.NoError(t, err)
	assert.Equal(t, Header{Name: "report.pdf", Size: 2048, Extension: ".pdf"}, header)
	// One byte per read means nothing beyond the terminator was consumed yet.
	assert.Empty(t, leftover)
}

func TestDecodeMalformedHeader(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"single field", "onlyonefield\n"},
		{"size not a number", "name|notanumber\n"},
		{"negative size", "name|-5\n"},
		{"too many fields", "name|10|.txt|extra\n"},
		{"empty line", "\n"},
		{"size with trailing junk", "name|10x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(context.Background(), bytes.NewReader([]byte(tt.input)))
			assert.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrMalformedHeader)
		})
	}
}

func TestDecodeOversizedHeader(t *testing.T) {
	// A stream that keeps delivering bytes but never a terminator.
	stream := bytes.Repeat([]byte("A"), MaxHeaderSize+ChunkSize)

	_, _, err := Decode(context.Background(), bytes.NewReader(stream))

	assert.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrOversizedHeader)
}

func TestDecodeStreamClosedBeforeTerminator(t *testing.T) {
	_, _, err := Decode(context.Background(), bytes.NewReader([]byte("report.pdf|20")))

	assert.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTransport)
	assert.True(t, errors.Retryable(err))
}

func TestDecodeContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	blocked := make(chan struct{})
	defer close(blocked)

	_, _, err := Decode(ctx, blockingReader{unblock: blocked})

	assert.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Retryable(err))
}

func TestReadWithContext(t *testing.T) {
	t.Run("passes through reads", func(t *testing.T) {
		buf := make([]byte, 8)
		n, err := ReadWithContext(context.Background(), bytes.NewReader([]byte("hello")), buf)

		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, "hello", string(buf[:n]))
	})

	t.Run("honors cancellation while blocked", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		blocked := make(chan struct{})
		defer close(blocked)

		buf := make([]byte, 8)
		_, err := ReadWithContext(ctx, blockingReader{unblock: blocked}, buf)

		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

// blockingReader blocks every Read until the test closes unblock.
type blockingReader struct {
	unblock chan struct{}
}

func (r blockingReader) Read(p []byte) (int, error) {
	<-r.unblock
	return 0, nil
}
