package server

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filecourier/internal/config"
	"filecourier/internal/errors"
	"filecourier/internal/history"
	"filecourier/internal/protocol"
)

func testConfig() *config.Config {
	return &config.Config{
		IsServer:      true,
		ListenAddress: "127.0.0.1:0",
		Retries:       config.DefaultRetries,
		RetryDelay:    config.DefaultRetryDelay,
		Timeout:       config.DefaultTimeout,
	}
}

func makePayload(n int) []byte {
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	return payload
}

func writeServedFile(t *testing.T, name string, payload []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, payload, 0o644))
	return path
}

// receiveAll reads one offered file off a client connection.
func receiveAll(t *testing.T, conn net.Conn) (protocol.Header, []byte) {
	t.Helper()
	header, leftover, err := protocol.Decode(context.Background(), conn)
	require.NoError(t, err)
	rest, err := io.ReadAll(conn)
	require.NoError(t, err)
	return header, append(leftover, rest...)
}

func TestServerServesSelectedFile(t *testing.T) {
	payload := makePayload(2048)
	path := writeServedFile(t, "report.pdf", payload)

	ledger := history.NewLedger()
	srv := New(testConfig(), ledger)

	var connected, disconnected atomic.Int32
	srv.OnClientConnected = func(string) { connected.Add(1) }
	srv.OnClientDisconnected = func(string) { disconnected.Add(1) }

	require.NoError(t, srv.SetFile(path))
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop()

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	header, got := receiveAll(t, conn)
	assert.Equal(t, "report.pdf", header.Name)
	assert.Equal(t, int64(2048), header.Size)
	assert.Equal(t, ".pdf", header.Extension)
	assert.Equal(t, payload, got)

	records := ledger.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "report.pdf", records[0].FileName)
	assert.Equal(t, int64(2048), records[0].Size)
	assert.Equal(t, conn.LocalAddr().String(), records[0].Peer)
	assert.Equal(t, "Complete", records[0].Status.String())

	assert.EqualValues(t, 1, connected.Load())
	require.Eventually(t, func() bool { return disconnected.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestServerWaitsForSelection(t *testing.T) {
	payload := makePayload(1024)
	path := writeServedFile(t, "late.bin", payload)

	srv := New(testConfig(), history.NewLedger())
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop()

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	// the connection polls until a file is picked
	go func() {
		time.Sleep(250 * time.Millisecond)
		_ = srv.SetFile(path)
	}()

	header, got := receiveAll(t, conn)
	assert.Equal(t, "late.bin", header.Name)
	assert.Equal(t, payload, got)
}

func TestServerStopUnblocksWaitingClients(t *testing.T) {
	srv := New(testConfig(), history.NewLedger())

	var connected, disconnected atomic.Int32
	srv.OnClientConnected = func(string) { connected.Add(1) }
	srv.OnClientDisconnected = func(string) { disconnected.Add(1) }

	require.NoError(t, srv.Start(context.Background()))

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return connected.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	srv.Stop()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	assert.Error(t, err)

	require.Eventually(t, func() bool { return disconnected.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	// second Stop is a no-op
	srv.Stop()
}

func TestServerConcurrentClients(t *testing.T) {
	payload := makePayload(8192)
	path := writeServedFile(t, "shared.dat", payload)

	ledger := history.NewLedger()
	srv := New(testConfig(), ledger)
	require.NoError(t, srv.SetFile(path))
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop()

	const clients = 3
	var wg sync.WaitGroup
	results := make([][]byte, clients)
	errs := make([]error, clients)

	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := net.Dial("tcp", srv.Addr())
			if err != nil {
				errs[i] = err
				return
			}
			defer conn.Close()

			_, leftover, err := protocol.Decode(context.Background(), conn)
			if err != nil {
				errs[i] = err
				return
			}
			rest, err := io.ReadAll(conn)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = append(leftover, rest...)
		}(i)
	}
	wg.Wait()

	for i := 0; i < clients; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, payload, results[i])
	}

	require.Eventually(t, func() bool { return ledger.Len() == clients }, 2*time.Second, 10*time.Millisecond)
	for _, rec := range ledger.Records() {
		assert.Equal(t, "Complete", rec.Status.String())
	}
}

func TestServerSetFileValidation(t *testing.T) {
	srv := New(testConfig(), history.NewLedger())

	t.Run("rejects directory", func(t *testing.T) {
		err := srv.SetFile(t.TempDir())
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrValidation)
	})

	t.Run("rejects missing file", func(t *testing.T) {
		err := srv.SetFile(filepath.Join(t.TempDir(), "absent.bin"))
		require.Error(t, err)
	})
}

func TestServerWatchMode(t *testing.T) {
	payload := makePayload(4096)
	watchDir := t.TempDir()

	ledger := history.NewLedger()
	srv := New(testConfig(), ledger)
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop()

	require.NoError(t, srv.Watch(watchDir))

	path := filepath.Join(watchDir, "dropped.bin")
	require.NoError(t, os.WriteFile(path, payload, 0o644))

	require.Eventually(t, func() bool { return srv.CurrentFile() == path }, 3*time.Second, 50*time.Millisecond)

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	header, got := receiveAll(t, conn)
	assert.Equal(t, "dropped.bin", header.Name)
	assert.Equal(t, payload, got)
}
