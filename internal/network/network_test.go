package network

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filecourier/internal/errors"
)

func TestDialerDial(t *testing.T) {
	listener, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	dialer := &Dialer{Address: listener.Addr().String(), Timeout: time.Second}
	conn, err := dialer.Dial(context.Background())
	require.NoError(t, err)
	defer Close(conn)

	server := <-accepted
	defer Close(server)

	assert.Equal(t, listener.Addr().String(), conn.RemoteAddr().String())
}

func TestDialerDialRefused(t *testing.T) {
	// Bind then close a listener so the port is known to be dead.
	listener, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	dialer := &Dialer{Address: addr, Timeout: 200 * time.Millisecond}
	_, err = dialer.Dial(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConnect)
	assert.Contains(t, err.Error(), addr)
}

func TestListenInvalidAddress(t *testing.T) {
	_, err := Listen("not-a-valid-address")

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConnect)
}

func TestCloseIsIdempotent(t *testing.T) {
	listener, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	dialer := &Dialer{Address: listener.Addr().String(), Timeout: time.Second}
	conn, err := dialer.Dial(context.Background())
	require.NoError(t, err)

	Close(conn)
	assert.NotPanics(t, func() { Close(conn) })
	assert.NotPanics(t, func() { Close(nil) })
}

func TestOptimizeTCPConnection(t *testing.T) {
	t.Run("tcp connection", func(t *testing.T) {
		listener, err := Listen("127.0.0.1:0")
		require.NoError(t, err)
		defer listener.Close()

		go func() {
			conn, err := listener.Accept()
			if err == nil {
				defer conn.Close()
				time.Sleep(100 * time.Millisecond)
			}
		}()

		conn, err := net.Dial("tcp", listener.Addr().String())
		require.NoError(t, err)
		defer conn.Close()

		assert.NoError(t, OptimizeTCPConnection(conn))
	})

	t.Run("non-tcp connection is skipped", func(t *testing.T) {
		client, server := net.Pipe()
		defer client.Close()
		defer server.Close()

		assert.NoError(t, OptimizeTCPConnection(client))
	})
}
