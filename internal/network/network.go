package network

import (
	"context"
	"log/slog"
	"net"
	"time"

	"filecourier/internal/config"
	"filecourier/internal/errors"
)

// Dialer connects to a fixed peer endpoint. It is kept for the lifetime of
// a transfer call so a dropped connection can be re-dialed to the same
// address on retry.
type Dialer struct {
	Address string
	Timeout time.Duration
}

// Dial opens a TCP connection to the endpoint.
func (d *Dialer) Dial(ctx context.Context) (net.Conn, error) {
	nd := net.Dialer{Timeout: d.Timeout}
	conn, err := nd.DialContext(ctx, "tcp", d.Address)
	if err != nil {
		return nil, errors.NewConnectError("dial", d.Address, err)
	}

	if err := OptimizeTCPConnection(conn); err != nil {
		slog.Warn("TCP optimization failed", "address", d.Address, "error", err)
	}

	slog.Info("Connected", "address", d.Address)
	return conn, nil
}

// Listen binds a TCP listener on the given address.
func Listen(address string) (net.Listener, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, errors.NewConnectError("listen", address, err)
	}
	return listener, nil
}

// Close releases the connection and logs the disconnect. Closing an
// already-closed connection is swallowed, so teardown paths may call it
// without tracking state.
func Close(conn net.Conn) {
	if conn == nil {
		return
	}

	remote := "unknown"
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}

	if err := conn.Close(); err != nil {
		slog.Debug("Connection close", "remote", remote, "error", err)
		return
	}
	slog.Info("Disconnected", "remote", remote)
}

// OptimizeTCPConnection applies TCP optimizations to a connection
func OptimizeTCPConnection(conn net.Conn) error {
	tcpConn, isTCP := conn.(*net.TCPConn)
	if !isTCP {
		return nil // Not a TCP connection, skip optimizations
	}

	// Enable keep-alive to detect dead connections
	if err := tcpConn.SetKeepAlive(true); err != nil {
		return errors.NewConnectError("set_keepalive", conn.RemoteAddr().String(), err)
	}

	// Set keep-alive interval
	if err := tcpConn.SetKeepAlivePeriod(30 * time.Second); err != nil {
		slog.Warn("Failed to set TCP keepalive period", "error", err)
	}

	// Disable Nagle's algorithm for better performance with chunking
	if err := tcpConn.SetNoDelay(true); err != nil {
		slog.Warn("Failed to disable Nagle's algorithm", "error", err)
	}

	// Set larger buffer sizes for high throughput
	if err := tcpConn.SetReadBuffer(config.TCPBufferSize); err != nil {
		slog.Warn("Failed to set TCP read buffer", "error", err)
	}

	if err := tcpConn.SetWriteBuffer(config.TCPBufferSize); err != nil {
		slog.Warn("Failed to set TCP write buffer", "error", err)
	}

	return nil
}
