// Package server implements the serve role: it listens for receivers and
// streams the currently selected file to each one that connects.
package server

import (
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"filecourier/internal/config"
	"filecourier/internal/errors"
	"filecourier/internal/filesystem"
	"filecourier/internal/history"
	"filecourier/internal/logging"
	"filecourier/internal/network"
	"filecourier/internal/protocol"
	"filecourier/internal/transfer"
)

// filePollInterval is how often a waiting connection re-checks whether a
// file has been selected for serving.
const filePollInterval = 100 * time.Millisecond

// Server offers a single selected file to every client that connects.
// Connections that arrive before a file is selected wait until one is.
type Server struct {
	cfg      *config.Config
	ledger   *history.Ledger
	engine   *transfer.Engine
	registry *registry

	listener net.Listener
	runCtx   context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu       sync.RWMutex
	filePath string
	running  bool

	// OnClientConnected and OnClientDisconnected observe client
	// lifecycle. Both are optional and called from connection goroutines.
	OnClientConnected    func(addr string)
	OnClientDisconnected func(addr string)
}

// New creates a server serving cfg.FilePath, which may be empty until a
// file is selected with SetFile or picked up by watch mode.
func New(cfg *config.Config, ledger *history.Ledger) *Server {
	return &Server{
		cfg:      cfg,
		ledger:   ledger,
		engine:   transfer.NewEngine(),
		registry: newRegistry(),
		filePath: cfg.FilePath,
	}
}

// Start binds the listener and launches the accept loop.
func (s *Server) Start(ctx context.Context) error {
	listener, err := network.Listen(s.cfg.ListenAddress)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.listener = listener
	s.runCtx = runCtx
	s.cancel = cancel

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	slog.Info("Server started", "address", listener.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop(runCtx)
	return nil
}

// Stop closes the listener and every tracked client connection, then
// waits for all connection goroutines to finish. Safe to call more than
// once.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	_ = s.listener.Close()
	s.registry.closeAll()
	s.wg.Wait()

	slog.Info("Server stopped")
}

// Addr reports the bound listen address, usable after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// SetFile switches the file offered to waiting and future clients.
func (s *Server) SetFile(path string) error {
	info, err := filesystem.GetFileInfo(path)
	if err != nil {
		return err
	}
	if info.IsDir {
		return errors.NewValidationError("file", path, "served path must be a regular file")
	}

	s.mu.Lock()
	s.filePath = path
	s.mu.Unlock()

	slog.Info("Serving file", "path", path, "size", info.Size)
	return nil
}

// CurrentFile returns the path currently offered, or empty when none is.
func (s *Server) CurrentFile() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filePath
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()

	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
			default:
				slog.Error("Failed to accept connection", "error", err)
			}
			return
		}

		if err := network.OptimizeTCPConnection(conn); err != nil {
			slog.Warn("Failed to optimize connection", "error", err)
		}

		s.registry.add(conn)
		s.wg.Add(1)
		go s.handleConnection(ctx, conn)
	}
}

// handleConnection waits for a file selection, streams the file once and
// closes the connection.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()

	addr := conn.RemoteAddr().String()
	slog.Info("Client connected", "address", addr)
	if s.OnClientConnected != nil {
		s.OnClientConnected(addr)
	}

	defer func() {
		s.registry.remove(addr)
		network.Close(conn)
		slog.Info("Client disconnected", "address", addr)
		if s.OnClientDisconnected != nil {
			s.OnClientDisconnected(addr)
		}
	}()

	path, err := s.waitForFile(ctx)
	if err != nil {
		return
	}

	s.sendFile(ctx, conn, addr, path)
}

// waitForFile polls until a served file is selected and present on disk.
func (s *Server) waitForFile(ctx context.Context) (string, error) {
	ticker := time.NewTicker(filePollInterval)
	defer ticker.Stop()

	for {
		if path := s.CurrentFile(); path != "" {
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// sendFile streams one file to the client and appends the single ledger
// record for the transfer.
func (s *Server) sendFile(ctx context.Context, conn net.Conn, addr, path string) {
	info, err := filesystem.GetFileInfo(path)
	if err != nil {
		logging.LogError(err, "stat served file")
		s.ledger.Append(history.NewRecord("unknown", addr, 0, history.Failed(err)))
		return
	}

	header := protocol.Header{
		Name:      info.Name,
		Size:      info.Size,
		Extension: filepath.Ext(info.Name),
	}

	src, err := os.Open(path)
	if err != nil {
		wrapped := errors.NewFileSystemError("open", path, err)
		logging.LogError(wrapped, "open served file")
		s.ledger.Append(history.NewRecord(info.Name, addr, info.Size, history.Failed(wrapped)))
		return
	}
	defer src.Close()

	logging.LogSessionStart("send", addr, info.Name, info.Size)
	start := time.Now()

	sent, err := s.engine.Send(ctx, conn, header, src, nil)
	duration := time.Since(start)

	switch {
	case err != nil:
		logging.LogError(err, "send file")
		s.ledger.Append(history.NewRecord(info.Name, addr, info.Size, history.Failed(err)))
		logging.LogSessionEnd(false, sent, duration)
	case sent < info.Size:
		slog.Warn("Source file shrank during send",
			"file", info.Name,
			"sent", sent,
			"size", info.Size)
		s.ledger.Append(history.NewRecord(info.Name, addr, info.Size, history.Incomplete(sent, info.Size)))
		logging.LogSessionEnd(false, sent, duration)
	default:
		s.ledger.Append(history.NewRecord(info.Name, addr, info.Size, history.Complete()))
		logging.LogTransferComplete(info.Name, sent, duration)
		logging.LogSessionEnd(true, sent, duration)
	}
}

// Run starts the serve role and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, ledger *history.Ledger) error {
	srv := New(cfg, ledger)
	if err := srv.Start(ctx); err != nil {
		return err
	}

	if cfg.WatchDir != "" {
		if err := srv.Watch(cfg.WatchDir); err != nil {
			srv.Stop()
			return err
		}
	}

	<-ctx.Done()
	srv.Stop()
	return nil
}
