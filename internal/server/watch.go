package server

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"filecourier/internal/errors"
	"filecourier/internal/logging"
)

// watchSettleDelay debounces rapid events for the same path so a file
// still being written is not served half-copied.
const watchSettleDelay = 500 * time.Millisecond

// Watch serves files as they land in dir: each created or written
// regular file becomes the new served file once its events settle. The
// loop runs until Stop and requires a started server.
func (s *Server) Watch(dir string) error {
	if s.runCtx == nil {
		return errors.NewValidationError("watch", dir, "server must be started before watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.NewFileSystemError("watch", dir, err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return errors.NewFileSystemError("watch", dir, err)
	}

	slog.Info("Watching directory for files to serve", "dir", dir)

	s.wg.Add(1)
	go s.watchLoop(s.runCtx, watcher)
	return nil
}

func (s *Server) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer s.wg.Done()
	defer watcher.Close()

	var (
		mu       sync.Mutex
		debounce = make(map[string]*time.Timer)
	)

	settle := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if timer, exists := debounce[path]; exists {
			timer.Stop()
		}
		debounce[path] = time.AfterFunc(watchSettleDelay, func() {
			mu.Lock()
			delete(debounce, path)
			mu.Unlock()

			info, err := os.Stat(path)
			if err != nil || info.IsDir() {
				return
			}
			if err := s.SetFile(path); err != nil {
				logging.LogError(err, "select watched file")
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			settle(event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Watcher error", "error", err)
		}
	}
}
