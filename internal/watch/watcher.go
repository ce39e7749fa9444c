// Package watch monitors the inbox directory and enqueues new videos.
//
// A video is enqueued once it has settled: its size must stay unchanged for
// the configured settle window so half-copied files are not picked up.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"clipsplit/internal/config"
	"clipsplit/internal/logging"
	"clipsplit/internal/notifications"
	"clipsplit/internal/queue"
)

// Watcher enqueues videos dropped into the inbox directory.
type Watcher struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service

	settle time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	pendingMu sync.Mutex
	pending   map[string]struct{}
}

// NewWatcher constructs an inbox watcher.
func NewWatcher(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Watcher {
	settle := time.Duration(cfg.Watch.SettleSeconds) * time.Second
	if settle <= 0 {
		settle = 2 * time.Second
	}
	return &Watcher{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "watch"),
		notifier: notifier,
		settle:   settle,
		pending:  make(map[string]struct{}),
	}
}

// Start begins watching the inbox. It sweeps files already present before
// listening for events so videos dropped while the daemon was down still get
// queued.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("watcher already running")
	}
	inbox := strings.TrimSpace(w.cfg.Paths.InboxDir)
	if inbox == "" {
		w.mu.Unlock()
		return errors.New("inbox directory not configured")
	}
	if err := os.MkdirAll(inbox, 0o755); err != nil {
		w.mu.Unlock()
		return fmt.Errorf("create inbox dir: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fsWatcher.Add(inbox); err != nil {
		_ = fsWatcher.Close()
		w.mu.Unlock()
		return fmt.Errorf("watch %s: %w", inbox, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		defer fsWatcher.Close()
		w.sweep(runCtx, inbox)
		w.run(runCtx, fsWatcher)
	}()
	return nil
}

// Stop terminates the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
}

// sweep enqueues videos that were already in the inbox.
func (w *Watcher) sweep(ctx context.Context, inbox string) {
	entries, err := os.ReadDir(inbox)
	if err != nil {
		w.logger.Warn("inbox sweep failed", logging.Error(err))
		return
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if entry.IsDir() {
			continue
		}
		w.schedule(ctx, filepath.Join(inbox, entry.Name()))
	}
}

func (w *Watcher) run(ctx context.Context, fsWatcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", logging.Error(err))
		}
	}
}

// schedule starts a settle wait for the path unless one is already running.
// The wait runs off the event loop so a large copy in progress does not delay
// detection of other inbox events.
func (w *Watcher) schedule(ctx context.Context, path string) {
	if !w.cfg.WatchesExtension(path) {
		return
	}

	w.pendingMu.Lock()
	if _, waiting := w.pending[path]; waiting {
		w.pendingMu.Unlock()
		return
	}
	w.pending[path] = struct{}{}
	w.pendingMu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.pendingMu.Lock()
			delete(w.pending, path)
			w.pendingMu.Unlock()
		}()
		if !w.waitForSettle(ctx, path) {
			return
		}
		w.enqueue(ctx, path)
	}()
}

// enqueue adds a settled video to the queue unless it is already there.
func (w *Watcher) enqueue(ctx context.Context, path string) {
	existing, err := w.store.FindBySourcePath(ctx, path)
	if err != nil {
		w.logger.Warn("queue lookup failed", logging.String("path", path), logging.Error(err))
		return
	}
	if existing != nil {
		w.logger.Debug("video already queued",
			logging.String("path", filepath.Base(path)),
			logging.Int64(logging.FieldItemID, existing.ID))
		return
	}

	item, err := w.store.NewVideo(ctx, path)
	if err != nil {
		w.logger.Error("enqueue failed", logging.String("path", path), logging.Error(err))
		return
	}
	w.logger.Info("video queued",
		logging.String("source", filepath.Base(path)),
		logging.Int64(logging.FieldItemID, item.ID))

	if w.notifier != nil {
		if err := w.notifier.NotifyVideoDetected(ctx, filepath.Base(path)); err != nil {
			w.logger.Warn("detection notification failed", logging.Error(err))
		}
	}
}

// waitForSettle returns true once the file size has been stable for the
// settle window. A file that disappears mid-wait is skipped.
func (w *Watcher) waitForSettle(ctx context.Context, path string) bool {
	var lastSize int64 = -1
	for {
		info, err := os.Stat(path)
		if err != nil {
			return false
		}
		if info.IsDir() {
			return false
		}
		if info.Size() == lastSize {
			return true
		}
		lastSize = info.Size()

		select {
		case <-ctx.Done():
			return false
		case <-time.After(w.settle):
		}
	}
}
