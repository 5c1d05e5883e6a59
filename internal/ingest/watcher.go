package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mediacat/internal/catalog"
	"mediacat/internal/config"
	"mediacat/internal/logging"
)

// settleDelay is how long a file must stay quiet after its last write event
// before registration. Copies into the input folder arrive as a burst of
// writes; registering early would hash a partial file.
const settleDelay = 2 * time.Second

// Watcher registers files dropped into the input folder as they appear.
type Watcher struct {
	scanner *Scanner
	root    string
	logger  *slog.Logger
	settle  time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	pending map[string]*time.Timer
	quit    chan struct{}
	running bool
	wg      sync.WaitGroup
}

// NewWatcher builds a watcher over the configured input folder. Files are
// handed to the scanner's registration path once they stop changing.
func NewWatcher(scanner *Scanner, cfg *config.Config, logger *slog.Logger) *Watcher {
	if scanner == nil || cfg == nil {
		return nil
	}
	return &Watcher{
		scanner: scanner,
		root:    cfg.Paths.InputFolder,
		logger:  logging.NewComponentLogger(logger, "watcher"),
		settle:  settleDelay,
		pending: make(map[string]*time.Timer),
	}
}

// Start begins watching the input folder. A failure to set up the inotify
// watch is non-fatal: periodic scans still pick new files up.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("filesystem watch unavailable; relying on periodic scans",
			logging.Args(logging.Error(err))...)
		return nil
	}
	if err := watcher.Add(w.root); err != nil {
		_ = watcher.Close()
		w.logger.Warn("cannot watch input folder; relying on periodic scans",
			logging.Args(
				logging.String(logging.FieldPath, w.root),
				logging.Error(err),
			)...)
		return nil
	}

	w.watcher = watcher
	w.quit = make(chan struct{})
	w.running = true

	quit := w.quit
	w.wg.Add(1)
	go w.eventLoop(ctx, watcher, quit)

	w.logger.Info("input watcher started",
		logging.Args(logging.String(logging.FieldPath, w.root))...)
	return nil
}

// Stop shuts the watcher down and cancels pending registrations.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}

	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	if w.quit != nil {
		close(w.quit)
		w.quit = nil
	}
	if w.watcher != nil {
		_ = w.watcher.Close()
		w.watcher = nil
	}
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.running = false
	w.mu.Unlock()

	w.wg.Wait()
	w.logger.Info("input watcher stopped")
}

// Running reports whether the watcher is active.
func (w *Watcher) Running() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) eventLoop(ctx context.Context, watcher *fsnotify.Watcher, quit <-chan struct{}) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-quit:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", logging.Args(logging.Error(err))...)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}
	if !IsMediaCandidate(event.Name) {
		return
	}
	w.schedule(ctx, event.Name)
}

// schedule arms (or re-arms) the settle timer for a path. Every new write
// pushes registration out by the settle delay.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		running := w.running
		w.mu.Unlock()
		if !running || ctx.Err() != nil {
			return
		}
		w.register(ctx, path)
	})
}

func (w *Watcher) register(ctx context.Context, path string) {
	file, err := w.scanner.RegisterFile(ctx, path)
	if err != nil {
		if errors.Is(err, catalog.ErrConflict) {
			w.logger.Info("duplicate content dropped into input folder",
				logging.Args(logging.String(logging.FieldPath, path))...)
			return
		}
		w.logger.Warn("file registration failed",
			logging.Args(
				logging.String(logging.FieldPath, path),
				logging.Error(err),
			)...)
		return
	}
	w.logger.Info("file registered",
		logging.Args(
			logging.Int64(logging.FieldFileID, file.ID),
			logging.String(logging.FieldPath, path),
		)...)
}
