package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"mediacat/internal/catalog"
	"mediacat/internal/config"
	"mediacat/internal/ingest"
	"mediacat/internal/logging"
	"mediacat/internal/removable"
)

// Daemon runs the background services and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *catalog.Store
	scanner *ingest.Scanner
	watcher *ingest.Watcher
	monitor *removable.Monitor

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status reports daemon runtime information.
type Status struct {
	Running        bool
	WatcherRunning bool
	MonitorRunning bool
	DatabasePath   string
	LockFilePath   string
}

// New constructs a daemon with initialized services.
func New(cfg *config.Config, store *catalog.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		lockPath: filepath.Join(cfg.Paths.LogFolder, "mediacat.lock"),
	}
	d.lock = flock.New(d.lockPath)
	d.scanner = ingest.NewScanner(store, cfg, logger)
	d.watcher = ingest.NewWatcher(d.scanner, cfg, logger)
	d.monitor = removable.NewMonitor(cfg, logger, d.handleRemovable)
	return d, nil
}

// Start acquires the daemon lock and brings the background services up.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mediacat daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.watcher.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start watcher: %w", err)
	}
	if err := d.monitor.Start(d.ctx); err != nil {
		d.watcher.Stop()
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start removable monitor: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("daemon started", logging.Args(logging.String("lock", d.lockPath))...)
	return nil
}

// Stop shuts the background services down and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.monitor.Stop()
	d.watcher.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Args(logging.Error(err))...)
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Run starts the daemon and blocks until the context is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	d.Stop()
	return nil
}

// Scan triggers a one-shot ingest pass over the input folder.
func (d *Daemon) Scan(ctx context.Context, progress ingest.ProgressFunc) (*ingest.Result, error) {
	return d.scanner.Scan(ctx, d.cfg.Paths.InputFolder, progress)
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:        d.running.Load(),
		WatcherRunning: d.watcher.Running(),
		MonitorRunning: d.monitor.Running(),
		DatabasePath:   d.cfg.Paths.Database,
		LockFilePath:   d.lockPath,
	}
}

// handleRemovable reacts to USB storage coming and going. Attach events are
// recorded in the audit log; when resume_on_reconnect is set, an attach also
// kicks a scan so media waiting in the input folder gets picked up again.
func (d *Daemon) handleRemovable(ctx context.Context, event removable.Event) {
	d.store.AppendLog(ctx, catalog.LogEntry{
		Level:   "info",
		Module:  "removable",
		Message: "device " + string(event.Action),
		Context: map[string]any{
			"device_id": event.DeviceID,
			"devnode":   event.DevNode,
			"label":     event.Label,
		},
	})

	if event.Action != removable.ActionAttach || !d.cfg.USB.ResumeOnReconnect {
		return
	}
	go func() {
		if _, err := d.scanner.Scan(ctx, d.cfg.Paths.InputFolder, nil); err != nil {
			d.logger.Warn("post-attach scan failed",
				logging.Args(
					logging.String("device_id", event.DeviceID),
					logging.Error(err),
				)...)
		}
	}()
}
