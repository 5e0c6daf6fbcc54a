package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SessionPruner removes expired sessions
type SessionPruner interface {
	DeleteExpired() (int64, error)
}

// AuditPruner removes old audit entries
type AuditPruner interface {
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

// Worker prunes expired sessions and old audit entries in the background
type Worker struct {
	sessions SessionPruner
	audit    AuditPruner
	logger   *slog.Logger
	now      func() time.Time

	interval  time.Duration
	retention time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config holds worker configuration
type Config struct {
	Interval       time.Duration
	AuditRetention time.Duration
}

// DefaultConfig returns default worker configuration
func DefaultConfig() Config {
	return Config{
		Interval:       time.Hour,
		AuditRetention: 180 * 24 * time.Hour,
	}
}

// New creates a new worker
func New(sessions SessionPruner, audit AuditPruner, logger *slog.Logger, cfg Config) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		sessions:  sessions,
		audit:     audit,
		logger:    logger.With("component", "worker"),
		now:       time.Now,
		interval:  cfg.Interval,
		retention: cfg.AuditRetention,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start starts the worker
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
	w.logger.Info("worker started", "interval", w.interval, "audit_retention", w.retention)
}

// Stop stops the worker gracefully
func (w *Worker) Stop() {
	w.logger.Info("stopping worker...")
	w.cancel()
	w.wg.Wait()
	w.logger.Info("worker stopped")
}

func (w *Worker) run() {
	defer w.wg.Done()

	w.prune()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.prune()
		}
	}
}

// prune runs one cleanup pass
func (w *Worker) prune() {
	if n, err := w.sessions.DeleteExpired(); err != nil {
		w.logger.Error("failed to delete expired sessions", "error", err)
	} else if n > 0 {
		w.logger.Info("expired sessions deleted", "count", n)
	}

	if w.retention <= 0 {
		return
	}
	cutoff := w.now().Add(-w.retention)
	if n, err := w.audit.DeleteOlderThan(cutoff); err != nil {
		w.logger.Error("failed to delete old audit entries", "error", err)
	} else if n > 0 {
		w.logger.Info("old audit entries deleted", "count", n, "cutoff", cutoff)
	}
}
