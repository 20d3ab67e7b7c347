package snapshot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rmax-ai/fractald/pkg/graph"
)

// DefaultInterval is used when a Worker is created with a zero interval.
const DefaultInterval = 5 * time.Minute

// finalSaveTimeout bounds the snapshot written when the worker stops.
const finalSaveTimeout = 10 * time.Second

// Lease guards snapshot writes when several daemons share one sink.
type Lease interface {
	Acquire(ctx context.Context, name, holderID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, holderID string) error
}

// Worker periodically copies the store to a Sink. Failures are logged and
// retried on the next tick; they never reach store callers.
type Worker struct {
	store    *graph.Store
	sink     Sink
	interval time.Duration
	logger   *zap.Logger

	lease     Lease
	leaseName string
	holderID  string

	lastSaved time.Time
}

// NewWorker creates a snapshot worker.
func NewWorker(st *graph.Store, sink Sink, interval time.Duration, logger *zap.Logger) *Worker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		store:    st,
		sink:     sink,
		interval: interval,
		logger:   logger,
	}
}

// WithLease makes the worker write only while it holds the named lease.
func (w *Worker) WithLease(l Lease, name, holderID string) *Worker {
	w.lease = l
	w.leaseName = name
	w.holderID = holderID
	return w
}

// Run snapshots on every tick until ctx is cancelled, then writes one last
// snapshot so a clean shutdown loses nothing.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("snapshot worker started", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			finalCtx, cancel := context.WithTimeout(context.Background(), finalSaveTimeout)
			if _, err := w.TakeSnapshot(finalCtx); err != nil {
				w.logger.Error("final snapshot failed", zap.Error(err))
			}
			if w.lease != nil {
				if err := w.lease.Release(finalCtx, w.leaseName, w.holderID); err != nil {
					w.logger.Warn("failed to release snapshot lease", zap.Error(err))
				}
			}
			cancel()
			w.logger.Info("snapshot worker stopped")
			return
		case <-ticker.C:
			saved, err := w.TakeSnapshot(ctx)
			if err != nil {
				w.logger.Error("snapshot failed", zap.Error(err))
				continue
			}
			if saved {
				w.logger.Debug("snapshot created")
			}
		}
	}
}

// TakeSnapshot saves the store when it changed since the last successful
// save. It reports whether a snapshot was written.
func (w *Worker) TakeSnapshot(ctx context.Context) (bool, error) {
	updated := w.store.Stats().LastUpdated
	if !w.lastSaved.IsZero() && !updated.After(w.lastSaved) {
		return false, nil
	}

	if w.lease != nil {
		held, err := w.lease.Acquire(ctx, w.leaseName, w.holderID, 2*w.interval)
		if err != nil {
			return false, fmt.Errorf("failed to acquire snapshot lease: %w", err)
		}
		if !held {
			w.logger.Debug("snapshot lease held by another writer", zap.String("lease", w.leaseName))
			return false, nil
		}
	}

	snap := w.store.Snapshot()
	if err := w.sink.SaveSnapshot(ctx, snap); err != nil {
		return false, fmt.Errorf("sink save failed: %w", err)
	}
	w.lastSaved = updated
	if w.lastSaved.IsZero() {
		w.lastSaved = snap.TakenAt
	}
	return true, nil
}
