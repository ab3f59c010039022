package core

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrLockHeld is returned by a Locker when another holder owns the key.
var ErrLockHeld = errors.New("lock held elsewhere")

// Locker grants short-lived exclusive leases across processes.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

const compactionLockKey = "gsa:stock-compaction"

// SnapshotWorker periodically rebuilds stock snapshots. With a Locker only one
// process compacts per tick; without one every process compacts.
type SnapshotWorker struct {
	stock    StockLedger
	locker   Locker
	interval time.Duration
	logger   *logrus.Logger
}

func NewSnapshotWorker(stock StockLedger, locker Locker, interval time.Duration, logger *logrus.Logger) *SnapshotWorker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &SnapshotWorker{stock: stock, locker: locker, interval: interval, logger: logger}
}

// Run compacts on every tick until ctx is cancelled.
func (w *SnapshotWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.WithField("interval", w.interval.String()).Info("snapshot worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("snapshot worker stopped")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.WithError(err).Error("stock compaction failed")
			}
		}
	}
}

// RunOnce performs a single compaction pass and returns how many products were
// rebuilt. A pass skipped because another process holds the lock returns 0, nil.
func (w *SnapshotWorker) RunOnce(ctx context.Context) (int, error) {
	if w.locker != nil {
		release, err := w.locker.Obtain(ctx, compactionLockKey, w.interval)
		if errors.Is(err, ErrLockHeld) {
			w.logger.Debug("stock compaction skipped: lock held elsewhere")
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				w.logger.WithError(err).Warn("failed to release compaction lock")
			}
		}()
	}

	start := time.Now()
	n, err := w.stock.CompactAll(ctx)
	w.logger.WithFields(logrus.Fields{
		"products":    n,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("stock compaction pass")
	return n, err
}
