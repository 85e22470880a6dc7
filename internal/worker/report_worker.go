package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ignite/engagement-agent/internal/pkg/distlock"
	"github.com/ignite/engagement-agent/internal/pkg/logger"
	"github.com/ignite/engagement-agent/internal/service/analytics"
)

// DefaultReportInterval is how often a report snapshot is archived.
const DefaultReportInterval = time.Hour

// Snapshotter computes and archives a report for a window of days.
type Snapshotter interface {
	Snapshot(ctx context.Context, windowDays int) (*analytics.Report, error)
}

// ReportWorker archives an analytics snapshot on a ticker so the
// recommendation history fills in without anyone calling the API.
type ReportWorker struct {
	snapshots  Snapshotter
	lock       distlock.Lock
	windowDays int
	interval   time.Duration

	last *analytics.Report

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewReportWorker creates a report worker. lock may be nil for a single
// instance deployment.
func NewReportWorker(snapshots Snapshotter, lock distlock.Lock, windowDays int, interval time.Duration) *ReportWorker {
	if interval <= 0 {
		interval = DefaultReportInterval
	}
	if windowDays <= 0 {
		windowDays = 7
	}
	return &ReportWorker{snapshots: snapshots, lock: lock, windowDays: windowDays, interval: interval}
}

// Start begins the snapshot loop. The first snapshot is taken after one
// interval.
func (w *ReportWorker) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("report worker already running")
	}
	w.running = true
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.mu.Unlock()

	logger.Info("report worker starting", "interval", w.interval.String(), "window_days", w.windowDays)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				w.RunOnce(w.ctx)
			}
		}
	}()
	return nil
}

// Stop cancels the loop and waits for it to exit.
func (w *ReportWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
	logger.Info("report worker stopped")
}

// RunOnce takes one snapshot. It returns the report, or nil when the lock
// was held elsewhere or the snapshot failed.
func (w *ReportWorker) RunOnce(ctx context.Context) *analytics.Report {
	var report *analytics.Report
	snap := func(ctx context.Context) error {
		r, err := w.snapshots.Snapshot(ctx, w.windowDays)
		if err != nil {
			return err
		}
		report = r
		return nil
	}

	var err error
	if w.lock == nil {
		err = snap(ctx)
	} else {
		_, err = distlock.Run(ctx, w.lock, snap)
	}
	if err != nil {
		logger.Error("report snapshot failed", "window_days", w.windowDays, "error", err.Error())
		return nil
	}
	if report == nil {
		return nil
	}

	w.mu.Lock()
	w.last = report
	w.mu.Unlock()
	logger.Info("report snapshot archived",
		"window_days", w.windowDays,
		"total_messages", report.TotalMessages,
		"recommendation", report.Recommendation)
	return report
}

// Last returns the most recent snapshot, or nil.
func (w *ReportWorker) Last() *analytics.Report {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last
}
