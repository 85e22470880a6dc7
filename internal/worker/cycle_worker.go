package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/engagement-agent/internal/pkg/distlock"
	"github.com/ignite/engagement-agent/internal/pkg/logger"
	"github.com/ignite/engagement-agent/internal/service/engagement"
)

// DefaultCycleInterval is how often the engagement cycle runs.
const DefaultCycleInterval = 60 * time.Second

// CycleRunner runs one engagement cycle.
type CycleRunner interface {
	Run(ctx context.Context) (*engagement.CycleResult, error)
}

// CycleStats are the worker's lifetime counters.
type CycleStats struct {
	CyclesRun    int64 `json:"cycles_run"`
	MessagesSent int64 `json:"messages_sent"`
	LockMisses   int64 `json:"lock_misses"`
	Errors       int64 `json:"errors"`
}

// CycleWorker runs the engagement cycle on a ticker. The lock keeps two
// worker processes from messaging the same users in the same tick.
type CycleWorker struct {
	cycle    CycleRunner
	lock     distlock.Lock
	interval time.Duration

	cyclesRun    int64
	messagesSent int64
	lockMisses   int64
	errors       int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewCycleWorker creates a cycle worker. A zero interval uses
// DefaultCycleInterval.
func NewCycleWorker(cycle CycleRunner, lock distlock.Lock, interval time.Duration) *CycleWorker {
	if interval <= 0 {
		interval = DefaultCycleInterval
	}
	return &CycleWorker{cycle: cycle, lock: lock, interval: interval}
}

// Start runs one cycle immediately and then one per interval.
func (w *CycleWorker) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("cycle worker already running")
	}
	w.running = true
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.mu.Unlock()

	logger.Info("cycle worker starting", "interval", w.interval.String())

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop cancels the loop and waits for an in-flight cycle to finish.
func (w *CycleWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
	s := w.Stats()
	logger.Info("cycle worker stopped", "cycles_run", s.CyclesRun, "messages_sent", s.MessagesSent)
}

func (w *CycleWorker) loop() {
	defer w.wg.Done()

	w.RunOnce(w.ctx)

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
}

// RunOnce runs a cycle if the lock is free. It returns nil when another
// process holds the lock or the cycle failed; failures are logged and
// counted.
func (w *CycleWorker) RunOnce(ctx context.Context) *engagement.CycleResult {
	var result *engagement.CycleResult
	ran, err := distlock.Run(ctx, w.lock, func(ctx context.Context) error {
		res, err := w.cycle.Run(ctx)
		if err != nil {
			return err
		}
		result = res
		return nil
	})

	switch {
	case err != nil:
		atomic.AddInt64(&w.errors, 1)
		logger.Error("engagement cycle failed", "error", err.Error())
		return nil
	case !ran:
		atomic.AddInt64(&w.lockMisses, 1)
		logger.Debug("engagement cycle skipped, lock held elsewhere")
		return nil
	}

	atomic.AddInt64(&w.cyclesRun, 1)
	atomic.AddInt64(&w.messagesSent, int64(result.MessagesSent))
	return result
}

// Stats returns a snapshot of the counters.
func (w *CycleWorker) Stats() CycleStats {
	return CycleStats{
		CyclesRun:    atomic.LoadInt64(&w.cyclesRun),
		MessagesSent: atomic.LoadInt64(&w.messagesSent),
		LockMisses:   atomic.LoadInt64(&w.lockMisses),
		Errors:       atomic.LoadInt64(&w.errors),
	}
}

// IsRunning reports whether Start has been called without Stop.
func (w *CycleWorker) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}
