package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/engagement-agent/internal/domain"
	"github.com/ignite/engagement-agent/internal/pkg/logger"
)

const (
	// MaxDeliveryRetries is how many times a failed payload is requeued.
	MaxDeliveryRetries = 3

	defaultDequeueTimeout = 5 * time.Second
)

// PayloadQueue is the dispatch queue the delivery worker drains.
type PayloadQueue interface {
	Enqueue(ctx context.Context, payloads ...domain.Payload) error
	// Dequeue returns nil, nil when nothing arrived within timeout.
	Dequeue(ctx context.Context, timeout time.Duration) (*domain.Payload, error)
}

// Deliverer hands one payload to a push or email provider.
type Deliverer interface {
	Deliver(ctx context.Context, p domain.Payload) error
}

// LogDeliverer logs payloads instead of delivering them. It is the
// deliverer used until a provider is configured.
type LogDeliverer struct{}

func (LogDeliverer) Deliver(_ context.Context, p domain.Payload) error {
	logger.Info("payload delivered",
		"user_id", p.UserID,
		"category", p.Category,
		"type", p.Type,
		"channel", p.Channel,
		"priority", p.Priority,
		"message_id", p.Metadata["message_id"])
	return nil
}

// DeliveryWorker pops payloads off the dispatch queue and delivers them.
type DeliveryWorker struct {
	queue     PayloadQueue
	deliverer Deliverer
	timeout   time.Duration

	delivered int64
	requeued  int64
	dropped   int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewDeliveryWorker creates a delivery worker. A nil deliverer logs.
func NewDeliveryWorker(queue PayloadQueue, deliverer Deliverer) *DeliveryWorker {
	if deliverer == nil {
		deliverer = LogDeliverer{}
	}
	return &DeliveryWorker{queue: queue, deliverer: deliverer, timeout: defaultDequeueTimeout}
}

// Start begins draining the queue.
func (w *DeliveryWorker) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("delivery worker already running")
	}
	w.running = true
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.mu.Unlock()

	logger.Info("delivery worker starting")

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-w.ctx.Done():
				return
			default:
			}
			if _, err := w.ProcessNext(w.ctx); err != nil && w.ctx.Err() == nil {
				logger.Warn("dispatch dequeue failed", "error", err.Error())
				select {
				case <-w.ctx.Done():
					return
				case <-time.After(time.Second):
				}
			}
		}
	}()
	return nil
}

// Stop cancels the loop and waits for the in-flight payload.
func (w *DeliveryWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
	logger.Info("delivery worker stopped",
		"delivered", atomic.LoadInt64(&w.delivered),
		"requeued", atomic.LoadInt64(&w.requeued),
		"dropped", atomic.LoadInt64(&w.dropped))
}

// ProcessNext delivers at most one payload. It reports whether a payload
// was taken off the queue. A failed delivery is requeued with its
// retry_count bumped, and dropped after MaxDeliveryRetries.
func (w *DeliveryWorker) ProcessNext(ctx context.Context) (bool, error) {
	p, err := w.queue.Dequeue(ctx, w.timeout)
	if err != nil || p == nil {
		return false, err
	}

	err = w.deliverer.Deliver(ctx, *p)
	if err == nil {
		atomic.AddInt64(&w.delivered, 1)
		return true, nil
	}

	retries := retryCount(p.Metadata)
	if retries >= MaxDeliveryRetries {
		atomic.AddInt64(&w.dropped, 1)
		logger.Error("payload dropped", "user_id", p.UserID, "type", p.Type, "retries", retries, "error", err.Error())
		return true, nil
	}
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	p.Metadata["retry_count"] = retries + 1
	if qerr := w.queue.Enqueue(ctx, *p); qerr != nil {
		return true, fmt.Errorf("requeue payload: %w", qerr)
	}
	atomic.AddInt64(&w.requeued, 1)
	logger.Warn("payload requeued", "user_id", p.UserID, "type", p.Type, "retry_count", retries+1, "error", err.Error())
	return true, nil
}

// retryCount reads metadata["retry_count"], which is an int when the payload
// was built in process and a float64 after a JSON round trip.
func retryCount(meta map[string]any) int {
	switch v := meta["retry_count"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
