package api

import (
	"context"
	"net/http"

	"github.com/ignite/engagement-agent/internal/pkg/distlock"
	"github.com/ignite/engagement-agent/internal/pkg/httputil"
	"github.com/ignite/engagement-agent/internal/service/analytics"
	"github.com/ignite/engagement-agent/internal/service/engagement"
	"github.com/ignite/engagement-agent/internal/service/user"
	"github.com/ignite/engagement-agent/internal/service/utility"
	"github.com/ignite/engagement-agent/internal/storage"
)

// HistoryStore reads archived recommendations.
type HistoryStore interface {
	RecommendationHistory(ctx context.Context, limit int) ([]storage.RecommendationEntry, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	users    *user.Service
	engine   *engagement.Engine
	cycle    *engagement.Cycle
	activity *engagement.ActivityService
	// cycleLock returns a fresh lock per request; nil runs the cycle
	// without cross-process exclusion.
	cycleLock func() distlock.Lock

	utility *utility.Service
	sender  *utility.Sender

	analytics  *analytics.Service
	tracker    *analytics.Tracker
	history    HistoryStore
	windowDays int
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	users *user.Service,
	engine *engagement.Engine,
	cycle *engagement.Cycle,
	activity *engagement.ActivityService,
) *Handlers {
	return &Handlers{
		users:      users,
		engine:     engine,
		cycle:      cycle,
		activity:   activity,
		windowDays: 7,
	}
}

// SetCycleLock makes manual cycle runs take the same lock as the cycle
// worker. newLock is called once per request.
func (h *Handlers) SetCycleLock(newLock func() distlock.Lock) {
	h.cycleLock = newLock
}

// SetUtility sets the reminder and broadcast services
func (h *Handlers) SetUtility(svc *utility.Service, sender *utility.Sender) {
	h.utility = svc
	h.sender = sender
}

// SetAnalytics sets the metrics service, the interaction tracker and the
// default reporting window in days.
func (h *Handlers) SetAnalytics(svc *analytics.Service, tracker *analytics.Tracker, windowDays int) {
	h.analytics = svc
	h.tracker = tracker
	if windowDays > 0 {
		h.windowDays = windowDays
	}
}

// SetHistory sets the recommendation archive
func (h *Handlers) SetHistory(history HistoryStore) {
	h.history = history
}

// HealthCheck is the lightweight liveness handler used when no
// HealthChecker is wired.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "healthy"})
}

func notConfigured(w http.ResponseWriter, what string) {
	httputil.Error(w, http.StatusServiceUnavailable, what+" not configured")
}
