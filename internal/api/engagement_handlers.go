package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/engagement-agent/internal/pkg/distlock"
	"github.com/ignite/engagement-agent/internal/pkg/httputil"
	"github.com/ignite/engagement-agent/internal/pkg/logger"
	"github.com/ignite/engagement-agent/internal/service/engagement"
)

// RunCycle handles POST /api/engagement/run
//
// Answers 409 while another process holds the cycle lock.
func (h *Handlers) RunCycle(w http.ResponseWriter, r *http.Request) {
	if h.cycleLock == nil {
		res, err := h.cycle.Run(r.Context())
		if err != nil {
			httputil.InternalError(w, err)
			return
		}
		httputil.OK(w, res)
		return
	}

	var res *engagement.CycleResult
	ran, err := distlock.Run(r.Context(), h.cycleLock(), func(ctx context.Context) error {
		var err error
		res, err = h.cycle.Run(ctx)
		return err
	})
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if !ran {
		logger.Info("manual engagement cycle skipped, lock held elsewhere")
		httputil.ErrorWithCode(w, http.StatusConflict, "cycle_in_progress",
			"an engagement cycle is already running", nil)
		return
	}
	httputil.OK(w, res)
}

// GetEngagementStats handles GET /api/engagement/stats
func (h *Handlers) GetEngagementStats(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	stats, err := h.engine.AggregateStats(r.Context(), users)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, stats)
}

// EvaluateUser handles GET /api/engagement/users/{id}
func (h *Handlers) EvaluateUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeUserError(w, err)
		return
	}
	eval, err := h.engine.Evaluate(r.Context(), *u)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, eval)
}
