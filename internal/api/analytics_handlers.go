package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/engagement-agent/internal/pkg/httputil"
	"github.com/ignite/engagement-agent/internal/service/analytics"
)

// GetMetrics handles GET /api/analytics/metrics?days=N
func (h *Handlers) GetMetrics(w http.ResponseWriter, r *http.Request) {
	if h.analytics == nil {
		notConfigured(w, "analytics")
		return
	}
	days, ok := httputil.QueryInt(w, r, "days", h.windowDays)
	if !ok {
		return
	}
	report, err := h.analytics.Compute(r.Context(), days)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}
	httputil.OK(w, report.Rounded())
}

// GetRecommendation handles GET /api/analytics/recommendation?days=N
func (h *Handlers) GetRecommendation(w http.ResponseWriter, r *http.Request) {
	if h.analytics == nil {
		notConfigured(w, "analytics")
		return
	}
	days, ok := httputil.QueryInt(w, r, "days", h.windowDays)
	if !ok {
		return
	}
	rec, err := h.analytics.Recommend(r.Context(), days)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"period_days":    days,
		"recommendation": rec,
	})
}

// CreateSnapshot handles POST /api/analytics/snapshot?days=N. The report is
// archived when an archive is configured.
func (h *Handlers) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.analytics == nil {
		notConfigured(w, "analytics")
		return
	}
	days, ok := httputil.QueryInt(w, r, "days", h.windowDays)
	if !ok {
		return
	}
	report, err := h.analytics.Snapshot(r.Context(), days)
	if err != nil {
		writeAnalyticsError(w, err)
		return
	}
	httputil.Created(w, report)
}

// GetRecommendationHistory handles GET /api/analytics/history?limit=N
func (h *Handlers) GetRecommendationHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		notConfigured(w, "report archive")
		return
	}
	limit, ok := httputil.QueryInt(w, r, "limit", 30)
	if !ok {
		return
	}
	entries, err := h.history.RecommendationHistory(r.Context(), limit)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"history": entries,
		"total":   len(entries),
	})
}

// TrackInteraction handles POST /api/analytics/track/{messageID}?action=open|click
func (h *Handlers) TrackInteraction(w http.ResponseWriter, r *http.Request) {
	if h.tracker == nil {
		notConfigured(w, "tracking")
		return
	}
	id := chi.URLParam(r, "messageID")
	action := r.URL.Query().Get("action")
	if err := h.tracker.Track(r.Context(), id, action); err != nil {
		writeAnalyticsError(w, err)
		return
	}
	httputil.OK(w, map[string]string{
		"message_id": id,
		"action":     action,
		"status":     "tracked",
	})
}

func writeAnalyticsError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, analytics.ErrInvalidWindow), errors.Is(err, analytics.ErrUnknownAction):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, analytics.ErrMessageNotFound):
		httputil.NotFound(w, "message not found")
	default:
		httputil.InternalError(w, err)
	}
}
