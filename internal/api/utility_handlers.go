package api

import (
	"errors"
	"net/http"

	"github.com/ignite/engagement-agent/internal/pkg/httputil"
	"github.com/ignite/engagement-agent/internal/service/user"
	"github.com/ignite/engagement-agent/internal/service/utility"
)

// ReminderRequest is the body of POST /api/utility/reminders
type ReminderRequest struct {
	UserID       string            `json:"user_id"`
	ReminderType string            `json:"reminder_type"`
	Context      map[string]string `json:"context"`
}

// BroadcastRequest is the body of POST /api/utility/broadcasts
type BroadcastRequest struct {
	BroadcastType string            `json:"broadcast_type"`
	Context       map[string]string `json:"context"`
}

// SendReminder handles POST /api/utility/reminders
func (h *Handlers) SendReminder(w http.ResponseWriter, r *http.Request) {
	if h.sender == nil {
		notConfigured(w, "utility messaging")
		return
	}
	var req ReminderRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.UserID == "" || req.ReminderType == "" {
		httputil.BadRequest(w, "user_id and reminder_type are required")
		return
	}

	res, err := h.sender.SendReminder(r.Context(), req.UserID, req.ReminderType, req.Context)
	switch {
	case err == nil:
		httputil.OK(w, res)
	case errors.Is(err, utility.ErrUnknownReminderType):
		httputil.ErrorWithCode(w, http.StatusBadRequest, "unknown_reminder_type", err.Error(), h.utility.ReminderTypes())
	case utility.IsInvalidRequest(err):
		httputil.ErrorWithCode(w, http.StatusBadRequest, "missing_context", err.Error(), nil)
	case errors.Is(err, user.ErrNotFound):
		httputil.NotFound(w, "user not found")
	default:
		httputil.InternalError(w, err)
	}
}

// SendBroadcast handles POST /api/utility/broadcasts
func (h *Handlers) SendBroadcast(w http.ResponseWriter, r *http.Request) {
	if h.sender == nil {
		notConfigured(w, "utility messaging")
		return
	}
	var req BroadcastRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.BroadcastType == "" {
		httputil.BadRequest(w, "broadcast_type is required")
		return
	}

	res, err := h.sender.SendBroadcast(r.Context(), req.BroadcastType, req.Context)
	switch {
	case err == nil:
		httputil.OK(w, res)
	case errors.Is(err, utility.ErrUnknownBroadcastType):
		httputil.ErrorWithCode(w, http.StatusBadRequest, "unknown_broadcast_type", err.Error(), h.utility.BroadcastTypes())
	case utility.IsInvalidRequest(err):
		httputil.ErrorWithCode(w, http.StatusBadRequest, "missing_context", err.Error(), nil)
	default:
		httputil.InternalError(w, err)
	}
}

// ListUtilityTypes handles GET /api/utility/types
func (h *Handlers) ListUtilityTypes(w http.ResponseWriter, r *http.Request) {
	if h.utility == nil {
		notConfigured(w, "utility messaging")
		return
	}
	httputil.OK(w, map[string][]string{
		"reminders":  h.utility.ReminderTypes(),
		"broadcasts": h.utility.BroadcastTypes(),
	})
}
