package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/engagement-agent/internal/pkg/httputil"
	"github.com/ignite/engagement-agent/internal/service/user"
)

// CreateUser handles POST /api/users
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in user.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	u, err := h.users.Create(r.Context(), in)
	if err != nil {
		if errors.Is(err, user.ErrNameRequired) || errors.Is(err, user.ErrInvalidEmail) {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, u)
}

// ListUsers handles GET /api/users. Each user carries a segment computed
// now, not a stored one.
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListEnriched(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"users": users,
		"total": len(users),
	})
}

// GetUser handles GET /api/users/{id}
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeUserError(w, err)
		return
	}
	httputil.OK(w, u)
}

// UpdatePreferences handles PATCH /api/users/{id}/preferences
func (h *Handlers) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var p user.Preferences
	if !httputil.Decode(w, r, &p) {
		return
	}
	u, err := h.users.UpdatePreferences(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeUserError(w, err)
		return
	}
	httputil.OK(w, u)
}

// LogActivity handles POST /api/users/{id}/activity
func (h *Handlers) LogActivity(w http.ResponseWriter, r *http.Request) {
	res, err := h.activity.LogActivity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeUserError(w, err)
		return
	}
	httputil.OK(w, res)
}

// ListUserMessages handles GET /api/users/{id}/messages?limit=N
func (h *Handlers) ListUserMessages(w http.ResponseWriter, r *http.Request) {
	limit, ok := httputil.QueryInt(w, r, "limit", user.DefaultMessageLimit)
	if !ok {
		return
	}
	msgs, err := h.users.Messages(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeUserError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"messages": msgs,
		"total":    len(msgs),
	})
}

func writeUserError(w http.ResponseWriter, err error) {
	if errors.Is(err, user.ErrNotFound) {
		httputil.NotFound(w, "user not found")
		return
	}
	httputil.InternalError(w, err)
}
