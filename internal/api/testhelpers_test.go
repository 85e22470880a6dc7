package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ignite/engagement-agent/internal/content"
	"github.com/ignite/engagement-agent/internal/domain"
	"github.com/ignite/engagement-agent/internal/pkg/clock"
	"github.com/ignite/engagement-agent/internal/segmentation"
	"github.com/ignite/engagement-agent/internal/service/analytics"
	"github.com/ignite/engagement-agent/internal/service/engagement"
	"github.com/ignite/engagement-agent/internal/service/user"
	"github.com/ignite/engagement-agent/internal/service/utility"
	"github.com/ignite/engagement-agent/internal/storage"
)

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

// memUserStore is an in-memory user repository for handler tests.
type memUserStore struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemUserStore(users ...domain.User) *memUserStore {
	s := &memUserStore{users: make(map[string]*domain.User)}
	for i := range users {
		u := users[i]
		s.users[u.ID] = &u
	}
	return s
}

func (s *memUserStore) Get(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memUserStore) List(_ context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memUserStore) Create(_ context.Context, u *domain.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[cp.ID] = &cp
	return cp.ID, nil
}

func (s *memUserStore) UpdatePreferences(_ context.Context, id string, p user.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return user.ErrNotFound
	}
	if p.UtilityOptOut != nil {
		u.UtilityOptOut = *p.UtilityOptOut
	}
	if p.BroadcastOptOut != nil {
		u.BroadcastOptOut = *p.BroadcastOptOut
	}
	return nil
}

func (s *memUserStore) SetLastUtilityMessage(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.LastUtilityMessageAt = &at
	}
	return nil
}

func (s *memUserStore) TouchActivity(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return user.ErrNotFound
	}
	u.LastActiveAt = at
	u.ChurnRiskScore = 0
	return nil
}

// memMessageStore is an in-memory message log for handler tests.
type memMessageStore struct {
	mu   sync.Mutex
	logs []*domain.MessageLog
}

func (s *memMessageStore) Log(_ context.Context, m *domain.MessageLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.logs = append(s.logs, &cp)
	return nil
}

func (s *memMessageStore) HasRecentMessage(_ context.Context, userID string, since time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.logs {
		if m.UserID == userID && !m.SentAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memMessageStore) MarkReactivated(_ context.Context, userID string, since time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.logs) - 1; i >= 0; i-- {
		m := s.logs[i]
		if m.UserID == userID && m.Category == domain.CategoryFlirty &&
			m.Type != string(domain.ToneWelcomeBack) && !m.SentAt.Before(since) {
			m.Reactivated = true
			return true, nil
		}
	}
	return false, nil
}

func (s *memMessageStore) LastMessage(_ context.Context, userID string) (*domain.MessageLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.logs) - 1; i >= 0; i-- {
		if s.logs[i].UserID == userID {
			cp := *s.logs[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memMessageStore) ListByUser(_ context.Context, userID string, limit int) ([]domain.MessageLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MessageLog
	for i := len(s.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if s.logs[i].UserID == userID {
			out = append(out, *s.logs[i])
		}
	}
	return out, nil
}

func (s *memMessageStore) ListSince(_ context.Context, since time.Time) ([]domain.MessageLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MessageLog
	for _, m := range s.logs {
		if !m.SentAt.Before(since) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *memMessageStore) find(id string) *domain.MessageLog {
	for _, m := range s.logs {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (s *memMessageStore) MarkOpened(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.find(id)
	if m == nil {
		return analytics.ErrMessageNotFound
	}
	m.MarkOpened(at)
	return nil
}

func (s *memMessageStore) MarkClicked(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.find(id)
	if m == nil {
		return analytics.ErrMessageNotFound
	}
	m.MarkClicked(at)
	return nil
}

type memHistory struct {
	entries []storage.RecommendationEntry
}

func (h *memHistory) RecommendationHistory(_ context.Context, limit int) ([]storage.RecommendationEntry, error) {
	if len(h.entries) > limit {
		return h.entries[:limit], nil
	}
	return h.entries, nil
}

type testEnv struct {
	h        *Handlers
	users    *memUserStore
	messages *memMessageStore
	history  *memHistory
	handler  http.Handler
}

func setupTestHandlers(t *testing.T, users ...domain.User) *testEnv {
	t.Helper()
	clk := clock.Fixed(testNow)
	us := newMemUserStore(users...)
	ms := &memMessageStore{}

	seg := segmentation.New(segmentation.EngagementProfile())
	engine := engagement.NewEngine(engagement.DefaultConfig(), seg, ms, clk)
	tpl := content.NewEngine()
	catalog, err := content.NewCatalog(tpl, nil)
	require.NoError(t, err)
	reminders, err := content.NewReminderCatalog(tpl)
	require.NoError(t, err)
	broadcasts, err := content.NewBroadcastCatalog(tpl)
	require.NoError(t, err)

	h := NewHandlers(
		user.NewService(us, ms, seg, clk),
		engine,
		engagement.NewCycle(engine, us, ms, catalog, nil),
		engagement.NewActivityService(engine, us, ms, catalog),
	)
	util := utility.NewService(reminders, broadcasts, clk)
	h.SetUtility(util, utility.NewSender(util, us, ms, nil))
	h.SetAnalytics(analytics.NewService(ms, analytics.DefaultFeedback(), clk), analytics.NewTracker(ms, clk), 7)
	hist := &memHistory{}
	h.SetHistory(hist)

	return &testEnv{
		h:        h,
		users:    us,
		messages: ms,
		history:  hist,
		handler:  SetupRoutes(h, nil, []string{"*"}),
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func ago(d time.Duration) time.Time { return testNow.Add(-d) }
