package engagement

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/engagement-agent/internal/domain"
	"github.com/ignite/engagement-agent/internal/pkg/clock"
	"github.com/ignite/engagement-agent/internal/segmentation"
)

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

// mockUserRepo is an in-memory user repository for testing.
type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMockUserRepo(users ...domain.User) *mockUserRepo {
	r := &mockUserRepo{users: make(map[string]*domain.User)}
	for i := range users {
		u := users[i]
		r.users[u.ID] = &u
	}
	return r
}

func (r *mockUserRepo) Get(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *mockUserRepo) List(_ context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *mockUserRepo) TouchActivity(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.LastActiveAt = at
	u.ChurnRiskScore = 0
	return nil
}

// mockMessageRepo is an in-memory message log for testing.
type mockMessageRepo struct {
	mu      sync.Mutex
	logs    []*domain.MessageLog
	failErr error
}

func newMockMessageRepo() *mockMessageRepo { return &mockMessageRepo{} }

func (r *mockMessageRepo) HasRecentMessage(_ context.Context, userID string, since time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return false, r.failErr
	}
	for _, m := range r.logs {
		if m.UserID == userID && !m.SentAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r *mockMessageRepo) Log(_ context.Context, m *domain.MessageLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, m)
	return nil
}

func (r *mockMessageRepo) MarkReactivated(_ context.Context, userID string, since time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.MessageLog
	for _, m := range r.logs {
		if m.UserID != userID || m.Category != domain.CategoryFlirty || m.SentAt.Before(since) {
			continue
		}
		if latest == nil || m.SentAt.After(latest.SentAt) {
			latest = m
		}
	}
	if latest == nil {
		return false, nil
	}
	latest.Reactivated = true
	return true, nil
}

func (r *mockMessageRepo) add(userID string, sentAt time.Time) {
	r.logs = append(r.logs, &domain.MessageLog{UserID: userID, Category: domain.CategoryFlirty, SentAt: sentAt})
}

func newTestEngine(history HistoryLookup) *Engine {
	return NewEngine(DefaultConfig(), segmentation.New(segmentation.EngagementProfile()), history, clock.Fixed(testNow))
}

func user(id string, age, inactive time.Duration) domain.User {
	return domain.User{
		ID:           id,
		Name:         "User " + id,
		CreatedAt:    testNow.Add(-age),
		LastActiveAt: testNow.Add(-inactive),
	}
}

func TestEvaluate_ActiveUserSkipped(t *testing.T) {
	e := newTestEngine(newMockMessageRepo())

	eval, err := e.Evaluate(context.Background(), user("u1", time.Hour, 30*time.Second))
	require.NoError(t, err)

	assert.False(t, eval.Eligible)
	assert.Equal(t, "User is currently active", eval.Reason)
	assert.Empty(t, eval.Segment)
	assert.Empty(t, eval.Tone)
}

func TestEvaluate_InactivityBoundaryIsStrict(t *testing.T) {
	e := newTestEngine(newMockMessageRepo())

	eval, err := e.Evaluate(context.Background(), user("u1", time.Hour, 60*time.Second))
	require.NoError(t, err)
	assert.False(t, eval.Eligible, "exactly 60s is still active")

	eval, err = e.Evaluate(context.Background(), user("u1", time.Hour, 61*time.Second))
	require.NoError(t, err)
	assert.True(t, eval.Eligible)
}

func TestEvaluate_RecentlyMessagedSkipped(t *testing.T) {
	repo := newMockMessageRepo()
	repo.add("u1", testNow.Add(-10*time.Hour))
	e := newTestEngine(repo)

	eval, err := e.Evaluate(context.Background(), user("u1", 48*time.Hour, 5*time.Minute))
	require.NoError(t, err)

	assert.False(t, eval.Eligible)
	assert.Equal(t, "User was messaged within last 24 hours", eval.Reason)
}

func TestEvaluate_OldMessageDoesNotBlock(t *testing.T) {
	repo := newMockMessageRepo()
	repo.add("u1", testNow.Add(-25*time.Hour))
	e := newTestEngine(repo)

	eval, err := e.Evaluate(context.Background(), user("u1", 48*time.Hour, 5*time.Minute))
	require.NoError(t, err)
	assert.True(t, eval.Eligible)
}

func TestEvaluate_EligibleDormant(t *testing.T) {
	e := newTestEngine(newMockMessageRepo())

	eval, err := e.Evaluate(context.Background(), user("u1", 10*time.Minute, 90*time.Minute))
	require.NoError(t, err)

	assert.True(t, eval.Eligible)
	assert.Equal(t, domain.SegmentDormant, eval.Segment)
	assert.Equal(t, domain.TonePlayful, eval.Tone)
	assert.Equal(t, "Eligible for engagement (segment: dormant)", eval.Reason)
}

func TestEvaluate_HistoryErrorPropagates(t *testing.T) {
	repo := newMockMessageRepo()
	repo.failErr = errors.New("connection refused")
	e := newTestEngine(repo)

	_, err := e.Evaluate(context.Background(), user("u1", time.Hour, 10*time.Minute))
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.failErr)
}

func TestEvaluate_ActiveUserNeverQueriesHistory(t *testing.T) {
	repo := newMockMessageRepo()
	repo.failErr = errors.New("should not be called")
	e := newTestEngine(repo)

	eval, err := e.Evaluate(context.Background(), user("u1", time.Hour, 10*time.Second))
	require.NoError(t, err)
	assert.False(t, eval.Eligible)
}

func TestAggregateStats(t *testing.T) {
	repo := newMockMessageRepo()
	repo.add("messaged", testNow.Add(-time.Hour))
	e := newTestEngine(repo)

	users := []domain.User{
		user("active", time.Hour, 10*time.Second),
		user("messaged", time.Hour, 10*time.Minute),
		user("dormant", 10*time.Hour, 2*time.Hour),
		user("loyal", 10*time.Hour, 10*time.Minute),
		user("normal", 3*time.Minute, 2*time.Minute),
	}

	stats, err := e.AggregateStats(context.Background(), users)
	require.NoError(t, err)

	assert.Equal(t, 5, stats.TotalUsers)
	assert.Equal(t, 3, stats.Eligible)
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, stats.TotalUsers, stats.Eligible+stats.Skipped)
	assert.Equal(t, map[domain.Segment]int{
		domain.SegmentDormant: 1,
		domain.SegmentLoyal:   1,
		domain.SegmentNormal:  1,
	}, stats.BySegment)
	assert.Equal(t, SkipReasons{Active: 1, RecentlyMessaged: 1}, stats.SkipReasons)
}

func TestAggregateStats_Empty(t *testing.T) {
	e := newTestEngine(newMockMessageRepo())

	stats, err := e.AggregateStats(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalUsers)
	assert.Equal(t, 0, stats.Eligible)
	assert.Len(t, stats.BySegment, 3)
}

func TestStats_AddClassification(t *testing.T) {
	s := NewStats(segmentation.EngagementProfile().Segments())

	s.Add(domain.Evaluation{Reason: "USER IS CURRENTLY ACTIVE"})
	s.Add(domain.Evaluation{Reason: "user was Messaged recently"})
	s.Add(domain.Evaluation{Reason: "opted out"})
	s.Add(domain.Evaluation{Eligible: true, Segment: domain.SegmentNewUser})

	assert.Equal(t, 4, s.TotalUsers)
	assert.Equal(t, 3, s.Skipped)
	assert.Equal(t, 1, s.Eligible)
	assert.Equal(t, SkipReasons{Active: 1, RecentlyMessaged: 1}, s.SkipReasons)
	_, ok := s.BySegment[domain.SegmentNewUser]
	assert.False(t, ok, "out-of-vocabulary segment gets no bucket")
}
