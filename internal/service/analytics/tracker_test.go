package analytics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/engagement-agent/internal/domain"
	"github.com/ignite/engagement-agent/internal/pkg/clock"
)

type memOutcomes struct {
	mu   sync.Mutex
	logs map[string]*domain.MessageLog
}

func (m *memOutcomes) MarkOpened(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.logs[id]
	if !ok {
		return ErrMessageNotFound
	}
	l.MarkOpened(at)
	return nil
}

func (m *memOutcomes) MarkClicked(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.logs[id]
	if !ok {
		return ErrMessageNotFound
	}
	l.MarkClicked(at)
	return nil
}

func TestTracker_Track(t *testing.T) {
	store := &memOutcomes{logs: map[string]*domain.MessageLog{"m1": {ID: "m1"}}}
	tr := NewTracker(store, clock.Fixed(testNow))

	require.NoError(t, tr.Track(context.Background(), "m1", ActionClick))
	m := store.logs["m1"]
	assert.True(t, m.Opened, "click implies open")
	assert.True(t, m.Clicked)
	assert.Equal(t, testNow, *m.OpenedAt)

	later := testNow.Add(time.Hour)
	require.NoError(t, tr.TrackAt(context.Background(), "m1", ActionOpen, later))
	assert.Equal(t, testNow, *m.OpenedAt, "first open time is kept")
}

func TestTracker_Errors(t *testing.T) {
	tr := NewTracker(&memOutcomes{logs: map[string]*domain.MessageLog{}}, clock.Fixed(testNow))

	assert.ErrorIs(t, tr.Track(context.Background(), "missing", ActionOpen), ErrMessageNotFound)
	assert.ErrorIs(t, tr.Track(context.Background(), "missing", "share"), ErrUnknownAction)
}

type memArchive struct {
	saved []*Report
	err   error
}

func (a *memArchive) SaveReport(_ context.Context, r *Report) error {
	a.saved = append(a.saved, r)
	return a.err
}

func TestService_Snapshot(t *testing.T) {
	archive := &memArchive{}
	svc := NewService(&stubSource{records: sampleRecords()}, DefaultFeedback(), clock.Fixed(testNow)).WithArchiver(archive)

	report, err := svc.Snapshot(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, archive.saved, 1)
	assert.Equal(t, 0.667, report.ByCategory[domain.CategoryFlirty].OpenRate)

	archive.err = assert.AnError
	_, err = svc.Snapshot(context.Background(), 7)
	assert.NoError(t, err, "archive failures are not fatal")
}
