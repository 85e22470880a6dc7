package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/engagement-agent/internal/domain"
	"github.com/ignite/engagement-agent/internal/pkg/clock"
)

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func rec(cat domain.Category, opened, clicked, reactivated bool) domain.MessageLog {
	return domain.MessageLog{
		Category:    cat,
		SentAt:      testNow.Add(-time.Hour),
		Opened:      opened,
		Clicked:     clicked,
		Reactivated: reactivated,
	}
}

// sampleRecords: flirty 3 sent / 2 opened / 2 clicked / 2 reactivated,
// utility 3 sent / 2 opened / 0 clicked.
func sampleRecords() []domain.MessageLog {
	return []domain.MessageLog{
		rec(domain.CategoryFlirty, true, true, true),
		rec(domain.CategoryFlirty, false, false, false),
		rec(domain.CategoryUtility, true, false, false),
		rec(domain.CategoryFlirty, true, true, true),
		rec(domain.CategoryUtility, false, false, false),
		rec(domain.CategoryUtility, true, false, false),
	}
}

func TestByCategory_FunnelWeights(t *testing.T) {
	got := ByCategory(sampleRecords(), FunnelWeights)
	require.Len(t, got, 2)

	flirty := got[domain.CategoryFlirty].Rounded()
	assert.Equal(t, 3, flirty.Sent)
	assert.Equal(t, 0.667, flirty.OpenRate)
	assert.Equal(t, 1.0, flirty.CTR)
	assert.Equal(t, 0.667, flirty.ReactivationRate)
	assert.Equal(t, 0.767, flirty.EngagementScore)

	utility := got[domain.CategoryUtility].Rounded()
	assert.Equal(t, 0.667, utility.OpenRate)
	assert.Equal(t, 0.0, utility.CTR)
	assert.Equal(t, 0.267, utility.EngagementScore)
}

func TestSummarize_SingleOpenedRecord(t *testing.T) {
	m := Summarize([]domain.MessageLog{rec(domain.CategoryFlirty, true, false, false)}, FunnelWeights)

	assert.Equal(t, 1.0, m.OpenRate)
	assert.Equal(t, 0.0, m.CTR)
	assert.Equal(t, 0.0, m.ReactivationRate)
	assert.InDelta(t, 0.4, m.EngagementScore, 1e-9)
}

func TestSummarize_ZeroDenominators(t *testing.T) {
	m := Summarize(nil, FunnelWeights)
	assert.Equal(t, Metrics{}, m)

	m = Summarize([]domain.MessageLog{rec(domain.CategoryUtility, false, false, false)}, FunnelWeights)
	assert.Equal(t, 0.0, m.CTR, "no opens means zero ctr")
}

func TestSummarize_DashboardWeights(t *testing.T) {
	m := Summarize(sampleRecords(), DashboardWeights).Rounded()
	assert.Equal(t, 6, m.Sent)
	assert.Equal(t, 0.667, m.OpenRate)
	assert.Equal(t, 0.5, m.CTR)
	assert.Equal(t, 0.6, m.EngagementScore)
}

func TestMetrics_RatesStayInUnitInterval(t *testing.T) {
	for _, m := range ByCategory(sampleRecords(), FunnelWeights) {
		for _, v := range []float64{m.OpenRate, m.CTR, m.ReactivationRate, m.EngagementScore} {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestDailySeries_HalfOpenBuckets(t *testing.T) {
	at := func(d time.Duration, opened bool) domain.MessageLog {
		return domain.MessageLog{SentAt: testNow.Add(d), Opened: opened}
	}
	records := []domain.MessageLog{
		at(-48*time.Hour-time.Minute, true), // before the first bucket
		at(-48*time.Hour, true),             // first bucket start
		at(-time.Hour, true),
		at(-time.Hour, false),
		at(0, false), // last bucket start
	}

	series := DailySeries(records, 3, testNow)
	require.Len(t, series, 3)

	assert.Equal(t, DailyStat{Date: "2026-05-02", Day: "Sat", Sent: 1, Opened: 1, Engagement: 100}, series[0])
	assert.Equal(t, DailyStat{Date: "2026-05-03", Day: "Sun", Sent: 2, Opened: 1, Engagement: 50}, series[1])
	assert.Equal(t, DailyStat{Date: "2026-05-04", Day: "Mon", Sent: 1, Opened: 0, Engagement: 0}, series[2])
}

func TestDailySeries_RoundsToOneDecimal(t *testing.T) {
	records := []domain.MessageLog{
		{SentAt: testNow, Opened: true},
		{SentAt: testNow},
		{SentAt: testNow},
	}
	series := DailySeries(records, 1, testNow)
	require.Len(t, series, 1)
	assert.Equal(t, 33.3, series[0].Engagement)
}

func TestComputeReport_WindowFilter(t *testing.T) {
	records := append(sampleRecords(), domain.MessageLog{
		Category: domain.CategoryFlirty,
		SentAt:   testNow.Add(-10 * 24 * time.Hour),
		Opened:   true,
	})

	report := ComputeReport(records, 7, testNow, DefaultFeedback())
	assert.Equal(t, 6, report.TotalMessages)
	assert.Equal(t, 7, report.PeriodDays)
	assert.Len(t, report.Daily, 7)
	assert.Equal(t, RecIncreaseFlirty, report.Recommendation)

	all := ComputeReport(records, 0, testNow, DefaultFeedback())
	assert.Equal(t, 7, all.TotalMessages)
	assert.Empty(t, all.Daily)
}

func TestReport_RoundedDoesNotMutate(t *testing.T) {
	report := ComputeReport(sampleRecords(), 7, testNow, DefaultFeedback())
	raw := report.ByCategory[domain.CategoryFlirty].OpenRate

	rounded := report.Rounded()
	assert.Equal(t, 0.667, rounded.ByCategory[domain.CategoryFlirty].OpenRate)
	assert.Equal(t, raw, report.ByCategory[domain.CategoryFlirty].OpenRate)
}

type stubSource struct {
	records []domain.MessageLog
	since   time.Time
	err     error
}

func (s *stubSource) ListSince(_ context.Context, since time.Time) ([]domain.MessageLog, error) {
	s.since = since
	return s.records, s.err
}

func TestService_Compute(t *testing.T) {
	src := &stubSource{records: sampleRecords()}
	svc := NewService(src, DefaultFeedback(), clock.Fixed(testNow))

	report, err := svc.Compute(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(-7*24*time.Hour), src.since)
	assert.Equal(t, 6, report.TotalMessages)

	_, err = svc.Compute(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	src.err = errors.New("db down")
	_, err = svc.Recommend(context.Background(), 7)
	assert.ErrorIs(t, err, src.err)
}
