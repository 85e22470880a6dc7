package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/engagement-agent/internal/domain"
	"github.com/ignite/engagement-agent/internal/pkg/clock"
	"github.com/ignite/engagement-agent/internal/pkg/logger"
)

// RecordSource loads outcome records sent at or after a cutoff.
type RecordSource interface {
	ListSince(ctx context.Context, since time.Time) ([]domain.MessageLog, error)
}

// Report is the metrics view of a reporting window.
type Report struct {
	PeriodDays     int                         `json:"period_days"`
	GeneratedAt    time.Time                   `json:"generated_at"`
	TotalMessages  int                         `json:"total_messages"`
	Overall        Metrics                     `json:"overall"`
	ByCategory     map[domain.Category]Metrics `json:"by_category"`
	Daily          []DailyStat                 `json:"daily_stats"`
	Recommendation string                      `json:"recommendation"`
}

// Rounded returns a copy with every rate rounded for presentation.
func (r *Report) Rounded() *Report {
	out := *r
	out.Overall = r.Overall.Rounded()
	out.ByCategory = make(map[domain.Category]Metrics, len(r.ByCategory))
	for k, v := range r.ByCategory {
		out.ByCategory[k] = v.Rounded()
	}
	return &out
}

// ComputeReport builds a report from records. The overall summary uses the
// dashboard weighting and the category breakdown uses the funnel weighting.
// windowDays > 0 drops records sent before now minus that many days.
func ComputeReport(records []domain.MessageLog, windowDays int, now time.Time, fb Feedback) *Report {
	if windowDays > 0 {
		cutoff := now.Add(-time.Duration(windowDays) * 24 * time.Hour)
		kept := make([]domain.MessageLog, 0, len(records))
		for _, r := range records {
			if !r.SentAt.Before(cutoff) {
				kept = append(kept, r)
			}
		}
		records = kept
	}

	byCategory := ByCategory(records, FunnelWeights)
	report := &Report{
		PeriodDays:     windowDays,
		GeneratedAt:    now,
		TotalMessages:  len(records),
		Overall:        Summarize(records, DashboardWeights),
		ByCategory:     byCategory,
		Recommendation: fb.Recommend(byCategory),
	}
	if windowDays > 0 {
		report.Daily = DailySeries(records, windowDays, now)
	}
	return report
}

// Archiver persists computed reports.
type Archiver interface {
	SaveReport(ctx context.Context, r *Report) error
}

// Service computes reports from stored outcome records.
type Service struct {
	source   RecordSource
	feedback Feedback
	clock    clock.Clock
	archive  Archiver
}

// NewService creates an analytics service. A nil clock uses the wall clock.
func NewService(source RecordSource, fb Feedback, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Service{source: source, feedback: fb, clock: clk}
}

// WithArchiver sets where Snapshot stores reports.
func (s *Service) WithArchiver(a Archiver) *Service {
	s.archive = a
	return s
}

// Compute loads the last windowDays of records and reports on them.
func (s *Service) Compute(ctx context.Context, windowDays int) (*Report, error) {
	if windowDays < 1 {
		return nil, ErrInvalidWindow
	}
	now := s.clock.Now()
	records, err := s.source.ListSince(ctx, now.Add(-time.Duration(windowDays)*24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("load outcome records: %w", err)
	}
	return ComputeReport(records, windowDays, now, s.feedback), nil
}

// Recommend loads the last windowDays of records and returns the feedback
// recommendation.
func (s *Service) Recommend(ctx context.Context, windowDays int) (string, error) {
	report, err := s.Compute(ctx, windowDays)
	if err != nil {
		return "", err
	}
	return report.Recommendation, nil
}

// Snapshot computes a report and hands the rounded copy to the archiver, if
// one is set. An archive failure is logged and does not fail the call.
func (s *Service) Snapshot(ctx context.Context, windowDays int) (*Report, error) {
	report, err := s.Compute(ctx, windowDays)
	if err != nil {
		return nil, err
	}
	rounded := report.Rounded()
	if s.archive != nil {
		if err := s.archive.SaveReport(ctx, rounded); err != nil {
			logger.Warn("report archive failed", "period_days", windowDays, "error", err.Error())
		}
	}
	return rounded, nil
}
