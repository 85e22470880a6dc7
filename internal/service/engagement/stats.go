package engagement

import (
	"context"
	"strings"

	"github.com/ignite/engagement-agent/internal/domain"
)

// SkipReasons counts skipped users by reason class.
type SkipReasons struct {
	Active           int `json:"active"`
	RecentlyMessaged int `json:"recently_messaged"`
}

// Stats summarises a batch of evaluations.
type Stats struct {
	TotalUsers  int                    `json:"total_users"`
	Eligible    int                    `json:"eligible"`
	Skipped     int                    `json:"skipped"`
	BySegment   map[domain.Segment]int `json:"by_segment"`
	SkipReasons SkipReasons            `json:"skip_reasons"`
}

// NewStats returns zeroed stats with a histogram entry for every segment in
// vocabulary.
func NewStats(vocabulary []domain.Segment) *Stats {
	s := &Stats{BySegment: make(map[domain.Segment]int, len(vocabulary))}
	for _, seg := range vocabulary {
		s.BySegment[seg] = 0
	}
	return s
}

// Add folds one evaluation into the stats. Segments outside the histogram
// vocabulary count as eligible but get no bucket.
func (s *Stats) Add(eval domain.Evaluation) {
	s.TotalUsers++
	if eval.Eligible {
		s.Eligible++
		if _, ok := s.BySegment[eval.Segment]; ok {
			s.BySegment[eval.Segment]++
		}
		return
	}

	s.Skipped++
	reason := strings.ToLower(eval.Reason)
	switch {
	case strings.Contains(reason, "active"):
		s.SkipReasons.Active++
	case strings.Contains(reason, "messaged"):
		s.SkipReasons.RecentlyMessaged++
	}
}

// AggregateStats evaluates every user at a single instant and tallies the
// results. The first history lookup failure aborts the batch.
func (e *Engine) AggregateStats(ctx context.Context, users []domain.User) (*Stats, error) {
	now := e.clock.Now()
	stats := NewStats(e.segmenter.Profile().Segments())
	for _, u := range users {
		eval, err := e.evaluateAt(ctx, u, now)
		if err != nil {
			return nil, err
		}
		stats.Add(eval)
	}
	return stats, nil
}
