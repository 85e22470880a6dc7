package analytics

import (
	"math"
	"time"

	"github.com/ignite/engagement-agent/internal/domain"
)

// Weights combine the three funnel rates into one engagement score.
type Weights struct {
	Open         float64 `json:"open"`
	Click        float64 `json:"click"`
	Reactivation float64 `json:"reactivation"`
}

var (
	// FunnelWeights score per-category breakdowns and drive feedback.
	FunnelWeights = Weights{Open: 0.4, Click: 0.3, Reactivation: 0.3}
	// DashboardWeights score the cross-category dashboard summary.
	DashboardWeights = Weights{Open: 0.6, Click: 0.4}
)

// Metrics are the counts and rates of a set of outcome records.
type Metrics struct {
	Sent             int     `json:"sent"`
	Opened           int     `json:"opened"`
	Clicked          int     `json:"clicked"`
	Reactivated      int     `json:"reactivated"`
	OpenRate         float64 `json:"open_rate"`
	CTR              float64 `json:"ctr"`
	ReactivationRate float64 `json:"reactivation_rate"`
	EngagementScore  float64 `json:"engagement_score"`
}

// Rounded returns a copy with every rate rounded to three decimals.
func (m Metrics) Rounded() Metrics {
	m.OpenRate = Round(m.OpenRate, 3)
	m.CTR = Round(m.CTR, 3)
	m.ReactivationRate = Round(m.ReactivationRate, 3)
	m.EngagementScore = Round(m.EngagementScore, 3)
	return m
}

// Summarize computes counts, rates, and the weighted score. Each rate is 0
// when its denominator is 0.
func Summarize(records []domain.MessageLog, w Weights) Metrics {
	var m Metrics
	for _, r := range records {
		m.Sent++
		if r.Opened {
			m.Opened++
		}
		if r.Clicked {
			m.Clicked++
		}
		if r.Reactivated {
			m.Reactivated++
		}
	}
	m.OpenRate = ratio(m.Opened, m.Sent)
	m.CTR = ratio(m.Clicked, m.Opened)
	m.ReactivationRate = ratio(m.Reactivated, m.Sent)
	m.EngagementScore = w.Open*m.OpenRate + w.Click*m.CTR + w.Reactivation*m.ReactivationRate
	return m
}

// ByCategory summarizes each category present in records.
func ByCategory(records []domain.MessageLog, w Weights) map[domain.Category]Metrics {
	groups := make(map[domain.Category][]domain.MessageLog)
	for _, r := range records {
		groups[r.Category] = append(groups[r.Category], r)
	}
	out := make(map[domain.Category]Metrics, len(groups))
	for cat, recs := range groups {
		out[cat] = Summarize(recs, w)
	}
	return out
}

// DailyStat is one bucket of the daily series.
type DailyStat struct {
	Date       string  `json:"date"`
	Day        string  `json:"day"`
	Sent       int     `json:"sent"`
	Opened     int     `json:"opened"`
	Engagement float64 `json:"engagement"`
}

// DailySeries buckets records into days consecutive half-open 24h intervals
// ending with the one that starts at now. Engagement is the open percentage
// rounded to one decimal.
func DailySeries(records []domain.MessageLog, days int, now time.Time) []DailyStat {
	out := make([]DailyStat, 0, days)
	for i := 0; i < days; i++ {
		start := now.Add(-time.Duration(days-i-1) * 24 * time.Hour)
		end := start.Add(24 * time.Hour)

		stat := DailyStat{Date: start.Format("2006-01-02"), Day: start.Format("Mon")}
		for _, r := range records {
			if r.SentAt.Before(start) || !r.SentAt.Before(end) {
				continue
			}
			stat.Sent++
			if r.Opened {
				stat.Opened++
			}
		}
		stat.Engagement = Round(100*ratio(stat.Opened, stat.Sent), 1)
		out = append(out, stat)
	}
	return out
}

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
