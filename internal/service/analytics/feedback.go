package analytics

import (
	"math"

	"github.com/ignite/engagement-agent/internal/domain"
)

// Recommendation texts.
const (
	RecInsufficientData = "Insufficient data to compare message types."
	RecIncreaseFlirty   = "Increase frequency of Flirty Agent messages."
	RecRefineFlirty     = "Refine Flirty tone or adjust timing."
	RecEqual            = "Both strategies performing equally. Test new variants."
)

// Feedback compares the primary category against a baseline.
type Feedback struct {
	Primary  domain.Category
	Baseline domain.Category
	// Scores closer than Tolerance count as equal. Zero means exact equality.
	Tolerance float64
}

// DefaultFeedback compares flirty against utility with exact equality.
func DefaultFeedback() Feedback {
	return Feedback{Primary: domain.CategoryFlirty, Baseline: domain.CategoryUtility}
}

// Recommend returns one of the four recommendation texts. byCategory must
// hold unrounded funnel-weighted metrics.
func (f Feedback) Recommend(byCategory map[domain.Category]Metrics) string {
	primary, ok := byCategory[f.Primary]
	if !ok {
		return RecInsufficientData
	}
	baseline, ok := byCategory[f.Baseline]
	if !ok {
		return RecInsufficientData
	}

	diff := primary.EngagementScore - baseline.EngagementScore
	switch {
	case math.Abs(diff) <= f.Tolerance:
		return RecEqual
	case diff > 0:
		return RecIncreaseFlirty
	default:
		return RecRefineFlirty
	}
}
