package engagement

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/engagement-agent/internal/domain"
	"github.com/ignite/engagement-agent/internal/pkg/clock"
	"github.com/ignite/engagement-agent/internal/pkg/logger"
	"github.com/ignite/engagement-agent/internal/segmentation"
)

// Reason texts. Stats classification matches on the words "active" and
// "messaged", so keep them in these strings.
const (
	ReasonCurrentlyActive = "User is currently active"
	reasonMessagedFmt     = "User was messaged within last %d hours"
	reasonEligibleFmt     = "Eligible for engagement (segment: %s)"
)

// Config holds the eligibility thresholds.
type Config struct {
	// A user is inactive only when strictly more than this has elapsed.
	InactivityThreshold time.Duration
	FrequencyWindow     time.Duration
}

// DefaultConfig returns a 60 second inactivity threshold and a 24 hour
// frequency window.
func DefaultConfig() Config {
	return Config{
		InactivityThreshold: 60 * time.Second,
		FrequencyWindow:     24 * time.Hour,
	}
}

// Engine evaluates users for engagement eligibility.
type Engine struct {
	cfg       Config
	segmenter *segmentation.Segmenter
	history   HistoryLookup
	clock     clock.Clock
}

// NewEngine creates an engine. A nil clock uses the wall clock.
func NewEngine(cfg Config, seg *segmentation.Segmenter, history HistoryLookup, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Engine{cfg: cfg, segmenter: seg, history: history, clock: clk}
}

// Config returns the thresholds in use.
func (e *Engine) Config() Config { return e.cfg }

// Segmenter returns the segmenter in use.
func (e *Engine) Segmenter() *segmentation.Segmenter { return e.segmenter }

// Evaluate decides whether user should receive an engagement message now.
// History lookup failures are returned, never treated as "not messaged".
func (e *Engine) Evaluate(ctx context.Context, user domain.User) (domain.Evaluation, error) {
	return e.evaluateAt(ctx, user, e.clock.Now())
}

func (e *Engine) evaluateAt(ctx context.Context, user domain.User, now time.Time) (domain.Evaluation, error) {
	eval := domain.Evaluation{UserID: user.ID}

	if now.Sub(user.LastActiveAt) <= e.cfg.InactivityThreshold {
		eval.Reason = ReasonCurrentlyActive
		logger.Debug("engagement skip", "user_id", user.ID, "reason", eval.Reason)
		return eval, nil
	}

	recent, err := e.history.HasRecentMessage(ctx, user.ID, now.Add(-e.cfg.FrequencyWindow))
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("message history for user %s: %w", user.ID, err)
	}
	if recent {
		eval.Reason = fmt.Sprintf(reasonMessagedFmt, int(e.cfg.FrequencyWindow.Hours()))
		logger.Debug("engagement skip", "user_id", user.ID, "reason", eval.Reason)
		return eval, nil
	}

	eval.Eligible = true
	eval.Segment, eval.Tone = e.segmenter.SegmentAndTone(user.CreatedAt, user.LastActiveAt, now)
	eval.Reason = fmt.Sprintf(reasonEligibleFmt, eval.Segment)
	logger.Info("engagement eligible", "user_id", user.ID, "segment", eval.Segment, "tone", eval.Tone)
	return eval, nil
}
