package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/engagement-agent/internal/pkg/clock"
	"github.com/ignite/engagement-agent/internal/pkg/logger"
)

// Tracking actions.
const (
	ActionOpen  = "open"
	ActionClick = "click"
)

// OutcomeRecorder persists interactions on a sent message. Both calls keep
// the earliest timestamp and never clear a flag. MarkClicked also marks the
// message opened. They return ErrMessageNotFound for an unknown ID.
type OutcomeRecorder interface {
	MarkOpened(ctx context.Context, messageID string, at time.Time) error
	MarkClicked(ctx context.Context, messageID string, at time.Time) error
}

// Tracker records opens and clicks.
type Tracker struct {
	recorder OutcomeRecorder
	clock    clock.Clock
}

// NewTracker creates a tracker. A nil clock uses the wall clock.
func NewTracker(recorder OutcomeRecorder, clk clock.Clock) *Tracker {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Tracker{recorder: recorder, clock: clk}
}

// Track applies action to messageID at the current time.
func (t *Tracker) Track(ctx context.Context, messageID, action string) error {
	return t.TrackAt(ctx, messageID, action, t.clock.Now())
}

// TrackAt applies action to messageID at a given time, for events that were
// observed earlier and delivered late.
func (t *Tracker) TrackAt(ctx context.Context, messageID, action string, at time.Time) error {
	var err error
	switch action {
	case ActionOpen:
		err = t.recorder.MarkOpened(ctx, messageID, at)
	case ActionClick:
		err = t.recorder.MarkClicked(ctx, messageID, at)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if err != nil {
		return err
	}
	logger.Debug("interaction tracked", "message_id", messageID, "action", action)
	return nil
}
