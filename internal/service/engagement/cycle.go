package engagement

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ignite/engagement-agent/internal/domain"
	"github.com/ignite/engagement-agent/internal/pkg/logger"
)

// SourceEngagementCycle tags payloads produced by the cycle.
const SourceEngagementCycle = "engagement_agent"

// CycleResult summarises one engagement cycle.
type CycleResult struct {
	TotalUsers       int                    `json:"total_users"`
	MessagesSent     int                    `json:"messages_sent"`
	UsersSkipped     int                    `json:"users_skipped"`
	SegmentBreakdown map[domain.Segment]int `json:"segment_breakdown"`
	Stats            *Stats                 `json:"stats"`
}

// Cycle evaluates every user, sends engagement messages to the eligible ones,
// and tallies the run. Runs in one process are serialized; callers in
// different processes share a distlock.Lock.
type Cycle struct {
	mu       sync.Mutex
	engine   *Engine
	users    UserRepository
	messages MessageRepository
	renderer Renderer
	dispatch Dispatcher
}

// NewCycle wires a cycle. dispatch may be nil, in which case messages are only
// logged.
func NewCycle(engine *Engine, users UserRepository, messages MessageRepository, renderer Renderer, dispatch Dispatcher) *Cycle {
	return &Cycle{engine: engine, users: users, messages: messages, renderer: renderer, dispatch: dispatch}
}

// Run executes one cycle. Evaluation happens at one instant so a message
// logged for user A never makes user B look recently messaged. Payloads are
// handed to the dispatcher before anything is logged: a failed enqueue leaves
// no log rows behind, so the next run retries the same users.
func (c *Cycle) Run(ctx context.Context) (*CycleResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	users, err := c.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	now := c.engine.clock.Now()
	stats := NewStats(c.engine.segmenter.Profile().Segments())
	evals := make([]domain.Evaluation, len(users))
	for i, u := range users {
		eval, err := c.engine.evaluateAt(ctx, u, now)
		if err != nil {
			return nil, err
		}
		evals[i] = eval
		stats.Add(eval)
	}

	result := &CycleResult{
		TotalUsers:       len(users),
		SegmentBreakdown: NewStats(c.engine.segmenter.Profile().Segments()).BySegment,
		Stats:            stats,
	}

	var (
		msgs     []*domain.MessageLog
		payloads []domain.Payload
		segments []domain.Segment
	)
	for i, u := range users {
		eval := evals[i]
		if !eval.Eligible {
			result.UsersSkipped++
			continue
		}

		text, err := c.renderer.Render(eval.Tone, map[string]string{"name": u.Name})
		if err != nil {
			return nil, fmt.Errorf("render message for user %s: %w", u.ID, err)
		}

		msg := &domain.MessageLog{
			ID:       uuid.New().String(),
			UserID:   u.ID,
			Category: domain.CategoryFlirty,
			Type:     string(eval.Tone),
			Channel:  domain.ChannelPush,
			Content:  text,
			Status:   domain.StatusSent,
			SentAt:   now,
		}
		msgs = append(msgs, msg)
		segments = append(segments, eval.Segment)
		payloads = append(payloads, domain.Payload{
			UserID:    u.ID,
			Category:  domain.CategoryFlirty,
			Type:      string(eval.Tone),
			Channel:   domain.ChannelPush,
			Priority:  domain.PriorityMedium,
			Message:   text,
			Status:    domain.StatusPending,
			CreatedAt: now,
			Metadata: map[string]any{
				"source":     SourceEngagementCycle,
				"message_id": msg.ID,
				"segment":    string(eval.Segment),
			},
		})
	}

	if c.dispatch != nil && len(payloads) > 0 {
		if err := c.dispatch.Enqueue(ctx, payloads...); err != nil {
			return nil, fmt.Errorf("enqueue engagement payloads: %w", err)
		}
	}

	for i, msg := range msgs {
		if err := c.messages.Log(ctx, msg); err != nil {
			return nil, fmt.Errorf("log message for user %s: %w", msg.UserID, err)
		}
		result.MessagesSent++
		if _, ok := result.SegmentBreakdown[segments[i]]; ok {
			result.SegmentBreakdown[segments[i]]++
		}
		logger.Info("engagement message sent", "user_id", msg.UserID, "segment", segments[i], "tone", msg.Type)
	}

	logger.Info("engagement cycle complete",
		"total_users", result.TotalUsers,
		"messages_sent", result.MessagesSent,
		"users_skipped", result.UsersSkipped)
	return result, nil
}
