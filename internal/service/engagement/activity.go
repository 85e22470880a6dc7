package engagement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/engagement-agent/internal/domain"
	"github.com/ignite/engagement-agent/internal/pkg/logger"
)

// ActivityResult describes what LogActivity did.
type ActivityResult struct {
	UserID        string        `json:"user_id"`
	InactiveFor   time.Duration `json:"-"`
	InactiveHuman string        `json:"inactive_for"`
	WelcomeBack   bool          `json:"welcome_back"`
	Message       string        `json:"message,omitempty"`
	Reactivated   bool          `json:"reactivated"`
	LastActiveAt  time.Time     `json:"last_active_at"`
}

// ActivityService records user activity and greets returning dormant users.
type ActivityService struct {
	engine   *Engine
	users    UserRepository
	messages MessageRepository
	renderer Renderer
}

// NewActivityService wires the activity flow.
func NewActivityService(engine *Engine, users UserRepository, messages MessageRepository, renderer Renderer) *ActivityService {
	return &ActivityService{engine: engine, users: users, messages: messages, renderer: renderer}
}

// LogActivity marks the user active now. A user coming back after at least
// the dormant threshold gets a welcome_back message, and their latest
// engagement message inside the frequency window is flagged as the one that
// reactivated them.
func (s *ActivityService) LogActivity(ctx context.Context, userID string) (*ActivityResult, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.engine.clock.Now()
	res := &ActivityResult{
		UserID:        user.ID,
		InactiveFor:   now.Sub(user.LastActiveAt),
		InactiveHuman: HumanizeInactivity(now.Sub(user.LastActiveAt)),
		LastActiveAt:  now,
	}

	if s.engine.segmenter.IsDormant(user.LastActiveAt, now) {
		text, err := s.renderer.Render(domain.ToneWelcomeBack, map[string]string{"name": user.Name})
		if err != nil {
			return nil, fmt.Errorf("render welcome back: %w", err)
		}
		msg := &domain.MessageLog{
			ID:       uuid.New().String(),
			UserID:   user.ID,
			Category: domain.CategoryFlirty,
			Type:     string(domain.ToneWelcomeBack),
			Channel:  domain.ChannelPush,
			Content:  text,
			Status:   domain.StatusSent,
			SentAt:   now,
		}
		reactivated, err := s.messages.MarkReactivated(ctx, user.ID, now.Add(-s.engine.cfg.FrequencyWindow))
		if err != nil {
			return nil, fmt.Errorf("mark reactivation: %w", err)
		}
		if err := s.messages.Log(ctx, msg); err != nil {
			return nil, fmt.Errorf("log welcome back: %w", err)
		}
		res.WelcomeBack = true
		res.Message = text
		res.Reactivated = reactivated
		logger.Info("welcome back sent", "user_id", user.ID, "inactive_for", res.InactiveHuman, "reactivated", reactivated)
	}

	if err := s.users.TouchActivity(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("touch activity: %w", err)
	}
	return res, nil
}

// HumanizeInactivity renders a span as minutes under an hour, hours under a
// day, and days beyond that.
func HumanizeInactivity(d time.Duration) string {
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%.1f minutes", d.Minutes())
	case d < 24*time.Hour:
		return fmt.Sprintf("%.1f hours", d.Hours())
	default:
		return fmt.Sprintf("%.1f days", d.Hours()/24)
	}
}
