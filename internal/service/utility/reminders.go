package utility

import (
	"fmt"
	"time"

	"github.com/ignite/engagement-agent/internal/domain"
	"github.com/ignite/engagement-agent/internal/pkg/logger"
)

// ValidateReminder checks that reminderType exists and ctx fills its
// template.
func (s *Service) ValidateReminder(reminderType string, ctx map[string]string) error {
	cfg, ok := s.reminders.Lookup(reminderType)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownReminderType, reminderType)
	}
	return cfg.Template.Check(ctx)
}

// CooldownElapsed reports whether a reminder with the given cooldown may go
// out. A user never sent a utility message always passes.
func CooldownElapsed(last *time.Time, cooldown time.Duration, now time.Time) bool {
	if last == nil {
		return true
	}
	return now.Sub(*last) >= cooldown
}

// ProcessReminder builds a reminder payload for user, or returns nil when the
// user opted out, the type is unknown, ctx lacks a placeholder, or the
// cooldown has not elapsed. Checks run in that order.
func (s *Service) ProcessReminder(user domain.User, reminderType string, ctx map[string]string) *domain.Payload {
	if user.UtilityOptOut {
		logger.Debug("reminder skipped", "user_id", user.ID, "type", reminderType, "reason", "opted out")
		return nil
	}

	cfg, ok := s.reminders.Lookup(reminderType)
	if !ok {
		logger.Warn("reminder skipped", "user_id", user.ID, "type", reminderType, "reason", "unknown type")
		return nil
	}

	message, err := cfg.Template.Execute(ctx)
	if err != nil {
		logger.Warn("reminder skipped", "user_id", user.ID, "type", reminderType, "reason", err.Error())
		return nil
	}

	now := s.clock.Now()
	if !CooldownElapsed(user.LastUtilityMessageAt, cfg.Cooldown, now) {
		logger.Debug("reminder skipped", "user_id", user.ID, "type", reminderType, "reason", "cooldown")
		return nil
	}

	return &domain.Payload{
		UserID:    user.ID,
		Category:  domain.CategoryUtility,
		Type:      reminderType,
		Channel:   ReminderChannel(cfg.Priority),
		Priority:  cfg.Priority,
		Message:   message,
		Status:    domain.StatusPending,
		CreatedAt: now,
		Metadata: map[string]any{
			"source":      SourceReminderEngine,
			"retry_count": 0,
		},
	}
}
