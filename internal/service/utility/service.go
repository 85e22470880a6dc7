package utility

import (
	"github.com/ignite/engagement-agent/internal/content"
	"github.com/ignite/engagement-agent/internal/domain"
	"github.com/ignite/engagement-agent/internal/pkg/clock"
)

// Payload metadata sources.
const (
	SourceReminderEngine  = "utility_reminder_engine"
	SourceBroadcastEngine = "broadcast_engine"
)

// Service builds utility payloads. It holds only immutable catalogs and is
// safe for concurrent use.
type Service struct {
	reminders  *content.ReminderCatalog
	broadcasts *content.BroadcastCatalog
	clock      clock.Clock
}

// NewService creates a utility service. A nil clock uses the wall clock.
func NewService(reminders *content.ReminderCatalog, broadcasts *content.BroadcastCatalog, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Service{reminders: reminders, broadcasts: broadcasts, clock: clk}
}

// ReminderTypes lists the known reminder types.
func (s *Service) ReminderTypes() []string { return s.reminders.Types() }

// BroadcastTypes lists the known broadcast types.
func (s *Service) BroadcastTypes() []string { return s.broadcasts.Types() }

// ReminderChannel maps reminder priority to a channel: high goes to push,
// medium to email, anything else to push.
func ReminderChannel(p domain.Priority) domain.Channel {
	switch p {
	case domain.PriorityHigh:
		return domain.ChannelPush
	case domain.PriorityMedium:
		return domain.ChannelEmail
	default:
		return domain.ChannelPush
	}
}

// BroadcastChannel maps broadcast priority to a channel: high goes to push,
// anything else to email.
func BroadcastChannel(p domain.Priority) domain.Channel {
	if p == domain.PriorityHigh {
		return domain.ChannelPush
	}
	return domain.ChannelEmail
}
