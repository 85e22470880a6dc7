package utility

import (
	"fmt"

	"github.com/ignite/engagement-agent/internal/domain"
	"github.com/ignite/engagement-agent/internal/pkg/logger"
)

// ValidateBroadcast checks that broadcastType exists and ctx fills its
// template. Callers use it to tell an invalid request apart from a broadcast
// that simply had no eligible recipients.
func (s *Service) ValidateBroadcast(broadcastType string, ctx map[string]string) error {
	cfg, ok := s.broadcasts.Lookup(broadcastType)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBroadcastType, broadcastType)
	}
	return cfg.Template.Check(ctx)
}

// CreateBroadcast renders the broadcast once and returns one payload per user
// who has not opted out, in input order. An unknown type or missing
// placeholder yields an empty result.
func (s *Service) CreateBroadcast(users []domain.User, broadcastType string, ctx map[string]string) []domain.Payload {
	cfg, ok := s.broadcasts.Lookup(broadcastType)
	if !ok {
		logger.Warn("broadcast skipped", "type", broadcastType, "reason", "unknown type")
		return []domain.Payload{}
	}

	message, err := cfg.Template.Execute(ctx)
	if err != nil {
		logger.Warn("broadcast skipped", "type", broadcastType, "reason", err.Error())
		return []domain.Payload{}
	}

	channel := BroadcastChannel(cfg.Priority)
	now := s.clock.Now()

	payloads := make([]domain.Payload, 0, len(users))
	for _, u := range users {
		if u.BroadcastOptOut {
			continue
		}
		payloads = append(payloads, domain.Payload{
			UserID:    u.ID,
			Category:  domain.CategoryUtility,
			Type:      broadcastType,
			Channel:   channel,
			Priority:  cfg.Priority,
			Message:   message,
			Status:    domain.StatusPending,
			CreatedAt: now,
			Metadata:  map[string]any{"source": SourceBroadcastEngine},
		})
	}

	logger.Info("broadcast built", "type", broadcastType, "recipients", len(payloads), "audience", len(users))
	return payloads
}
