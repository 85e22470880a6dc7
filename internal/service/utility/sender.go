package utility

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/engagement-agent/internal/content"
	"github.com/ignite/engagement-agent/internal/domain"
	"github.com/ignite/engagement-agent/internal/pkg/logger"
)

// UserStore is the user data the sender needs.
type UserStore interface {
	Get(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	SetLastUtilityMessage(ctx context.Context, id string, at time.Time) error
}

// MessageLogger persists sent messages.
type MessageLogger interface {
	Log(ctx context.Context, m *domain.MessageLog) error
}

// Dispatcher hands payloads to the delivery side.
type Dispatcher interface {
	Enqueue(ctx context.Context, payloads ...domain.Payload) error
}

// SendResult reports what a send call produced.
type SendResult struct {
	Sent       bool             `json:"sent"`
	Recipients int              `json:"recipients"`
	Payloads   []domain.Payload `json:"payloads"`
}

// Sender turns reminder and broadcast requests into logged, dispatched
// messages.
type Sender struct {
	svc      *Service
	users    UserStore
	messages MessageLogger
	dispatch Dispatcher
}

// NewSender wires a sender. dispatch may be nil.
func NewSender(svc *Service, users UserStore, messages MessageLogger, dispatch Dispatcher) *Sender {
	return &Sender{svc: svc, users: users, messages: messages, dispatch: dispatch}
}

// SendReminder validates the request, then processes the reminder for one
// user. A reminder suppressed by opt-out or cooldown returns Sent=false with
// no error.
func (s *Sender) SendReminder(ctx context.Context, userID, reminderType string, vars map[string]string) (*SendResult, error) {
	if err := s.svc.ValidateReminder(reminderType, vars); err != nil {
		return nil, err
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	p := s.svc.ProcessReminder(*user, reminderType, vars)
	if p == nil {
		return &SendResult{Payloads: []domain.Payload{}}, nil
	}

	// Nothing is logged and the cooldown is not refreshed until the payload
	// is queued, so a failed enqueue can be retried at once.
	stampMessageID(p)
	if err := s.enqueue(ctx, *p); err != nil {
		return nil, err
	}
	if err := s.record(ctx, p); err != nil {
		return nil, err
	}
	if err := s.users.SetLastUtilityMessage(ctx, user.ID, p.CreatedAt); err != nil {
		return nil, fmt.Errorf("set last utility message: %w", err)
	}
	return &SendResult{Sent: true, Recipients: 1, Payloads: []domain.Payload{*p}}, nil
}

// SendBroadcast sends broadcastType to every user who has not opted out.
// An invalid request is an error; an audience with no eligible users is not.
func (s *Sender) SendBroadcast(ctx context.Context, broadcastType string, vars map[string]string) (*SendResult, error) {
	if err := s.svc.ValidateBroadcast(broadcastType, vars); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	payloads := s.svc.CreateBroadcast(users, broadcastType, vars)
	for i := range payloads {
		stampMessageID(&payloads[i])
	}
	if err := s.enqueue(ctx, payloads...); err != nil {
		return nil, err
	}
	for i := range payloads {
		if err := s.record(ctx, &payloads[i]); err != nil {
			return nil, err
		}
	}
	return &SendResult{Sent: len(payloads) > 0, Recipients: len(payloads), Payloads: payloads}, nil
}

// stampMessageID gives p the ID its log row will carry.
func stampMessageID(p *domain.Payload) {
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	p.Metadata["message_id"] = uuid.New().String()
}

// record logs p as a sent message under the ID stamped into its metadata.
func (s *Sender) record(ctx context.Context, p *domain.Payload) error {
	id, _ := p.Metadata["message_id"].(string)
	msg := &domain.MessageLog{
		ID:       id,
		UserID:   p.UserID,
		Category: p.Category,
		Type:     p.Type,
		Channel:  p.Channel,
		Content:  p.Message,
		Status:   domain.StatusSent,
		SentAt:   p.CreatedAt,
	}
	if err := s.messages.Log(ctx, msg); err != nil {
		return fmt.Errorf("log %s message for user %s: %w", p.Type, p.UserID, err)
	}
	return nil
}

func (s *Sender) enqueue(ctx context.Context, payloads ...domain.Payload) error {
	if s.dispatch == nil || len(payloads) == 0 {
		return nil
	}
	if err := s.dispatch.Enqueue(ctx, payloads...); err != nil {
		logger.Error("utility enqueue failed", "count", len(payloads), "error", err.Error())
		return fmt.Errorf("enqueue utility payloads: %w", err)
	}
	return nil
}

// IsInvalidRequest reports whether err came from request validation rather
// than storage or dispatch.
func IsInvalidRequest(err error) bool {
	return errors.Is(err, ErrUnknownReminderType) ||
		errors.Is(err, ErrUnknownBroadcastType) ||
		errors.Is(err, content.ErrMissingContextKey)
}
