package engagement

import (
	"context"
	"time"

	"github.com/ignite/engagement-agent/internal/domain"
)

// HistoryLookup answers whether a user was messaged at or after a cutoff.
type HistoryLookup interface {
	HasRecentMessage(ctx context.Context, userID string, since time.Time) (bool, error)
}

// UserRepository is the user data the cycle and activity flows need.
type UserRepository interface {
	// Get returns ErrUserNotFound when the user does not exist.
	Get(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	// TouchActivity sets last_active_at and resets the churn risk score.
	TouchActivity(ctx context.Context, id string, at time.Time) error
}

// MessageRepository records sent messages.
type MessageRepository interface {
	HistoryLookup
	Log(ctx context.Context, m *domain.MessageLog) error
	// MarkReactivated flags the user's most recent engagement message sent
	// at or after since. It reports whether a message was flagged.
	MarkReactivated(ctx context.Context, userID string, since time.Time) (bool, error)
}

// Renderer produces message text for a tone.
type Renderer interface {
	Render(tone domain.Tone, ctx map[string]string) (string, error)
}

// Dispatcher hands payloads to the delivery side.
type Dispatcher interface {
	Enqueue(ctx context.Context, payloads ...domain.Payload) error
}
