package user

import (
	"context"
	"time"

	"github.com/ignite/engagement-agent/internal/domain"
)

// Repository defines the data access contract for users.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single user. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.User, error)

	// List returns every user ordered by created_at.
	List(ctx context.Context) ([]domain.User, error)

	// Create inserts a new user and returns its ID.
	Create(ctx context.Context, u *domain.User) (string, error)

	// UpdatePreferences applies the non-nil opt-out fields.
	UpdatePreferences(ctx context.Context, id string, p Preferences) error

	// SetLastUtilityMessage records when the user last got a utility message.
	SetLastUtilityMessage(ctx context.Context, id string, at time.Time) error
}

// MessageReader reads a user's message history.
type MessageReader interface {
	// LastMessage returns nil, nil when the user has never been messaged.
	LastMessage(ctx context.Context, userID string) (*domain.MessageLog, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.MessageLog, error)
}

// Preferences holds the mutable opt-out flags. Nil fields are not applied.
type Preferences struct {
	UtilityOptOut   *bool `json:"utility_opt_out"`
	BroadcastOptOut *bool `json:"broadcast_opt_out"`
}
