package user

import (
	"errors"

	"github.com/ignite/engagement-agent/internal/service/engagement"
)

// Sentinel errors for the user service layer.
var (
	// ErrNotFound is shared with the engagement service so repositories
	// return a single value for a missing user.
	ErrNotFound     = engagement.ErrUserNotFound
	ErrNameRequired = errors.New("name is required")
	ErrInvalidEmail = errors.New("a valid email is required")
)
