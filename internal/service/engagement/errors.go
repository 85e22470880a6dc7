package engagement

import "errors"

// Sentinel errors for the engagement service layer.
var (
	ErrUserNotFound = errors.New("user not found")
)
