package analytics

import "errors"

// Sentinel errors for the analytics service layer.
var (
	ErrInvalidWindow   = errors.New("window must be at least one day")
	ErrMessageNotFound = errors.New("message not found")
	ErrUnknownAction   = errors.New("unknown tracking action")
)
