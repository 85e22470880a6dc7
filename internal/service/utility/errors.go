package utility

import "errors"

// Sentinel errors for the utility service layer.
var (
	ErrUnknownReminderType  = errors.New("unknown reminder type")
	ErrUnknownBroadcastType = errors.New("unknown broadcast type")
)
