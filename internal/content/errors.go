package content

import (
	"errors"
	"fmt"
)

// ErrMissingContextKey is matched by every MissingContextKeyError.
var ErrMissingContextKey = errors.New("missing context key")

// ErrUnsupportedPlaceholder is returned by Compile for template syntax whose
// inputs cannot be checked against a flat context, such as {{ user.name }},
// {{ items[0] }} or {% if name %} tags.
var ErrUnsupportedPlaceholder = errors.New("unsupported placeholder")

// MissingContextKeyError reports a placeholder with no value in the
// rendering context.
type MissingContextKeyError struct {
	Key string
}

func (e *MissingContextKeyError) Error() string {
	return fmt.Sprintf("missing context key %q", e.Key)
}

func (e *MissingContextKeyError) Is(target error) bool {
	return target == ErrMissingContextKey
}
