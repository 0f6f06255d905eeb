package attachments

import "errors"

var (
	// ErrNoStrategy indicates no removal strategy is registered for a type.
	ErrNoStrategy = errors.New("no removal strategy registered")

	// ErrInvalidRequest indicates a removal request missing identifying fields.
	ErrInvalidRequest = errors.New("invalid removal request")
)
