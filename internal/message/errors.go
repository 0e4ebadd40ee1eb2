package message

import "errors"

// Message errors.
var (
	// ErrUnknownTag indicates the tag is not one of the built-in commands.
	ErrUnknownTag = errors.New("message: unknown tag")

	// ErrInvalidPayload indicates the payload does not have the shape the tag requires.
	ErrInvalidPayload = errors.New("message: invalid payload")
)
