package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSender is returned when a sender is outside ValidSenders.
	ErrInvalidSender = errors.New("invalid sender")

	// ErrDuplicateMessageID is returned when the store already holds the message_id.
	ErrDuplicateMessageID = errors.New("message_id already exists")
)

// MissingFieldError reports a required field that was empty or absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// NotFoundError reports a read that produced no results.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s found", e.Resource)
}
