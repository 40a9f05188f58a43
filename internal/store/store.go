package store

import (
	"context"
	"errors"

	"github.com/eldtechnologies/chatmsg/internal/models"
)

// ErrDuplicateKey is returned by Save when the message_id is already stored.
var ErrDuplicateKey = errors.New("duplicate message_id")

// MessageStore defines persistent storage for messages.
// PostgresStore, SQLStore and MemoryStore implement this interface.
type MessageStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Save inserts a new message keyed by its message_id. A message_id that
	// already exists yields ErrDuplicateKey and stores nothing.
	Save(ctx context.Context, msg *models.Message) (*models.Message, error)

	// GetBySession returns a session's messages oldest first, optionally
	// restricted to one sender, skipping offset and returning at most limit.
	// No match is an empty slice, not an error.
	GetBySession(ctx context.Context, sessionID string, limit, offset int, sender string) ([]models.Message, error)
}
