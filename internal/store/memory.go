package store

import (
	"context"
	"sort"
	"sync"

	"github.com/eldtechnologies/chatmsg/internal/models"
)

// MemoryStore keeps messages in process memory. It is used by tests and by
// DATABASE_DRIVER=memory.
type MemoryStore struct {
	mu       sync.RWMutex
	messages []models.Message
	ids      map[string]struct{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ids: make(map[string]struct{})}
}

// Close is a no-op.
func (s *MemoryStore) Close() {}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Save stores a copy of msg.
func (s *MemoryStore) Save(ctx context.Context, msg *models.Message) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[msg.MessageID]; exists {
		return nil, ErrDuplicateKey
	}

	stored := msg.Clone()
	s.ids[stored.MessageID] = struct{}{}
	s.messages = append(s.messages, stored)

	out := stored.Clone()
	return &out, nil
}

// GetBySession returns matching messages ordered by timestamp, then insertion.
func (s *MemoryStore) GetBySession(ctx context.Context, sessionID string, limit, offset int, sender string) ([]models.Message, error) {
	s.mu.RLock()
	matched := make([]models.Message, 0)
	for _, m := range s.messages {
		if m.SessionID != sessionID {
			continue
		}
		if sender != "" && m.Sender != sender {
			continue
		}
		matched = append(matched, m.Clone())
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})

	offset = max(offset, 0)
	limit = max(limit, 0)
	if offset >= len(matched) {
		return []models.Message{}, nil
	}
	matched = matched[offset:]
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}
