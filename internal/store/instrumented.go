package store

import (
	"context"
	"time"

	"github.com/eldtechnologies/chatmsg/internal/metrics"
	"github.com/eldtechnologies/chatmsg/internal/models"
)

// InstrumentedStore records the latency of every store call.
type InstrumentedStore struct {
	next    MessageStore
	backend string
}

// Instrumented wraps next so each operation is observed under backend.
func Instrumented(next MessageStore, backend string) *InstrumentedStore {
	return &InstrumentedStore{next: next, backend: backend}
}

func (s *InstrumentedStore) observe(op string, start time.Time) {
	metrics.StoreLatency.WithLabelValues(s.backend, op).Observe(time.Since(start).Seconds())
}

// Close closes the wrapped store.
func (s *InstrumentedStore) Close() {
	s.next.Close()
}

// Ping checks the wrapped store.
func (s *InstrumentedStore) Ping(ctx context.Context) error {
	defer s.observe("ping", time.Now())
	return s.next.Ping(ctx)
}

// Save delegates to the wrapped store.
func (s *InstrumentedStore) Save(ctx context.Context, msg *models.Message) (*models.Message, error) {
	defer s.observe("save", time.Now())
	return s.next.Save(ctx, msg)
}

// GetBySession delegates to the wrapped store.
func (s *InstrumentedStore) GetBySession(ctx context.Context, sessionID string, limit, offset int, sender string) ([]models.Message, error) {
	defer s.observe("get_by_session", time.Now())
	return s.next.GetBySession(ctx, sessionID, limit, offset, sender)
}
