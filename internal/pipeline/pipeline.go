//go:generate go run go.uber.org/mock/mockgen -source=pipeline.go -destination=mocks/mock_store.go -package=mocks

// Package pipeline validates, filters and enriches chat messages before they
// are persisted, and applies the read-side search over a session's messages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/eldtechnologies/chatmsg/internal/models"
	"github.com/eldtechnologies/chatmsg/internal/store"
)

const (
	SenderUser   = "user"
	SenderSystem = "system"

	// CensorMask replaces every banned word occurrence.
	CensorMask = "***"

	// ResourceMessages names the resource in NotFoundError.
	ResourceMessages = "messages"
)

// ValidSenders lists the accepted sender values.
var ValidSenders = []string{SenderUser, SenderSystem}

// BannedWords is the default filter list, applied in this order.
var BannedWords = []string{"badword", "offensive", "dummy"}

// Store is the persistence capability the pipeline depends on.
type Store interface {
	Save(ctx context.Context, msg *models.Message) (*models.Message, error)
	GetBySession(ctx context.Context, sessionID string, limit, offset int, sender string) ([]models.Message, error)
}

// Query selects messages for GetMessages. Empty Sender and Text mean no filter.
type Query struct {
	SessionID string
	Limit     int
	Offset    int
	Sender    string
	Text      string
}

// Pipeline runs the message write and read sequences against a Store.
type Pipeline struct {
	store  Store
	filter *contentFilter
	now    func() time.Time
}

// Option configures a Pipeline.
type Option func(*config)

type config struct {
	words []string
	mask  string
	now   func() time.Time
}

// WithClock overrides the time source used for timestamps and metadata.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithBannedWords replaces the default banned word list.
func WithBannedWords(words []string) Option {
	return func(c *config) { c.words = words }
}

// WithMask replaces the default censor mask.
func WithMask(mask string) Option {
	return func(c *config) { c.mask = mask }
}

// New creates a pipeline backed by s.
func New(s Store, opts ...Option) (*Pipeline, error) {
	cfg := config{words: BannedWords, mask: CensorMask, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	f, err := newContentFilter(cfg.words, cfg.mask)
	if err != nil {
		return nil, fmt.Errorf("build content filter: %w", err)
	}

	return &Pipeline{store: s, filter: f, now: cfg.now}, nil
}

// ProcessAndSave validates msg, filters its content, computes its metadata and
// persists it. msg is updated in place; the stored message is returned.
func (p *Pipeline) ProcessAndSave(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if err := p.validate(msg); err != nil {
		return nil, err
	}

	msg.Content = p.filter.Apply(msg.Content)
	msg.Metadata = p.metadata(msg.Content)

	saved, err := p.store.Save(ctx, msg)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, ErrDuplicateMessageID
		}
		return nil, fmt.Errorf("save message: %w", err)
	}
	return saved, nil
}

// GetMessages returns one page of a session's messages, oldest first.
//
// The text filter runs over the page returned by the store, not the whole
// session, so a search can return fewer than Limit messages.
func (p *Pipeline) GetMessages(ctx context.Context, q Query) ([]models.Message, error) {
	if q.Sender != "" && !IsValidSender(q.Sender) {
		return nil, ErrInvalidSender
	}

	results, err := p.store.GetBySession(ctx, q.SessionID, q.Limit, q.Offset, q.Sender)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	if len(results) == 0 {
		return nil, &NotFoundError{Resource: ResourceMessages}
	}

	if q.Text != "" {
		needle := strings.ToLower(q.Text)
		results = lo.Filter(results, func(m models.Message, _ int) bool {
			return strings.Contains(strings.ToLower(m.Content), needle)
		})
		if len(results) == 0 {
			return nil, &NotFoundError{Resource: ResourceMessages}
		}
	}

	return results, nil
}

// IsValidSender reports whether sender is one of ValidSenders.
func IsValidSender(sender string) bool {
	return lo.Contains(ValidSenders, sender)
}

func (p *Pipeline) validate(msg *models.Message) error {
	switch {
	case msg.MessageID == "":
		return &MissingFieldError{Field: "message_id"}
	case msg.SessionID == "":
		return &MissingFieldError{Field: "session_id"}
	case msg.Sender == "":
		return &MissingFieldError{Field: "sender"}
	}
	if !IsValidSender(msg.Sender) {
		return ErrInvalidSender
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = p.now().UTC()
	}
	return nil
}

func (p *Pipeline) metadata(content string) *models.Metadata {
	return &models.Metadata{
		WordCount:      len(strings.Fields(content)),
		CharacterCount: utf8.RuneCountInString(content),
		ProcessedAt:    p.now().UTC().Format(time.RFC3339Nano),
	}
}
