package models

import "time"

// Message represents a chat message belonging to a session.
type Message struct {
	MessageID string    `json:"message_id"`
	SessionID string    `json:"session_id"`
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`    // "user" or "system"
	Timestamp time.Time `json:"timestamp"` // Zero until set by the pipeline
	Metadata  *Metadata `json:"metadata,omitempty"`
}

// Metadata is computed from the filtered content when a message is processed.
type Metadata struct {
	WordCount      int    `json:"word_count"`
	CharacterCount int    `json:"character_count"`
	ProcessedAt    string `json:"processed_at"` // RFC 3339, UTC
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	if m.Metadata != nil {
		md := *m.Metadata
		m.Metadata = &md
	}
	return m
}
