package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eldtechnologies/chatmsg/internal/models"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Save inserts a message. The single INSERT either commits fully or not at all.
func (s *PostgresStore) Save(ctx context.Context, msg *models.Message) (*models.Message, error) {
	meta, err := encodeMetadata(msg.Metadata)
	if err != nil {
		return nil, err
	}

	saved := &models.Message{}
	var rawMeta []byte
	err = s.pool.QueryRow(ctx, `
		INSERT INTO messages (message_id, session_id, content, sender, ts, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING message_id, session_id, content, sender, ts, metadata
	`, msg.MessageID, msg.SessionID, msg.Content, msg.Sender, msg.Timestamp, meta).Scan(
		&saved.MessageID,
		&saved.SessionID,
		&saved.Content,
		&saved.Sender,
		&saved.Timestamp,
		&rawMeta,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("insert message: %w", err)
	}

	if saved.Metadata, err = decodeMetadata(rawMeta); err != nil {
		return nil, err
	}
	saved.Timestamp = saved.Timestamp.UTC()
	return saved, nil
}

// GetBySession retrieves a page of a session's messages, oldest first.
func (s *PostgresStore) GetBySession(ctx context.Context, sessionID string, limit, offset int, sender string) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT message_id, session_id, content, sender, ts, metadata
		FROM messages
		WHERE session_id = $1 AND ($2::text = '' OR sender = $2::text)
		ORDER BY ts ASC, id ASC
		LIMIT $3 OFFSET $4
	`, sessionID, sender, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		var rawMeta []byte
		if err := rows.Scan(
			&msg.MessageID,
			&msg.SessionID,
			&msg.Content,
			&msg.Sender,
			&msg.Timestamp,
			&rawMeta,
		); err != nil {
			return nil, err
		}
		if msg.Metadata, err = decodeMetadata(rawMeta); err != nil {
			return nil, err
		}
		msg.Timestamp = msg.Timestamp.UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgUniqueViolation
}

// encodeMetadata returns nil for a nil metadata so the column stays NULL.
func encodeMetadata(md *models.Metadata) ([]byte, error) {
	if md == nil {
		return nil, nil
	}
	data, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return data, nil
}

func decodeMetadata(data []byte) (*models.Metadata, error) {
	if len(data) == 0 {
		return nil, nil
	}
	md := &models.Metadata{}
	if err := json.Unmarshal(data, md); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return md, nil
}
