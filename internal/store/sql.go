package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"

	"github.com/eldtechnologies/chatmsg/internal/models"
)

// Supported database/sql dialects.
const (
	DialectSQLite = "sqlite3"
	DialectMySQL  = "mysql"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// SQLStore handles message storage over database/sql for SQLite and MySQL.
// Timestamps are stored as Unix microseconds so both dialects order them the
// same way across the full range of years a client may send.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/chat.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLStore, error) {
	if dbPath == "" {
		dbPath = "./data/chat.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open(DialectSQLite, dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	return newSQLStore(ctx, db, DialectSQLite)
}

// NewMySQLStore creates a new MySQL store from a go-sql-driver DSN.
func NewMySQLStore(ctx context.Context, dsn string) (*SQLStore, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}

	return newSQLStore(ctx, sql.OpenDB(connector), DialectMySQL)
}

func newSQLStore(ctx context.Context, db *sql.DB, dialect string) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLStore{db: db, dialect: dialect}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLStore) initSchema(ctx context.Context) error {
	stmts, err := schema(s.dialect)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply %s schema: %w", s.dialect, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Save inserts a message inside a transaction, rolling back on any failure.
func (s *SQLStore) Save(ctx context.Context, msg *models.Message) (*models.Message, error) {
	meta, err := encodeMetadata(msg.Metadata)
	if err != nil {
		return nil, err
	}
	var metaCol *string
	if meta != nil {
		str := string(meta)
		metaCol = &str
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (message_id, session_id, content, sender, ts, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.MessageID, msg.SessionID, msg.Content, msg.Sender, msg.Timestamp.UnixMicro(), metaCol)
	if err != nil {
		if s.isUniqueViolation(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	saved := msg.Clone()
	saved.Timestamp = time.UnixMicro(msg.Timestamp.UnixMicro()).UTC()
	return &saved, nil
}

// GetBySession retrieves a page of a session's messages, oldest first.
func (s *SQLStore) GetBySession(ctx context.Context, sessionID string, limit, offset int, sender string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, session_id, content, sender, ts, metadata
		FROM messages
		WHERE session_id = ? AND (? = '' OR sender = ?)
		ORDER BY ts ASC, id ASC
		LIMIT ? OFFSET ?
	`, sessionID, sender, sender, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		var ts int64
		var metaCol sql.NullString

		if err := rows.Scan(
			&msg.MessageID,
			&msg.SessionID,
			&msg.Content,
			&msg.Sender,
			&ts,
			&metaCol,
		); err != nil {
			return nil, err
		}

		msg.Timestamp = time.UnixMicro(ts).UTC()
		if metaCol.Valid {
			if msg.Metadata, err = decodeMetadata([]byte(metaCol.String)); err != nil {
				return nil, err
			}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

func (s *SQLStore) isUniqueViolation(err error) bool {
	switch s.dialect {
	case DialectSQLite:
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) {
			return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
				sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
		}
	case DialectMySQL:
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) {
			return myErr.Number == mysqlDuplicateEntry
		}
	}
	return false
}
