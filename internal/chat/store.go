package chat

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kartoza/stats-workbench/internal/backend"
)

// ErrNotFound is returned for unknown transcript IDs
var ErrNotFound = errors.New("transcript not found")

const schema = `
CREATE TABLE IF NOT EXISTS transcripts (
	id         TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	transcript_id TEXT NOT NULL REFERENCES transcripts(id) ON DELETE CASCADE,
	seq           INTEGER NOT NULL,
	role          TEXT NOT NULL,
	content       TEXT NOT NULL,
	PRIMARY KEY (transcript_id, seq)
);`

// Transcript is a stored conversation
type Transcript struct {
	ID        string                `json:"id"`
	Messages  []backend.ChatMessage `json:"messages"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// Conversation returns the transcript's messages as a live conversation
func (t *Transcript) Conversation() *Conversation {
	return Restore(t.Messages)
}

// Visible returns the messages a user sees
func (t *Transcript) Visible() []backend.ChatMessage {
	return visible(t.Messages)
}

// Summary is the list view of a transcript
type Summary struct {
	ID           string    `json:"id"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Store persists transcripts in a sqlite database
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// NewStore opens (creating if needed) the transcript database in dataDir
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "chat.db")
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open chat database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create chat schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Create starts a new transcript seeded with the system prompt
func (s *Store) Create(systemPrompt string) (*Transcript, error) {
	conv := NewConversation(systemPrompt)
	now := time.Now().UTC()
	t := &Transcript{
		ID:        uuid.New().String(),
		Messages:  conv.Messages(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO transcripts (id, created_at, updated_at) VALUES (?, ?, ?)`,
		t.ID, now.UnixNano(), now.UnixNano()); err != nil {
		return nil, fmt.Errorf("failed to insert transcript: %w", err)
	}
	if err := insertMessages(tx, t.ID, 0, t.Messages); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transcript: %w", err)
	}
	return t, nil
}

// Get loads a transcript with all of its messages in order
func (s *Store) Get(id string) (*Transcript, error) {
	var created, updated int64
	err := s.db.QueryRow(`SELECT created_at, updated_at FROM transcripts WHERE id = ?`, id).
		Scan(&created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	rows, err := s.db.Query(`SELECT role, content FROM messages WHERE transcript_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	defer rows.Close()

	messages := []backend.ChatMessage{}
	for rows.Next() {
		var m backend.ChatMessage
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	return &Transcript{
		ID:        id,
		Messages:  messages,
		CreatedAt: time.Unix(0, created).UTC(),
		UpdatedAt: time.Unix(0, updated).UTC(),
	}, nil
}

// Append adds messages to the end of a transcript
func (s *Store) Append(id string, messages ...backend.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE transcripts SET updated_at = ? WHERE id = ?`, time.Now().UTC().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("failed to touch transcript: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	var next int
	if err := tx.QueryRow(`SELECT COALESCE(MAX(seq) + 1, 0) FROM messages WHERE transcript_id = ?`, id).
		Scan(&next); err != nil {
		return fmt.Errorf("failed to read sequence: %w", err)
	}
	if err := insertMessages(tx, id, next, messages); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit messages: %w", err)
	}
	return nil
}

// List returns all transcripts, most recently created first
func (s *Store) List() ([]Summary, error) {
	rows, err := s.db.Query(`
		SELECT t.id, t.created_at, t.updated_at, COUNT(m.seq)
		FROM transcripts t LEFT JOIN messages m ON m.transcript_id = t.id AND m.role != 'system'
		GROUP BY t.id
		ORDER BY t.created_at DESC, t.rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var sum Summary
		var created, updated int64
		if err := rows.Scan(&sum.ID, &created, &updated, &sum.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan transcript: %w", err)
		}
		sum.CreatedAt = time.Unix(0, created).UTC()
		sum.UpdatedAt = time.Unix(0, updated).UTC()
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// Delete removes a transcript and its messages
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM transcripts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func insertMessages(tx *sql.Tx, id string, seq int, messages []backend.ChatMessage) error {
	stmt, err := tx.Prepare(`INSERT INTO messages (transcript_id, seq, role, content) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range messages {
		if _, err := stmt.Exec(id, seq+i, string(m.Role), m.Content); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}
	return nil
}
