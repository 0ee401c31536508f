// Package sqlite persists conversation identities in a local SQLite file so a
// CLI or single-node server resumes the same conversation after a restart.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store owns the database handle shared by all identities.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates (if needed) and opens the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_journal=WAL&_sync=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between identities
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS conversation_identity (
		client_key TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Identity returns the identity store for one client key.
func (s *Store) Identity(key string) *IdentityStore {
	return &IdentityStore{store: s, key: key}
}

// IdentityStore implements app.IdentityStore for a single client key.
type IdentityStore struct {
	store *Store
	key   string
}

func (i *IdentityStore) Load(ctx context.Context) (string, error) {
	var id string
	err := i.store.db.QueryRowContext(ctx,
		`SELECT conversation_id FROM conversation_identity WHERE client_key = ?`, i.key,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load conversation id: %w", err)
	}
	return id, nil
}

func (i *IdentityStore) Save(ctx context.Context, conversationID string) error {
	_, err := i.store.db.ExecContext(ctx, `
		INSERT INTO conversation_identity (client_key, conversation_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(client_key) DO UPDATE SET
			conversation_id = excluded.conversation_id,
			updated_at = excluded.updated_at`,
		i.key, conversationID, i.store.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save conversation id: %w", err)
	}
	return nil
}

func (i *IdentityStore) Clear(ctx context.Context) error {
	if _, err := i.store.db.ExecContext(ctx,
		`DELETE FROM conversation_identity WHERE client_key = ?`, i.key,
	); err != nil {
		return fmt.Errorf("clear conversation id: %w", err)
	}
	return nil
}
