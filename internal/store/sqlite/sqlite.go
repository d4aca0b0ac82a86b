package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/sushistage/internal/store"
)

const schema = `
	CREATE TABLE IF NOT EXISTS identity (
		slot       TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		name       TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
`

// SQLiteStore implements store.IdentityStore for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (creating if needed) the SQLite file at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	return NewWithSetup(dbPath, ApplySchema)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema against an in-memory database.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; ":memory:" needs it to keep one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// ApplySchema creates the identity table.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetIdentity retrieves the identity stored in slot.
func (s *SQLiteStore) GetIdentity(ctx context.Context, slot string) (*store.Identity, error) {
	query := `
		SELECT slot, user_id, name, created_at
		FROM identity
		WHERE slot = ?
	`
	var id store.Identity
	err := s.db.QueryRowContext(ctx, query, slot).Scan(
		&id.Slot,
		&id.UserID,
		&id.Name,
		&id.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query identity: %w", err)
	}

	return &id, nil
}

// PutIdentity stores the identity in its slot, replacing any previous record.
func (s *SQLiteStore) PutIdentity(ctx context.Context, id *store.Identity) error {
	query := `
		INSERT INTO identity (slot, user_id, name)
		VALUES (?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			user_id = excluded.user_id,
			name = excluded.name,
			created_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, id.Slot, id.UserID, id.Name); err != nil {
		return fmt.Errorf("upsert identity: %w", err)
	}
	return nil
}

// DeleteIdentity clears a slot. Clearing an empty slot is not an error.
func (s *SQLiteStore) DeleteIdentity(ctx context.Context, slot string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM identity WHERE slot = ?`, slot); err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	return nil
}
