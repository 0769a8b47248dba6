// Package storage persists session context records: the per-session
// bookkeeping the execution coordinator relies on for exactly-once
// instruction delivery and workspace propagation.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrSessionNotFound is returned when no record exists for a session id.
var ErrSessionNotFound = errors.New("session not found")

// SessionContext is the per-session record.
type SessionContext struct {
	// SessionID is the canonical id. OriginalID holds the raw client id
	// when it was corrected; empty otherwise.
	SessionID  string
	OriginalID string

	IsNewSession    bool
	IsNonStandardID bool

	// WorkspaceContext is an opaque key/value bag; no schema is imposed.
	WorkspaceContext map[string]any

	// HasReceivedInstructions flips to true exactly once, when the
	// one-time session instruction payload is delivered.
	HasReceivedInstructions bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionStore persists session context records.
type SessionStore interface {
	// Get loads a record. ErrSessionNotFound when absent.
	Get(sessionID string) (*SessionContext, error)

	// Save inserts or updates a record.
	Save(sc *SessionContext) error

	// MarkInstructionsSent atomically flips HasReceivedInstructions.
	// Returns true only for the caller that performed the transition, so
	// the instruction payload is attached at most once per session.
	MarkInstructionsSent(sessionID string) (bool, error)

	// SetWorkspace replaces the workspace bag for a session.
	SetWorkspace(sessionID string, workspace map[string]any) error

	Close() error
}

// SQLiteSessionStore is the durable store, one database file under the
// data directory.
type SQLiteSessionStore struct {
	db *sql.DB
}

// NewSQLiteSessionStore opens (creating if needed) the session database.
func NewSQLiteSessionStore(dataDir string) (*SQLiteSessionStore, error) {
	dbPath := filepath.Join(dataDir, "sessions.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping session database: %w", err)
	}

	store := &SQLiteSessionStore{db: db}
	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize session database: %w", err)
	}
	return store, nil
}

func (s *SQLiteSessionStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		original_id TEXT NOT NULL DEFAULT '',
		is_new INTEGER NOT NULL DEFAULT 0,
		is_non_standard INTEGER NOT NULL DEFAULT 0,
		instructions_sent INTEGER NOT NULL DEFAULT 0,
		workspace TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get implements SessionStore.Get.
func (s *SQLiteSessionStore) Get(sessionID string) (*SessionContext, error) {
	row := s.db.QueryRow(`
		SELECT session_id, original_id, is_new, is_non_standard,
		       instructions_sent, workspace, created_at, updated_at
		FROM sessions WHERE session_id = ?`, sessionID)

	var sc SessionContext
	var workspaceJSON string
	err := row.Scan(&sc.SessionID, &sc.OriginalID, &sc.IsNewSession,
		&sc.IsNonStandardID, &sc.HasReceivedInstructions, &workspaceJSON,
		&sc.CreatedAt, &sc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	if err := json.Unmarshal([]byte(workspaceJSON), &sc.WorkspaceContext); err != nil {
		// A corrupted bag degrades to empty rather than failing the call;
		// workspace context is best-effort.
		sc.WorkspaceContext = map[string]any{}
	}
	return &sc, nil
}

// Save implements SessionStore.Save.
func (s *SQLiteSessionStore) Save(sc *SessionContext) error {
	now := time.Now().UTC()
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = now
	}
	sc.UpdatedAt = now

	workspace := sc.WorkspaceContext
	if workspace == nil {
		workspace = map[string]any{}
	}
	workspaceJSON, err := json.Marshal(workspace)
	if err != nil {
		return fmt.Errorf("failed to marshal workspace context: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO sessions
			(session_id, original_id, is_new, is_non_standard,
			 instructions_sent, workspace, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			original_id = excluded.original_id,
			is_new = excluded.is_new,
			is_non_standard = excluded.is_non_standard,
			instructions_sent = excluded.instructions_sent,
			workspace = excluded.workspace,
			updated_at = excluded.updated_at`,
		sc.SessionID, sc.OriginalID, sc.IsNewSession, sc.IsNonStandardID,
		sc.HasReceivedInstructions, string(workspaceJSON), sc.CreatedAt, sc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", sc.SessionID, err)
	}
	return nil
}

// MarkInstructionsSent implements SessionStore.MarkInstructionsSent. The
// guarded UPDATE makes the transition atomic: exactly one caller ever
// sees rows-affected of one.
func (s *SQLiteSessionStore) MarkInstructionsSent(sessionID string) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE sessions SET instructions_sent = 1, updated_at = ?
		WHERE session_id = ? AND instructions_sent = 0`,
		time.Now().UTC(), sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to mark instructions sent for %s: %w", sessionID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// SetWorkspace implements SessionStore.SetWorkspace.
func (s *SQLiteSessionStore) SetWorkspace(sessionID string, workspace map[string]any) error {
	if workspace == nil {
		workspace = map[string]any{}
	}
	workspaceJSON, err := json.Marshal(workspace)
	if err != nil {
		return fmt.Errorf("failed to marshal workspace context: %w", err)
	}

	res, err := s.db.Exec(`
		UPDATE sessions SET workspace = ?, updated_at = ? WHERE session_id = ?`,
		string(workspaceJSON), time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to set workspace for %s: %w", sessionID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteSessionStore) Close() error {
	return s.db.Close()
}
