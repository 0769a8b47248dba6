package storage

import (
	"fmt"
	"sync"
	"time"
)

// MemorySessionStore keeps session records in process memory. Used by
// tests and by hosts that treat session tracking as purely ephemeral.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*SessionContext
}

// NewMemorySessionStore creates an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*SessionContext),
	}
}

// Get implements SessionStore.Get.
func (m *MemorySessionStore) Get(sessionID string) (*SessionContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	clone := *sc
	clone.WorkspaceContext = cloneWorkspace(sc.WorkspaceContext)
	return &clone, nil
}

// Save implements SessionStore.Save.
func (m *MemorySessionStore) Save(sc *SessionContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = now
	}
	sc.UpdatedAt = now

	clone := *sc
	clone.WorkspaceContext = cloneWorkspace(sc.WorkspaceContext)
	m.sessions[sc.SessionID] = &clone
	return nil
}

// MarkInstructionsSent implements SessionStore.MarkInstructionsSent.
func (m *MemorySessionStore) MarkInstructionsSent(sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.sessions[sessionID]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if sc.HasReceivedInstructions {
		return false, nil
	}
	sc.HasReceivedInstructions = true
	sc.UpdatedAt = time.Now().UTC()
	return true, nil
}

// SetWorkspace implements SessionStore.SetWorkspace.
func (m *MemorySessionStore) SetWorkspace(sessionID string, workspace map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	sc.WorkspaceContext = cloneWorkspace(workspace)
	sc.UpdatedAt = time.Now().UTC()
	return nil
}

// Close implements SessionStore.Close.
func (m *MemorySessionStore) Close() error { return nil }

func cloneWorkspace(workspace map[string]any) map[string]any {
	out := make(map[string]any, len(workspace))
	for k, v := range workspace {
		out[k] = v
	}
	return out
}
