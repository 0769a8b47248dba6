package storage

import (
	"errors"
	"testing"
)

// Both store implementations must satisfy the same contract; every case
// runs against each.
func stores(t *testing.T) map[string]SessionStore {
	t.Helper()
	sqlite, err := NewSQLiteSessionStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]SessionStore{
		"sqlite": sqlite,
		"memory": NewMemorySessionStore(),
	}
}

func TestSessionStoreRoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			sc := &SessionContext{
				SessionID:        "11111111-2222-3333-4444-555555555555",
				OriginalID:       "my-session",
				IsNewSession:     true,
				IsNonStandardID:  true,
				WorkspaceContext: map[string]any{"vault": "personal"},
			}
			if err := store.Save(sc); err != nil {
				t.Fatal(err)
			}

			got, err := store.Get(sc.SessionID)
			if err != nil {
				t.Fatal(err)
			}
			if got.OriginalID != "my-session" || !got.IsNewSession || !got.IsNonStandardID {
				t.Errorf("loaded record: %+v", got)
			}
			if got.WorkspaceContext["vault"] != "personal" {
				t.Errorf("workspace = %v", got.WorkspaceContext)
			}
			if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
				t.Error("timestamps not populated on save")
			}
		})
	}
}

func TestSessionStoreGetNotFound(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get("99999999-9999-9999-9999-999999999999")
			if !errors.Is(err, ErrSessionNotFound) {
				t.Errorf("expected ErrSessionNotFound, got %v", err)
			}
		})
	}
}

func TestMarkInstructionsSentExactlyOnce(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			sc := &SessionContext{SessionID: "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", IsNewSession: true}
			if err := store.Save(sc); err != nil {
				t.Fatal(err)
			}

			first, err := store.MarkInstructionsSent(sc.SessionID)
			if err != nil {
				t.Fatal(err)
			}
			if !first {
				t.Fatal("first transition must report true")
			}

			for i := 0; i < 3; i++ {
				again, err := store.MarkInstructionsSent(sc.SessionID)
				if err != nil {
					t.Fatal(err)
				}
				if again {
					t.Fatal("repeated transition must report false")
				}
			}

			got, err := store.Get(sc.SessionID)
			if err != nil {
				t.Fatal(err)
			}
			if !got.HasReceivedInstructions {
				t.Error("flag not persisted")
			}
		})
	}
}

func TestSetWorkspace(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			sc := &SessionContext{SessionID: "12121212-3434-5656-7878-909090909090"}
			if err := store.Save(sc); err != nil {
				t.Fatal(err)
			}

			workspace := map[string]any{"activeVault": "work", "depth": float64(2)}
			if err := store.SetWorkspace(sc.SessionID, workspace); err != nil {
				t.Fatal(err)
			}

			got, err := store.Get(sc.SessionID)
			if err != nil {
				t.Fatal(err)
			}
			if got.WorkspaceContext["activeVault"] != "work" {
				t.Errorf("workspace = %v", got.WorkspaceContext)
			}

			if err := store.SetWorkspace("99999999-0000-0000-0000-000000000000", workspace); !errors.Is(err, ErrSessionNotFound) {
				t.Errorf("expected ErrSessionNotFound for unknown session, got %v", err)
			}
		})
	}
}

func TestSaveUpserts(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			sc := &SessionContext{SessionID: "abababab-cdcd-efef-0101-232323232323", IsNewSession: true}
			if err := store.Save(sc); err != nil {
				t.Fatal(err)
			}
			sc.IsNewSession = false
			if err := store.Save(sc); err != nil {
				t.Fatal(err)
			}

			got, err := store.Get(sc.SessionID)
			if err != nil {
				t.Fatal(err)
			}
			if got.IsNewSession {
				t.Error("second save did not update the record")
			}
		})
	}
}
