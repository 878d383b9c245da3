package store

import (
	"context"
	"path/filepath"
	"testing"

	"approva/internal/core"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "approva.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLiteStore(t)

	_, _, ok, err := st.LoadSession(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if ok {
		t.Fatal("fresh store should report no session")
	}

	user := core.SessionUser{
		ID:       7,
		Username: "alice",
		Email:    "alice@example.com",
		Roles:    []string{"ROLE_EMPLOYEE", "ROLE_MANAGER"},
	}
	if err := st.SaveSession(ctx, "token-1", user); err != nil {
		t.Fatalf("save: %v", err)
	}

	cred, got, ok, err := st.LoadSession(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatal("session should be present")
	}
	if cred != "token-1" {
		t.Errorf("credential = %q", cred)
	}
	if got.Username != "alice" || len(got.Roles) != 2 {
		t.Errorf("user round trip gave %+v", got)
	}
}

func TestSQLiteStoreUpsert(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLiteStore(t)

	_ = st.SaveSession(ctx, "token-1", core.SessionUser{ID: 1, Username: "alice"})
	if err := st.SaveSession(ctx, "token-2", core.SessionUser{ID: 2, Username: "bob"}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	cred, user, _, _ := st.LoadSession(ctx)
	if cred != "token-2" || user.Username != "bob" {
		t.Errorf("second save should replace both slots, got %q / %+v", cred, user)
	}
}

func TestSQLiteStoreClear(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLiteStore(t)

	if err := st.ClearSession(ctx); err != nil {
		t.Fatalf("clear empty store: %v", err)
	}

	_ = st.SaveSession(ctx, "token", core.SessionUser{ID: 1, Username: "alice"})
	if err := st.ClearSession(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	_, _, ok, _ := st.LoadSession(ctx)
	if ok {
		t.Error("session should be gone after clear")
	}
}

func TestSQLiteStoreTornSessionReadsAsAbsent(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLiteStore(t)

	// Write only the credential slot, simulating a torn write from an
	// older version.
	_, err := st.db.ExecContext(ctx,
		`INSERT INTO session_slots (slot, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`,
		slotCredential, "orphan-token")
	if err != nil {
		t.Fatalf("seed torn state: %v", err)
	}

	_, _, ok, err := st.LoadSession(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Error("a half-present session must read as absent")
	}
}

func TestNewStoreFactory(t *testing.T) {
	st, err := New(Options{Backend: "memory"})
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	st.Close()

	if _, err := New(Options{Backend: "postgres"}); err == nil {
		t.Error("unknown backend should fail")
	}
}
