package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"approva/internal/core"

	_ "modernc.org/sqlite"
)

const (
	slotCredential = "credential"
	slotUser       = "user"
)

// SQLiteStore keeps the session slots in a local SQLite database so the
// session survives process restarts.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveSession writes both slots in one transaction so a crash can never
// leave a credential without its user or vice versa.
func (s *SQLiteStore) SaveSession(ctx context.Context, credential string, user core.SessionUser) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal session user: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save session: %w", err)
	}
	defer tx.Rollback()

	const upsert = `INSERT INTO session_slots (slot, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(slot) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	if _, err := tx.ExecContext(ctx, upsert, slotCredential, credential); err != nil {
		return fmt.Errorf("write credential slot: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsert, slotUser, string(userJSON)); err != nil {
		return fmt.Errorf("write user slot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadSession(ctx context.Context) (string, core.SessionUser, bool, error) {
	var user core.SessionUser

	rows, err := s.db.QueryContext(ctx,
		`SELECT slot, value FROM session_slots WHERE slot IN (?, ?)`,
		slotCredential, slotUser)
	if err != nil {
		return "", user, false, fmt.Errorf("read session slots: %w", err)
	}
	defer rows.Close()

	var credential, userJSON string
	var haveCredential, haveUser bool
	for rows.Next() {
		var slot, value string
		if err := rows.Scan(&slot, &value); err != nil {
			return "", user, false, fmt.Errorf("scan session slot: %w", err)
		}
		switch slot {
		case slotCredential:
			credential, haveCredential = value, true
		case slotUser:
			userJSON, haveUser = value, true
		}
	}
	if err := rows.Err(); err != nil {
		return "", user, false, fmt.Errorf("iterate session slots: %w", err)
	}

	// Both slots or nothing: a torn session is as good as no session.
	if !haveCredential || !haveUser || credential == "" {
		return "", user, false, nil
	}
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		return "", core.SessionUser{}, false, nil
	}
	return credential, user, true, nil
}

func (s *SQLiteStore) ClearSession(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear session: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM session_slots WHERE slot IN (?, ?)`,
		slotCredential, slotUser); err != nil {
		return fmt.Errorf("clear session slots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear session: %w", err)
	}
	return nil
}
