// Package store persists the client session: the credential string and the
// serialized session user, kept in two named slots that are always written
// and cleared together. It holds no policy; the session manager decides
// what goes in and when it comes out.
package store

import (
	"context"
	"fmt"

	"approva/internal/core"
)

// Store is the durable slot store backing the session.
type Store interface {
	// SaveSession writes both slots atomically, replacing any previous
	// session wholesale.
	SaveSession(ctx context.Context, credential string, user core.SessionUser) error

	// LoadSession reads both slots. ok is false when no session is
	// persisted; a half-present session is treated as absent.
	LoadSession(ctx context.Context) (credential string, user core.SessionUser, ok bool, err error)

	// ClearSession removes both slots. Clearing an empty store is a no-op.
	ClearSession(ctx context.Context) error

	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend string // "sqlite" or "memory"
	Path    string // sqlite database path
}

// New builds the configured store backend.
func New(opts Options) (Store, error) {
	switch opts.Backend {
	case "sqlite":
		return NewSQLiteStore(opts.Path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", opts.Backend)
	}
}
