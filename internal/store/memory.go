package store

import (
	"context"
	"sync"

	"approva/internal/core"
)

// MemoryStore keeps the session in process memory. Used by tests and by
// runs that should leave nothing on disk.
type MemoryStore struct {
	mu         sync.Mutex
	credential string
	user       core.SessionUser
	present    bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) SaveSession(_ context.Context, credential string, user core.SessionUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = credential
	s.user = user
	s.present = true
	return nil
}

func (s *MemoryStore) LoadSession(_ context.Context) (string, core.SessionUser, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.present {
		return "", core.SessionUser{}, false, nil
	}
	return s.credential, s.user, true, nil
}

func (s *MemoryStore) ClearSession(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = ""
	s.user = core.SessionUser{}
	s.present = false
	return nil
}

func (s *MemoryStore) Close() error { return nil }
