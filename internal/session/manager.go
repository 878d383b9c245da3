package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"approva/internal/core"
	"approva/internal/log"
	"approva/internal/store"
)

// Authenticator is the external login endpoint collaborator. It returns
// the raw bearer token plus whatever profile fields the response carried.
type Authenticator interface {
	LoginWithPassword(ctx context.Context, identifier, secret string) (token string, email string, err error)
}

// Manager owns the process-wide session. All mutation goes through it and
// credential and user are always written or cleared together, so no
// half-state can be observed.
type Manager struct {
	store  store.Store
	auth   Authenticator
	logger *log.Logger
	now    func() time.Time

	mu         sync.Mutex
	credential *Credential
	user       *core.SessionUser
	loading    bool
	generation uint64
	tornDown   bool
}

// NewManager builds a manager around the given store. The session reads as
// loading until Hydrate has run.
func NewManager(st store.Store, auth Authenticator, logger *log.Logger) *Manager {
	return &Manager{
		store:   st,
		auth:    auth,
		logger:  logger.WithComponent(log.ComponentSession),
		now:     time.Now,
		loading: true,
	}
}

// Hydrate attempts to restore a persisted session. It always clears the
// loading flag, even when the stored credential turns out to be invalid;
// in that case the store is purged and the error returned.
func (m *Manager) Hydrate(ctx context.Context) error {
	defer func() {
		m.mu.Lock()
		m.loading = false
		m.mu.Unlock()
	}()

	credential, user, ok, err := m.store.LoadSession(ctx)
	if err != nil {
		return fmt.Errorf("load persisted session: %w", err)
	}
	if !ok {
		m.logger.DebugContext(ctx, "no persisted session")
		return nil
	}

	adopted, err := m.ValidateAndAdopt(ctx, credential)
	if err != nil {
		return err
	}

	// The stored user may carry profile fields (email, names) that are not
	// claims; fold them back in.
	m.RefineProfile(ctx, user)
	m.logger.InfoContext(ctx, "session restored",
		log.FieldUsername, adopted.Username, log.FieldUserID, adopted.ID)
	return nil
}

// Loading reports whether the initial hydration is still running.
// Dependents must treat a loading session as unknown, not unauthenticated.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// ValidateAndAdopt decodes and validates a credential, derives the session
// user and persists both. Any validation failure tears the session down
// first so no partial state survives, then returns the typed error. The
// write is dropped with ErrSessionSuperseded when the session generation
// moved since the call began, so a concurrent logout is never undone.
func (m *Manager) ValidateAndAdopt(ctx context.Context, token string) (core.SessionUser, error) {
	return m.adoptAt(ctx, token, m.Generation())
}

// adoptAt performs the adoption against an expected generation. The
// generation is re-checked inside the critical section: any logout or
// competing adoption that landed after gen was read wins over this write.
func (m *Manager) adoptAt(ctx context.Context, token string, gen uint64) (core.SessionUser, error) {
	cred, err := DecodeCredential(token)
	if err != nil {
		m.Logout(ctx)
		return core.SessionUser{}, err
	}
	if cred.ExpiredAt(m.now()) {
		m.Logout(ctx)
		return core.SessionUser{}, fmt.Errorf("%w: expired at %s", ErrExpiredCredential, cred.ExpiresAt.Format(time.RFC3339))
	}

	user := cred.User()

	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		return core.SessionUser{}, ErrSessionSuperseded
	}
	m.credential = &cred
	m.user = &user
	m.generation++
	m.tornDown = false
	m.mu.Unlock()

	if err := m.store.SaveSession(ctx, cred.Token, user); err != nil {
		// The in-memory session is valid; persistence failure only costs
		// the next hydrate.
		m.logger.WarnContext(ctx, "persist session failed", log.FieldError, err.Error())
	}

	m.logger.InfoContext(ctx, "credential adopted",
		log.FieldOperation, log.OpAdopt,
		log.FieldUsername, user.Username,
		log.FieldUserID, user.ID)
	return user, nil
}

// ErrSessionSuperseded reports that the session changed while a
// credential adoption was in flight; the late credential is dropped,
// logout always wins.
var ErrSessionSuperseded = errors.New("session changed during login, credential dropped")

// LoginWithPassword runs the form-login path. Transport and validation
// errors propagate to the caller after any partial session is cleared.
func (m *Manager) LoginWithPassword(ctx context.Context, identifier, secret string) (core.SessionUser, error) {
	gen := m.Generation()

	token, email, err := m.auth.LoginWithPassword(ctx, identifier, secret)
	if err != nil {
		m.Logout(ctx)
		return core.SessionUser{}, err
	}

	user, err := m.adoptAt(ctx, token, gen)
	if err != nil {
		return core.SessionUser{}, err
	}

	// The login response carries the email, which is not a token claim.
	if email != "" {
		user.Email = email
		m.RefineProfile(ctx, user)
	}
	m.logger.InfoContext(ctx, "login succeeded",
		log.FieldOperation, log.OpLogin, log.FieldUsername, user.Username)
	return m.snapshotUser(), nil
}

// CompleteOAuth adopts a credential delivered by the OAuth hand-off. The
// caller is responsible for any navigation afterwards.
func (m *Manager) CompleteOAuth(ctx context.Context, token string) (core.SessionUser, error) {
	return m.ValidateAndAdopt(ctx, token)
}

// Logout clears the in-memory session and purges the store. It is
// idempotent and never fails; a store error is logged and swallowed
// because the in-memory teardown already happened.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	hadSession := m.credential != nil || m.user != nil
	m.credential = nil
	m.user = nil
	m.generation++
	m.tornDown = true
	m.mu.Unlock()

	if err := m.store.ClearSession(ctx); err != nil {
		m.logger.WarnContext(ctx, "purge session store failed", log.FieldError, err.Error())
	}
	if hadSession {
		m.logger.InfoContext(ctx, "session cleared", log.FieldOperation, log.OpLogout)
	}
}

// HandleUnauthorized is the gateway's 401 hook. It tears the session down
// exactly once per session generation; repeat 401s from in-flight requests
// after the teardown are no-ops.
func (m *Manager) HandleUnauthorized(ctx context.Context) {
	m.mu.Lock()
	if m.tornDown || (m.credential == nil && m.user == nil) {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.logger.WarnContext(ctx, "server rejected credential, clearing session")
	m.Logout(ctx)
}

// IsAuthenticated is true iff both credential and user are present. A
// decoded-but-invalid token never reads as authenticated because adoption
// rejects it before either field is set.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credential != nil && m.user != nil
}

// Token returns the current bearer token for outgoing requests.
func (m *Manager) Token() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.credential == nil {
		return "", false
	}
	return m.credential.Token, true
}

// CurrentUser returns the authenticated-user view.
func (m *Manager) CurrentUser() (core.SessionUser, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return core.SessionUser{}, false
	}
	return *m.user, true
}

// Generation identifies the current session epoch. Response-driven state
// changes snapshot it before the request and check it before applying, so
// a stale response arriving after logout is dropped.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// RefineProfile folds profile fields into the session user. Identity
// fields are immutable post-login: id, username and roles come from the
// credential; only email and the name fields are taken from the update.
func (m *Manager) RefineProfile(ctx context.Context, profile core.SessionUser) {
	m.mu.Lock()
	if m.user == nil || m.credential == nil {
		m.mu.Unlock()
		return
	}
	if profile.Email != "" {
		m.user.Email = profile.Email
	}
	m.user.FirstName = profile.FirstName
	m.user.LastName = profile.LastName
	updated := *m.user
	token := m.credential.Token
	m.mu.Unlock()

	if err := m.store.SaveSession(ctx, token, updated); err != nil {
		m.logger.WarnContext(ctx, "persist refined profile failed", log.FieldError, err.Error())
	}
}

func (m *Manager) snapshotUser() core.SessionUser {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return core.SessionUser{}
	}
	return *m.user
}
