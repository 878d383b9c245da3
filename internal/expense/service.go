// Package expense orchestrates the owner-side expense operations: listing,
// submit, edit, delete, history and attachment downloads, with the
// workflow's mutation policy applied before any network call.
package expense

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"approva/internal/api"
	"approva/internal/cache"
	"approva/internal/core"
	"approva/internal/log"
	"approva/internal/session"
)

var ErrNotAuthenticated = errors.New("not authenticated")

// Service wires the gateway, the session and the read-side caches.
type Service struct {
	gw      *api.Gateway
	session *session.Manager
	logger  *log.Logger

	detailCache  *cache.LRUCache[core.Expense]
	historyCache *cache.LRUCache[[]core.ApprovalHistoryEntry]

	genMu   sync.Mutex
	lastGen uint64
}

func NewService(gw *api.Gateway, sess *session.Manager, logger *log.Logger) *Service {
	return &Service{
		gw:           gw,
		session:      sess,
		logger:       logger.WithComponent(log.ComponentExpense),
		detailCache:  cache.NewLRUCache[core.Expense](100, 5*time.Minute),
		historyCache: cache.NewLRUCache[[]core.ApprovalHistoryEntry](100, 5*time.Minute),
	}
}

// RegisterCaches attaches the service's caches to the cleanup manager.
func (s *Service) RegisterCaches(m *cache.Manager) {
	m.Register(s.detailCache)
	m.Register(s.historyCache)
}

// List fetches a page of the caller's expenses. Listings are never cached:
// the list view re-fetches after every mutation to stay consistent with
// concurrent approvers.
func (s *Service) List(ctx context.Context, page, size int, sort string) (core.Page[core.Expense], error) {
	if _, err := s.actor(); err != nil {
		return core.Page[core.Expense]{}, err
	}
	return s.gw.MyExpenses(ctx, page, size, sort)
}

// Get fetches one expense, serving repeated reads from the detail cache.
func (s *Service) Get(ctx context.Context, id int64) (core.Expense, error) {
	if _, err := s.actor(); err != nil {
		return core.Expense{}, err
	}

	key := cacheKey(id)
	if e, ok := s.detailCache.Get(key); ok {
		return e, nil
	}

	gen := s.session.Generation()
	e, err := s.gw.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	// Drop the response if the session turned over while it was in flight.
	if s.session.Generation() == gen {
		s.detailCache.Set(key, e)
	}
	return e, nil
}

// History fetches the approval audit trail for an expense.
func (s *Service) History(ctx context.Context, id int64) ([]core.ApprovalHistoryEntry, error) {
	if _, err := s.actor(); err != nil {
		return nil, err
	}

	key := cacheKey(id)
	if entries, ok := s.historyCache.Get(key); ok {
		return entries, nil
	}

	gen := s.session.Generation()
	entries, err := s.gw.ExpenseHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.session.Generation() == gen {
		s.historyCache.Set(key, entries)
	}
	return entries, nil
}

// Submit validates and creates a new expense with its attachments.
func (s *Service) Submit(ctx context.Context, input core.ExpenseInput, files []api.FileUpload) (core.Expense, error) {
	if _, err := s.actor(); err != nil {
		return core.Expense{}, err
	}
	if err := input.Validate(); err != nil {
		return core.Expense{}, err
	}

	created, err := s.gw.CreateExpense(ctx, input, files)
	if err != nil {
		return core.Expense{}, err
	}

	s.logger.InfoContext(ctx, "expense submitted",
		log.FieldOperation, log.OpSubmit,
		log.FieldExpenseID, created.ID,
		log.FieldStatus, string(created.Status))
	return created, nil
}

// Edit updates an expense in place. The mutation policy is checked against
// a fresh read, never a cached copy; editing a rejected expense resubmits
// it server-side. New files extend the attachment list.
func (s *Service) Edit(ctx context.Context, id int64, input core.ExpenseInput, files []api.FileUpload) (core.Expense, error) {
	actor, err := s.actor()
	if err != nil {
		return core.Expense{}, err
	}
	if err := input.Validate(); err != nil {
		return core.Expense{}, err
	}

	current, err := s.gw.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	if err := core.CanMutate(current, actor.ID, actor.RoleSet()); err != nil {
		return core.Expense{}, fmt.Errorf("edit expense %d in status %s: %w", id, current.Status, err)
	}

	updated, err := s.gw.UpdateExpense(ctx, id, input, files)
	if err != nil {
		return core.Expense{}, err
	}
	s.Invalidate(id)

	s.logger.InfoContext(ctx, "expense updated",
		log.FieldOperation, log.OpEdit,
		log.FieldExpenseID, id,
		log.FieldStatus, string(updated.Status))
	return updated, nil
}

// Delete removes an expense, subject to the same mutation policy as edit.
func (s *Service) Delete(ctx context.Context, id int64) error {
	actor, err := s.actor()
	if err != nil {
		return err
	}

	current, err := s.gw.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	if err := core.CanMutate(current, actor.ID, actor.RoleSet()); err != nil {
		return fmt.Errorf("delete expense %d in status %s: %w", id, current.Status, err)
	}

	if err := s.gw.DeleteExpense(ctx, id); err != nil {
		return err
	}
	s.Invalidate(id)

	s.logger.InfoContext(ctx, "expense deleted",
		log.FieldOperation, log.OpDelete, log.FieldExpenseID, id)
	return nil
}

// Download streams an attachment into w.
func (s *Service) Download(ctx context.Context, attachmentID int64, w io.Writer) (int64, error) {
	if _, err := s.actor(); err != nil {
		return 0, err
	}
	return s.gw.DownloadAttachment(ctx, attachmentID, w)
}

// Invalidate drops the cached detail and history for an expense. Called
// after every mutation, including approval decisions made elsewhere.
func (s *Service) Invalidate(id int64) {
	key := cacheKey(id)
	s.detailCache.Delete(key)
	s.historyCache.Delete(key)
}

func (s *Service) actor() (core.SessionUser, error) {
	user, ok := s.session.CurrentUser()
	if !ok {
		return core.SessionUser{}, ErrNotAuthenticated
	}
	s.syncGeneration()
	return user, nil
}

// syncGeneration purges the read caches when the session epoch changed,
// so one session's cached reads can never serve the next.
func (s *Service) syncGeneration() {
	gen := s.session.Generation()
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if gen != s.lastGen {
		s.detailCache.Purge()
		s.historyCache.Purge()
		s.lastGen = gen
	}
}

func cacheKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
