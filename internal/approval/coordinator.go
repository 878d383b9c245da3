// Package approval drives the reviewer side of the workflow: the pending
// queue and the approve/reject decisions.
package approval

import (
	"context"
	"fmt"

	"approva/internal/api"
	"approva/internal/core"
	"approva/internal/expense"
	"approva/internal/log"
	"approva/internal/session"
)

// DefaultQueueSort keeps the pending queue oldest-first so reviewers work
// through submissions in arrival order.
const DefaultQueueSort = "createdAt,asc"

// Invalidator lets the coordinator drop stale cached reads after a
// decision lands. *expense.Service satisfies it.
type Invalidator interface {
	Invalidate(id int64)
}

// Coordinator serves the approval queue for the current reviewer.
type Coordinator struct {
	gw      *api.Gateway
	session *session.Manager
	caches  Invalidator
	logger  *log.Logger
}

func NewCoordinator(gw *api.Gateway, sess *session.Manager, caches Invalidator, logger *log.Logger) *Coordinator {
	return &Coordinator{
		gw:      gw,
		session: sess,
		caches:  caches,
		logger:  logger.WithComponent(log.ComponentApproval),
	}
}

// ListPending fetches a page of expenses awaiting a decision the current
// reviewer can make. The queue is role-gated before any network call.
func (c *Coordinator) ListPending(ctx context.Context, page, size int, sort string) (core.Page[core.Expense], error) {
	if _, err := c.reviewer(); err != nil {
		return core.Page[core.Expense]{}, err
	}
	if sort == "" {
		sort = DefaultQueueSort
	}
	return c.gw.PendingApprovals(ctx, page, size, sort)
}

// Decide runs one approval decision. The comment rule and the reviewer's
// authority over the expense's current stage are both checked before the
// mutating call; a remote failure leaves the queue untouched and is
// surfaced as-is.
func (c *Coordinator) Decide(ctx context.Context, expenseID int64, action core.Action, comment string) (core.Expense, error) {
	if action != core.ActionApprove && action != core.ActionReject {
		return core.Expense{}, fmt.Errorf("unknown decision action %q", action)
	}
	reviewer, err := c.reviewer()
	if err != nil {
		return core.Expense{}, err
	}
	if err := core.ValidateComment(action, comment); err != nil {
		return core.Expense{}, err
	}

	current, err := c.gw.GetExpense(ctx, expenseID)
	if err != nil {
		return core.Expense{}, err
	}
	if err := core.CanDecide(reviewer.RoleSet(), current.Status); err != nil {
		return core.Expense{}, fmt.Errorf("decide on expense %d in status %s: %w", expenseID, current.Status, err)
	}

	var decided core.Expense
	switch action {
	case core.ActionApprove:
		decided, err = c.gw.ApproveExpense(ctx, expenseID, comment)
	case core.ActionReject:
		decided, err = c.gw.RejectExpense(ctx, expenseID, comment)
	}
	if err != nil {
		return core.Expense{}, err
	}

	if c.caches != nil {
		c.caches.Invalidate(expenseID)
	}
	c.logger.InfoContext(ctx, "decision recorded",
		log.FieldOperation, string(action),
		log.FieldExpenseID, expenseID,
		log.FieldStatus, string(decided.Status),
		log.FieldUsername, reviewer.Username)
	return decided, nil
}

// reviewer returns the current user if they hold any reviewing role.
func (c *Coordinator) reviewer() (core.SessionUser, error) {
	user, ok := c.session.CurrentUser()
	if !ok {
		return core.SessionUser{}, expense.ErrNotAuthenticated
	}
	roles := user.RoleSet()
	if !roles.Intersects(core.ReviewerRoles()) {
		return core.SessionUser{}, fmt.Errorf("user %s holds no reviewing role: %w", user.Username, core.ErrNotAuthorized)
	}
	return user, nil
}
