package core

import (
	"errors"
	"strings"
)

// Status is an expense's position in the approval workflow.
type Status string

const (
	StatusSubmitted      Status = "SUBMITTED"
	StatusPendingFinance Status = "PENDING_FINANCE_APPROVAL"
	StatusApproved       Status = "APPROVED"
	StatusRejected       Status = "REJECTED"
)

// Valid reports whether the status is one of the workflow states.
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusPendingFinance, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Role is a typed authorization role. The server issues the ROLE_-prefixed
// names; NewRoleSet normalizes them.
type Role string

const (
	RoleEmployee Role = "ROLE_EMPLOYEE"
	RoleManager  Role = "ROLE_MANAGER"
	RoleFinance  Role = "ROLE_FINANCE"
	RoleAdmin    Role = "ROLE_ADMIN"
)

// RoleSet is a set of roles. Authorization everywhere in the workflow is
// set intersection: an actor may perform a guarded action iff the action's
// allowed set intersects the actor's set.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from raw role names, tolerating a missing
// ROLE_ prefix and mixed case.
func NewRoleSet(names ...string) RoleSet {
	rs := make(RoleSet, len(names))
	for _, n := range names {
		n = strings.ToUpper(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if !strings.HasPrefix(n, "ROLE_") {
			n = "ROLE_" + n
		}
		rs[Role(n)] = struct{}{}
	}
	return rs
}

// Has reports set membership.
func (rs RoleSet) Has(r Role) bool {
	_, ok := rs[r]
	return ok
}

// Intersects reports whether the two sets share at least one role.
func (rs RoleSet) Intersects(other RoleSet) bool {
	small, large := rs, other
	if len(other) < len(rs) {
		small, large = other, rs
	}
	for r := range small {
		if _, ok := large[r]; ok {
			return true
		}
	}
	return false
}

// Names returns the set's role names in unspecified order.
func (rs RoleSet) Names() []string {
	out := make([]string, 0, len(rs))
	for r := range rs {
		out = append(out, string(r))
	}
	return out
}

// Action is a guarded workflow operation.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionEdit    Action = "edit"
	ActionDelete  Action = "delete"
)

var (
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrNotAuthorized          = errors.New("actor not authorized for this action")
	ErrCommentRequired        = errors.New("rejection comment is mandatory")
)

// ApproverRolesFor returns the allowed-role set for deciding an expense in
// the given state. First-stage decisions belong to managers, second-stage
// to finance; admin may act at either stage.
func ApproverRolesFor(from Status) (RoleSet, error) {
	switch from {
	case StatusSubmitted:
		return NewRoleSet(string(RoleManager), string(RoleAdmin)), nil
	case StatusPendingFinance:
		return NewRoleSet(string(RoleFinance), string(RoleAdmin)), nil
	default:
		return nil, ErrInvalidStateTransition
	}
}

// ReviewerRoles is the union of roles that can appear in any decision
// stage. Holding any of them grants access to the pending queue.
func ReviewerRoles() RoleSet {
	return NewRoleSet(string(RoleManager), string(RoleFinance), string(RoleAdmin))
}

// CanDecide checks that an approve/reject of an expense in state from is
// legal for an actor holding the given roles. State is checked before
// authorization so a terminal expense reports ErrInvalidStateTransition
// regardless of who asks.
func CanDecide(actor RoleSet, from Status) error {
	allowed, err := ApproverRolesFor(from)
	if err != nil {
		return err
	}
	if !actor.Intersects(allowed) {
		return ErrNotAuthorized
	}
	return nil
}

// ValidateComment enforces the per-action comment rule: reject requires a
// non-empty, non-whitespace comment; approve comments are optional.
func ValidateComment(action Action, comment string) error {
	if action == ActionReject && strings.TrimSpace(comment) == "" {
		return ErrCommentRequired
	}
	return nil
}

// CanMutate is the single edit/delete eligibility predicate. The owner may
// mutate while the expense is SUBMITTED or REJECTED; admin may override
// ownership but never the state rule.
func CanMutate(e Expense, actorID int64, actor RoleSet) error {
	if e.Status != StatusSubmitted && e.Status != StatusRejected {
		return ErrInvalidStateTransition
	}
	if e.UserID != actorID && !actor.Has(RoleAdmin) {
		return ErrNotAuthorized
	}
	return nil
}

// StatusAfterEdit returns the status an expense takes after its owner edits
// it. Editing a REJECTED expense resubmits it.
func StatusAfterEdit(current Status) Status {
	if current == StatusRejected {
		return StatusSubmitted
	}
	return current
}
