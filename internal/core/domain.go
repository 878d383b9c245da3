package core

import (
	"errors"
	"strings"
	"time"
)

type (
	// Date is a calendar day without time-of-day, carried as "YYYY-MM-DD"
	// on the JSON contract.
	Date struct {
		time.Time
	}

	// Money holds a positive amount in cents. The wire format is a plain
	// decimal number, so marshalling converts both ways.
	Money struct {
		Cents int64
	}

	// Attachment is a receipt file owned by exactly one expense.
	// Attachments are append-only: edits may add files, never remove them.
	Attachment struct {
		ID         int64     `json:"id"`
		FileName   string    `json:"fileName"`
		FileType   string    `json:"fileType"`
		UploadedAt time.Time `json:"uploadedAt"`
	}

	// Expense is the remote system's expense record as the client sees it.
	// Local copies are read-mostly and scoped to the view that fetched them.
	Expense struct {
		ID           int64        `json:"id"`
		Description  string       `json:"description"`
		Amount       Money        `json:"amount"`
		ExpenseDate  Date         `json:"expenseDate"`
		Status       Status       `json:"status"`
		UserID       int64        `json:"userId"`
		Username     string       `json:"username"`
		CategoryID   int64        `json:"categoryId"`
		CategoryName string       `json:"categoryName"`
		Attachments  []Attachment `json:"attachments"`
		CreatedAt    time.Time    `json:"createdAt"`
		UpdatedAt    time.Time    `json:"updatedAt"`
	}

	// ExpenseInput is the client-owned payload for submit and edit,
	// serialized into the "expense" multipart part.
	ExpenseInput struct {
		Description string `json:"description"`
		Amount      Money  `json:"amount"`
		ExpenseDate Date   `json:"expenseDate"`
		CategoryID  int64  `json:"categoryId"`
	}

	// ApprovalHistoryEntry is one immutable audit record per workflow
	// transition. StatusBefore is empty for the first entry.
	ApprovalHistoryEntry struct {
		ID               int64     `json:"id"`
		ExpenseID        int64     `json:"expenseId"`
		ApproverUserID   int64     `json:"approverUserId"`
		ApproverUsername string    `json:"approverUsername"`
		StatusBefore     Status    `json:"statusBefore,omitempty"`
		StatusAfter      Status    `json:"statusAfter"`
		Comments         string    `json:"comments,omitempty"`
		ActionDate       time.Time `json:"actionDate"`
	}

	// SessionUser is the authenticated-user view derived from credential
	// claims. Email and the name fields may be refined after login from
	// the login response or the profile endpoint; id, username and roles
	// come from the credential and are immutable for the session lifetime.
	SessionUser struct {
		ID        int64    `json:"id"`
		Username  string   `json:"username"`
		Email     string   `json:"email"`
		FirstName string   `json:"firstName,omitempty"`
		LastName  string   `json:"lastName,omitempty"`
		Roles     []string `json:"roles,omitempty"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidDate      = errors.New("invalid expense date")
	ErrInvalidCategory  = errors.New("invalid category")
)

const dateLayout = "2006-01-02"

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses the wire layout YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e ExpenseInput) Validate() error {
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := e.ExpenseDate.Validate(); err != nil {
		return err
	}
	if e.CategoryID <= 0 {
		return ErrInvalidCategory
	}
	return nil
}

// RoleSet returns the user's roles as a typed set.
func (u SessionUser) RoleSet() RoleSet {
	return NewRoleSet(u.Roles...)
}

// DisplayName prefers the profile name over the username.
func (u SessionUser) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	return u.Username
}
