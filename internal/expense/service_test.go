package expense

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"approva/internal/api"
	"approva/internal/core"
	"approva/internal/log"
	"approva/internal/session"
	"approva/internal/store"
)

func testLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func signToken(t *testing.T, userID int64, username string, roles ...string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    username,
		"userId": userID,
		"roles":  roles,
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

// harness wires a real gateway and session against an httptest server.
type harness struct {
	svc     *Service
	session *session.Manager
	hits    *[]string
}

func newHarness(t *testing.T, handler http.HandlerFunc) *harness {
	t.Helper()

	var hits []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, r.Method+" "+r.URL.Path)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	logger := testLogger()
	gw := api.NewGateway(srv.URL, 5*time.Second, logger)
	mgr := session.NewManager(store.NewMemoryStore(), gw, logger)
	gw.BindSession(mgr)

	return &harness{
		svc:     NewService(gw, mgr, logger),
		session: mgr,
		hits:    &hits,
	}
}

func (h *harness) loginAs(t *testing.T, userID int64, username string, roles ...string) {
	t.Helper()
	_, err := h.session.CompleteOAuth(context.Background(), signToken(t, userID, username, roles...))
	require.NoError(t, err)
}

func serveExpense(e core.Expense) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(e)
	}
}

func TestSubmitValidatesBeforeNetwork(t *testing.T) {
	h := newHarness(t, serveExpense(core.Expense{}))
	h.loginAs(t, 7, "alice", "ROLE_EMPLOYEE")

	_, err := h.svc.Submit(context.Background(), core.ExpenseInput{}, nil)
	require.ErrorIs(t, err, core.ErrEmptyDescription)
	require.Empty(t, *h.hits, "invalid input must never reach the network")
}

func TestSubmitRequiresSession(t *testing.T) {
	h := newHarness(t, serveExpense(core.Expense{}))

	_, err := h.svc.Submit(context.Background(), core.ExpenseInput{}, nil)
	require.ErrorIs(t, err, ErrNotAuthenticated)
	require.Empty(t, *h.hits)
}

func TestSubmit(t *testing.T) {
	h := newHarness(t, serveExpense(core.Expense{ID: 42, Status: core.StatusSubmitted, UserID: 7}))
	h.loginAs(t, 7, "alice", "ROLE_EMPLOYEE")

	input := core.ExpenseInput{
		Description: "Team lunch",
		Amount:      core.Money{Cents: 4250},
		ExpenseDate: core.NewDate(2026, 8, 20),
		CategoryID:  3,
	}
	created, err := h.svc.Submit(context.Background(), input, nil)
	require.NoError(t, err)
	require.Equal(t, int64(42), created.ID)
	require.Equal(t, []string{"POST /expenses"}, *h.hits)
}

func TestEditBlockedByWorkflowState(t *testing.T) {
	h := newHarness(t, serveExpense(core.Expense{ID: 5, UserID: 7, Status: core.StatusApproved}))
	h.loginAs(t, 7, "alice", "ROLE_EMPLOYEE")

	input := core.ExpenseInput{
		Description: "edited",
		Amount:      core.Money{Cents: 100},
		ExpenseDate: core.NewDate(2026, 8, 20),
		CategoryID:  1,
	}
	_, err := h.svc.Edit(context.Background(), 5, input, nil)
	require.ErrorIs(t, err, core.ErrInvalidStateTransition)
	require.Equal(t, []string{"GET /expenses/5"}, *h.hits, "the policy check reads but never writes")
}

func TestEditBlockedForNonOwner(t *testing.T) {
	h := newHarness(t, serveExpense(core.Expense{ID: 5, UserID: 99, Status: core.StatusSubmitted}))
	h.loginAs(t, 7, "alice", "ROLE_MANAGER")

	input := core.ExpenseInput{
		Description: "edited",
		Amount:      core.Money{Cents: 100},
		ExpenseDate: core.NewDate(2026, 8, 20),
		CategoryID:  1,
	}
	_, err := h.svc.Edit(context.Background(), 5, input, nil)
	require.ErrorIs(t, err, core.ErrNotAuthorized)
}

func TestEditAdminOverride(t *testing.T) {
	h := newHarness(t, serveExpense(core.Expense{ID: 5, UserID: 99, Status: core.StatusSubmitted}))
	h.loginAs(t, 7, "root", "ROLE_ADMIN")

	input := core.ExpenseInput{
		Description: "edited",
		Amount:      core.Money{Cents: 100},
		ExpenseDate: core.NewDate(2026, 8, 20),
		CategoryID:  1,
	}
	_, err := h.svc.Edit(context.Background(), 5, input, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"GET /expenses/5", "PUT /expenses/5"}, *h.hits)
}

func TestGetUsesCache(t *testing.T) {
	h := newHarness(t, serveExpense(core.Expense{ID: 5, UserID: 7, Status: core.StatusSubmitted}))
	h.loginAs(t, 7, "alice", "ROLE_EMPLOYEE")

	ctx := context.Background()
	_, err := h.svc.Get(ctx, 5)
	require.NoError(t, err)
	_, err = h.svc.Get(ctx, 5)
	require.NoError(t, err)
	require.Len(t, *h.hits, 1, "the second read should be served from cache")
}

func TestDeleteInvalidatesCache(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		json.NewEncoder(w).Encode(core.Expense{ID: 5, UserID: 7, Status: core.StatusSubmitted})
	})
	h.loginAs(t, 7, "alice", "ROLE_EMPLOYEE")

	ctx := context.Background()
	_, err := h.svc.Get(ctx, 5) // warms the cache
	require.NoError(t, err)

	require.NoError(t, h.svc.Delete(ctx, 5))

	_, err = h.svc.Get(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, []string{
		"GET /expenses/5",
		"GET /expenses/5", // the delete's policy read
		"DELETE /expenses/5",
		"GET /expenses/5", // cache was invalidated
	}, *h.hits)
}

func TestCachePurgedOnSessionTurnover(t *testing.T) {
	h := newHarness(t, serveExpense(core.Expense{ID: 5, UserID: 7, Status: core.StatusSubmitted}))
	h.loginAs(t, 7, "alice", "ROLE_EMPLOYEE")

	ctx := context.Background()
	_, err := h.svc.Get(ctx, 5)
	require.NoError(t, err)
	require.Len(t, *h.hits, 1)

	h.session.Logout(ctx)
	h.loginAs(t, 8, "bob", "ROLE_EMPLOYEE")

	// Bob must not be served Alice's cached read.
	_, err = h.svc.Get(ctx, 5)
	require.NoError(t, err)
	require.Len(t, *h.hits, 2)
}

func TestHistory(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]core.ApprovalHistoryEntry{
			{ID: 1, ExpenseID: 5, StatusAfter: core.StatusSubmitted},
			{ID: 2, ExpenseID: 5, StatusBefore: core.StatusSubmitted, StatusAfter: core.StatusPendingFinance},
		})
	})
	h.loginAs(t, 7, "alice", "ROLE_EMPLOYEE")

	entries, err := h.svc.History(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, []string{"GET /expenses/5/history"}, *h.hits)

	// Second read is cached.
	_, err = h.svc.History(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, *h.hits, 1)
}
