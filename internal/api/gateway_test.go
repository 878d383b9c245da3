package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"approva/internal/core"
	"approva/internal/log"
)

type fakeSession struct {
	token        string
	unauthorized int
}

func (s *fakeSession) Token() (string, bool) {
	return s.token, s.token != ""
}

func (s *fakeSession) HandleUnauthorized(ctx context.Context) {
	s.unauthorized++
	s.token = ""
}

func testLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func newTestGateway(t *testing.T, handler http.HandlerFunc) (*Gateway, *fakeSession, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gw := NewGateway(srv.URL, 5*time.Second, testLogger())
	sess := &fakeSession{token: "test-token"}
	gw.BindSession(sess)
	return gw, sess, srv
}

func TestGatewayAttachesCredential(t *testing.T) {
	var gotAuth, gotRequestID string
	gw, _, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-Id")
		json.NewEncoder(w).Encode(core.SessionUser{ID: 1, Username: "alice"})
	})

	_, err := gw.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer test-token", gotAuth)
	require.NotEmpty(t, gotRequestID)
}

func TestGatewayNoCredentialNoHeader(t *testing.T) {
	var gotAuth string
	gw, sess, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(core.SessionUser{})
	})
	sess.token = ""

	_, err := gw.Me(context.Background())
	require.NoError(t, err)
	require.Empty(t, gotAuth)
}

func TestGatewayUnauthorizedTriggersTeardown(t *testing.T) {
	gw, sess, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "token expired"})
	})

	_, err := gw.Me(context.Background())
	require.ErrorIs(t, err, ErrAuthorizationFailure)
	require.Equal(t, 1, sess.unauthorized)
	require.Contains(t, err.Error(), "token expired")
}

func TestGatewayUnauthorizedOnAuthEndpointIsLocal(t *testing.T) {
	gw, sess, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "bad credentials"})
	})

	_, _, err := gw.LoginWithPassword(context.Background(), "alice", "wrong")
	require.ErrorIs(t, err, ErrAuthorizationFailure)
	require.Equal(t, 0, sess.unauthorized, "a login rejection must not tear down the session")
}

func TestGatewayErrorTaxonomy(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusBadRequest, ErrValidation},
		{http.StatusUnprocessableEntity, ErrValidation},
		{http.StatusInternalServerError, ErrTransport},
		{http.StatusBadGateway, ErrTransport},
	}

	for _, tt := range tests {
		gw, _, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		})
		_, err := gw.GetExpense(context.Background(), 1)
		require.ErrorIs(t, err, tt.want, "status %d", tt.status)
	}
}

func TestFetchPageValidEnvelope(t *testing.T) {
	gw, _, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "0", r.URL.Query().Get("page"))
		require.Equal(t, "10", r.URL.Query().Get("size"))
		require.Equal(t, "createdAt,desc", r.URL.Query().Get("sort"))
		json.NewEncoder(w).Encode(core.Page[core.Expense]{
			Content:       []core.Expense{{ID: 1, Description: "lunch", Amount: core.Money{Cents: 1200}}},
			TotalElements: 1,
			TotalPages:    1,
			Number:        0,
			Size:          10,
		})
	})

	page, err := gw.MyExpenses(context.Background(), 0, 10, "createdAt,desc")
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	require.True(t, page.Last())
}

func TestFetchPageRejectsMalformedEnvelope(t *testing.T) {
	gw, _, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		// Three items on a page of size two.
		json.NewEncoder(w).Encode(core.Page[core.Expense]{
			Content:       []core.Expense{{ID: 1}, {ID: 2}, {ID: 3}},
			TotalElements: 3,
			TotalPages:    2,
			Number:        0,
			Size:          2,
		})
	})

	_, err := gw.MyExpenses(context.Background(), 0, 2, "")
	require.ErrorIs(t, err, ErrTransport)
}

func TestFetchPageRejectsNonPositiveSize(t *testing.T) {
	called := false
	gw, _, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := gw.MyExpenses(context.Background(), 0, 0, "")
	require.ErrorIs(t, err, ErrValidation)
	require.False(t, called, "invalid size must fail before the network")
}

func TestCreateExpenseMultipartShape(t *testing.T) {
	gw, _, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		// The expense part must be JSON, not form text.
		partHeaders := r.MultipartForm.File["expense"]
		if len(partHeaders) == 1 {
			require.Equal(t, "application/json", partHeaders[0].Header.Get("Content-Type"))
			f, err := partHeaders[0].Open()
			require.NoError(t, err)
			defer f.Close()
			var input core.ExpenseInput
			require.NoError(t, json.NewDecoder(f).Decode(&input))
			require.Equal(t, "Team lunch", input.Description)
		} else {
			// Depending on the part headers Go may surface it as a value.
			values := r.MultipartForm.Value["expense"]
			require.Len(t, values, 1)
			require.True(t, strings.Contains(values[0], "Team lunch"))
		}

		files := r.MultipartForm.File["files"]
		require.Len(t, files, 2)
		require.Equal(t, "receipt.pdf", files[0].Filename)

		json.NewEncoder(w).Encode(core.Expense{ID: 42, Status: core.StatusSubmitted})
	})

	input := core.ExpenseInput{
		Description: "Team lunch",
		Amount:      core.Money{Cents: 4250},
		ExpenseDate: core.NewDate(2026, 8, 20),
		CategoryID:  3,
	}
	files := []FileUpload{
		{Name: "receipt.pdf", ContentType: "application/pdf", Reader: strings.NewReader("%PDF-fake")},
		{Name: "photo.jpg", ContentType: "image/jpeg", Reader: strings.NewReader("jpeg-bytes")},
	}

	created, err := gw.CreateExpense(context.Background(), input, files)
	require.NoError(t, err)
	require.Equal(t, int64(42), created.ID)
	require.Equal(t, core.StatusSubmitted, created.Status)
}

func TestApproveAndRejectBodies(t *testing.T) {
	var gotPath string
	var gotBody approvalRequest
	gw, _, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(core.Expense{ID: 9, Status: core.StatusRejected})
	})

	_, err := gw.RejectExpense(context.Background(), 9, "missing receipt")
	require.NoError(t, err)
	require.Equal(t, "/expenses/9/reject", gotPath)
	require.Equal(t, "missing receipt", gotBody.Comments)

	_, err = gw.ApproveExpense(context.Background(), 9, "")
	require.NoError(t, err)
	require.Equal(t, "/expenses/9/approve", gotPath)
	require.Empty(t, gotBody.Comments)
}

func TestAuthorizationURLEncodesQuery(t *testing.T) {
	gw := NewGateway("https://api.example.com/api", time.Second, testLogger())

	got := gw.AuthorizationURL("google", "http://localhost:8085/callback", "nonce-1")

	u, err := url.Parse(got)
	require.NoError(t, err)
	require.Equal(t, "/api/oauth2/authorization/google", u.Path)
	require.Equal(t, "http://localhost:8085/callback", u.Query().Get("redirect_uri"))
	require.Equal(t, "nonce-1", u.Query().Get("state"))
	require.NotContains(t, u.RawQuery, "://", "redirect_uri must be percent-encoded")

	noState := gw.AuthorizationURL("google", "http://localhost:8085/callback", "")
	u, err = url.Parse(noState)
	require.NoError(t, err)
	require.False(t, u.Query().Has("state"))
}

func TestDownloadAttachmentStreams(t *testing.T) {
	payload := strings.Repeat("x", 4096)
	gw, _, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/expenses/attachments/5/download", r.URL.Path)
		io.WriteString(w, payload)
	})

	var buf strings.Builder
	n, err := gw.DownloadAttachment(context.Background(), 5, &buf)
	require.NoError(t, err)
	require.Equal(t, int64(len(payload)), n)
	require.Equal(t, payload, buf.String())
}
