package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"approva/internal/core"
)

// FileUpload is one attachment file to send with a submit or edit.
type FileUpload struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// MyExpenses fetches a page of the caller's own expenses.
func (g *Gateway) MyExpenses(ctx context.Context, page, size int, sort string) (core.Page[core.Expense], error) {
	return FetchPage[core.Expense](ctx, g, "/expenses/my", page, size, sort)
}

// PendingApprovals fetches a page of expenses awaiting the caller's
// decision.
func (g *Gateway) PendingApprovals(ctx context.Context, page, size int, sort string) (core.Page[core.Expense], error) {
	return FetchPage[core.Expense](ctx, g, "/approvals/pending", page, size, sort)
}

// GetExpense fetches a single expense by id.
func (g *Gateway) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	var e core.Expense
	if err := g.getJSON(ctx, "/expenses/"+strconv.FormatInt(id, 10), nil, &e); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// CreateExpense submits a new expense with zero or more attachment files.
// The payload is multipart: one JSON part named "expense" and a file part
// named "files" per attachment.
func (g *Gateway) CreateExpense(ctx context.Context, input core.ExpenseInput, files []FileUpload) (core.Expense, error) {
	return g.sendExpenseMultipart(ctx, http.MethodPost, "/expenses", input, files)
}

// UpdateExpense edits an existing expense. New files extend the attachment
// list; existing attachments are retained, never removed.
func (g *Gateway) UpdateExpense(ctx context.Context, id int64, input core.ExpenseInput, files []FileUpload) (core.Expense, error) {
	return g.sendExpenseMultipart(ctx, http.MethodPut, "/expenses/"+strconv.FormatInt(id, 10), input, files)
}

// DeleteExpense removes an expense. Irreversible.
func (g *Gateway) DeleteExpense(ctx context.Context, id int64) error {
	return g.delete(ctx, "/expenses/"+strconv.FormatInt(id, 10))
}

// ExpenseHistory fetches the append-only approval audit trail.
func (g *Gateway) ExpenseHistory(ctx context.Context, id int64) ([]core.ApprovalHistoryEntry, error) {
	var entries []core.ApprovalHistoryEntry
	if err := g.getJSON(ctx, "/expenses/"+strconv.FormatInt(id, 10)+"/history", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// DownloadAttachment streams an attachment's bytes into w and returns the
// byte count.
func (g *Gateway) DownloadAttachment(ctx context.Context, attachmentID int64, w io.Writer) (int64, error) {
	return g.stream(ctx, "/expenses/attachments/"+strconv.FormatInt(attachmentID, 10)+"/download", w)
}

type approvalRequest struct {
	Comments string `json:"comments,omitempty"`
}

// ApproveExpense invokes the approve transition. Comment is optional.
func (g *Gateway) ApproveExpense(ctx context.Context, id int64, comment string) (core.Expense, error) {
	var e core.Expense
	err := g.postJSON(ctx, "/expenses/"+strconv.FormatInt(id, 10)+"/approve", approvalRequest{Comments: comment}, &e)
	if err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// RejectExpense invokes the reject transition. The server enforces the
// mandatory comment too, but callers validate before reaching the network.
func (g *Gateway) RejectExpense(ctx context.Context, id int64, comment string) (core.Expense, error) {
	var e core.Expense
	err := g.postJSON(ctx, "/expenses/"+strconv.FormatInt(id, 10)+"/reject", approvalRequest{Comments: comment}, &e)
	if err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func (g *Gateway) sendExpenseMultipart(ctx context.Context, method, path string, input core.ExpenseInput, files []FileUpload) (core.Expense, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return core.Expense{}, fmt.Errorf("encode expense payload: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	// The "expense" part must be application/json, not form text.
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="expense"`)
	header.Set("Content-Type", "application/json")
	part, err := mw.CreatePart(header)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense part: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return core.Expense{}, fmt.Errorf("write expense part: %w", err)
	}

	for _, f := range files {
		fileHeader := textproto.MIMEHeader{}
		fileHeader.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="files"; filename="%s"`, f.Name))
		if f.ContentType != "" {
			fileHeader.Set("Content-Type", f.ContentType)
		}
		filePart, err := mw.CreatePart(fileHeader)
		if err != nil {
			return core.Expense{}, fmt.Errorf("create file part %s: %w", f.Name, err)
		}
		if _, err := io.Copy(filePart, f.Reader); err != nil {
			return core.Expense{}, fmt.Errorf("write file part %s: %w", f.Name, err)
		}
	}

	if err := mw.Close(); err != nil {
		return core.Expense{}, fmt.Errorf("finalize multipart body: %w", err)
	}

	var e core.Expense
	if err := g.do(ctx, method, path, nil, &buf, mw.FormDataContentType(), &e); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}
