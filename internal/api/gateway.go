// Package api wraps every outbound call to the expense service. The
// gateway attaches the session credential, stamps request ids, logs round
// trips, and is the single place a server-side 401 turns into a full
// session teardown.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"approva/internal/log"
)

// Session is what the gateway needs from the session layer: the outgoing
// credential and the teardown hook for authorization failures.
type Session interface {
	Token() (string, bool)
	HandleUnauthorized(ctx context.Context)
}

// Gateway is the HTTP client wrapper used by every feature.
type Gateway struct {
	baseURL string
	client  *http.Client
	session Session
	logger  *log.Logger
}

// NewGateway builds a gateway for the given API base URL. BindSession must
// be called before authenticated requests are issued.
func NewGateway(baseURL string, timeout time.Duration, logger *log.Logger) *Gateway {
	gwLogger := logger.WithComponent(log.ComponentGateway)
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: log.NewTransport(nil, gwLogger),
		},
		logger: gwLogger,
	}
}

// BindSession attaches the session layer. Separate from construction
// because the session manager needs the gateway as its login collaborator.
func (g *Gateway) BindSession(s Session) {
	g.session = s
}

// BaseURL returns the configured API root.
func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// getJSON issues a GET and decodes the JSON response into out.
func (g *Gateway) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return g.do(ctx, http.MethodGet, path, query, nil, "", out)
}

// postJSON issues a POST with a JSON body, decoding into out when non-nil.
func (g *Gateway) postJSON(ctx context.Context, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}
	return g.do(ctx, http.MethodPost, path, nil, bytes.NewReader(buf), "application/json", out)
}

// putJSON issues a PUT with a JSON body.
func (g *Gateway) putJSON(ctx context.Context, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}
	return g.do(ctx, http.MethodPut, path, nil, bytes.NewReader(buf), "application/json", out)
}

// delete issues a DELETE expecting an empty response.
func (g *Gateway) delete(ctx context.Context, path string) error {
	return g.do(ctx, http.MethodDelete, path, nil, nil, "", nil)
}

// do runs a single request: credential header, request id, error
// classification and 401 handling. Every outbound call funnels through
// here so the teardown rule cannot be bypassed by an individual feature.
func (g *Gateway) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	u := g.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	g.authorize(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	if err := g.checkStatus(ctx, path, resp); err != nil {
		return err
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s response: %v", ErrTransport, method, path, err)
	}
	return nil
}

// stream runs a GET and copies the raw response body to w, used for
// attachment downloads.
func (g *Gateway) stream(ctx context.Context, path string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	g.authorize(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: GET %s: %v", ErrTransport, path, err)
	}
	defer resp.Body.Close()

	if err := g.checkStatus(ctx, path, resp); err != nil {
		return 0, err
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("%w: read %s body: %v", ErrTransport, path, err)
	}
	return n, nil
}

func (g *Gateway) authorize(req *http.Request) {
	if g.session == nil {
		return
	}
	if token, ok := g.session.Token(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// checkStatus classifies non-2xx responses. A 401 triggers the session
// teardown hook, except on the auth endpoints themselves where a 401 just
// means bad credentials.
func (g *Gateway) checkStatus(ctx context.Context, path string, resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var body errorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body)

	if resp.StatusCode == http.StatusUnauthorized && !strings.HasPrefix(path, "/auth/") {
		if g.session != nil {
			g.session.HandleUnauthorized(ctx)
		}
	}

	return &StatusError{StatusCode: resp.StatusCode, Message: body.text()}
}
