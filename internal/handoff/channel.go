package handoff

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"approva/internal/log"
)

// Channel owns one hand-off attempt: a loopback listener, a state nonce
// and a bounded result channel. The channel owns its own teardown so a
// listener can never outlive the flow that opened it.
type Channel struct {
	srv      *http.Server
	state    string
	results  chan Message
	logger   *log.Logger
	closeOnc sync.Once
}

// Open starts the loopback listener on the given port. The returned
// channel must be Closed by the caller, success or not.
func Open(port int, logger *log.Logger) (*Channel, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port))
	if err != nil {
		return nil, fmt.Errorf("listen on callback port %d: %w", port, err)
	}

	c := &Channel{
		state:   uuid.NewString(),
		results: make(chan Message, 1),
		logger:  logger.WithComponent(log.ComponentHandoff),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", c.handleCallback)
	c.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := c.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			c.logger.Warn("callback listener stopped", log.FieldError, err.Error())
		}
	}()

	return c, nil
}

// State returns the nonce attached to the authorization URL. A message
// carrying a state must match it; the contract's plain token/error
// redirect carries none and is accepted, with the loopback-only bind
// keeping remote origins out.
func (c *Channel) State() string {
	return c.state
}

// RedirectURL is the loopback target for the authorization server.
func (c *Channel) RedirectURL(port int) string {
	return "http://localhost:" + strconv.Itoa(port) + "/callback"
}

// Await blocks until a hand-off message arrives or the context ends.
func (c *Channel) Await(ctx context.Context) (Message, error) {
	select {
	case msg := <-c.results:
		return msg, nil
	case <-ctx.Done():
		return Message{}, fmt.Errorf("waiting for hand-off: %w", ctx.Err())
	}
}

// Close shuts the listener down. Idempotent; pending deliveries after
// close are discarded.
func (c *Channel) Close() {
	c.closeOnc.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = c.srv.Shutdown(ctx)
	})
}

// handleCallback accepts both hand-off shapes: the provider redirect with
// token/error query parameters, and a posted JSON message from the
// backend's completion page.
func (c *Channel) handleCallback(w http.ResponseWriter, r *http.Request) {
	var msg Message
	var err error

	switch r.Method {
	case http.MethodGet:
		msg, err = ParseRedirect(r.URL.Query())
	case http.MethodPost:
		body, readErr := io.ReadAll(io.LimitReader(r.Body, 1<<16))
		if readErr != nil {
			http.Error(w, "unreadable hand-off message", http.StatusBadRequest)
			return
		}
		msg, err = MessageFromJSON(body)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err != nil {
		c.logger.Warn("rejected hand-off", log.FieldError, err.Error())
		http.Error(w, "invalid hand-off", http.StatusBadRequest)
		return
	}

	if msg.State != "" && msg.State != c.state {
		c.logger.Warn("rejected hand-off with wrong state nonce")
		http.Error(w, "state mismatch", http.StatusForbidden)
		return
	}

	// First delivery wins; anything after is a duplicate redirect.
	select {
	case c.results <- msg:
	default:
		c.logger.Debug("duplicate hand-off dropped")
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "You may close this window and return to the terminal.")
}
