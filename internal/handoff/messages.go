// Package handoff receives a freshly issued credential from the external
// authorization flow and delivers it to the session as a typed message.
// The carrier is a loopback HTTP listener: the provider redirect (or the
// backend's completion page) lands on it with either query parameters or a
// posted JSON message.
package handoff

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

// Kind discriminates the hand-off message variants.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Message is the structured hand-off result: either a credential or a
// reason, never both.
type Message struct {
	Kind       Kind   `json:"kind"`
	Credential string `json:"credential,omitempty"`
	Reason     string `json:"reason,omitempty"`
	State      string `json:"state,omitempty"`
}

var ErrInvalidHandoff = errors.New("invalid hand-off message")

// Success builds a success message.
func Success(credential string) Message {
	return Message{Kind: KindSuccess, Credential: credential}
}

// Failure builds an error message.
func Failure(reason string) Message {
	return Message{Kind: KindError, Reason: reason}
}

// Validate checks the variant's shape.
func (m Message) Validate() error {
	switch m.Kind {
	case KindSuccess:
		if m.Credential == "" {
			return fmt.Errorf("%w: success without credential", ErrInvalidHandoff)
		}
	case KindError:
		if m.Reason == "" {
			return fmt.Errorf("%w: error without reason", ErrInvalidHandoff)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidHandoff, m.Kind)
	}
	return nil
}

// ToJSON serializes the message.
func (m Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MessageFromJSON parses and validates a posted hand-off message.
func MessageFromJSON(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidHandoff, err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// ParseRedirect classifies a whole-page redirect landing: a token query
// parameter means success, an error parameter means failure, and neither
// means invalid direct access.
func ParseRedirect(query url.Values) (Message, error) {
	if token := query.Get("token"); token != "" {
		return Message{Kind: KindSuccess, Credential: token, State: query.Get("state")}, nil
	}
	if reason := query.Get("error"); reason != "" {
		return Message{Kind: KindError, Reason: reason, State: query.Get("state")}, nil
	}
	return Message{}, fmt.Errorf("%w: redirect carried neither token nor error", ErrInvalidHandoff)
}
