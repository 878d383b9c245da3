package handoff

import (
	"errors"
	"net/url"
	"testing"
)

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{"success with credential", Success("tok"), false},
		{"error with reason", Failure("denied"), false},
		{"success without credential", Message{Kind: KindSuccess}, true},
		{"error without reason", Message{Kind: KindError}, true},
		{"unknown kind", Message{Kind: "weird", Credential: "tok"}, true},
		{"empty message", Message{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidHandoff) {
				t.Errorf("error should wrap ErrInvalidHandoff, got %v", err)
			}
		})
	}
}

func TestMessageJSONRoundTrip(t *testing.T) {
	b, err := Success("tok-123").ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}

	msg, err := MessageFromJSON(b)
	if err != nil {
		t.Fatalf("from json: %v", err)
	}
	if msg.Kind != KindSuccess || msg.Credential != "tok-123" {
		t.Errorf("round trip gave %+v", msg)
	}
}

func TestMessageFromJSONRejectsInvalid(t *testing.T) {
	for _, raw := range []string{"", "{", `{"kind":"success"}`, `{"kind":"nope"}`} {
		if _, err := MessageFromJSON([]byte(raw)); !errors.Is(err, ErrInvalidHandoff) {
			t.Errorf("input %q: want ErrInvalidHandoff, got %v", raw, err)
		}
	}
}

func TestParseRedirect(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantKind Kind
		wantErr  bool
	}{
		{"token means success", "token=tok-1&state=abc", KindSuccess, false},
		{"error means failure", "error=access_denied&state=abc", KindError, false},
		{"token wins over error", "token=tok-1&error=x", KindSuccess, false},
		{"neither is invalid", "foo=bar", "", true},
		{"empty query is invalid", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			msg, err := ParseRedirect(q)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidHandoff) {
					t.Fatalf("want ErrInvalidHandoff, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if msg.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", msg.Kind, tt.wantKind)
			}
			if msg.State != "abc" && tt.query != "token=tok-1&error=x" {
				t.Errorf("state not carried through: %+v", msg)
			}
		})
	}
}
