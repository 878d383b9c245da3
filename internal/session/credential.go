// Package session owns the authoritative in-memory session: decoding and
// validating credentials, deriving the authenticated-user view, and the
// login/logout/hydrate lifecycle around the persistent store.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"approva/internal/core"
)

var (
	ErrMalformedCredential = errors.New("malformed credential")
	ErrExpiredCredential   = errors.New("expired credential")
)

// Credential is a bearer token plus the claims decoded from it. It is
// created whole on login or OAuth hand-off and never partially mutated.
type Credential struct {
	Token     string
	Subject   string
	UserID    int64
	ExpiresAt time.Time // zero when the token carries no expiry claim
	Roles     []string
}

// credentialClaims is the claim shape the authorization server issues:
// subject, numeric user id, expiry, optional role list.
type credentialClaims struct {
	UserID int64    `json:"userId"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// DecodeCredential decodes the token's claims without verifying the
// signature. The server is the verifier; the client only reads identity
// and expiry out of the token it was handed.
func DecodeCredential(token string) (Credential, error) {
	var claims credentialClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}
	if claims.Subject == "" {
		return Credential{}, fmt.Errorf("%w: missing subject claim", ErrMalformedCredential)
	}
	if claims.UserID <= 0 {
		return Credential{}, fmt.Errorf("%w: missing userId claim", ErrMalformedCredential)
	}

	cred := Credential{
		Token:   token,
		Subject: claims.Subject,
		UserID:  claims.UserID,
		Roles:   claims.Roles,
	}
	if claims.ExpiresAt != nil {
		cred.ExpiresAt = claims.ExpiresAt.Time
	}
	return cred, nil
}

// ExpiredAt reports whether the credential's expiry claim has passed.
// Credentials without an expiry claim never expire client-side.
func (c Credential) ExpiredAt(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && c.ExpiresAt.Before(now)
}

// User derives the session user view from the claims. Email is not a
// claim; it is refined later from the login response or /users/me.
func (c Credential) User() core.SessionUser {
	return core.SessionUser{
		ID:       c.UserID,
		Username: c.Subject,
		Roles:    append([]string(nil), c.Roles...),
	}
}
