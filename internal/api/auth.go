package api

import (
	"context"
	"fmt"
	"net/url"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	UserID      int64  `json:"userId"`
}

// LoginWithPassword calls the login endpoint and returns the issued bearer
// token plus the response email. The identifier may be a username or an
// email; the server accepts either in the username field.
func (g *Gateway) LoginWithPassword(ctx context.Context, identifier, secret string) (string, string, error) {
	var resp loginResponse
	err := g.postJSON(ctx, "/auth/login", loginRequest{Username: identifier, Password: secret}, &resp)
	if err != nil {
		return "", "", err
	}
	if resp.AccessToken == "" {
		return "", "", fmt.Errorf("%w: login response carried no access token", ErrTransport)
	}
	return resp.AccessToken, resp.Email, nil
}

// RegisterInput is the sign-up payload. Name fields are optional.
type RegisterInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// Register creates an account and returns the server's message.
func (g *Gateway) Register(ctx context.Context, input RegisterInput) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	if err := g.postJSON(ctx, "/auth/register", input, &resp); err != nil {
		return "", err
	}
	if resp.Message == "" {
		resp.Message = "Account created. You can log in now."
	}
	return resp.Message, nil
}

// AuthorizationURL returns the provider hand-off entry point on the
// backend, with the loopback redirect target and state nonce attached.
func (g *Gateway) AuthorizationURL(provider, redirectURI, state string) string {
	q := url.Values{}
	q.Set("redirect_uri", redirectURI)
	if state != "" {
		q.Set("state", state)
	}
	return g.baseURL + "/oauth2/authorization/" + provider + "?" + q.Encode()
}
