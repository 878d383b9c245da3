package api

import (
	"context"

	"approva/internal/core"
)

// Me fetches the caller's profile.
func (g *Gateway) Me(ctx context.Context) (core.SessionUser, error) {
	var u core.SessionUser
	if err := g.getJSON(ctx, "/users/me", nil, &u); err != nil {
		return core.SessionUser{}, err
	}
	return u, nil
}

// ProfileUpdate carries the only mutable profile fields.
type ProfileUpdate struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// UpdateMe updates the caller's name fields and returns the refreshed
// profile.
func (g *Gateway) UpdateMe(ctx context.Context, update ProfileUpdate) (core.SessionUser, error) {
	var u core.SessionUser
	if err := g.putJSON(ctx, "/users/me", update, &u); err != nil {
		return core.SessionUser{}, err
	}
	return u, nil
}
