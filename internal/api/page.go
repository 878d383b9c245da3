package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"approva/internal/core"
)

// FetchPage requests one page of a paginated listing and decodes the page
// envelope. Page indexes are 0-based; sort is the server's "field,dir"
// form and may be empty. Both the owner's expense list and the pending
// approvals queue go through here.
func FetchPage[T any](ctx context.Context, g *Gateway, path string, page, size int, sort string) (core.Page[T], error) {
	var p core.Page[T]
	if size <= 0 {
		return p, fmt.Errorf("%w: page size must be positive, got %d", ErrValidation, size)
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("size", strconv.Itoa(size))
	if sort != "" {
		query.Set("sort", sort)
	}

	if err := g.getJSON(ctx, path, query, &p); err != nil {
		return core.Page[T]{}, err
	}
	if err := p.Validate(); err != nil {
		return core.Page[T]{}, fmt.Errorf("%w: malformed page envelope from %s: %v", ErrTransport, path, err)
	}
	return p, nil
}
