package domain

import (
	"context"
	"net/http"
)

// Network performs a real fetch. A returned error means the request never
// produced a response (offline, DNS, timeout); HTTP error statuses are
// responses, not errors.
type Network interface {
	Fetch(ctx context.Context, r *http.Request) (*Response, error)
}

// NetworkFunc adapts a function into a Network.
type NetworkFunc func(ctx context.Context, r *http.Request) (*Response, error)

// Fetch calls f.
func (f NetworkFunc) Fetch(ctx context.Context, r *http.Request) (*Response, error) {
	return f(ctx, r)
}
