package domain

import (
	"context"
	"net/http"
)

// networkFirst favors a fresh response and falls back to the exact cached
// match, then the shell. The network error is returned when neither exists.
func (w *Worker) networkFirst(ctx context.Context, r *http.Request) (*Response, error) {
	key := w.Key(r)
	resp, netErr := w.network.Fetch(ctx, r)
	if netErr == nil {
		resp.Source = SourceNetwork
		w.storeRuntime(ctx, key, resp)
		return resp, nil
	}

	if cached, err := w.Match(ctx, key); err == nil {
		return cached, nil
	}
	if shellKey := w.ShellKey(); shellKey != "" {
		if shell, err := w.Match(ctx, shellKey); err == nil {
			shell.Source = SourceShell
			return shell, nil
		}
	}
	return nil, netErr
}

// cacheFirst serves a cached match when present and otherwise fetches,
// storing only cacheable responses.
func (w *Worker) cacheFirst(ctx context.Context, r *http.Request) (*Response, error) {
	key := w.Key(r)
	if cached, err := w.Match(ctx, key); err == nil {
		return cached, nil
	}
	resp, err := w.network.Fetch(ctx, r)
	if err != nil {
		return nil, err
	}
	resp.Source = SourceNetwork
	w.storeRuntime(ctx, key, resp)
	return resp, nil
}
