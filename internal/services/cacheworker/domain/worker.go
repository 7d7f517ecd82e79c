package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/louisbranch/dailytasks/internal/services/cacheworker/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const defaultPrecacheConcurrency = 4

// State is a worker lifecycle state.
type State string

const (
	StateNew        State = "new"
	StateInstalling State = "installing"
	StateWaiting    State = "waiting"
	StateActivating State = "activating"
	StateActive     State = "active"
	StateRedundant  State = "redundant"
)

var allowedTransitions = map[State][]State{
	StateNew:        {StateInstalling, StateActive, StateRedundant},
	StateInstalling: {StateWaiting, StateRedundant},
	StateWaiting:    {StateActivating, StateRedundant},
	StateActivating: {StateActive, StateRedundant},
	StateActive:     {StateRedundant},
}

// WorkerConfig wires a worker to its origin, storage, and network.
type WorkerConfig struct {
	Manifest    Manifest
	Origin      *url.URL
	Store       storage.CacheStorage
	Network     Network
	Lifetime    *Lifetime
	Concurrency int
	Clock       func() time.Time
	Logf        func(string, ...any)
}

// Worker is one installed version of the resource cache. It owns the
// generations named by its manifest.
type Worker struct {
	manifest    Manifest
	generations Generations
	origin      *url.URL
	store       storage.CacheStorage
	network     Network
	lifetime    *Lifetime
	concurrency int
	clock       func() time.Time
	logf        func(string, ...any)
	tracer      trace.Tracer

	mu         sync.Mutex
	state      State
	superseded bool
	writes     sync.WaitGroup
}

// NewWorker creates a worker in the new state.
func NewWorker(cfg WorkerConfig) *Worker {
	manifest := cfg.Manifest.Normalized()
	origin := cfg.Origin
	if origin == nil {
		origin = &url.URL{Scheme: "http", Host: "localhost"}
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultPrecacheConcurrency
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logf := cfg.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &Worker{
		manifest:    manifest,
		generations: manifest.Generations(),
		origin:      origin,
		store:       cfg.Store,
		network:     cfg.Network,
		lifetime:    cfg.Lifetime,
		concurrency: concurrency,
		clock:       clock,
		logf:        logf,
		tracer:      otel.Tracer("github.com/louisbranch/dailytasks/internal/services/cacheworker/domain"),
		state:       StateNew,
	}
}

// Version returns the manifest version token.
func (w *Worker) Version() string {
	return w.manifest.Version
}

// Manifest returns the normalized manifest.
func (w *Worker) Manifest() Manifest {
	return w.manifest
}

// Generations returns the live bucket names for this worker.
func (w *Worker) Generations() Generations {
	return w.generations
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Transition moves the worker to state when the lifecycle allows it.
func (w *Worker) Transition(to State) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !slices.Contains(allowedTransitions[w.state], to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, w.state, to)
	}
	w.state = to
	return nil
}

// Install precaches every manifest entry. The event fails if any fetch
// fails, and nothing is committed in that case.
func (w *Worker) Install(ctx context.Context, event *ExtendableEvent) {
	if err := w.Transition(StateInstalling); err != nil {
		event.WaitUntil(func(context.Context) error { return err })
		return
	}
	event.WaitUntil(w.precache)
}

func (w *Worker) precache(ctx context.Context) (err error) {
	ctx, span := w.tracer.Start(ctx, "cacheworker.install", trace.WithAttributes(
		attribute.String("cache.version", w.manifest.Version),
		attribute.Int("cache.precache_count", len(w.manifest.URLs)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := w.manifest.Validate(); err != nil {
		return err
	}
	if w.store == nil || w.network == nil {
		return ErrNotConfigured
	}

	now := w.clock().UTC()
	entries := make([]storage.Entry, len(w.manifest.URLs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(w.concurrency)
	for i, path := range w.manifest.URLs {
		group.Go(func() error {
			target, err := w.resolve(path)
			if err != nil {
				return &InstallError{URL: path, Err: err}
			}
			req, err := http.NewRequestWithContext(groupCtx, http.MethodGet, target.String(), nil)
			if err != nil {
				return &InstallError{URL: path, Err: err}
			}
			resp, err := w.network.Fetch(groupCtx, req)
			if err != nil {
				return &InstallError{URL: path, Err: err}
			}
			if resp.Status < 200 || resp.Status > 299 {
				return &InstallError{URL: path, Err: &StatusError{Status: resp.Status}}
			}
			entries[i] = resp.Entry(KeyFor(http.MethodGet, target), now)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	if err := w.store.PutAll(ctx, w.generations.Precache, entries); err != nil {
		return fmt.Errorf("commit precache %s: %w", w.generations.Precache, err)
	}
	return nil
}

// Activate purges every generation this worker does not own.
func (w *Worker) Activate(ctx context.Context, event *ExtendableEvent) {
	if err := w.Transition(StateActivating); err != nil {
		event.WaitUntil(func(context.Context) error { return err })
		return
	}
	event.WaitUntil(w.Purge)
}

// Purge deletes every generation this worker does not own.
func (w *Worker) Purge(ctx context.Context) (err error) {
	ctx, span := w.tracer.Start(ctx, "cacheworker.activate", trace.WithAttributes(
		attribute.String("cache.version", w.manifest.Version),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if w.store == nil {
		return ErrNotConfigured
	}
	names, err := w.store.Names(ctx)
	if err != nil {
		return fmt.Errorf("list generations: %w", err)
	}
	var errs []error
	stale := w.generations.Stale(names)
	for _, name := range stale {
		if _, err := w.store.DeleteGeneration(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("delete generation %s: %w", name, err))
		}
	}
	span.SetAttributes(attribute.Int("cache.purged", len(stale)-len(errs)))
	return errors.Join(errs...)
}

// Supersede stops new runtime cache writes and waits for in-flight ones.
func (w *Worker) Supersede() {
	w.mu.Lock()
	w.superseded = true
	w.mu.Unlock()
	w.writes.Wait()
}

// Fetch serves r according to its request class.
func (w *Worker) Fetch(ctx context.Context, r *http.Request) (resp *Response, err error) {
	class := Classify(w.origin, r)
	ctx, span := w.tracer.Start(ctx, "cacheworker.fetch", trace.WithAttributes(
		attribute.String("cache.strategy", class.String()),
		attribute.String("http.request.method", r.Method),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else if resp != nil {
			span.SetAttributes(
				attribute.String("cache.status", resp.Source.CacheStatus()),
				attribute.Int("http.response.status_code", resp.Status),
			)
		}
		span.End()
	}()

	if w.network == nil {
		return nil, ErrNotConfigured
	}
	switch class {
	case ClassNavigation:
		return w.networkFirst(ctx, r)
	case ClassAsset:
		return w.cacheFirst(ctx, r)
	default:
		resp, err := w.network.Fetch(ctx, r)
		if err != nil {
			return nil, err
		}
		resp.Source = SourceNetwork
		return resp, nil
	}
}

// Match looks up key in the precache generation, then the runtime one.
func (w *Worker) Match(ctx context.Context, key string) (*Response, error) {
	if w.store == nil {
		return nil, ErrNotConfigured
	}
	for _, generation := range []string{w.generations.Precache, w.generations.Runtime} {
		entry, err := w.store.Match(ctx, generation, key)
		if err == nil {
			return ResponseFromEntry(entry, SourceCache), nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			w.logf("cache match %s in %s: %v", key, generation, err)
		}
	}
	return nil, ErrNoMatch
}

// ShellKey returns the cache key of the application shell entry point.
func (w *Worker) ShellKey() string {
	target, err := w.resolve(w.manifest.Shell)
	if err != nil {
		return ""
	}
	return KeyFor(http.MethodGet, target)
}

// Key returns the cache key for r scoped to this worker's origin.
func (w *Worker) Key(r *http.Request) string {
	u := RequestURL(w.origin, r)
	if SameOrigin(w.origin, u) {
		u.Scheme = w.origin.Scheme
		u.Host = w.origin.Host
	}
	return KeyFor(r.Method, u)
}

func (w *Worker) resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	return w.origin.ResolveReference(ref), nil
}

// storeRuntime persists resp in the background. Failures are logged only.
func (w *Worker) storeRuntime(ctx context.Context, key string, resp *Response) {
	if w.store == nil || !resp.Cacheable() {
		return
	}
	w.mu.Lock()
	if w.superseded {
		w.mu.Unlock()
		return
	}
	w.writes.Add(1)
	w.mu.Unlock()

	entry := resp.Entry(key, w.clock().UTC())
	ctx = context.WithoutCancel(ctx)
	w.lifetime.Go(func() {
		defer w.writes.Done()
		if err := w.store.Put(ctx, w.generations.Runtime, entry); err != nil {
			w.logf("cache write %s: %v", key, err)
		}
	})
}
