package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/louisbranch/dailytasks/internal/services/cacheworker/domain"
	"github.com/louisbranch/dailytasks/internal/services/cacheworker/storage"
)

// RegistrationConfig wires the registration to storage and the network.
type RegistrationConfig struct {
	Origin      *url.URL
	Store       storage.Store
	Network     domain.Network
	Lifetime    *domain.Lifetime
	SkipWaiting bool
	Concurrency int
	Clock       func() time.Time
	Logf        func(string, ...any)
	// OnControllerChange is called after a worker claims clients.
	OnControllerChange func(*domain.Worker)
}

// Status summarizes the registration for the status endpoint.
type Status struct {
	Controller  string   `json:"controller,omitempty"`
	Waiting     string   `json:"waiting,omitempty"`
	Generations []string `json:"generations,omitempty"`
	LastInstall string   `json:"last_install_error,omitempty"`
	ActivatedAt string   `json:"activated_at,omitempty"`
}

// Registration owns the worker lifecycle: it installs new versions,
// activates waiting workers, and hands clients to the controller.
type Registration struct {
	cfg RegistrationConfig

	// mu serializes lifecycle changes.
	mu          sync.Mutex
	controller  atomic.Pointer[domain.Worker]
	waiting     *domain.Worker
	lastInstall error
	activatedAt time.Time
}

// NewRegistration validates cfg and returns an empty registration.
func NewRegistration(cfg RegistrationConfig) (*Registration, error) {
	if cfg.Store == nil {
		return nil, errors.New("cache store is required")
	}
	if cfg.Network == nil {
		return nil, errors.New("network is required")
	}
	if cfg.Origin == nil || cfg.Origin.Host == "" {
		return nil, errors.New("origin is required")
	}
	if cfg.Lifetime == nil {
		cfg.Lifetime = &domain.Lifetime{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	return &Registration{cfg: cfg}, nil
}

// Controller returns the worker currently serving clients, or nil.
func (r *Registration) Controller() *domain.Worker {
	return r.controller.Load()
}

// Restore resumes the persisted controller when its precache generation is
// still present. It reports whether a controller was restored.
func (r *Registration) Restore(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	persisted, err := r.cfg.Store.ActiveRegistration(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load registration: %w", err)
	}
	worker := r.newWorker(domain.Manifest{
		Version: persisted.Version,
		Prefix:  persisted.CachePrefix,
		Shell:   persisted.Shell,
	})
	has, err := r.cfg.Store.Has(ctx, worker.Generations().Precache)
	if err != nil {
		return false, fmt.Errorf("check precache generation: %w", err)
	}
	if !has {
		r.cfg.Logf("persisted worker v%s has no precache generation; ignoring", persisted.Version)
		return false, nil
	}
	if err := worker.Transition(domain.StateActive); err != nil {
		return false, err
	}
	r.controller.Store(worker)
	r.activatedAt = persisted.ActivatedAt
	r.cfg.Logf("restored worker v%s as controller", persisted.Version)
	// Retry a purge the last activation may have left unfinished.
	if err := worker.Purge(ctx); err != nil {
		r.cfg.Logf("purge stale generations for v%s: %v", persisted.Version, err)
	}
	r.notify(worker)
	return true, nil
}

// Register installs manifest as a new worker version unless that version
// already controls or waits. A failed install leaves the current controller
// and its generations untouched.
func (r *Registration) Register(ctx context.Context, manifest domain.Manifest) error {
	manifest = manifest.Normalized()
	if err := manifest.Validate(); err != nil {
		return fmt.Errorf("register manifest: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if current := r.controller.Load(); current != nil && current.Version() == manifest.Version {
		return nil
	}
	if r.waiting != nil && r.waiting.Version() == manifest.Version {
		return nil
	}

	worker := r.newWorker(manifest)
	event := domain.NewExtendableEvent(ctx, r.cfg.Lifetime)
	worker.Install(ctx, event)
	if err := event.Wait(); err != nil {
		_ = worker.Transition(domain.StateRedundant)
		r.lastInstall = err
		r.cfg.Logf("install worker v%s failed: %v", manifest.Version, err)
		return fmt.Errorf("install worker v%s: %w", manifest.Version, err)
	}
	r.lastInstall = nil
	if err := worker.Transition(domain.StateWaiting); err != nil {
		return err
	}
	if r.waiting != nil {
		_ = r.waiting.Transition(domain.StateRedundant)
	}
	r.waiting = worker
	r.cfg.Logf("worker v%s installed", manifest.Version)

	if r.cfg.SkipWaiting || r.controller.Load() == nil {
		return r.activateLocked(ctx)
	}
	return nil
}

// SkipWaiting activates the waiting worker now. It is a no-op without one.
func (r *Registration) SkipWaiting(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.waiting == nil {
		return nil
	}
	return r.activateLocked(ctx)
}

func (r *Registration) activateLocked(ctx context.Context) error {
	worker := r.waiting
	previous := r.controller.Load()
	if previous != nil {
		previous.Supersede()
	}

	event := domain.NewExtendableEvent(ctx, r.cfg.Lifetime)
	worker.Activate(ctx, event)
	if err := event.Wait(); err != nil {
		if worker.State() != domain.StateActivating {
			return fmt.Errorf("activate worker v%s: %w", worker.Version(), err)
		}
		r.cfg.Logf("activate worker v%s cleanup: %v", worker.Version(), err)
	}
	if err := worker.Transition(domain.StateActive); err != nil {
		return err
	}

	// Claim: open clients are served by the new worker on their next request.
	r.controller.Store(worker)
	r.waiting = nil
	r.activatedAt = r.cfg.Clock().UTC()
	if previous != nil {
		_ = previous.Transition(domain.StateRedundant)
	}

	manifest := worker.Manifest()
	if err := r.cfg.Store.SetActiveRegistration(context.WithoutCancel(ctx), storage.Registration{
		Version:     manifest.Version,
		CachePrefix: manifest.Prefix,
		Shell:       manifest.Shell,
		ActivatedAt: r.activatedAt,
	}); err != nil {
		r.cfg.Logf("persist registration v%s: %v", manifest.Version, err)
	}
	r.cfg.Logf("worker v%s activated", manifest.Version)
	r.notify(worker)
	return nil
}

// Status reports the controller, waiting worker, and stored generations.
func (r *Registration) Status(ctx context.Context) Status {
	r.mu.Lock()
	status := Status{}
	if controller := r.controller.Load(); controller != nil {
		status.Controller = controller.Version()
		status.ActivatedAt = r.activatedAt.Format(time.RFC3339)
	}
	if r.waiting != nil {
		status.Waiting = r.waiting.Version()
	}
	if r.lastInstall != nil {
		status.LastInstall = r.lastInstall.Error()
	}
	r.mu.Unlock()

	names, err := r.cfg.Store.Names(ctx)
	if err != nil {
		r.cfg.Logf("list generations: %v", err)
	}
	status.Generations = names
	return status
}

func (r *Registration) newWorker(manifest domain.Manifest) *domain.Worker {
	return domain.NewWorker(domain.WorkerConfig{
		Manifest:    manifest,
		Origin:      r.cfg.Origin,
		Store:       r.cfg.Store,
		Network:     r.cfg.Network,
		Lifetime:    r.cfg.Lifetime,
		Concurrency: r.cfg.Concurrency,
		Clock:       r.cfg.Clock,
		Logf:        r.cfg.Logf,
	})
}

func (r *Registration) notify(worker *domain.Worker) {
	if r.cfg.OnControllerChange != nil {
		r.cfg.OnControllerChange(worker)
	}
}
