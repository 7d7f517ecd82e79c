package domain

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Lifetime keeps the worker process alive while handlers have outstanding
// work. The runtime waits on it before exiting.
type Lifetime struct {
	wg sync.WaitGroup
}

// Extend holds the process open until the returned release is called.
// Release is safe to call more than once.
func (l *Lifetime) Extend() func() {
	if l == nil {
		return func() {}
	}
	l.wg.Add(1)
	var once sync.Once
	return func() { once.Do(l.wg.Done) }
}

// Go runs fn in the background under an extension.
func (l *Lifetime) Go(fn func()) {
	release := l.Extend()
	go func() {
		defer release()
		fn()
	}()
}

// Wait blocks until every extension is released or ctx ends.
func (l *Lifetime) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExtendableEvent is a lifecycle event whose handler registers asynchronous
// work with WaitUntil. The event settles when all registered work returns;
// the first failure cancels the rest and fails the event.
type ExtendableEvent struct {
	group   *errgroup.Group
	ctx     context.Context
	release func()
	once    sync.Once
	err     error
}

// NewExtendableEvent starts an event that extends lifetime until it settles.
func NewExtendableEvent(ctx context.Context, lifetime *Lifetime) *ExtendableEvent {
	group, groupCtx := errgroup.WithContext(ctx)
	return &ExtendableEvent{
		group:   group,
		ctx:     groupCtx,
		release: lifetime.Extend(),
	}
}

// Context is canceled when registered work fails or the parent ends.
func (e *ExtendableEvent) Context() context.Context {
	return e.ctx
}

// WaitUntil registers work the event must wait for.
func (e *ExtendableEvent) WaitUntil(fn func(ctx context.Context) error) {
	e.group.Go(func() error { return fn(e.ctx) })
}

// Wait settles the event and returns the first failure.
func (e *ExtendableEvent) Wait() error {
	e.once.Do(func() {
		e.err = e.group.Wait()
		e.release()
	})
	return e.err
}
