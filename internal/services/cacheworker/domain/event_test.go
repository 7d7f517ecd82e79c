package domain

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExtendableEventHoldsLifetime(t *testing.T) {
	lifetime := &Lifetime{}
	event := NewExtendableEvent(context.Background(), lifetime)
	started := make(chan struct{})
	finish := make(chan struct{})
	event.WaitUntil(func(context.Context) error {
		close(started)
		<-finish
		return nil
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := lifetime.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("lifetime wait err = %v, want deadline while event is pending", err)
	}

	close(finish)
	if err := event.Wait(); err != nil {
		t.Fatalf("event wait: %v", err)
	}
	if err := lifetime.Wait(context.Background()); err != nil {
		t.Fatalf("lifetime wait after settle: %v", err)
	}
}

func TestExtendableEventFirstFailureCancelsOthers(t *testing.T) {
	event := NewExtendableEvent(context.Background(), &Lifetime{})
	boom := errors.New("boom")
	event.WaitUntil(func(context.Context) error { return boom })
	event.WaitUntil(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err := event.Wait(); !errors.Is(err, boom) {
		t.Fatalf("event err = %v, want boom", err)
	}
	if err := event.Wait(); !errors.Is(err, boom) {
		t.Fatalf("second wait err = %v, want boom", err)
	}
}
