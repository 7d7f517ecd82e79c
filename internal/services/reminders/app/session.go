package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/dailytasks/internal/platform/timeouts"
	"github.com/louisbranch/dailytasks/internal/services/reminders/domain"
)

const defaultPollInterval = 30 * time.Second

// TaskSource is the task list and settings the session reconciles against.
type TaskSource interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
	NotificationsEnabled(ctx context.Context) (bool, error)
}

// Session keeps the scheduler in step with the task service. It reconciles
// on start, on every poll tick, and whenever Refresh is called.
type Session struct {
	source    TaskSource
	scheduler *domain.Scheduler
	interval  time.Duration
	refresh   chan struct{}
	logf      func(string, ...any)
}

// NewSession builds a session. A zero interval polls every 30 seconds.
func NewSession(source TaskSource, scheduler *domain.Scheduler, interval time.Duration, logf func(string, ...any)) *Session {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logf == nil {
		logf = log.Printf
	}
	return &Session{
		source:    source,
		scheduler: scheduler,
		interval:  interval,
		refresh:   make(chan struct{}, 1),
		logf:      logf,
	}
}

// Refresh requests a reconcile without waiting for the next tick.
func (s *Session) Refresh() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

// Run reconciles until ctx ends, then cancels every armed reminder.
func (s *Session) Run(ctx context.Context) error {
	defer s.scheduler.Stop()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.ReconcileOnce(ctx); err != nil {
			s.logf("reconcile reminders: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-s.refresh:
		}
	}
}

// ReconcileOnce reads the task list and the notification setting and
// reconciles the scheduler. A read failure leaves armed reminders alone.
func (s *Session) ReconcileOnce(ctx context.Context) (domain.ReconcileResult, error) {
	readCtx, cancel := context.WithTimeout(ctx, timeouts.GRPCRequest)
	defer cancel()

	enabled, err := s.source.NotificationsEnabled(readCtx)
	if err != nil {
		return domain.ReconcileResult{}, fmt.Errorf("read notification setting: %w", err)
	}
	tasks, err := s.source.ListTasks(readCtx)
	if err != nil {
		return domain.ReconcileResult{}, fmt.Errorf("list tasks: %w", err)
	}
	return s.scheduler.Reconcile(ctx, tasks, enabled), nil
}
