package domain

import (
	"cmp"
	"context"
	"log"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultDeliverTimeout = 10 * time.Second

// ScheduledNotification is an armed reminder.
type ScheduledNotification struct {
	TaskKey string
	FireAt  time.Time
}

// ReconcileResult counts what one reconcile pass did.
type ReconcileResult struct {
	Armed        int
	Invalidated  int
	AlreadyArmed int
	AlreadyFired int
	SkippedPast  int
}

type armedEntry struct {
	token  uint64
	fireAt time.Time
	task   Task
	timer  Timer
}

// Scheduler arms at most one reminder timer per task key for a session.
// Reconcile and timer callbacks are serialized; a cancelled entry's
// callback finds a stale token and does nothing. Delivery runs after the
// fired entry is discarded, outside the lock.
type Scheduler struct {
	clock          Clock
	deliverer      Deliverer
	logf           func(string, ...any)
	tracer         trace.Tracer
	deliverTimeout time.Duration

	mu      sync.Mutex
	armed   map[string]*armedEntry
	fired   map[string]time.Time
	token   uint64
	stopped bool
}

// NewScheduler creates a scheduler. A nil clock uses the system clock.
func NewScheduler(clock Clock, deliverer Deliverer, logf func(string, ...any)) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	if logf == nil {
		logf = log.Printf
	}
	return &Scheduler{
		clock:          clock,
		deliverer:      deliverer,
		logf:           logf,
		tracer:         otel.Tracer("github.com/louisbranch/dailytasks/internal/services/reminders/domain"),
		deliverTimeout: defaultDeliverTimeout,
		armed:          make(map[string]*armedEntry),
		fired:          make(map[string]time.Time),
	}
}

// Reconcile brings armed timers in line with tasks. Entries whose task is
// gone, completed, or has a cleared or changed reminder are invalidated,
// and all entries are invalidated when notifications are disabled. New
// timers are armed only for future reminders not already armed or fired.
func (s *Scheduler) Reconcile(ctx context.Context, tasks []Task, enabled bool) ReconcileResult {
	_, span := s.tracer.Start(ctx, "reminders.reconcile", trace.WithAttributes(
		attribute.Int("reminders.tasks", len(tasks)),
		attribute.Bool("reminders.enabled", enabled),
	))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	var result ReconcileResult
	if s.stopped {
		return result
	}

	byKey := make(map[string]Task, len(tasks))
	for _, task := range tasks {
		if key := task.Key(); key != "" {
			byKey[key] = task
		}
	}
	for key, entry := range s.armed {
		task, ok := byKey[key]
		if ok && enabled && task.Qualifies() && task.ReminderAt.Equal(entry.fireAt) {
			continue
		}
		s.cancelLocked(key)
		result.Invalidated++
	}

	if enabled && len(tasks) > 0 {
		now := s.clock.Now()
		for _, task := range tasks {
			if !task.Qualifies() {
				continue
			}
			key := task.Key()
			if entry, ok := s.armed[key]; ok {
				entry.task = task
				result.AlreadyArmed++
				continue
			}
			if firedAt, ok := s.fired[key]; ok && firedAt.Equal(task.ReminderAt) {
				result.AlreadyFired++
				continue
			}
			delay := task.ReminderAt.Sub(now)
			if delay <= 0 {
				result.SkippedPast++
				continue
			}
			s.armLocked(task, delay)
			result.Armed++
		}
	}

	span.SetAttributes(
		attribute.Int("reminders.armed", result.Armed),
		attribute.Int("reminders.invalidated", result.Invalidated),
		attribute.Int("reminders.skipped_past", result.SkippedPast),
	)
	return result
}

func (s *Scheduler) armLocked(task Task, delay time.Duration) {
	s.token++
	token := s.token
	key := task.Key()
	entry := &armedEntry{token: token, fireAt: task.ReminderAt, task: task}
	s.armed[key] = entry
	entry.timer = s.clock.AfterFunc(delay, func() {
		s.fire(key, token)
	})
}

func (s *Scheduler) cancelLocked(key string) {
	entry, ok := s.armed[key]
	if !ok {
		return
	}
	delete(s.armed, key)
	if entry.timer != nil {
		entry.timer.Stop()
	}
}

func (s *Scheduler) fire(key string, token uint64) {
	s.mu.Lock()
	entry, ok := s.armed[key]
	if !ok || entry.token != token || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.armed, key)
	s.fired[key] = entry.fireAt
	task := entry.task
	s.mu.Unlock()

	if s.deliverer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.deliverTimeout)
	defer cancel()
	ctx, span := s.tracer.Start(ctx, "reminders.fire", trace.WithAttributes(
		attribute.String("reminders.task_id", key),
	))
	defer span.End()

	channel, err := s.deliverer.Deliver(ctx, task)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logf("deliver reminder %s: %v", key, err)
		return
	}
	span.SetAttributes(attribute.String("reminders.channel", string(channel)))
}

// Armed lists armed reminders ordered by fire time.
func (s *Scheduler) Armed() []ScheduledNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ScheduledNotification, 0, len(s.armed))
	for key, entry := range s.armed {
		out = append(out, ScheduledNotification{TaskKey: key, FireAt: entry.fireAt})
	}
	slices.SortFunc(out, func(a, b ScheduledNotification) int {
		if c := a.FireAt.Compare(b.FireAt); c != 0 {
			return c
		}
		return cmp.Compare(a.TaskKey, b.TaskKey)
	})
	return out
}

// Stop cancels every armed reminder. Later reconciles do nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for key := range s.armed {
		s.cancelLocked(key)
	}
}
