// Package domain schedules task reminders and delivers them through the
// platform notification facility or an in-page toast.
package domain

import (
	"strings"
	"time"
)

// Task is the read-only view of a remote task the scheduler needs.
type Task struct {
	ID          string
	Title       string
	Description string
	Completed   bool
	// Deferred marks a procrastinated task. It does not affect reminders.
	Deferred bool
	// ReminderAt is zero when the task has no reminder.
	ReminderAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Key returns the stable scheduling key for the task.
func (t Task) Key() string {
	return strings.TrimSpace(t.ID)
}

// HasReminder reports whether a reminder time is set.
func (t Task) HasReminder() bool {
	return !t.ReminderAt.IsZero()
}

// Qualifies reports whether the task may have an armed reminder.
func (t Task) Qualifies() bool {
	return t.Key() != "" && !t.Completed && t.HasReminder()
}

// TimeFromNanos converts a nanosecond epoch into a time truncated to
// milliseconds. Zero yields the zero time.
func TimeFromNanos(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ns / int64(time.Millisecond)).UTC()
}

// NanosFromTime converts t into a nanosecond epoch. The zero time yields 0.
func NanosFromTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
