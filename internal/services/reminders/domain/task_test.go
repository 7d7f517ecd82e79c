package domain

import (
	"testing"
	"time"
)

func TestTimeFromNanos(t *testing.T) {
	if !TimeFromNanos(0).IsZero() {
		t.Fatal("expected zero time for zero nanos")
	}
	got := TimeFromNanos(1_700_000_000_123_456_789)
	want := time.UnixMilli(1_700_000_000_123).UTC()
	if !got.Equal(want) {
		t.Fatalf("time = %v, want %v", got, want)
	}
	if NanosFromTime(time.Time{}) != 0 {
		t.Fatal("expected zero nanos for zero time")
	}
	if NanosFromTime(want) != 1_700_000_000_123_000_000 {
		t.Fatalf("nanos = %d", NanosFromTime(want))
	}
}

func TestTaskQualifies(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		task Task
		want bool
	}{
		{name: "open with reminder", task: Task{ID: "a", ReminderAt: at}, want: true},
		{name: "deferred still qualifies", task: Task{ID: "a", Deferred: true, ReminderAt: at}, want: true},
		{name: "completed", task: Task{ID: "a", Completed: true, ReminderAt: at}},
		{name: "no reminder", task: Task{ID: "a"}},
		{name: "no id", task: Task{ReminderAt: at}},
	}
	for _, tc := range tests {
		if got := tc.task.Qualifies(); got != tc.want {
			t.Fatalf("%s: qualifies = %v, want %v", tc.name, got, tc.want)
		}
	}
}
