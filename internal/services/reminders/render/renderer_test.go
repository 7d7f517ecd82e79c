package render

import (
	"fmt"
	"strings"
	"testing"

	"golang.org/x/text/message"
)

func TestReminderWithRealPrinterEnglish(t *testing.T) {
	t.Parallel()

	out := Reminder(NewLocalizer("en-US"), Input{Title: " Water plants ", Description: "Balcony too"})
	if out.NotificationTitle != "Task Reminder" {
		t.Fatalf("notification title = %q, want %q", out.NotificationTitle, "Task Reminder")
	}
	if out.NotificationBody != "Water plants" {
		t.Fatalf("notification body = %q, want task title", out.NotificationBody)
	}
	if out.ToastTitle != "Reminder: Water plants" {
		t.Fatalf("toast title = %q, want %q", out.ToastTitle, "Reminder: Water plants")
	}
	if out.ToastDescription != "Balcony too" {
		t.Fatalf("toast description = %q", out.ToastDescription)
	}
}

func TestReminderWithRealPrinterPortuguese(t *testing.T) {
	t.Parallel()

	out := Reminder(NewLocalizer("pt-BR"), Input{Title: "Regar plantas"})
	if out.NotificationTitle != "Lembrete de tarefa" {
		t.Fatalf("notification title = %q", out.NotificationTitle)
	}
	if out.ToastTitle != "Lembrete: Regar plantas" {
		t.Fatalf("toast title = %q", out.ToastTitle)
	}
	if out.ToastDescription != "" {
		t.Fatalf("toast description = %q, want empty", out.ToastDescription)
	}
}

func TestNewLocalizerFallsBackToEnglish(t *testing.T) {
	t.Parallel()

	for _, locale := range []string{"", "not a locale", "ja"} {
		out := Reminder(NewLocalizer(locale), Input{Title: "Stretch"})
		if out.NotificationTitle != "Task Reminder" {
			t.Fatalf("locale %q title = %q, want English", locale, out.NotificationTitle)
		}
	}
}

func TestReminderWithNilLocalizerReturnsDefaults(t *testing.T) {
	t.Parallel()

	out := Reminder(nil, Input{Title: "Stretch"})
	if out.NotificationTitle != "Task Reminder" || out.ToastTitle != "Reminder: Stretch" {
		t.Fatalf("output = %+v", out)
	}
}

func TestReminderMissingCatalogEntriesFallBack(t *testing.T) {
	t.Parallel()

	out := Reminder(fakeLocalizer{values: map[string]string{}}, Input{Title: "Stretch"})
	if out.NotificationTitle != "Task Reminder" {
		t.Fatalf("title = %q", out.NotificationTitle)
	}
	if out.ToastTitle != "Reminder: Stretch" {
		t.Fatalf("toast title = %q", out.ToastTitle)
	}
}

type fakeLocalizer struct {
	values map[string]string
}

func (f fakeLocalizer) Sprintf(key message.Reference, args ...any) string {
	keyString, _ := key.(string)
	format, ok := f.values[keyString]
	if !ok {
		return strings.TrimSpace(keyString + fmt.Sprint(args...))
	}
	return fmt.Sprintf(format, args...)
}
