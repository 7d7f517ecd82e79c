// Package render produces localized reminder copy for native notifications
// and in-page toasts.
package render

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	defaultNotificationTitle = "Task Reminder"
	defaultToastTitle        = "Reminder: %s"

	keyNotificationTitle = "reminder.notification.title"
	keyToastTitle        = "reminder.toast.title"
)

var supportedLocales = []language.Tag{
	language.English,
	language.BrazilianPortuguese,
}

var matcher = language.NewMatcher(supportedLocales)

// Input is the task copy a reminder is rendered from.
type Input struct {
	Title       string
	Description string
}

// Output is the localized copy for both delivery channels.
type Output struct {
	NotificationTitle string
	NotificationBody  string
	ToastTitle        string
	ToastDescription  string
}

// Localizer is the minimal message-printer contract required by the renderer.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

// NewLocalizer returns a printer for the closest supported locale.
func NewLocalizer(locale string) Localizer {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		tag = language.English
	}
	_, index, _ := matcher.Match(tag)
	return message.NewPrinter(supportedLocales[index])
}

// Reminder renders the copy for one task reminder. The native notification
// body is the task title; the toast carries the description when present.
func Reminder(loc Localizer, input Input) Output {
	title := strings.TrimSpace(input.Title)
	return Output{
		NotificationTitle: localizeWithFallback(loc, keyNotificationTitle, defaultNotificationTitle),
		NotificationBody:  title,
		ToastTitle:        localizeFormat(loc, keyToastTitle, defaultToastTitle, title),
		ToastDescription:  strings.TrimSpace(input.Description),
	}
}

func localize(loc Localizer, key message.Reference, args ...any) string {
	if loc == nil {
		if asString, ok := key.(string); ok {
			return asString
		}
		return ""
	}
	return loc.Sprintf(key, args...)
}

func localizeWithFallback(loc Localizer, key string, fallback string) string {
	value := strings.TrimSpace(localize(loc, key))
	if value == "" || value == key {
		return fallback
	}
	return value
}

func localizeFormat(loc Localizer, key string, fallback string, args ...any) string {
	if loc == nil {
		return strings.TrimSpace(fmt.Sprintf(fallback, args...))
	}
	value := strings.TrimSpace(loc.Sprintf(key, args...))
	if value == "" || strings.HasPrefix(value, key) {
		return strings.TrimSpace(fmt.Sprintf(fallback, args...))
	}
	return value
}
