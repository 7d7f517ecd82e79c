package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
)

// NotificationIcon is shown on native reminder notifications.
const NotificationIcon = "/assets/generated/notification-bell.dim_64x64.png"

// ErrNoDeliveryChannel indicates neither native notifications nor toasts
// are available.
var ErrNoDeliveryChannel = errors.New("no reminder delivery channel")

// Permission is the platform notification authorization state.
type Permission string

const (
	PermissionGranted     Permission = "granted"
	PermissionDenied      Permission = "denied"
	PermissionDefault     Permission = "default"
	PermissionUnsupported Permission = "unsupported"
)

// ParsePermission maps a reported state to a Permission. Unknown values
// are treated as not yet decided.
func ParsePermission(raw string) Permission {
	switch Permission(strings.ToLower(strings.TrimSpace(raw))) {
	case PermissionGranted:
		return PermissionGranted
	case PermissionDenied:
		return PermissionDenied
	case PermissionUnsupported:
		return PermissionUnsupported
	default:
		return PermissionDefault
	}
}

// Notification is a native notification. Tag deduplicates deliveries for
// the same task.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
	Tag   string `json:"tag"`
}

// Toast is an in-page transient message.
type Toast struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Facility is the platform notification facility.
type Facility interface {
	Permission() Permission
	RequestPermission(ctx context.Context) (Permission, error)
	Notify(ctx context.Context, notification Notification) error
}

// FallbackFacility is a Facility spanning several pages. It shows the
// native notification where authorized and the toast everywhere else.
type FallbackFacility interface {
	Facility
	NotifyOrToast(ctx context.Context, notification Notification, toast Toast) error
}

// Toaster shows in-page toasts.
type Toaster interface {
	Toast(ctx context.Context, toast Toast) error
}

// Copy is the rendered text for one reminder.
type Copy struct {
	NotificationTitle string
	NotificationBody  string
	ToastTitle        string
	ToastDescription  string
}

// Renderer produces reminder copy for a task.
type Renderer interface {
	Reminder(task Task) Copy
}

// RendererFunc adapts a function into a Renderer.
type RendererFunc func(task Task) Copy

func (f RendererFunc) Reminder(task Task) Copy {
	return f(task)
}

// Channel names how a reminder was delivered.
type Channel string

const (
	ChannelNative Channel = "native"
	ChannelToast  Channel = "toast"
)

// Deliverer delivers a fired reminder.
type Deliverer interface {
	Deliver(ctx context.Context, task Task) (Channel, error)
}

// NotificationDeliverer prefers native notifications and falls back to a
// toast when the facility is absent, unauthorized, or fails.
type NotificationDeliverer struct {
	facility Facility
	toaster  Toaster
	renderer Renderer
	logf     func(string, ...any)
}

// NewDeliverer builds a deliverer. A nil renderer uses English defaults.
func NewDeliverer(facility Facility, toaster Toaster, renderer Renderer, logf func(string, ...any)) *NotificationDeliverer {
	if renderer == nil {
		renderer = RendererFunc(defaultCopy)
	}
	if logf == nil {
		logf = log.Printf
	}
	return &NotificationDeliverer{facility: facility, toaster: toaster, renderer: renderer, logf: logf}
}

// Deliver sends the reminder for task.
func (d *NotificationDeliverer) Deliver(ctx context.Context, task Task) (Channel, error) {
	text := d.renderer.Reminder(task)
	toast := Toast{Title: text.ToastTitle, Description: text.ToastDescription}
	if d.facility != nil && d.facility.Permission() == PermissionGranted {
		notification := Notification{
			Title: text.NotificationTitle,
			Body:  text.NotificationBody,
			Icon:  NotificationIcon,
			Tag:   task.Key(),
		}
		var err error
		if fallback, ok := d.facility.(FallbackFacility); ok {
			err = fallback.NotifyOrToast(ctx, notification, toast)
		} else {
			err = d.facility.Notify(ctx, notification)
		}
		if err == nil {
			return ChannelNative, nil
		}
		d.logf("native reminder %s failed, using toast: %v", task.Key(), err)
	}
	if d.toaster == nil {
		return "", ErrNoDeliveryChannel
	}
	if err := d.toaster.Toast(ctx, toast); err != nil {
		return "", fmt.Errorf("toast reminder %s: %w", task.Key(), err)
	}
	return ChannelToast, nil
}

func defaultCopy(task Task) Copy {
	title := strings.TrimSpace(task.Title)
	return Copy{
		NotificationTitle: "Task Reminder",
		NotificationBody:  title,
		ToastTitle:        "Reminder: " + title,
		ToastDescription:  strings.TrimSpace(task.Description),
	}
}
