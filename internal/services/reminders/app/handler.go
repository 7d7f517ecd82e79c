package app

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/louisbranch/dailytasks/internal/services/reminders/domain"
)

// SettingsWriter persists the notification setting.
type SettingsWriter interface {
	SetNotificationsEnabled(ctx context.Context, enabled bool) error
}

type permissionResponse struct {
	Permission           domain.Permission `json:"permission"`
	NotificationsEnabled bool              `json:"notifications_enabled"`
}

type armedReminder struct {
	TaskKey string    `json:"task_key"`
	FireAt  time.Time `json:"fire_at"`
}

type statusResponse struct {
	Pages      int               `json:"pages"`
	Permission domain.Permission `json:"permission"`
	Armed      []armedReminder   `json:"armed"`
}

type handler struct {
	hub       *Hub
	settings  SettingsWriter
	session   *Session
	scheduler *domain.Scheduler
	logf      func(string, ...any)
}

// NewHandler serves the page websocket, the permission prompt, and the
// scheduler status.
func NewHandler(hub *Hub, settings SettingsWriter, session *Session, scheduler *domain.Scheduler, logf func(string, ...any)) http.Handler {
	if logf == nil {
		logf = log.Printf
	}
	h := &handler{hub: hub, settings: settings, session: session, scheduler: scheduler, logf: logf}
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	wsHandler := hub.Handler()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})
	mux.HandleFunc("POST /permission", h.handlePermission)
	mux.HandleFunc("GET /status", h.handleStatus)
	return mux
}

// handlePermission prompts connected pages and turns reminders on once
// permission is granted.
func (h *handler) handlePermission(w http.ResponseWriter, r *http.Request) {
	permission, err := h.hub.RequestPermission(r.Context())
	if err != nil {
		h.logf("request notification permission: %v", err)
	}
	resp := permissionResponse{Permission: permission}
	if permission == domain.PermissionGranted && h.settings != nil {
		if err := h.settings.SetNotificationsEnabled(r.Context(), true); err != nil {
			h.logf("enable notifications: %v", err)
			http.Error(w, "enable notifications failed", http.StatusBadGateway)
			return
		}
		resp.NotificationsEnabled = true
		if h.session != nil {
			h.session.Refresh()
		}
	}
	writeJSON(w, resp, h.logf)
}

func (h *handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Pages:      h.hub.Pages(),
		Permission: h.hub.Permission(),
		Armed:      []armedReminder{},
	}
	if h.scheduler != nil {
		for _, entry := range h.scheduler.Armed() {
			resp.Armed = append(resp.Armed, armedReminder{TaskKey: entry.TaskKey, FireAt: entry.FireAt})
		}
	}
	writeJSON(w, resp, h.logf)
}

func writeJSON(w http.ResponseWriter, value any, logf func(string, ...any)) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(value); err != nil {
		logf("encode response: %v", err)
	}
}
