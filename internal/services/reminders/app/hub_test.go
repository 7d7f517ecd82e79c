package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/dailytasks/internal/services/reminders/domain"
	"golang.org/x/net/websocket"
)

type wsTestFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func newHubServer(t *testing.T, hub *Hub, settings SettingsWriter) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHandler(hub, settings, nil, nil, t.Logf))
	t.Cleanup(srv.Close)
	return srv
}

func dialPage(t *testing.T, srv *httptest.Server, hub *Hub) *websocket.Conn {
	t.Helper()
	before := hub.Pages()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	waitFor(t, func() bool { return hub.Pages() > before })
	return conn
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame wsTestFrame) {
	t.Helper()
	if err := json.NewEncoder(conn).Encode(frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) wsTestFrame {
	t.Helper()
	if err := conn.SetDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	var frame wsTestFrame
	if err := json.NewDecoder(conn).Decode(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func reportPermission(t *testing.T, conn *websocket.Conn, requestID, state string) {
	t.Helper()
	payload, _ := json.Marshal(permissionPayload{State: state})
	writeFrame(t, conn, wsTestFrame{Type: frameTypePermissionState, RequestID: requestID, Payload: payload})
}

// answerPermission reads a permission request and replies with state.
func answerPermission(conn *websocket.Conn, state string) error {
	if err := conn.SetDeadline(time.Now().Add(2 * time.Second)); err != nil {
		return err
	}
	var request wsTestFrame
	if err := json.NewDecoder(conn).Decode(&request); err != nil {
		return err
	}
	if request.Type != frameTypePermissionRequest {
		return fmt.Errorf("frame type = %q, want %q", request.Type, frameTypePermissionRequest)
	}
	payload, _ := json.Marshal(permissionPayload{State: state})
	return json.NewEncoder(conn).Encode(wsTestFrame{Type: frameTypePermissionState, RequestID: request.RequestID, Payload: payload})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubPermissionAggregatesPages(t *testing.T) {
	hub := NewHub(0, t.Logf)
	if got := hub.Permission(); got != domain.PermissionUnsupported {
		t.Fatalf("permission = %q, want %q", got, domain.PermissionUnsupported)
	}
	srv := newHubServer(t, hub, nil)

	first := dialPage(t, srv, hub)
	if got := hub.Permission(); got != domain.PermissionDefault {
		t.Fatalf("permission = %q, want %q", got, domain.PermissionDefault)
	}
	reportPermission(t, first, "", "denied")
	waitFor(t, func() bool { return hub.Permission() == domain.PermissionDenied })

	second := dialPage(t, srv, hub)
	reportPermission(t, second, "", "granted")
	waitFor(t, func() bool { return hub.Permission() == domain.PermissionGranted })

	_ = second.Close()
	waitFor(t, func() bool { return hub.Pages() == 1 })
	if got := hub.Permission(); got != domain.PermissionDenied {
		t.Fatalf("permission = %q, want %q", got, domain.PermissionDenied)
	}
}

func TestHubNotifyReachesGrantedPagesOnly(t *testing.T) {
	hub := NewHub(0, t.Logf)
	srv := newHubServer(t, hub, nil)

	if err := hub.Notify(context.Background(), domain.Notification{Title: "x"}); !errors.Is(err, ErrNoPages) {
		t.Fatalf("Notify error = %v, want ErrNoPages", err)
	}

	granted := dialPage(t, srv, hub)
	reportPermission(t, granted, "", "granted")
	undecided := dialPage(t, srv, hub)
	waitFor(t, func() bool { return hub.Permission() == domain.PermissionGranted })

	want := domain.Notification{Title: "Task Reminder", Body: "Water plants", Icon: domain.NotificationIcon, Tag: "t1"}
	if err := hub.Notify(context.Background(), want); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	frame := readFrame(t, granted)
	if frame.Type != frameTypeNotification {
		t.Fatalf("frame type = %q, want %q", frame.Type, frameTypeNotification)
	}
	var got domain.Notification
	if err := json.Unmarshal(frame.Payload, &got); err != nil {
		t.Fatalf("decode notification: %v", err)
	}
	if got != want {
		t.Fatalf("notification = %+v, want %+v", got, want)
	}

	if err := hub.Toast(context.Background(), domain.Toast{Title: "Reminder: Water plants"}); err != nil {
		t.Fatalf("Toast: %v", err)
	}
	if frame := readFrame(t, undecided); frame.Type != frameTypeToast {
		t.Fatalf("undecided page frame = %q, want %q", frame.Type, frameTypeToast)
	}
}

func TestHubToastWithoutPages(t *testing.T) {
	hub := NewHub(0, t.Logf)
	if err := hub.Toast(context.Background(), domain.Toast{Title: "x"}); !errors.Is(err, ErrNoPages) {
		t.Fatalf("Toast error = %v, want ErrNoPages", err)
	}
}

func TestHubRequestPermissionResolvesWithPageAnswer(t *testing.T) {
	hub := NewHub(time.Second, t.Logf)
	srv := newHubServer(t, hub, nil)
	page := dialPage(t, srv, hub)

	type result struct {
		permission domain.Permission
		err        error
	}
	done := make(chan result, 1)
	go func() {
		permission, err := hub.RequestPermission(context.Background())
		done <- result{permission, err}
	}()

	request := readFrame(t, page)
	if request.Type != frameTypePermissionRequest || request.RequestID == "" {
		t.Fatalf("request frame = %+v", request)
	}
	reportPermission(t, page, request.RequestID, "granted")

	select {
	case got := <-done:
		if got.err != nil {
			t.Fatalf("RequestPermission: %v", got.err)
		}
		if got.permission != domain.PermissionGranted {
			t.Fatalf("permission = %q, want %q", got.permission, domain.PermissionGranted)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RequestPermission did not return")
	}
}

func TestHubRequestPermissionTimesOutToDefault(t *testing.T) {
	hub := NewHub(50*time.Millisecond, t.Logf)
	srv := newHubServer(t, hub, nil)
	page := dialPage(t, srv, hub)

	got, err := hub.RequestPermission(context.Background())
	if err != nil {
		t.Fatalf("RequestPermission: %v", err)
	}
	if got != domain.PermissionDefault {
		t.Fatalf("permission = %q, want %q", got, domain.PermissionDefault)
	}
	if frame := readFrame(t, page); frame.Type != frameTypePermissionRequest {
		t.Fatalf("frame type = %q, want %q", frame.Type, frameTypePermissionRequest)
	}
}

func TestHubRequestPermissionSkipsDecidedPages(t *testing.T) {
	hub := NewHub(time.Second, t.Logf)
	if got, err := hub.RequestPermission(context.Background()); err != nil || got != domain.PermissionUnsupported {
		t.Fatalf("RequestPermission without pages = %q, %v", got, err)
	}

	srv := newHubServer(t, hub, nil)
	page := dialPage(t, srv, hub)
	reportPermission(t, page, "", "denied")
	waitFor(t, func() bool { return hub.Permission() == domain.PermissionDenied })

	got, err := hub.RequestPermission(context.Background())
	if err != nil {
		t.Fatalf("RequestPermission: %v", err)
	}
	if got != domain.PermissionDenied {
		t.Fatalf("permission = %q, want %q", got, domain.PermissionDenied)
	}
}

func TestHubRejectsUnknownFrames(t *testing.T) {
	hub := NewHub(0, t.Logf)
	srv := newHubServer(t, hub, nil)
	page := dialPage(t, srv, hub)

	writeFrame(t, page, wsTestFrame{Type: "bogus", RequestID: "r1"})
	frame := readFrame(t, page)
	if frame.Type != frameTypeError || frame.RequestID != "r1" {
		t.Fatalf("frame = %+v, want error for r1", frame)
	}
}

func TestHubPermissionChangeCallback(t *testing.T) {
	hub := NewHub(0, t.Logf)
	var (
		mu   sync.Mutex
		seen []domain.Permission
	)
	hub.OnPermissionChange(func(p domain.Permission) {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
	})
	srv := newHubServer(t, hub, nil)
	page := dialPage(t, srv, hub)
	reportPermission(t, page, "", "granted")
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1 && seen[0] == domain.PermissionGranted
	})
}

func TestHubDeliversThroughDeliverer(t *testing.T) {
	hub := NewHub(0, t.Logf)
	srv := newHubServer(t, hub, nil)
	page := dialPage(t, srv, hub)
	deliverer := domain.NewDeliverer(hub, hub, localizedRenderer("pt-BR"), t.Logf)

	channel, err := deliverer.Deliver(context.Background(), domain.Task{ID: "t1", Title: "Regar plantas"})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if channel != domain.ChannelToast {
		t.Fatalf("channel = %q, want %q", channel, domain.ChannelToast)
	}
	frame := readFrame(t, page)
	var toast domain.Toast
	if err := json.Unmarshal(frame.Payload, &toast); err != nil {
		t.Fatalf("decode toast: %v", err)
	}
	if toast.Title != "Lembrete: Regar plantas" {
		t.Fatalf("toast title = %q", toast.Title)
	}
}

func TestHubDeliversToastToPagesWithoutPermission(t *testing.T) {
	hub := NewHub(0, t.Logf)
	srv := newHubServer(t, hub, nil)
	granted := dialPage(t, srv, hub)
	reportPermission(t, granted, "", "granted")
	denied := dialPage(t, srv, hub)
	reportPermission(t, denied, "", "denied")
	waitFor(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		counts := map[domain.Permission]int{}
		for _, peer := range hub.peers {
			counts[peer.permission]++
		}
		return counts[domain.PermissionGranted] == 1 && counts[domain.PermissionDenied] == 1
	})
	deliverer := domain.NewDeliverer(hub, hub, nil, t.Logf)

	channel, err := deliverer.Deliver(context.Background(), domain.Task{ID: "t1", Title: "Water plants"})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if channel != domain.ChannelNative {
		t.Fatalf("channel = %q, want %q", channel, domain.ChannelNative)
	}
	if frame := readFrame(t, granted); frame.Type != frameTypeNotification {
		t.Fatalf("granted page frame = %q, want %q", frame.Type, frameTypeNotification)
	}
	frame := readFrame(t, denied)
	if frame.Type != frameTypeToast {
		t.Fatalf("denied page frame = %q, want %q", frame.Type, frameTypeToast)
	}
	var toast domain.Toast
	if err := json.Unmarshal(frame.Payload, &toast); err != nil {
		t.Fatalf("decode toast: %v", err)
	}
	if toast.Title != "Reminder: Water plants" {
		t.Fatalf("toast title = %q", toast.Title)
	}
}

func TestHubDecidedStateResolvesPendingPrompt(t *testing.T) {
	hub := NewHub(5*time.Second, t.Logf)
	srv := newHubServer(t, hub, nil)
	page := dialPage(t, srv, hub)

	type result struct {
		permission domain.Permission
		err        error
	}
	done := make(chan result, 1)
	go func() {
		permission, err := hub.RequestPermission(context.Background())
		done <- result{permission, err}
	}()
	if request := readFrame(t, page); request.Type != frameTypePermissionRequest {
		t.Fatalf("frame type = %q, want %q", request.Type, frameTypePermissionRequest)
	}
	reportPermission(t, page, "", "denied")

	select {
	case got := <-done:
		if got.err != nil || got.permission != domain.PermissionDenied {
			t.Fatalf("RequestPermission = %q, %v, want denied", got.permission, got.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RequestPermission waited for its timeout")
	}
}

func TestWebSocketRouteRejectsNonGet(t *testing.T) {
	hub := NewHub(0, t.Logf)
	srv := newHubServer(t, hub, nil)
	resp, err := http.Post(srv.URL+"/ws", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}
