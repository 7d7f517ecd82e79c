package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/louisbranch/dailytasks/internal/platform/timeouts"
	"github.com/louisbranch/dailytasks/internal/services/reminders/domain"
	"golang.org/x/net/websocket"
)

const (
	frameTypePermissionState   = "permission.state"
	frameTypePermissionRequest = "permission.request"
	frameTypeNotification      = "reminder.notification"
	frameTypeToast             = "reminder.toast"
	frameTypeError             = "error"
)

// ErrNoPages indicates no page is connected to receive a reminder.
var ErrNoPages = errors.New("no connected pages")

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type permissionPayload struct {
	State string `json:"state"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type wsPeer struct {
	mu         sync.Mutex
	conn       *websocket.Conn
	encoder    *json.Encoder
	permission domain.Permission
}

func newWSPeer(conn *websocket.Conn) *wsPeer {
	return &wsPeer{conn: conn, encoder: json.NewEncoder(conn), permission: domain.PermissionDefault}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		_ = p.conn.SetWriteDeadline(time.Now().Add(timeouts.WebSocketWrite))
	}
	return p.encoder.Encode(frame)
}

// Hub tracks connected pages and relays reminders to them. It is the
// daemon's notification facility: a page reports its permission state and
// shows the native notification or toast it is sent.
type Hub struct {
	mu                sync.Mutex
	peers             map[string]*wsPeer
	pending           map[string]chan domain.Permission
	permissionTimeout time.Duration
	onPermission      func(domain.Permission)
	logf              func(string, ...any)
}

// NewHub creates a hub. A zero permissionTimeout uses timeouts.PermissionPrompt.
func NewHub(permissionTimeout time.Duration, logf func(string, ...any)) *Hub {
	if permissionTimeout <= 0 {
		permissionTimeout = timeouts.PermissionPrompt
	}
	if logf == nil {
		logf = log.Printf
	}
	return &Hub{
		peers:             make(map[string]*wsPeer),
		pending:           make(map[string]chan domain.Permission),
		permissionTimeout: permissionTimeout,
		logf:              logf,
	}
}

// OnPermissionChange registers a callback invoked after a page reports a
// new permission state.
func (h *Hub) OnPermissionChange(fn func(domain.Permission)) {
	h.mu.Lock()
	h.onPermission = fn
	h.mu.Unlock()
}

// Handler serves the page websocket.
func (h *Hub) Handler() websocket.Handler {
	return websocket.Handler(h.serveConn)
}

func (h *Hub) serveConn(conn *websocket.Conn) {
	id := uuid.NewString()
	peer := newWSPeer(conn)
	h.mu.Lock()
	h.peers[id] = peer
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.peers, id)
		h.mu.Unlock()
	}()

	decoder := json.NewDecoder(conn)
	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				_ = peer.writeFrame(errorFrame("", "invalid frame"))
			}
			return
		}
		switch frame.Type {
		case frameTypePermissionState:
			var payload permissionPayload
			if err := json.Unmarshal(frame.Payload, &payload); err != nil {
				_ = peer.writeFrame(errorFrame(frame.RequestID, "invalid permission payload"))
				continue
			}
			h.setPermission(peer, frame.RequestID, domain.ParsePermission(payload.State))
		default:
			_ = peer.writeFrame(errorFrame(frame.RequestID, fmt.Sprintf("unknown frame type %q", frame.Type)))
		}
	}
}

// setPermission records a page's state. An answer to a prompt resolves that
// prompt; any decided state resolves every pending prompt.
func (h *Hub) setPermission(peer *wsPeer, requestID string, permission domain.Permission) {
	h.mu.Lock()
	peer.permission = permission
	var waiters []chan domain.Permission
	if permission == domain.PermissionGranted || permission == domain.PermissionDenied {
		for _, waiter := range h.pending {
			waiters = append(waiters, waiter)
		}
	} else if waiter := h.pending[requestID]; waiter != nil {
		waiters = append(waiters, waiter)
	}
	onPermission := h.onPermission
	h.mu.Unlock()

	for _, waiter := range waiters {
		select {
		case waiter <- permission:
		default:
		}
	}
	if onPermission != nil {
		onPermission(permission)
	}
}

// Pages returns the number of connected pages.
func (h *Hub) Pages() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// Permission aggregates the state reported by connected pages. Any granted
// page grants; with no pages the facility is unsupported.
func (h *Hub) Permission() domain.Permission {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.permissionLocked()
}

func (h *Hub) permissionLocked() domain.Permission {
	if len(h.peers) == 0 {
		return domain.PermissionUnsupported
	}
	rank := map[domain.Permission]int{
		domain.PermissionUnsupported: 0,
		domain.PermissionDenied:      1,
		domain.PermissionDefault:     2,
		domain.PermissionGranted:     3,
	}
	best := domain.PermissionUnsupported
	for _, peer := range h.peers {
		if rank[peer.permission] > rank[best] {
			best = peer.permission
		}
	}
	return best
}

// RequestPermission asks every undecided page to prompt the user and returns
// the first answer. Without an answer before the timeout the state stays
// default.
func (h *Hub) RequestPermission(ctx context.Context) (domain.Permission, error) {
	h.mu.Lock()
	current := h.permissionLocked()
	if current == domain.PermissionGranted || current == domain.PermissionUnsupported {
		h.mu.Unlock()
		return current, nil
	}
	requestID := uuid.NewString()
	waiter := make(chan domain.Permission, 1)
	h.pending[requestID] = waiter
	targets := make([]*wsPeer, 0, len(h.peers))
	for _, peer := range h.peers {
		if peer.permission == domain.PermissionDefault {
			targets = append(targets, peer)
		}
	}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.pending, requestID)
		h.mu.Unlock()
	}()

	if len(targets) == 0 {
		return current, nil
	}
	sent := 0
	for _, peer := range targets {
		if err := peer.writeFrame(wsFrame{Type: frameTypePermissionRequest, RequestID: requestID}); err != nil {
			h.logf("send permission request: %v", err)
			continue
		}
		sent++
	}
	if sent == 0 {
		return current, nil
	}

	timer := time.NewTimer(h.permissionTimeout)
	defer timer.Stop()
	select {
	case permission := <-waiter:
		return permission, nil
	case <-timer.C:
		return domain.PermissionDefault, nil
	case <-ctx.Done():
		return domain.PermissionDefault, ctx.Err()
	}
}

// Notify sends a native notification to every page with granted permission.
func (h *Hub) Notify(ctx context.Context, notification domain.Notification) error {
	native, err := encodeFrame(frameTypeNotification, notification)
	if err != nil {
		return err
	}
	return h.broadcast(ctx, func(peer *wsPeer) (wsFrame, bool) {
		return native, peer.permission == domain.PermissionGranted
	})
}

// NotifyOrToast sends the native notification to pages with granted
// permission and the toast to every other page. It fails with ErrNoPages
// when no page is granted.
func (h *Hub) NotifyOrToast(ctx context.Context, notification domain.Notification, toast domain.Toast) error {
	if h.Permission() != domain.PermissionGranted {
		return ErrNoPages
	}
	native, err := encodeFrame(frameTypeNotification, notification)
	if err != nil {
		return err
	}
	fallback, err := encodeFrame(frameTypeToast, toast)
	if err != nil {
		return err
	}
	return h.broadcast(ctx, func(peer *wsPeer) (wsFrame, bool) {
		if peer.permission == domain.PermissionGranted {
			return native, true
		}
		return fallback, true
	})
}

// Toast shows an in-page toast on every connected page.
func (h *Hub) Toast(ctx context.Context, toast domain.Toast) error {
	frame, err := encodeFrame(frameTypeToast, toast)
	if err != nil {
		return err
	}
	return h.broadcast(ctx, func(*wsPeer) (wsFrame, bool) { return frame, true })
}

type delivery struct {
	peer  *wsPeer
	frame wsFrame
}

// broadcast writes the frame route picks for each page. It fails only when
// no page is routed or every write fails.
func (h *Hub) broadcast(ctx context.Context, route func(*wsPeer) (wsFrame, bool)) error {
	h.mu.Lock()
	deliveries := make([]delivery, 0, len(h.peers))
	for _, peer := range h.peers {
		if frame, ok := route(peer); ok {
			deliveries = append(deliveries, delivery{peer: peer, frame: frame})
		}
	}
	h.mu.Unlock()
	if len(deliveries) == 0 {
		return ErrNoPages
	}

	var errs []error
	delivered := 0
	for _, d := range deliveries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.peer.writeFrame(d.frame); err != nil {
			errs = append(errs, fmt.Errorf("send %s: %w", d.frame.Type, err))
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return errors.Join(errs...)
	}
	return nil
}

func encodeFrame(frameType string, payload any) (wsFrame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return wsFrame{}, fmt.Errorf("encode %s: %w", frameType, err)
	}
	return wsFrame{Type: frameType, Payload: data}, nil
}

// Close disconnects every page.
func (h *Hub) Close() {
	h.mu.Lock()
	peers := make([]*wsPeer, 0, len(h.peers))
	for _, peer := range h.peers {
		peers = append(peers, peer)
	}
	h.mu.Unlock()
	for _, peer := range peers {
		if peer.conn != nil {
			_ = peer.conn.Close()
		}
	}
}

func errorFrame(requestID, message string) wsFrame {
	data, _ := json.Marshal(errorPayload{Message: message})
	return wsFrame{Type: frameTypeError, RequestID: requestID, Payload: data}
}

var (
	_ domain.FallbackFacility = (*Hub)(nil)
	_ domain.Toaster          = (*Hub)(nil)
)
