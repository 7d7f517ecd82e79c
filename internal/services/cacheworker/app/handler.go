package app

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/louisbranch/dailytasks/internal/services/cacheworker/domain"
)

const (
	// CacheStatusHeader reports whether a response came from the network,
	// an exact cache match, or the shell fallback.
	CacheStatusHeader = "X-Worker-Cache"

	messagePath = "/__worker/message"
	statusPath  = "/__worker/status"
	upPath      = "/__worker/up"

	maxMessageBytes = 4 << 10
)

type handler struct {
	registration *Registration
	network      domain.Network
	logf         func(string, ...any)
}

// NewHandler intercepts every request through the current controller and
// exposes the control channel. Without a controller requests go straight to
// the network.
func NewHandler(registration *Registration, network domain.Network, logf func(string, ...any)) http.Handler {
	if logf == nil {
		logf = log.Printf
	}
	h := &handler{registration: registration, network: network, logf: logf}
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+messagePath, h.handleMessage)
	mux.HandleFunc("GET "+statusPath, h.handleStatus)
	mux.HandleFunc("GET "+upPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/", h.intercept)
	return mux
}

func (h *handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxMessageBytes))
	if err != nil {
		http.Error(w, "read message", http.StatusBadRequest)
		return
	}
	if _, ok := domain.ParseMessage(data); !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.registration.SkipWaiting(r.Context()); err != nil {
		h.logf("skip waiting: %v", err)
		http.Error(w, "skip waiting failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.registration.Status(r.Context())); err != nil {
		h.logf("encode status: %v", err)
	}
}

func (h *handler) intercept(w http.ResponseWriter, r *http.Request) {
	var (
		resp *domain.Response
		err  error
	)
	if controller := h.registration.Controller(); controller != nil {
		resp, err = controller.Fetch(r.Context(), r)
	} else {
		resp, err = h.network.Fetch(r.Context(), r)
		if resp != nil {
			resp.Source = domain.SourceNetwork
		}
	}
	if err != nil {
		h.logf("fetch %s %s: %v", r.Method, r.URL.RequestURI(), err)
		// Abort the connection so the client sees a network error.
		panic(http.ErrAbortHandler)
	}

	header := w.Header()
	for key, values := range resp.Header {
		header[key] = append([]string(nil), values...)
	}
	header.Set(CacheStatusHeader, resp.Source.CacheStatus())
	w.WriteHeader(resp.Status)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(resp.Body); err != nil {
		h.logf("write response %s: %v", r.URL.RequestURI(), err)
	}
}
