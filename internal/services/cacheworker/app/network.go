package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/louisbranch/dailytasks/internal/platform/timeouts"
	"github.com/louisbranch/dailytasks/internal/services/cacheworker/domain"
	"golang.org/x/sync/singleflight"
)

var hopByHopHeaders = []string{
	"Connection", "Proxy-Connection", "Keep-Alive",
	"Proxy-Authenticate", "Proxy-Authorization", "TE",
	"Trailer", "Transfer-Encoding", "Upgrade",
}

// varyingHeaders make a request's response specific to that request, so
// requests carrying any of them never share a round trip.
var varyingHeaders = []string{
	"Authorization", "Cookie", "Range", "If-Range",
	"If-None-Match", "If-Modified-Since",
}

// Upstream fetches same-origin requests from the application server and
// forwards absolute cross-origin requests as-is. Concurrent identical GETs
// share one upstream round trip that outlives any single caller.
type Upstream struct {
	base          *url.URL
	origin        *url.URL
	client        *http.Client
	group         singleflight.Group
	sharedTimeout time.Duration
}

// NewUpstream builds an upstream network. A nil client uses a client with
// the shared fetch timeout.
func NewUpstream(base, origin *url.URL, client *http.Client) (*Upstream, error) {
	if base == nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.New("upstream url must be absolute")
	}
	if origin == nil || origin.Scheme == "" || origin.Host == "" {
		return nil, errors.New("origin must be absolute")
	}
	if client == nil {
		client = &http.Client{Timeout: timeouts.UpstreamFetch}
	}
	return &Upstream{base: base, origin: origin, client: client, sharedTimeout: timeouts.UpstreamFetch}, nil
}

// Fetch performs r against the upstream and buffers the response.
func (u *Upstream) Fetch(ctx context.Context, r *http.Request) (*domain.Response, error) {
	requestURL := domain.RequestURL(u.origin, r)
	sameOrigin := domain.SameOrigin(u.origin, requestURL)
	target := requestURL
	if sameOrigin {
		target = u.base.ResolveReference(&url.URL{Path: requestURL.Path, RawPath: requestURL.RawPath, RawQuery: requestURL.RawQuery})
	}

	if r.Method != http.MethodGet || !shareable(r.Header) {
		return u.roundTrip(ctx, r, target, requestURL, sameOrigin)
	}
	key := strings.Join([]string{
		r.Method,
		target.String(),
		r.Header.Get("Sec-Fetch-Mode"),
		r.Header.Get("Accept"),
	}, "\n")
	// The shared round trip must not end when the caller that started it
	// goes away; each caller stops waiting on its own context instead.
	results := u.group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.sharedTimeout)
		defer cancel()
		return u.roundTrip(shared, r, target, requestURL, sameOrigin)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-results:
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Val.(*domain.Response).Clone(), nil
	}
}

func shareable(header http.Header) bool {
	for _, name := range varyingHeaders {
		if header.Get(name) != "" {
			return false
		}
	}
	return true
}

func (u *Upstream) roundTrip(ctx context.Context, r *http.Request, target, requestURL *url.URL, sameOrigin bool) (*domain.Response, error) {
	var body io.Reader
	if r.Body != nil && r.Method != http.MethodGet && r.Method != http.MethodHead {
		body = r.Body
	}
	out, err := http.NewRequestWithContext(ctx, r.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	out.Header = stripHopByHop(r.Header)
	if sameOrigin {
		out.Host = u.origin.Host
	}

	resp, err := u.client.Do(out)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}

	responseType := domain.TypeBasic
	responseURL := requestURL.String()
	if !sameOrigin || !sameHost(resp.Request.URL, u.base) {
		responseType = domain.TypeOpaque
		responseURL = resp.Request.URL.String()
	}
	return &domain.Response{
		Status: resp.StatusCode,
		Header: stripHopByHop(resp.Header),
		Body:   payload,
		URL:    responseURL,
		Type:   responseType,
		Source: domain.SourceNetwork,
	}, nil
}

func sameHost(a, b *url.URL) bool {
	return a != nil && b != nil && strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}

func stripHopByHop(header http.Header) http.Header {
	clone := header.Clone()
	if clone == nil {
		clone = http.Header{}
	}
	for _, key := range hopByHopHeaders {
		clone.Del(key)
	}
	if conn := header.Get("Connection"); conn != "" {
		for _, token := range strings.Split(conn, ",") {
			if token = strings.TrimSpace(token); token != "" {
				clone.Del(token)
			}
		}
	}
	clone.Del("Content-Length")
	return clone
}

// fetchTimeout bounds a network with a per-request deadline.
func fetchTimeout(network domain.Network, timeout time.Duration) domain.Network {
	if timeout <= 0 {
		return network
	}
	return domain.NetworkFunc(func(ctx context.Context, r *http.Request) (*domain.Response, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return network.Fetch(ctx, r)
	})
}
