package domain

import (
	"net/http"
	"net/url"
	"strings"
)

// RequestClass selects how an intercepted request is served.
type RequestClass int

const (
	// ClassPassthrough requests go to the network untouched.
	ClassPassthrough RequestClass = iota
	// ClassNavigation requests are full page loads served network-first.
	ClassNavigation
	// ClassAsset requests are same-origin GETs served cache-first.
	ClassAsset
)

func (c RequestClass) String() string {
	switch c {
	case ClassNavigation:
		return "navigation"
	case ClassAsset:
		return "asset"
	default:
		return "passthrough"
	}
}

// Classify decides the strategy for r relative to origin.
func Classify(origin *url.URL, r *http.Request) RequestClass {
	if r == nil || r.Method != http.MethodGet {
		return ClassPassthrough
	}
	if !SameOrigin(origin, RequestURL(origin, r)) {
		return ClassPassthrough
	}
	if IsNavigation(r) {
		return ClassNavigation
	}
	return ClassAsset
}

// IsNavigation reports whether r is a full page load. Clients that do not
// send fetch metadata are treated as navigating when they accept HTML.
func IsNavigation(r *http.Request) bool {
	if mode := r.Header.Get("Sec-Fetch-Mode"); mode != "" {
		return strings.EqualFold(mode, "navigate")
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// RequestURL returns the absolute URL of r. Origin-form requests take the
// origin scheme and the request host.
func RequestURL(origin *url.URL, r *http.Request) *url.URL {
	u := *r.URL
	u.Fragment = ""
	u.RawFragment = ""
	if u.IsAbs() {
		return &u
	}
	if origin != nil {
		u.Scheme = origin.Scheme
	}
	if u.Scheme == "" {
		u.Scheme = "http"
		if r.TLS != nil {
			u.Scheme = "https"
		}
	}
	u.Host = r.Host
	if u.Host == "" && origin != nil {
		u.Host = origin.Host
	}
	return &u
}

// RequestKey returns the cache identity of r: method plus absolute URL.
func RequestKey(r *http.Request) string {
	return KeyFor(r.Method, RequestURL(nil, r))
}

// KeyFor builds a cache key from a method and absolute URL.
func KeyFor(method string, u *url.URL) string {
	clean := *u
	clean.Fragment = ""
	clean.RawFragment = ""
	return strings.ToUpper(method) + " " + clean.String()
}

// SameOrigin compares scheme and host, ignoring default ports.
func SameOrigin(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.Scheme, b.Scheme) && canonicalHost(a) == canonicalHost(b)
}

func canonicalHost(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	switch {
	case port == "":
	case port == "80" && strings.EqualFold(u.Scheme, "http"):
	case port == "443" && strings.EqualFold(u.Scheme, "https"):
	default:
		host += ":" + port
	}
	return host
}
