package domain

import (
	"net/http"
	"time"

	"github.com/louisbranch/dailytasks/internal/services/cacheworker/storage"
)

// ResponseType mirrors the visibility of a fetched response.
type ResponseType string

const (
	// TypeBasic is a same-origin response whose contents are usable.
	TypeBasic ResponseType = "basic"
	// TypeOpaque is a response that ended up off-origin.
	TypeOpaque ResponseType = "opaque"
)

// Source records where a served response came from.
type Source string

const (
	SourceNetwork Source = "network"
	SourceCache   Source = "cache"
	SourceShell   Source = "shell"
)

// CacheStatus is the X-Worker-Cache header value for the source.
func (s Source) CacheStatus() string {
	switch s {
	case SourceCache:
		return "hit"
	case SourceShell:
		return "fallback"
	default:
		return "miss"
	}
}

// Response is a fully buffered response snapshot.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	URL    string
	Type   ResponseType
	Source Source
}

// Cacheable reports whether the response may be persisted.
func (r *Response) Cacheable() bool {
	return r != nil && r.Status == http.StatusOK && r.Type != TypeOpaque
}

// Clone returns a deep copy.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	clone := *r
	if r.Header != nil {
		clone.Header = r.Header.Clone()
	}
	if r.Body != nil {
		clone.Body = append([]byte(nil), r.Body...)
	}
	return &clone
}

// Entry converts the response into a storage entry under key.
func (r *Response) Entry(key string, storedAt time.Time) storage.Entry {
	return storage.Entry{
		Key:      key,
		URL:      r.URL,
		Status:   r.Status,
		Header:   r.Header,
		Body:     r.Body,
		StoredAt: storedAt,
	}.Clone()
}

// ResponseFromEntry rebuilds a response from a stored entry.
func ResponseFromEntry(entry storage.Entry, source Source) *Response {
	entry = entry.Clone()
	header := entry.Header
	if header == nil {
		header = http.Header{}
	}
	return &Response{
		Status: entry.Status,
		Header: header,
		Body:   entry.Body,
		URL:    entry.URL,
		Type:   TypeBasic,
		Source: source,
	}
}
