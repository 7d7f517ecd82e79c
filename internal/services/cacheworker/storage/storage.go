// Package storage defines the persistence contract for cache generations and
// the worker registration record.
package storage

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var (
	// ErrNotFound indicates a generation, entry, or registration is absent.
	ErrNotFound = errors.New("not found")
	// ErrGenerationRequired indicates a generation name was empty.
	ErrGenerationRequired = errors.New("generation name is required")
	// ErrKeyRequired indicates a request key was empty.
	ErrKeyRequired = errors.New("request key is required")
)

// Entry is one stored response snapshot keyed by request identity.
type Entry struct {
	Key      string
	URL      string
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

// Clone returns a deep copy so callers never share header maps or body bytes.
func (e Entry) Clone() Entry {
	clone := e
	if e.Header != nil {
		clone.Header = e.Header.Clone()
	}
	if e.Body != nil {
		clone.Body = append([]byte(nil), e.Body...)
	}
	return clone
}

// Registration records which worker version controls clients.
type Registration struct {
	Version     string
	CachePrefix string
	Shell       string
	ActivatedAt time.Time
}

// CacheStorage persists named cache generations and their entries.
//
// Writes to one key are overwrites; the last write wins. PutAll either
// commits every entry or none of them.
type CacheStorage interface {
	// Names lists generation names in creation order.
	Names(ctx context.Context) ([]string, error)
	Has(ctx context.Context, generation string) (bool, error)
	// DeleteGeneration removes a generation and all its entries. It reports
	// whether the generation existed.
	DeleteGeneration(ctx context.Context, generation string) (bool, error)
	Match(ctx context.Context, generation, key string) (Entry, error)
	Put(ctx context.Context, generation string, entry Entry) error
	PutAll(ctx context.Context, generation string, entries []Entry) error
}

// RegistrationStore persists the active worker registration across restarts.
type RegistrationStore interface {
	ActiveRegistration(ctx context.Context) (Registration, error)
	SetActiveRegistration(ctx context.Context, registration Registration) error
}

// Store is the full storage surface used by the cache worker runtime.
type Store interface {
	CacheStorage
	RegistrationStore
	Close() error
}
