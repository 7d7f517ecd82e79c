// Package memory provides a process-local cache storage. Generations vanish
// when the process exits; use the sqlite store to survive restarts.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/louisbranch/dailytasks/internal/services/cacheworker/storage"
)

type generation struct {
	seq     uint64
	entries map[string]storage.Entry
}

// Store keeps generations in memory guarded by a single RWMutex.
type Store struct {
	mu           sync.RWMutex
	generations  map[string]*generation
	nextSeq      uint64
	registration *storage.Registration
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{generations: make(map[string]*generation)}
}

// Names lists generation names in creation order.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.generations))
	for name := range s.generations {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		return cmp.Compare(s.generations[a].seq, s.generations[b].seq)
	})
	return names, nil
}

// Has reports whether a generation exists.
func (s *Store) Has(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.generations[strings.TrimSpace(name)]
	return ok, nil
}

// DeleteGeneration removes a generation and its entries.
func (s *Store) DeleteGeneration(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	name = strings.TrimSpace(name)
	if _, ok := s.generations[name]; !ok {
		return false, nil
	}
	delete(s.generations, name)
	return true, nil
}

// Match returns a copy of the entry stored under key.
func (s *Store) Match(ctx context.Context, name, key string) (storage.Entry, error) {
	if err := ctx.Err(); err != nil {
		return storage.Entry{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	gen, ok := s.generations[strings.TrimSpace(name)]
	if !ok {
		return storage.Entry{}, storage.ErrNotFound
	}
	entry, ok := gen.entries[key]
	if !ok {
		return storage.Entry{}, storage.ErrNotFound
	}
	return entry.Clone(), nil
}

// Put stores one entry, creating the generation when missing.
func (s *Store) Put(ctx context.Context, name string, entry storage.Entry) error {
	return s.PutAll(ctx, name, []storage.Entry{entry})
}

// PutAll validates every entry before touching the generation, so a bad
// entry leaves the store unchanged.
func (s *Store) PutAll(ctx context.Context, name string, entries []storage.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return storage.ErrGenerationRequired
	}
	staged := make(map[string]storage.Entry, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry.Key) == "" {
			return storage.ErrKeyRequired
		}
		staged[entry.Key] = entry.Clone()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	gen := s.ensureGeneration(name)
	for key, entry := range staged {
		gen.entries[key] = entry
	}
	return nil
}

func (s *Store) ensureGeneration(name string) *generation {
	gen, ok := s.generations[name]
	if !ok {
		s.nextSeq++
		gen = &generation{seq: s.nextSeq, entries: make(map[string]storage.Entry)}
		s.generations[name] = gen
	}
	return gen
}

// ActiveRegistration returns the last persisted registration.
func (s *Store) ActiveRegistration(ctx context.Context) (storage.Registration, error) {
	if err := ctx.Err(); err != nil {
		return storage.Registration{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.registration == nil {
		return storage.Registration{}, storage.ErrNotFound
	}
	return *s.registration, nil
}

// SetActiveRegistration replaces the persisted registration.
func (s *Store) SetActiveRegistration(ctx context.Context, registration storage.Registration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registration = &registration
	return nil
}

// Close is a no-op for in-memory storage.
func (s *Store) Close() error {
	return nil
}

var _ storage.Store = (*Store)(nil)
