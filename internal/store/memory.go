package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with an in-memory map, suitable for tests and
// credential-less development runs.
type MemoryStore struct {
	mu      sync.RWMutex
	docs    map[string]Document
	subs    map[string]map[uint64]func(Document)
	nextSub uint64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]Document),
		subs: make(map[string]map[uint64]func(Document)),
	}
}

// Get returns a copy of the document at path.
func (s *MemoryStore) Get(_ context.Context, path string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[path]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDocument(doc), nil
}

// Set applies the patch and notifies subscribers with the resulting document.
func (s *MemoryStore) Set(_ context.Context, path string, patch Document, merge bool) error {
	s.mu.Lock()
	next := applyPatch(s.docs[path], patch, merge, time.Now().UTC())
	s.docs[path] = next

	callbacks := make([]func(Document), 0, len(s.subs[path]))
	for _, fn := range s.subs[path] {
		callbacks = append(callbacks, fn)
	}
	s.mu.Unlock()

	// Deliver outside the lock so a callback can read the store again.
	for _, fn := range callbacks {
		fn(cloneDocument(next))
	}
	return nil
}

// Subscribe registers onChange for every subsequent durable change at path.
func (s *MemoryStore) Subscribe(path string, onChange func(Document)) (Unsubscribe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSub++
	id := s.nextSub
	if s.subs[path] == nil {
		s.subs[path] = make(map[uint64]func(Document))
	}
	s.subs[path][id] = onChange

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[path], id)
	}, nil
}
