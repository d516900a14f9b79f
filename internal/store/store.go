package store

import (
	"sync"
)

// Store is the durable document store contract. Read returns a
// snapshot; Update runs the mutator inside the store's atomic
// read-modify-write unit. Concurrent readers observe either the pre-
// or post-mutation snapshot, never a torn one.
type Store interface {
	Read() (*Document, error)
	Update(mutate func(*Document) error) (*Document, error)
}

// MemStore is an in-memory Store for tests and ephemeral runs.
type MemStore struct {
	mu  sync.Mutex
	doc *Document
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{doc: NewDocument()}
}

// Read returns a deep copy of the current document.
func (s *MemStore) Read() (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone(), nil
}

// Update applies the mutator to a copy and commits it on success.
// A mutator error leaves the stored document untouched.
func (s *MemStore) Update(mutate func(*Document) error) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.doc.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	s.doc = next
	return next.Clone(), nil
}
