package audit

import (
	"context"
	"sync"

	"folio.dev/internal/ids"
	"folio.dev/internal/paging"
)

// DefaultPageSize is used by List when no size is requested.
const DefaultPageSize = 15

// Store persists entries. Implementations assign IDs and return pages newest-first.
type Store interface {
	Insert(ctx context.Context, e Entry) (Entry, error)
	// Import stores entries that already carry IDs (seed data).
	Import(ctx context.Context, entries []Entry) error
	List(ctx context.Context, page, size int) (paging.Page[Entry], error)
}

// MemoryStore keeps entries in a newest-first slice.
type MemoryStore struct {
	mu      sync.RWMutex
	seq     ids.Sequence
	entries []Entry
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(_ context.Context, e Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.seq.Next()
	s.entries = append([]Entry{e}, s.entries...)
	return e, nil
}

func (s *MemoryStore) Import(_ context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.seq.Observe(e.ID)
		s.insertSorted(e)
	}
	return nil
}

// insertSorted keeps the slice ordered by descending id.
func (s *MemoryStore) insertSorted(e Entry) {
	i := 0
	for i < len(s.entries) && s.entries[i].ID > e.ID {
		i++
	}
	s.entries = append(s.entries, Entry{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = e
}

func (s *MemoryStore) List(_ context.Context, page, size int) (paging.Page[Entry], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paging.Slice(s.entries, page, size, DefaultPageSize), nil
}
