package content

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"folio.dev/internal/ids"
)

// Repository persists items, trashed ones included. Implementations return copies.
type Repository interface {
	NextID(ctx context.Context) (string, error)
	Insert(ctx context.Context, it *Item) error
	Update(ctx context.Context, it *Item) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Item, error)
	List(ctx context.Context) ([]*Item, error)
	// Import stores items that already carry ids (seed data).
	Import(ctx context.Context, items []*Item) error
}

// MemoryRepository keeps items in a map keyed by id.
type MemoryRepository struct {
	mu    sync.RWMutex
	seq   ids.Sequence
	items map[string]*Item
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]*Item)}
}

func (r *MemoryRepository) NextID(context.Context) (string, error) {
	return r.seq.NextString(), nil
}

func (r *MemoryRepository) Insert(_ context.Context, it *Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq.ObserveString(it.ID)
	r.items[it.ID] = it.Clone()
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, it *Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[it.ID]; !ok {
		return ErrNotFound
	}
	r.items[it.ID] = it.Clone()
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return it.Clone(), nil
}

func (r *MemoryRepository) List(context.Context) ([]*Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Item, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, it.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	return out, nil
}

func (r *MemoryRepository) Import(ctx context.Context, items []*Item) error {
	for _, it := range items {
		if err := r.Insert(ctx, it); err != nil {
			return err
		}
	}
	return nil
}

// lessID orders decimal ids numerically, falling back to string order.
func lessID(a, b string) bool {
	x, errA := strconv.ParseInt(a, 10, 64)
	y, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return x < y
	}
	return a < b
}
