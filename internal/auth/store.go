package auth

import (
	"context"
	"sort"
	"strings"
	"sync"

	"folio.dev/internal/ids"
)

// UserStore persists users. Implementations return copies and match emails case-insensitively.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByInviteToken(ctx context.Context, token string) (*User, error)
	FindByResetToken(ctx context.Context, token string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	// Import stores users that already carry ids (seed data).
	Import(ctx context.Context, users []*User) error
}

// MemoryUserStore keeps users in a map keyed by id.
type MemoryUserStore struct {
	mu    sync.RWMutex
	seq   ids.Sequence
	users map[int64]*User
}

// NewMemoryUserStore returns an empty store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[int64]*User)}
}

func (s *MemoryUserStore) Create(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byEmailLocked(u.Email) != nil {
		return ErrEmailExists
	}
	u.ID = s.seq.Next()
	s.users[u.ID] = u.Clone()
	return nil
}

func (s *MemoryUserStore) Update(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return ErrNotFound
	}
	if other := s.byEmailLocked(u.Email); other != nil && other.ID != u.ID {
		return ErrEmailExists
	}
	s.users[u.ID] = u.Clone()
	return nil
}

func (s *MemoryUserStore) FindByID(_ context.Context, id int64) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u.Clone(), nil
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u := s.byEmailLocked(email); u != nil {
		return u.Clone(), nil
	}
	return nil, ErrNotFound
}

func (s *MemoryUserStore) FindByInviteToken(_ context.Context, token string) (*User, error) {
	return s.findBy(func(u *User) bool { return token != "" && u.InviteToken == token })
}

func (s *MemoryUserStore) FindByResetToken(_ context.Context, token string) (*User, error) {
	return s.findBy(func(u *User) bool { return token != "" && u.PasswordResetToken == token })
}

func (s *MemoryUserStore) List(_ context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryUserStore) Import(_ context.Context, users []*User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range users {
		if existing := s.byEmailLocked(u.Email); existing != nil && existing.ID != u.ID {
			return ErrEmailExists
		}
		s.seq.Observe(u.ID)
		s.users[u.ID] = u.Clone()
	}
	return nil
}

func (s *MemoryUserStore) findBy(match func(*User) bool) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(u) {
			return u.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryUserStore) byEmailLocked(email string) *User {
	email = NormalizeEmail(email)
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}
	return nil
}
