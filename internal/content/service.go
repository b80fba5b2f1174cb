package content

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"folio.dev/internal/audit"
	"folio.dev/internal/auth"
	"folio.dev/internal/obs"
)

// Service runs the editorial workflow on top of a Repository.
// Each successful mutation appends exactly one audit entry.
type Service struct {
	repo  Repository
	audit audit.Recorder
	now   func() time.Time

	// serializes read-modify-write sequences so the repository never sees lost updates
	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService wraps repo. A nil repo falls back to a MemoryRepository.
func NewService(repo Repository, rec audit.Recorder, opts ...Option) *Service {
	if repo == nil {
		repo = NewMemoryRepository()
	}
	s := &Service{repo: repo, audit: rec, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new DRAFT owned by the actor.
func (s *Service) Create(ctx context.Context, actor auth.Principal, title, body string) (*Item, error) {
	if err := actor.Require(auth.PermContentCreate); err != nil {
		return nil, err
	}
	title, body, err := validText(title, body)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.repo.NextID(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	it := &Item{
		ID:          id,
		Title:       title,
		Body:        body,
		Status:      StatusDraft,
		AuthorEmail: actor.Email(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, it); err != nil {
		return nil, err
	}
	s.record(ctx, actor, audit.ActionContentCreated, fmt.Sprintf("Article %q created by %s.", it.Title, it.AuthorEmail))
	return it, nil
}

// Update replaces title and body; the status is left alone.
func (s *Service) Update(ctx context.Context, actor auth.Principal, id, title, body string) (*Item, error) {
	title, body, err := validText(title, body)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, id, "update", editPerms, func(it *Item) (audit.Action, string, error) {
		it.Title = title
		it.Body = body
		it.UpdatedAt = s.now()
		return audit.ActionContentUpdated, fmt.Sprintf("Article %q (ID: %s) updated.", it.Title, it.ID), nil
	})
}

// SubmitForReview moves a DRAFT or REJECTED item to REVIEW.
func (s *Service) SubmitForReview(ctx context.Context, actor auth.Principal, id string) (*Item, error) {
	return s.mutate(ctx, actor, id, "submit", editPerms, func(it *Item) (audit.Action, string, error) {
		if it.Status != StatusDraft && it.Status != StatusRejected {
			return "", "", &TransitionError{ID: it.ID, Op: "submit", From: it.Status}
		}
		return s.transition(it, StatusReview, func() { it.RejectionReason = "" })
	})
}

// Approve publishes an item under review or scheduled.
func (s *Service) Approve(ctx context.Context, actor auth.Principal, id string) (*Item, error) {
	return s.mutate(ctx, actor, id, "approve", reviewPerms, func(it *Item) (audit.Action, string, error) {
		if !reviewable(it.Status) {
			return "", "", &TransitionError{ID: it.ID, Op: "approve", From: it.Status}
		}
		return s.transition(it, StatusPublished, func() {
			now := s.now()
			it.PublishAt = nil
			it.RejectionReason = ""
			it.ReviewedAt = &now
		})
	})
}

// Reject returns an item to its author with a reason.
func (s *Service) Reject(ctx context.Context, actor auth.Principal, id, reason string) (*Item, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		if err := actor.Require(auth.PermContentReview); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: rejection reason is required", ErrInvalidInput)
	}
	return s.mutate(ctx, actor, id, "reject", reviewPerms, func(it *Item) (audit.Action, string, error) {
		if !reviewable(it.Status) {
			return "", "", &TransitionError{ID: it.ID, Op: "reject", From: it.Status}
		}
		return s.transition(it, StatusRejected, func() {
			now := s.now()
			it.RejectionReason = reason
			it.ReviewedAt = &now
			it.PublishAt = nil
		})
	})
}

// Schedule marks an item for publishing at publishAt.
func (s *Service) Schedule(ctx context.Context, actor auth.Principal, id string, publishAt time.Time) (*Item, error) {
	if publishAt.IsZero() {
		if err := actor.Require(auth.PermContentReview); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: publish time is required", ErrInvalidInput)
	}
	at := publishAt.UTC()
	return s.mutate(ctx, actor, id, "schedule", reviewPerms, func(it *Item) (audit.Action, string, error) {
		if !reviewable(it.Status) {
			return "", "", &TransitionError{ID: it.ID, Op: "schedule", From: it.Status}
		}
		from := it.Status
		it.Status = StatusScheduled
		it.PublishAt = &at
		it.UpdatedAt = s.now()
		obs.ContentTransition(string(from), string(StatusScheduled))
		return audit.ActionContentScheduled, fmt.Sprintf("Article %q scheduled for %s.", it.Title, at.Format("2006-01-02 15:04 MST")), nil
	})
}

// SoftDelete moves an item to the trash.
func (s *Service) SoftDelete(ctx context.Context, actor auth.Principal, id string) (*Item, error) {
	return s.mutate(ctx, actor, id, "delete", deletePerms, func(it *Item) (audit.Action, string, error) {
		now := s.now()
		it.DeletedAt = &now
		return audit.ActionContentDeleted, fmt.Sprintf("Article %q was moved to trash.", it.Title), nil
	})
}

// Restore takes an item out of the trash, leaving the rest of it untouched.
func (s *Service) Restore(ctx context.Context, actor auth.Principal, id string) (*Item, error) {
	if err := actor.Require(auth.PermContentTrash); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	it, err := s.trashed(ctx, id, "restore")
	if err != nil {
		return nil, err
	}
	it.DeletedAt = nil
	if err := s.repo.Update(ctx, it); err != nil {
		return nil, err
	}
	s.record(ctx, actor, audit.ActionContentRestored, fmt.Sprintf("Article %q was restored from trash.", it.Title))
	return it, nil
}

// Purge removes a trashed item for good.
func (s *Service) Purge(ctx context.Context, actor auth.Principal, id string) error {
	if err := actor.Require(auth.PermContentTrash); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	it, err := s.trashed(ctx, id, "purge")
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, it.ID); err != nil {
		return err
	}
	s.record(ctx, actor, audit.ActionContentPurged, fmt.Sprintf("Article %q was permanently deleted.", it.Title))
	return nil
}

// Get returns one item. Readers without content.read.any only see their own live items.
func (s *Service) Get(ctx context.Context, actor auth.Principal, id string) (*Item, error) {
	it, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.HasPermission(auth.PermContentReadAny) && (!actor.Owns(it.AuthorEmail) || it.Trashed()) {
		return nil, ErrNotFound
	}
	return it, nil
}

// permSet names the capability pair guarding an operation: own applies to the
// author's items, any to everyone's. An empty own means authorship does not help.
type permSet struct{ own, any auth.Permission }

var (
	editPerms   = permSet{own: auth.PermContentEditOwn, any: auth.PermContentEditAny}
	deletePerms = permSet{own: auth.PermContentDeleteOwn, any: auth.PermContentDeleteAny}
	reviewPerms = permSet{any: auth.PermContentReview}
)

func (p permSet) check(actor auth.Principal, it *Item) error {
	if p.any != "" && actor.HasPermission(p.any) {
		return nil
	}
	if p.own != "" && actor.Owns(it.AuthorEmail) {
		return actor.Require(p.own)
	}
	return actor.Require(p.any)
}

// mutate loads a live item, authorizes, applies fn and persists the result.
func (s *Service) mutate(ctx context.Context, actor auth.Principal, id, op string, perms permSet,
	fn func(*Item) (audit.Action, string, error)) (*Item, error) {
	if perms.own == "" {
		if err := actor.Require(perms.any); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	it, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := perms.check(actor, it); err != nil {
		return nil, err
	}
	if it.Trashed() {
		return nil, &TransitionError{ID: it.ID, Op: op, From: it.Status, Trashed: true}
	}
	action, details, err := fn(it)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, it); err != nil {
		return nil, err
	}
	s.record(ctx, actor, action, details)
	return it, nil
}

// transition sets the new status, applies extra field changes and describes the change.
func (s *Service) transition(it *Item, to Status, apply func()) (audit.Action, string, error) {
	from := it.Status
	it.Status = to
	it.UpdatedAt = s.now()
	if apply != nil {
		apply()
	}
	obs.ContentTransition(string(from), string(to))
	return audit.ActionContentStatusChanged, fmt.Sprintf("Status of %q changed from %s to %s.", it.Title, from, to), nil
}

func (s *Service) trashed(ctx context.Context, id, op string) (*Item, error) {
	it, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !it.Trashed() {
		return nil, &TransitionError{ID: it.ID, Op: op, From: it.Status}
	}
	return it, nil
}

func (s *Service) record(ctx context.Context, actor auth.Principal, action audit.Action, details string) {
	if s.audit == nil {
		return
	}
	ctx = audit.WithActor(ctx, actor.Email())
	if _, err := s.audit.Append(ctx, action, details); err != nil {
		obs.Logger().ErrorContext(ctx, "audit append failed", "action", string(action), "error", err)
	}
}

func reviewable(st Status) bool {
	return st == StatusReview || st == StatusScheduled
}

func validText(title, body string) (string, string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", "", fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if strings.TrimSpace(body) == "" {
		return "", "", fmt.Errorf("%w: body is required", ErrInvalidInput)
	}
	return title, body, nil
}
