package content

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is a position in the editorial workflow.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusReview    Status = "REVIEW"
	StatusPublished Status = "PUBLISHED"
	StatusRejected  Status = "REJECTED"
	StatusScheduled Status = "SCHEDULED"

	// StatusTrash is a query filter selecting soft-deleted items; items never carry it.
	StatusTrash Status = "TRASH"
)

// ParseStatus accepts workflow statuses and TRASH, case-insensitively.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusDraft, StatusReview, StatusPublished, StatusRejected, StatusScheduled, StatusTrash:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, s)
}

// Item is an article.
type Item struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Body            string     `json:"body"`
	Status          Status     `json:"status"`
	AuthorEmail     string     `json:"authorEmail"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	DeletedAt       *time.Time `json:"deletedAt,omitempty"`
	PublishAt       *time.Time `json:"publishAt,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	ReviewedAt      *time.Time `json:"reviewedAt,omitempty"`
}

// Trashed reports whether the item was soft-deleted.
func (it *Item) Trashed() bool { return it.DeletedAt != nil }

// Clone returns a deep copy.
func (it *Item) Clone() *Item {
	if it == nil {
		return nil
	}
	c := *it
	c.DeletedAt = cloneTime(it.DeletedAt)
	c.PublishAt = cloneTime(it.PublishAt)
	c.ReviewedAt = cloneTime(it.ReviewedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

var (
	ErrNotFound          = errors.New("content: not found")
	ErrInvalidInput      = errors.New("content: invalid input")
	ErrInvalidTransition = errors.New("content: invalid transition")
)

// TransitionError describes a workflow step that the item's state does not allow.
type TransitionError struct {
	ID      string
	Op      string
	From    Status
	Trashed bool
}

func (e *TransitionError) Error() string {
	if e.Trashed {
		return fmt.Sprintf("content: cannot %s item %s: item is in trash", e.Op, e.ID)
	}
	return fmt.Sprintf("content: cannot %s item %s from status %s", e.Op, e.ID, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
