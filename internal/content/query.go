package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"folio.dev/internal/auth"
	"folio.dev/internal/paging"
)

const (
	// DefaultPageSize is used by List when no size is requested.
	DefaultPageSize = 10

	// ExportFileName is the suggested download name for Export.
	ExportFileName = "content_export.json"
)

// Sort keys accepted by ListQuery.
const (
	SortTitle       = "title"
	SortAuthorEmail = "authorEmail"
	SortUpdatedAt   = "updatedAt"
)

// ListQuery filters, orders and pages the items visible to an actor.
type ListQuery struct {
	Search   string
	Status   Status
	Sort     string
	Desc     bool
	Page     int
	PageSize int
}

// AuthorCount is one row of the per-author breakdown.
type AuthorCount struct {
	AuthorEmail string `json:"authorEmail"`
	Count       int    `json:"count"`
}

// Stats summarises the items visible to an actor.
type Stats struct {
	Total     int           `json:"total"`
	Published int           `json:"published"`
	Review    int           `json:"review"`
	Drafts    int           `json:"drafts"`
	ByAuthor  []AuthorCount `json:"byAuthor,omitempty"`
}

// List returns one page of matching items.
func (s *Service) List(ctx context.Context, actor auth.Principal, q ListQuery) (paging.Page[*Item], error) {
	trash := q.Status == StatusTrash
	if trash {
		if err := actor.Require(auth.PermContentTrash); err != nil {
			return paging.Page[*Item]{}, err
		}
	}
	items, err := s.visible(ctx, actor, trash)
	if err != nil {
		return paging.Page[*Item]{}, err
	}

	needle := strings.ToLower(strings.TrimSpace(q.Search))
	filtered := items[:0]
	for _, it := range items {
		if needle != "" && !strings.Contains(strings.ToLower(it.Title), needle) {
			continue
		}
		if q.Status != "" && !trash && it.Status != q.Status {
			continue
		}
		filtered = append(filtered, it)
	}

	key, desc := q.Sort, q.Desc
	if key == "" {
		key, desc = SortUpdatedAt, true
	}
	less, err := sorter(key, filtered)
	if err != nil {
		return paging.Page[*Item]{}, err
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if desc {
			return less(j, i)
		}
		return less(i, j)
	})
	return paging.Slice(filtered, q.Page, q.PageSize, DefaultPageSize), nil
}

// Stats counts the actor's live items; content.read.any holders also get a per-author breakdown.
func (s *Service) Stats(ctx context.Context, actor auth.Principal) (Stats, error) {
	items, err := s.visible(ctx, actor, false)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Total: len(items)}
	byAuthor := map[string]int{}
	for _, it := range items {
		switch it.Status {
		case StatusPublished:
			st.Published++
		case StatusReview:
			st.Review++
		case StatusDraft:
			st.Drafts++
		}
		byAuthor[it.AuthorEmail]++
	}
	if actor.HasPermission(auth.PermContentReadAny) {
		st.ByAuthor = make([]AuthorCount, 0, len(byAuthor))
		for email, n := range byAuthor {
			st.ByAuthor = append(st.ByAuthor, AuthorCount{AuthorEmail: email, Count: n})
		}
		sort.Slice(st.ByAuthor, func(i, j int) bool {
			if st.ByAuthor[i].Count != st.ByAuthor[j].Count {
				return st.ByAuthor[i].Count > st.ByAuthor[j].Count
			}
			return st.ByAuthor[i].AuthorEmail < st.ByAuthor[j].AuthorEmail
		})
	}
	return st, nil
}

// Export writes every live item visible to the actor as an indented JSON array.
func (s *Service) Export(ctx context.Context, actor auth.Principal, w io.Writer) error {
	items, err := s.visible(ctx, actor, false)
	if err != nil {
		return err
	}
	sort.SliceStable(items, func(i, j int) bool { return lessID(items[i].ID, items[j].ID) })
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("content: export: %w", err)
	}
	return nil
}

// visible returns live (or, with trash, soft-deleted) items the actor may read.
func (s *Service) visible(ctx context.Context, actor auth.Principal, trash bool) ([]*Item, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	readAny := actor.HasPermission(auth.PermContentReadAny)
	out := make([]*Item, 0, len(all))
	for _, it := range all {
		if it.Trashed() != trash {
			continue
		}
		if !readAny && !actor.Owns(it.AuthorEmail) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func sorter(key string, items []*Item) (func(i, j int) bool, error) {
	switch key {
	case SortTitle:
		return func(i, j int) bool {
			return strings.ToLower(items[i].Title) < strings.ToLower(items[j].Title)
		}, nil
	case SortAuthorEmail:
		return func(i, j int) bool {
			return strings.ToLower(items[i].AuthorEmail) < strings.ToLower(items[j].AuthorEmail)
		}, nil
	case SortUpdatedAt:
		return func(i, j int) bool { return items[i].UpdatedAt.Before(items[j].UpdatedAt) }, nil
	}
	return nil, fmt.Errorf("%w: unknown sort key %q", ErrInvalidInput, key)
}
