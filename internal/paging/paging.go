// Package paging slices ordered result sets into fixed-size pages.
package paging

// MaxSize caps any requested page size.
const MaxSize = 100

// Page is one page of an ordered result set.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Normalize clamps page to >= 1 and size to [1, MaxSize], substituting def for size <= 0.
func Normalize(page, size, def int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = def
	}
	if size > MaxSize {
		size = MaxSize
	}
	return page, size
}

// Slice returns the requested page of items. Pages past the end are empty, never nil.
func Slice[T any](items []T, page, size, def int) Page[T] {
	page, size = Normalize(page, size, def)
	total := len(items)
	pages := (total + size - 1) / size
	start := (page - 1) * size
	out := make([]T, 0, size)
	if start < total {
		end := start + size
		if end > total {
			end = total
		}
		out = append(out, items[start:end]...)
	}
	return Page[T]{Items: out, Page: page, PageSize: size, Total: total, TotalPages: pages}
}

// Of builds a page from items already limited by the caller (e.g. SQL LIMIT/OFFSET).
func Of[T any](items []T, page, size, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size
	}
	return Page[T]{Items: items, Page: page, PageSize: size, Total: total, TotalPages: pages}
}
