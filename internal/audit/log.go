package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"folio.dev/internal/obs"
	"folio.dev/internal/paging"
)

// Recorder is the append side of the log; domain services depend on it.
type Recorder interface {
	Append(ctx context.Context, action Action, details string) (Entry, error)
}

// Publisher receives every appended entry (live stream subscribers).
type Publisher interface {
	Publish(Entry)
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(l *Log) {
		if clock != nil {
			l.now = clock
		}
	}
}

// WithPublisher fans appended entries out to p.
func WithPublisher(p Publisher) Option {
	return func(l *Log) { l.pub = p }
}

// Log is the append-only audit trail.
type Log struct {
	store Store
	now   func() time.Time
	pub   Publisher
}

// NewLog wraps store. A nil store falls back to a MemoryStore.
func NewLog(store Store, opts ...Option) *Log {
	if store == nil {
		store = NewMemoryStore()
	}
	l := &Log{store: store, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append records an action. The entry is written to the store, logged as a
// structured audit line, counted and published.
func (l *Log) Append(ctx context.Context, action Action, details string) (Entry, error) {
	action = Action(strings.TrimSpace(string(action)))
	if action == "" {
		return Entry{}, errors.New("audit: action is required")
	}
	e := Entry{
		Timestamp:  l.now(),
		Action:     action,
		Details:    details,
		ActorEmail: ActorFromContext(ctx),
		RequestID:  RequestIDFromContext(ctx),
	}
	stored, err := l.store.Insert(ctx, e)
	if err != nil {
		return Entry{}, fmt.Errorf("audit: insert: %w", err)
	}

	attrs := []slog.Attr{
		slog.String("type", "audit"),
		slog.Int64("id", stored.ID),
		slog.String("action", string(stored.Action)),
		slog.String("details", stored.Details),
	}
	if stored.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", stored.RequestID))
	}
	if stored.ActorEmail != "" {
		attrs = append(attrs, slog.String("actor", stored.ActorEmail))
	}
	obs.Logger().LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
	obs.AuditAppended(string(stored.Action))

	if l.pub != nil {
		l.pub.Publish(stored)
	}
	return stored, nil
}

// List returns a newest-first page.
func (l *Log) List(ctx context.Context, page, size int) (paging.Page[Entry], error) {
	return l.store.List(ctx, page, size)
}

// Recent returns up to n newest entries.
func (l *Log) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return []Entry{}, nil
	}
	p, err := l.store.List(ctx, 1, n)
	if err != nil {
		return nil, err
	}
	return p.Items, nil
}

// Seed imports pre-built entries without logging or publishing them.
func (l *Log) Seed(ctx context.Context, entries []Entry) error {
	return l.store.Import(ctx, entries)
}
