package content

import (
	"context"
	"fmt"
	"time"

	"folio.dev/internal/audit"
	"folio.dev/internal/obs"
)

// PublishDue promotes every live SCHEDULED item whose publish time has passed.
// It returns the number of promoted items.
func (s *Service) PublishDue(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	promoted := 0
	for _, it := range all {
		if it.Trashed() || it.Status != StatusScheduled || it.PublishAt == nil || it.PublishAt.After(now) {
			continue
		}
		it.Status = StatusPublished
		it.UpdatedAt = now
		if err := s.repo.Update(ctx, it); err != nil {
			return promoted, err
		}
		promoted++
		obs.ContentTransition(string(StatusScheduled), string(StatusPublished))
		if s.audit != nil {
			if _, err := s.audit.Append(ctx, audit.ActionContentStatusChanged,
				fmt.Sprintf("Scheduled article %q was automatically published.", it.Title)); err != nil {
				obs.Logger().ErrorContext(ctx, "audit append failed", "action", string(audit.ActionContentStatusChanged), "error", err)
			}
		}
	}
	return promoted, nil
}

// Load imports seed items (when given) and publishes anything already due.
func (s *Service) Load(ctx context.Context, seed []*Item) error {
	if len(seed) > 0 {
		if err := s.repo.Import(ctx, seed); err != nil {
			return fmt.Errorf("content: import: %w", err)
		}
	}
	n, err := s.PublishDue(ctx)
	if err != nil {
		return err
	}
	obs.Logger().InfoContext(ctx, "content loaded", "seeded", len(seed), "published_due", n)
	return nil
}

// StartScheduler runs PublishDue at the provided interval until the returned stop
// function is called.
func (s *Service) StartScheduler(interval time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := s.PublishDue(ctx); err != nil {
					obs.Logger().Error("scheduled publish failed", "error", err)
				} else if n > 0 {
					obs.Logger().Info("scheduled items published", "count", n)
				}
			}
		}
	}()
	return cancel
}
