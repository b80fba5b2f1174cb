package auth

import (
	"context"

	"folio.dev/internal/obs"
)

// Notifier delivers account links (invitations, password resets).
type Notifier interface {
	Notify(ctx context.Context, to, subject, link string) error
}

// LogNotifier simulates email delivery by logging the message.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, to, subject, link string) error {
	obs.Logger().InfoContext(ctx, "simulated email", "to", to, "subject", subject, "link", link)
	return nil
}
