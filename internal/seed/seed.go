// Package seed holds the demo data set loaded into in-memory deployments.
package seed

import (
	"context"
	"fmt"
	"time"

	"folio.dev/internal/audit"
	"folio.dev/internal/auth"
	"folio.dev/internal/content"
)

const day = 24 * time.Hour

// Users returns the demo accounts. michael@test.com is still INVITED.
func Users(now time.Time) []*auth.User {
	mk := func(id int64, email, name string, role auth.Role, status auth.UserStatus) *auth.User {
		return &auth.User{
			ID: id, Email: email, DisplayName: name, Role: role, Status: status,
			CreatedAt: now, UpdatedAt: now,
		}
	}
	michael := mk(4, "michael@test.com", "Michael Brown", auth.RoleAuthor, auth.StatusInvited)
	michael.InviteToken = "michael-invite-token-123"
	return []*auth.User{
		mk(1, "admin@test.com", "Admin User", auth.RoleAdmin, auth.StatusActive),
		mk(2, "author@test.com", "Author User", auth.RoleAuthor, auth.StatusActive),
		mk(3, "emily@test.com", "Emily Myers", auth.RoleAuthor, auth.StatusActive),
		michael,
	}
}

// Content returns seven articles covering every workflow status.
func Content(now time.Time) []*content.Item {
	ago := func(d time.Duration) time.Time { return now.Add(-d) }
	ptr := func(t time.Time) *time.Time { return &t }
	return []*content.Item{
		{
			ID:          "1",
			Title:       "The Future of AI in Web Development",
			Body:        "Exploring how artificial intelligence is reshaping the landscape of web development...",
			Status:      content.StatusPublished,
			AuthorEmail: "admin@test.com",
			CreatedAt:   ago(10 * day),
			UpdatedAt:   ago(9 * day),
		},
		{
			ID:          "2",
			Title:       "A Guide to Modern Angular",
			Body:        "This article covers standalone components, signals, and the latest features in Angular.",
			Status:      content.StatusReview,
			AuthorEmail: "author@test.com",
			CreatedAt:   ago(5 * day),
			UpdatedAt:   ago(2 * day),
		},
		{
			ID:          "3",
			Title:       "Getting Started with Tailwind CSS",
			Body:        "A beginner-friendly introduction to the utility-first CSS framework.",
			Status:      content.StatusDraft,
			AuthorEmail: "emily@test.com",
			CreatedAt:   ago(day),
			UpdatedAt:   now,
		},
		{
			ID:          "4",
			Title:       "Why TypeScript is Essential",
			Body:        "This article was rejected because it lacked depth.",
			Status:      content.StatusRejected,
			AuthorEmail: "author@test.com",
			CreatedAt:   ago(4 * day),
			UpdatedAt:   ago(3 * day),
			ReviewedAt:  ptr(ago(3 * day)),
			RejectionReason: "The article makes good points but lacks sufficient depth and practical examples. " +
				"Please expand on the benefits of static typing with code snippets and compare it with plain JavaScript in a real-world scenario.",
		},
		{
			ID:          "5",
			Title:       "Advanced State Management",
			Body:        "This article is scheduled to be published in the future.",
			Status:      content.StatusScheduled,
			AuthorEmail: "admin@test.com",
			CreatedAt:   ago(2 * day),
			UpdatedAt:   ago(day),
			PublishAt:   ptr(now.Add(3 * day)),
		},
		{
			ID:          "6",
			Title:       "Deploying NestJS on the Cloud",
			Body:        "A step-by-step guide to deploying your NestJS applications for free. This article will cover platforms like Vercel, Railway, and Render.",
			Status:      content.StatusReview,
			AuthorEmail: "admin@test.com",
			CreatedAt:   ago(3 * day),
			UpdatedAt:   ago(day),
		},
		{
			ID:          "7",
			Title:       "Enterprise-Grade Authentication with JWT",
			Body:        "Securing your application is crucial. This article explores JWT-based authentication, refresh tokens, and role-based access control in a modern web application.",
			Status:      content.StatusDraft,
			AuthorEmail: "admin@test.com",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
}

// AuditEntries returns the two historical entries shown on a fresh dashboard.
func AuditEntries(now time.Time) []audit.Entry {
	return []audit.Entry{
		{ID: 1, Timestamp: now.Add(-2 * time.Hour), Action: audit.ActionUserLogin, Details: "User admin@test.com logged in."},
		{ID: 2, Timestamp: now.Add(-time.Hour), Action: audit.ActionContentStatusChanged, Details: `Status of "A Guide to Modern Angular" changed from DRAFT to REVIEW.`},
	}
}

// Targets are the stores filled by Load.
type Targets struct {
	Users   *auth.Service
	Content *content.Service
	Audit   *audit.Log
}

// Load waits for delay (simulated fetch latency), then seeds audit, users and content.
// Content loading also publishes any scheduled items that are already due.
func Load(ctx context.Context, delay time.Duration, now time.Time, t Targets) error {
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	if t.Audit != nil {
		if err := t.Audit.Seed(ctx, AuditEntries(now)); err != nil {
			return fmt.Errorf("seed audit: %w", err)
		}
	}
	if t.Users != nil {
		if err := t.Users.Seed(ctx, Users(now)); err != nil {
			return fmt.Errorf("seed users: %w", err)
		}
	}
	if t.Content != nil {
		if err := t.Content.Load(ctx, Content(now)); err != nil {
			return fmt.Errorf("seed content: %w", err)
		}
	}
	return nil
}
