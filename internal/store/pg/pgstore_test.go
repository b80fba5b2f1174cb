package pg

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"folio.dev/internal/audit"
	"folio.dev/internal/auth"
	"folio.dev/internal/content"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("expectations: %v", err)
		}
		db.Close()
	})
	return New(db), mock
}

var userCols = []string{"id", "email", "display_name", "role", "status", "invite_token", "password_reset_token",
	"password_reset_expires", "password_hash", "created_at", "updated_at"}

func TestUserCreateAndConflict(t *testing.T) {
	store, mock := newMock(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectQuery("insert into users").
		WithArgs("new@test.com", "new", "AUTHOR", "INVITED", "tok", nil, nil, nil, now, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
	u := &auth.User{Email: "new@test.com", DisplayName: "new", Role: auth.RoleAuthor, Status: auth.StatusInvited,
		InviteToken: "tok", CreatedAt: now, UpdatedAt: now}
	if err := store.Users().Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID != 9 {
		t.Fatalf("id = %d", u.ID)
	}

	mock.ExpectQuery("insert into users").WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	if err := store.Users().Create(ctx, &auth.User{Email: "new@test.com"}); !errors.Is(err, auth.ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestUserFindByEmail(t *testing.T) {
	store, mock := newMock(t)
	ctx := context.Background()
	now := time.Now().UTC()
	expires := now.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("from users where lower(email) = $1")).
		WithArgs("author@test.com").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(int64(2), "author@test.com", "Author User", "AUTHOR", "ACTIVE", nil, "reset-tok", expires, nil, now, now))
	u, err := store.Users().FindByEmail(ctx, "  Author@Test.com ")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if u.Role != auth.RoleAuthor || u.PasswordResetToken != "reset-tok" || u.PasswordResetExpires == nil || u.InviteToken != "" {
		t.Fatalf("unexpected user %+v", u)
	}

	mock.ExpectQuery("from users where lower").WillReturnRows(sqlmock.NewRows(userCols))
	if _, err := store.Users().FindByEmail(ctx, "ghost@test.com"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := store.Users().FindByInviteToken(ctx, ""); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("empty token should not hit the database: %v", err)
	}
}

func TestUserUpdateMissing(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("update users set").WillReturnResult(sqlmock.NewResult(0, 0))
	err := store.Users().Update(context.Background(), &auth.User{ID: 42, Email: "x@test.com"})
	if !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserImportAdvancesSequence(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("insert into users").WithArgs(int64(1), "admin@test.com", sqlmock.AnyArg(), "ADMIN", "ACTIVE",
		sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("select setval('users_id_seq'")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := store.Users().Import(context.Background(), []*auth.User{{ID: 1, Email: "admin@test.com", Role: auth.RoleAdmin, Status: auth.StatusActive}})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
}

var contentCols = []string{"id", "title", "body", "status", "author_email", "created_at", "updated_at",
	"deleted_at", "publish_at", "rejection_reason", "reviewed_at"}

func TestContentRepo(t *testing.T) {
	store, mock := newMock(t)
	ctx := context.Background()
	repo := store.Content()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("select nextval('content_id_seq')")).
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(int64(8)))
	id, err := repo.NextID(ctx)
	if err != nil || id != "8" {
		t.Fatalf("NextID = %q, %v", id, err)
	}

	mock.ExpectQuery("from content order by").WillReturnRows(sqlmock.NewRows(contentCols).
		AddRow("1", "A", "a", "PUBLISHED", "admin@test.com", now, now, nil, nil, nil, nil).
		AddRow("5", "S", "s", "SCHEDULED", "admin@test.com", now, now, nil, now.Add(time.Hour), nil, nil).
		AddRow("4", "R", "r", "REJECTED", "author@test.com", now, now, now, nil, "thin", now))
	items, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items", len(items))
	}
	if items[1].PublishAt == nil || items[1].Status != content.StatusScheduled {
		t.Fatalf("scheduled item not decoded: %+v", items[1])
	}
	if !items[2].Trashed() || items[2].RejectionReason != "thin" || items[2].ReviewedAt == nil {
		t.Fatalf("rejected item not decoded: %+v", items[2])
	}

	mock.ExpectQuery("from content where id").WithArgs("404").WillReturnRows(sqlmock.NewRows(contentCols))
	if _, err := repo.Get(ctx, "404"); !errors.Is(err, content.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	mock.ExpectExec("delete from content").WithArgs("404").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.Delete(ctx, "404"); !errors.Is(err, content.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	mock.ExpectExec("update content set").WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.Update(ctx, &content.Item{ID: "1", Status: content.StatusPublished}); err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestContentImportSetsSequence(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("insert into content").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into content").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("select setval('content_id_seq'")).WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := store.Content().Import(context.Background(), []*content.Item{{ID: "7"}, {ID: "3"}})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
}

func TestAuditRepo(t *testing.T) {
	store, mock := newMock(t)
	ctx := context.Background()
	repo := store.Audit()
	now := time.Now().UTC()

	mock.ExpectQuery("insert into audit_log").
		WithArgs(now, "USER_LOGIN", "User admin@test.com logged in.", "admin@test.com", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	e, err := repo.Insert(ctx, audit.Entry{Timestamp: now, Action: audit.ActionUserLogin,
		Details: "User admin@test.com logged in.", ActorEmail: "admin@test.com"})
	if err != nil || e.ID != 3 {
		t.Fatalf("Insert = %+v, %v", e, err)
	}

	mock.ExpectQuery(regexp.QuoteMeta("select count(*) from audit_log")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(17))
	mock.ExpectQuery("order by id desc").WithArgs(int64(15), int64(15)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ts", "action", "details", "actor_email", "request_id"}).
			AddRow(int64(2), now, "CONTENT_STATUS_CHANGED", "changed", nil, nil).
			AddRow(int64(1), now, "USER_LOGIN", "in", "admin@test.com", "req-1"))
	page, err := repo.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 17 || page.TotalPages != 2 || len(page.Items) != 2 {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Items[1].RequestID != "req-1" || page.Items[0].ActorEmail != "" {
		t.Fatalf("nullable columns not decoded: %+v", page.Items)
	}
}
