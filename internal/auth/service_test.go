package auth

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio.dev/internal/audit"
	"folio.dev/internal/obs"
)

type recordingNotifier struct {
	mu    sync.Mutex
	links []string
	fail  bool
}

func (n *recordingNotifier) Notify(_ context.Context, _, _, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.links = append(n.links, link)
	if n.fail {
		return errors.New("smtp down")
	}
	return nil
}

type fixture struct {
	svc      *Service
	log      *audit.Log
	notifier *recordingNotifier
	now      *time.Time
	admin    Principal
	author   Principal
}

func newFixture(t *testing.T, opts ...ServiceOption) *fixture {
	t.Helper()
	restore := obs.SetOutput(&bytes.Buffer{})
	t.Cleanup(restore)

	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	log := audit.NewLog(audit.NewMemoryStore(), audit.WithClock(clock))
	codec, err := NewTokenCodec("test-secret", "folio", time.Hour, WithTokenClock(clock))
	require.NoError(t, err)
	notifier := &recordingNotifier{}

	base := []ServiceOption{WithClock(clock), WithLoginDelay(0), WithNotifier(notifier), WithAppBaseURL("http://app.test/")}
	svc, err := NewService(NewMemoryUserStore(), log, codec, append(base, opts...)...)
	require.NoError(t, err)

	admin := &User{ID: 1, Email: "admin@test.com", DisplayName: "Admin User", Role: RoleAdmin, Status: StatusActive}
	author := &User{ID: 2, Email: "author@test.com", DisplayName: "Author User", Role: RoleAuthor, Status: StatusActive}
	invited := &User{ID: 4, Email: "michael@test.com", DisplayName: "Michael Brown", Role: RoleAuthor, Status: StatusInvited, InviteToken: "michael-invite-token-123"}
	require.NoError(t, svc.Seed(context.Background(), []*User{admin, author, invited}))

	return &fixture{svc: svc, log: log, notifier: notifier, now: &now, admin: NewPrincipal(admin), author: NewPrincipal(author)}
}

func (f *fixture) auditCount(t *testing.T) int {
	t.Helper()
	page, err := f.log.List(context.Background(), 1, 1)
	require.NoError(t, err)
	return page.Total
}

func TestInviteAndRegister(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	u, err := f.svc.Invite(ctx, f.admin, "  New.Person@Test.com ", RoleAuthor)
	require.NoError(t, err)
	assert.Equal(t, int64(5), u.ID)
	assert.Equal(t, StatusInvited, u.Status)
	assert.Equal(t, "New.Person", u.DisplayName)
	require.NotEmpty(t, u.InviteToken)
	assert.Equal(t, []string{"http://app.test/#/register/" + u.InviteToken}, f.notifier.links)

	_, err = f.svc.Invite(ctx, f.admin, "new.person@test.com", RoleAdmin)
	assert.ErrorIs(t, err, ErrEmailExists)

	_, err = f.svc.Invite(ctx, f.author, "x@test.com", RoleAuthor)
	var perr *PermissionError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, PermUsersManage, perr.Permission)

	_, err = f.svc.Invite(ctx, f.admin, "no-at-sign", RoleAuthor)
	assert.ErrorIs(t, err, ErrInvalidInput)

	found, err := f.svc.ValidateInviteToken(ctx, u.InviteToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	before := f.auditCount(t)
	active, err := f.svc.CompleteRegistration(ctx, u.InviteToken, "")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, active.Status)
	assert.Empty(t, active.InviteToken)
	assert.Equal(t, before+1, f.auditCount(t))

	_, err = f.svc.CompleteRegistration(ctx, u.InviteToken, "")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, before+1, f.auditCount(t), "second registration must not audit")

	_, err = f.svc.ValidateInviteToken(ctx, u.InviteToken)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistrationStoresPassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithPasswordRequired(true))

	_, err := f.svc.CompleteRegistration(ctx, "michael-invite-token-123", "")
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.CompleteRegistration(ctx, "michael-invite-token-123", "short")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.CompleteRegistration(ctx, "michael-invite-token-123", "correct horse")
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "michael@test.com", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	session, err := f.svc.Login(ctx, "MICHAEL@test.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "michael@test.com", session.User.Email)
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	before := f.auditCount(t)
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "nobody@test.com"))
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "michael@test.com"), "invited users are ignored")
	assert.Equal(t, before, f.auditCount(t))
	assert.Empty(t, f.notifier.links)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "Author@Test.com"))
	require.Len(t, f.notifier.links, 1)
	u, err := f.svc.users.FindByEmail(ctx, "author@test.com")
	require.NoError(t, err)
	token := u.PasswordResetToken
	require.NotEmpty(t, token)
	assert.Equal(t, f.now.Add(time.Hour), *u.PasswordResetExpires)

	_, err = f.svc.ValidateResetToken(ctx, token)
	require.NoError(t, err)

	*f.now = f.now.Add(61 * time.Minute)
	_, err = f.svc.ValidateResetToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, ""), ErrInvalidToken)

	*f.now = f.now.Add(-2 * time.Minute)
	require.NoError(t, f.svc.ResetPassword(ctx, token, "new password"))
	u, _ = f.svc.users.FindByEmail(ctx, "author@test.com")
	assert.Empty(t, u.PasswordResetToken)
	assert.Nil(t, u.PasswordResetExpires)
	assert.NotEmpty(t, u.PasswordHash)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, ""), ErrInvalidToken)
}

func TestNotifierFailureIsSoft(t *testing.T) {
	f := newFixture(t)
	f.notifier.fail = true
	_, err := f.svc.Invite(context.Background(), f.admin, "soft@test.com", RoleAuthor)
	require.NoError(t, err)
}

func TestUpdateRoleAndProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.UpdateRole(ctx, f.admin, "ADMIN@test.com", RoleAuthor)
	assert.ErrorIs(t, err, ErrSelfRoleChange)
	_, err = f.svc.UpdateRole(ctx, f.admin, "ghost@test.com", RoleAuthor)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.UpdateRole(ctx, f.author, "admin@test.com", RoleAuthor)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.UpdateRole(ctx, f.admin, "author@test.com", Role("OWNER"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	u, err := f.svc.UpdateRole(ctx, f.admin, "author@test.com", RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, u.Role)

	u, err = f.svc.UpdateProfile(ctx, f.author, f.author.ID(), "  Renamed  ")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", u.DisplayName)
	_, err = f.svc.UpdateProfile(ctx, f.author, f.admin.ID(), "Nope")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.UpdateProfile(ctx, f.admin, f.author.ID(), " ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	recent, err := f.log.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, audit.ActionUserProfileUpdated, recent[0].Action)
	assert.Equal(t, "Profile updated for user author@test.com.", recent[0].Details)
}

func TestLoginAuthenticateLogout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Login(ctx, "michael@test.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "invited users cannot log in")
	_, err = f.svc.Login(ctx, "ghost@test.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	session, err := f.svc.Login(ctx, " Admin@Test.com", "anything")
	require.NoError(t, err)
	assert.True(t, f.now.Add(time.Hour).Equal(session.ExpiresAt))

	recent, err := f.log.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "User admin@test.com logged in.", recent[0].Details)
	assert.Equal(t, "admin@test.com", recent[0].ActorEmail)

	p, err := f.svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.True(t, p.HasPermission(PermContentTrash))

	require.NoError(t, f.svc.Logout(ctx, p, session.Token))
	_, err = f.svc.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	recent, _ = f.log.Recent(ctx, 1)
	assert.Equal(t, audit.ActionUserLogout, recent[0].Action)
}

func TestLoginHonoursContext(t *testing.T) {
	f := newFixture(t, WithLoginDelay(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.svc.Login(ctx, "admin@test.com", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestListUsersPaginates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	page, err := f.svc.List(ctx, f.admin, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, int64(1), page.Items[0].ID)

	_, err = f.svc.List(ctx, f.author, 1, 10)
	assert.ErrorIs(t, err, ErrForbidden)
}
