package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"folio.dev/internal/audit"
	"folio.dev/internal/obs"
	"folio.dev/internal/paging"
)

const (
	defaultLoginDelay = 500 * time.Millisecond
	resetTokenTTL     = time.Hour

	// DefaultUserPageSize is used by List when no size is requested.
	DefaultUserPageSize = 10
)

// Service owns the user lifecycle: invitations, registration, password reset,
// role and profile changes, login and session verification.
type Service struct {
	users    UserStore
	audit    audit.Recorder
	tokens   *TokenCodec
	revoker  TokenRevoker
	notifier Notifier
	now      func() time.Time

	loginDelay      time.Duration
	requirePassword bool
	appBaseURL      string

	// serializes read-modify-write sequences against the store
	mu sync.Mutex
}

// Session is the result of a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user"`
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithLoginDelay sets the simulated login latency. Zero disables it.
func WithLoginDelay(d time.Duration) ServiceOption {
	return func(s *Service) error {
		if d < 0 {
			return errors.New("auth: login delay must not be negative")
		}
		s.loginDelay = d
		return nil
	}
}

// WithNotifier replaces the default LogNotifier.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) error {
		if n != nil {
			s.notifier = n
		}
		return nil
	}
}

// WithRevoker replaces the default in-memory revoker.
func WithRevoker(r TokenRevoker) ServiceOption {
	return func(s *Service) error {
		if r != nil {
			s.revoker = r
		}
		return nil
	}
}

// WithPasswordRequired makes Login verify bcrypt hashes and registration demand a password.
func WithPasswordRequired(v bool) ServiceOption {
	return func(s *Service) error {
		s.requirePassword = v
		return nil
	}
}

// WithAppBaseURL sets the prefix of links sent by the notifier.
func WithAppBaseURL(base string) ServiceOption {
	return func(s *Service) error {
		s.appBaseURL = strings.TrimRight(strings.TrimSpace(base), "/")
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(users UserStore, rec audit.Recorder, tokens *TokenCodec, opts ...ServiceOption) (*Service, error) {
	if users == nil || rec == nil || tokens == nil {
		return nil, errors.New("auth: users, audit and tokens are required")
	}
	svc := &Service{
		users:      users,
		audit:      rec,
		tokens:     tokens,
		revoker:    NewMemoryTokenRevoker(),
		notifier:   LogNotifier{},
		now:        func() time.Time { return time.Now().UTC() },
		loginDelay: defaultLoginDelay,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Seed imports pre-built users (demo data).
func (s *Service) Seed(ctx context.Context, users []*User) error {
	return s.users.Import(ctx, users)
}

// Invite creates an INVITED user and sends a registration link.
func (s *Service) Invite(ctx context.Context, actor Principal, email string, role Role) (*User, error) {
	if err := actor.Require(PermUsersManage); err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	if _, err := ParseRole(string(role)); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	now := s.now()
	u := &User{
		Email:       email,
		DisplayName: displayNameFromEmail(email),
		Role:        role,
		Status:      StatusInvited,
		InviteToken: uuid.NewString(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.notify(ctx, u.Email, "You are invited to Folio", "/#/register/"+u.InviteToken)
	s.record(ctx, actor.Email(), audit.ActionUserInvited, fmt.Sprintf("User %q invited with role %s.", u.Email, u.Role))
	return u, nil
}

// ValidateInviteToken returns the INVITED user holding token.
func (s *Service) ValidateInviteToken(ctx context.Context, token string) (*User, error) {
	u, err := s.users.FindByInviteToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}
	if u.Status != StatusInvited {
		return nil, ErrNotFound
	}
	return u, nil
}

// CompleteRegistration activates the invited user. A used token fails with ErrInvalidToken.
func (s *Service) CompleteRegistration(ctx context.Context, token, password string) (*User, error) {
	hash, err := s.passwordHash(password)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.ValidateInviteToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	u.Status = StatusActive
	u.InviteToken = ""
	if hash != "" {
		u.PasswordHash = hash
	}
	u.UpdatedAt = s.now()
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	s.record(ctx, u.Email, audit.ActionUserRegistered, fmt.Sprintf("User %q completed registration.", u.Email))
	return u, nil
}

// RequestPasswordReset issues a one-hour reset token for an ACTIVE user.
// Unknown or inactive emails return nil so callers cannot probe accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if u.Status != StatusActive {
		return nil
	}
	now := s.now()
	expires := now.Add(resetTokenTTL)
	u.PasswordResetToken = uuid.NewString()
	u.PasswordResetExpires = &expires
	u.UpdatedAt = now
	if err := s.users.Update(ctx, u); err != nil {
		return err
	}
	s.notify(ctx, u.Email, "Reset your Folio password", "/#/reset-password/"+u.PasswordResetToken)
	s.record(ctx, u.Email, audit.ActionPasswordResetRequested, fmt.Sprintf("Password reset requested for %s.", u.Email))
	return nil
}

// ValidateResetToken returns the user holding a non-expired reset token.
func (s *Service) ValidateResetToken(ctx context.Context, token string) (*User, error) {
	u, err := s.users.FindByResetToken(ctx, strings.TrimSpace(token))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if u.PasswordResetExpires == nil || !u.PasswordResetExpires.After(s.now()) {
		return nil, ErrInvalidToken
	}
	return u, nil
}

// ResetPassword consumes a reset token and optionally stores a new password.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	hash, err := s.passwordHash(password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.ValidateResetToken(ctx, token)
	if err != nil {
		return err
	}
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
	if hash != "" {
		u.PasswordHash = hash
	}
	u.UpdatedAt = s.now()
	if err := s.users.Update(ctx, u); err != nil {
		return err
	}
	s.record(ctx, u.Email, audit.ActionPasswordResetCompleted, fmt.Sprintf("Password for %s was reset.", u.Email))
	return nil
}

// UpdateRole changes another user's role.
func (s *Service) UpdateRole(ctx context.Context, actor Principal, email string, role Role) (*User, error) {
	if err := actor.Require(PermUsersManage); err != nil {
		return nil, err
	}
	if _, err := ParseRole(string(role)); err != nil {
		return nil, err
	}
	if actor.Owns(email) {
		return nil, ErrSelfRoleChange
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	u.Role = role
	u.UpdatedAt = s.now()
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	s.record(ctx, actor.Email(), audit.ActionUserRoleChanged, fmt.Sprintf("Role of user %s changed to %s.", u.Email, u.Role))
	return u, nil
}

// UpdateProfile changes a display name. Users edit themselves; managers edit anyone.
func (s *Service) UpdateProfile(ctx context.Context, actor Principal, userID int64, displayName string) (*User, error) {
	if actor.ID() != userID {
		if err := actor.Require(PermUsersManage); err != nil {
			return nil, err
		}
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, fmt.Errorf("%w: display name is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.DisplayName = displayName
	u.UpdatedAt = s.now()
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	s.record(ctx, actor.Email(), audit.ActionUserProfileUpdated, fmt.Sprintf("Profile updated for user %s.", u.Email))
	return u, nil
}

// Login signs in an ACTIVE user after the simulated latency.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	if err := sleep(ctx, s.loginDelay); err != nil {
		return nil, err
	}
	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		obs.LoginAttempt("invalid")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		obs.LoginAttempt("error")
		return nil, err
	}
	if u.Status != StatusActive {
		obs.LoginAttempt("invalid")
		return nil, ErrInvalidCredentials
	}
	if s.requirePassword {
		if VerifyPassword(u.PasswordHash, password) != nil {
			obs.LoginAttempt("invalid")
			return nil, ErrInvalidCredentials
		}
	}
	token, claims, err := s.tokens.Issue(u)
	if err != nil {
		obs.LoginAttempt("error")
		return nil, err
	}
	obs.LoginAttempt("ok")
	s.record(ctx, u.Email, audit.ActionUserLogin, fmt.Sprintf("User %s logged in.", u.Email))
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: u}, nil
}

// Authenticate restores a session from a bearer token.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	claims, err := s.tokens.Decode(token)
	if err != nil {
		return Principal{}, err
	}
	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return Principal{}, fmt.Errorf("auth: check revocation: %w", err)
	}
	if revoked {
		return Principal{}, ErrInvalidToken
	}
	u, err := s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, ErrNotFound) {
		return Principal{}, ErrInvalidToken
	}
	if err != nil {
		return Principal{}, err
	}
	if u.Status != StatusActive {
		return Principal{}, ErrInvalidToken
	}
	return NewPrincipal(u), nil
}

// Logout revokes token until it would have expired.
func (s *Service) Logout(ctx context.Context, actor Principal, token string) error {
	claims, err := s.tokens.Decode(token)
	if err != nil {
		return err
	}
	if claims.UserID != actor.ID() {
		return ErrInvalidToken
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if err := s.revoker.Revoke(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("auth: revoke: %w", err)
	}
	s.record(ctx, actor.Email(), audit.ActionUserLogout, fmt.Sprintf("User %s logged out.", actor.Email()))
	return nil
}

// List returns a page of users ordered by id.
func (s *Service) List(ctx context.Context, actor Principal, page, size int) (paging.Page[*User], error) {
	if err := actor.Require(PermUsersManage); err != nil {
		return paging.Page[*User]{}, err
	}
	all, err := s.users.List(ctx)
	if err != nil {
		return paging.Page[*User]{}, err
	}
	return paging.Slice(all, page, size, DefaultUserPageSize), nil
}

func (s *Service) passwordHash(password string) (string, error) {
	if password == "" {
		if s.requirePassword {
			return "", fmt.Errorf("%w: password is required", ErrInvalidInput)
		}
		return "", nil
	}
	return HashPassword(password)
}

// notify is fail-soft: delivery errors are logged, never returned.
func (s *Service) notify(ctx context.Context, to, subject, path string) {
	if err := s.notifier.Notify(ctx, to, subject, s.appBaseURL+path); err != nil {
		obs.Logger().WarnContext(ctx, "notification failed", "to", to, "error", err)
	}
}

// record appends an audit entry; the mutation already happened, so failures are only logged.
func (s *Service) record(ctx context.Context, actorEmail string, action audit.Action, details string) {
	ctx = audit.WithActor(ctx, actorEmail)
	if _, err := s.audit.Append(ctx, action, details); err != nil {
		obs.Logger().ErrorContext(ctx, "audit append failed", "action", string(action), "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
