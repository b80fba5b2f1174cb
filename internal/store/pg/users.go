package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"folio.dev/internal/auth"
)

var _ auth.UserStore = (*UserRepo)(nil)

const userColumns = `id, email, display_name, role, status, invite_token, password_reset_token,
	password_reset_expires, password_hash, created_at, updated_at`

// UserRepo implements auth.UserStore.
type UserRepo struct {
	db *sql.DB
}

func (r *UserRepo) Create(ctx context.Context, u *auth.User) error {
	err := r.db.QueryRowContext(ctx, `
		insert into users (email, display_name, role, status, invite_token, password_reset_token,
			password_reset_expires, password_hash, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		returning id`,
		u.Email, u.DisplayName, string(u.Role), string(u.Status), nullString(u.InviteToken),
		nullString(u.PasswordResetToken), nullTime(u.PasswordResetExpires), nullString(u.PasswordHash),
		u.CreatedAt, u.UpdatedAt,
	).Scan(&u.ID)
	if isUniqueViolation(err) {
		return auth.ErrEmailExists
	}
	return err
}

func (r *UserRepo) Update(ctx context.Context, u *auth.User) error {
	res, err := r.db.ExecContext(ctx, `
		update users set email = $2, display_name = $3, role = $4, status = $5, invite_token = $6,
			password_reset_token = $7, password_reset_expires = $8, password_hash = $9, updated_at = $10
		where id = $1`,
		u.ID, u.Email, u.DisplayName, string(u.Role), string(u.Status), nullString(u.InviteToken),
		nullString(u.PasswordResetToken), nullTime(u.PasswordResetExpires), nullString(u.PasswordHash),
		u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return auth.ErrEmailExists
	}
	if err != nil {
		return err
	}
	return affected(res, auth.ErrNotFound)
}

func (r *UserRepo) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	return r.findOne(ctx, `where id = $1`, id)
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.findOne(ctx, `where lower(email) = $1`, auth.NormalizeEmail(email))
}

func (r *UserRepo) FindByInviteToken(ctx context.Context, token string) (*auth.User, error) {
	if token == "" {
		return nil, auth.ErrNotFound
	}
	return r.findOne(ctx, `where invite_token = $1`, token)
}

func (r *UserRepo) FindByResetToken(ctx context.Context, token string) (*auth.User, error) {
	if token == "" {
		return nil, auth.ErrNotFound
	}
	return r.findOne(ctx, `where password_reset_token = $1`, token)
}

func (r *UserRepo) List(ctx context.Context) ([]*auth.User, error) {
	rows, err := r.db.QueryContext(ctx, `select `+userColumns+` from users order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *UserRepo) Import(ctx context.Context, users []*auth.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, u := range users {
		if _, err := tx.ExecContext(ctx, `
			insert into users (id, email, display_name, role, status, invite_token, password_reset_token,
				password_reset_expires, password_hash, created_at, updated_at)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			on conflict (id) do nothing`,
			u.ID, u.Email, u.DisplayName, string(u.Role), string(u.Status), nullString(u.InviteToken),
			nullString(u.PasswordResetToken), nullTime(u.PasswordResetExpires), nullString(u.PasswordHash),
			u.CreatedAt, u.UpdatedAt,
		); err != nil {
			if isUniqueViolation(err) {
				return auth.ErrEmailExists
			}
			return fmt.Errorf("import user %d: %w", u.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `select setval('users_id_seq', greatest((select max(id) from users), 1))`); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *UserRepo) findOne(ctx context.Context, where string, arg any) (*auth.User, error) {
	row := r.db.QueryRowContext(ctx, `select `+userColumns+` from users `+where, arg)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	return u, err
}

func scanUser(row rowScanner) (*auth.User, error) {
	var (
		u                          auth.User
		role, status               string
		invite, reset, passwordHsh sql.NullString
		resetExpires               sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &role, &status, &invite, &reset,
		&resetExpires, &passwordHsh, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = auth.Role(role)
	u.Status = auth.UserStatus(status)
	u.InviteToken = invite.String
	u.PasswordResetToken = reset.String
	u.PasswordResetExpires = timePtr(resetExpires)
	u.PasswordHash = passwordHsh.String
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}
