package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const pgErrUniqueViolation = "23505"

// Store owns the connection pool shared by the Postgres repositories.
type Store struct {
	db *sql.DB
}

type pool struct {
	maxOpen     int
	maxIdle     int
	lifetime    time.Duration
	idleTimeout time.Duration
}

// Option tunes the connection pool created by Open.
type Option func(*pool)

// WithMaxConns caps open connections; idle connections are kept at half of it.
func WithMaxConns(n int) Option {
	return func(p *pool) {
		if n > 0 {
			p.maxOpen = n
			p.maxIdle = max(1, n/2)
		}
	}
}

// WithConnLifetime recycles connections older than d.
func WithConnLifetime(d time.Duration) Option {
	return func(p *pool) {
		if d > 0 {
			p.lifetime = d
		}
	}
}

// Open connects through the pgx stdlib driver. The pool is lazy; call Ping to verify the DSN.
func Open(dsn string, opts ...Option) (*Store, error) {
	cfg := pool{maxOpen: 20, maxIdle: 10, lifetime: 30 * time.Minute, idleTimeout: 5 * time.Minute}
	for _, opt := range opts {
		opt(&cfg)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.maxOpen)
	db.SetMaxIdleConns(cfg.maxIdle)
	db.SetConnMaxLifetime(cfg.lifetime)
	db.SetConnMaxIdleTime(cfg.idleTimeout)
	return &Store{db: db}, nil
}

// New wraps an existing handle (tests pass sqlmock here).
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Users returns the auth.UserStore backed by the users table.
func (s *Store) Users() *UserRepo { return &UserRepo{db: s.db} }

// Content returns the content.Repository backed by the content table.
func (s *Store) Content() *ContentRepo { return &ContentRepo{db: s.db} }

// Audit returns the audit.Store backed by the audit_log table.
func (s *Store) Audit() *AuditRepo { return &AuditRepo{db: s.db} }

type rowScanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}

// nullString stores blank strings as NULL.
func nullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func affected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
