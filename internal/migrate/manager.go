package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"folio.dev/internal/obs"
)

const defaultTable = "folio_schema"

const (
	kindMigration = "migration"
	kindSeed      = "seed"
)

// ErrNothingApplied is returned by Down when no migration is recorded.
var ErrNothingApplied = errors.New("migrate: no migrations applied")

// Step is one migration as reported by Status.
type Step struct {
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// Manager applies SQL migrations and seed files from an fs.FS.
// Migrations are pairs NAME.up.sql / NAME.down.sql; seeds are plain NAME.sql.
// Each file runs in its own transaction together with its bookkeeping row.
type Manager struct {
	db         *sql.DB
	migrations fs.FS
	seeds      fs.FS
	table      string
	log        *slog.Logger
}

// Option configures Manager.
type Option func(*Manager)

// WithTable overrides the bookkeeping table name.
func WithTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.table = name
		}
	}
}

// WithLogger sets the logger used to report applied files.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// NewManager constructs a Manager. Either file system may be nil.
func NewManager(db *sql.DB, migrations, seeds fs.FS, opts ...Option) *Manager {
	m := &Manager{
		db:         db,
		migrations: migrations,
		seeds:      seeds,
		table:      defaultTable,
		log:        obs.Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Up applies pending migrations in name order.
func (m *Manager) Up(ctx context.Context) error {
	return m.applyPending(ctx, kindMigration, m.migrations, ".up.sql")
}

// Seed applies seed files that were not applied before.
func (m *Manager) Seed(ctx context.Context) error {
	return m.applyPending(ctx, kindSeed, m.seeds, ".sql")
}

// Down reverts the most recently applied migration.
func (m *Manager) Down(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	var name string
	err := m.db.QueryRowContext(ctx,
		fmt.Sprintf(`select name from %s where kind = $1 order by applied_at desc, name desc limit 1`, m.table),
		kindMigration,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNothingApplied
	}
	if err != nil {
		return fmt.Errorf("latest migration: %w", err)
	}
	files, err := listFiles(m.migrations, ".down.sql")
	if err != nil {
		return err
	}
	file, ok := files[name]
	if !ok {
		return fmt.Errorf("migrate: %s has no down file", name)
	}
	remove := fmt.Sprintf(`delete from %s where kind = $1 and name = $2`, m.table)
	if err := m.run(ctx, m.migrations, file, remove, kindMigration, name); err != nil {
		return fmt.Errorf("revert %s: %w", name, err)
	}
	m.log.Info("migration reverted", "name", name)
	return nil
}

// Status lists every known migration, applied or not.
func (m *Manager) Status(ctx context.Context) ([]Step, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx, kindMigration)
	if err != nil {
		return nil, err
	}
	files, err := listFiles(m.migrations, ".up.sql")
	if err != nil {
		return nil, err
	}
	steps := make([]Step, 0, len(files))
	for _, name := range sortedNames(files) {
		at, ok := applied[name]
		steps = append(steps, Step{Name: name, Applied: ok, AppliedAt: at})
	}
	return steps, nil
}

func (m *Manager) applyPending(ctx context.Context, kind string, fsys fs.FS, suffix string) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx, kind)
	if err != nil {
		return err
	}
	files, err := listFiles(fsys, suffix)
	if err != nil {
		return err
	}
	record := fmt.Sprintf(`insert into %s (kind, name, applied_at) values ($1, $2, $3)`, m.table)
	for _, name := range sortedNames(files) {
		if _, done := applied[name]; done {
			continue
		}
		if err := m.run(ctx, fsys, files[name], record, kind, name, time.Now().UTC()); err != nil {
			return fmt.Errorf("apply %s %s: %w", kind, name, err)
		}
		m.log.Info("applied", "kind", kind, "name", name)
	}
	return nil
}

// run executes the statements of file and then the bookkeeping statement in one transaction.
func (m *Manager) run(ctx context.Context, fsys fs.FS, file, bookkeeping string, args ...any) error {
	body, err := fs.ReadFile(fsys, file)
	if err != nil {
		return err
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range splitStatements(string(body)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, args...); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *Manager) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, fmt.Sprintf(`create table if not exists %s (
		kind text not null,
		name text not null,
		applied_at timestamptz not null default now(),
		primary key (kind, name)
	)`, m.table))
	if err != nil {
		return fmt.Errorf("ensure %s: %w", m.table, err)
	}
	return nil
}

func (m *Manager) applied(ctx context.Context, kind string) (map[string]time.Time, error) {
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf(`select name, applied_at from %s where kind = $1`, m.table), kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]time.Time)
	for rows.Next() {
		var (
			name string
			at   time.Time
		)
		if err := rows.Scan(&name, &at); err != nil {
			return nil, err
		}
		out[name] = at
	}
	return out, rows.Err()
}

// listFiles maps names (file name minus suffix) to paths. The plain ".sql"
// suffix skips up/down files so seeds can share a directory with migrations.
func listFiles(fsys fs.FS, suffix string) (map[string]string, error) {
	out := make(map[string]string)
	if fsys == nil {
		return out, nil
	}
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		base := path.Base(p)
		if !strings.HasSuffix(base, suffix) {
			return nil
		}
		if suffix == ".sql" && (strings.HasSuffix(base, ".up.sql") || strings.HasSuffix(base, ".down.sql")) {
			return nil
		}
		out[strings.TrimSuffix(base, suffix)] = p
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	return out, err
}

func sortedNames(files map[string]string) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// splitStatements cuts a script on semicolons outside single-quoted
// literals. "--" line comments are dropped.
func splitStatements(script string) []string {
	var (
		stmts   []string
		buf     strings.Builder
		quoted  bool
		comment bool
	)
	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			stmts = append(stmts, s)
		}
		buf.Reset()
	}
	for i := 0; i < len(script); i++ {
		c := script[i]
		switch {
		case comment:
			if c == '\n' {
				comment = false
				buf.WriteByte(c)
			}
		case c == '\'':
			quoted = !quoted
			buf.WriteByte(c)
		case !quoted && c == '-' && i+1 < len(script) && script[i+1] == '-':
			comment = true
			i++
		case !quoted && c == ';':
			flush()
		default:
			buf.WriteByte(c)
		}
	}
	flush()
	return stmts
}
