package migrate

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"regexp"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"0001_a.up.sql":   {Data: []byte("create table a (id int);")},
		"0001_a.down.sql": {Data: []byte("drop table a;")},
		"0002_b.up.sql":   {Data: []byte("-- b holds text\ncreate table b (x text);\ninsert into b values ('a;b');")},
		"0002_b.down.sql": {Data: []byte("drop table b;")},
	}
}

func newManager(t *testing.T, seeds fs.FS) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	mock.ExpectExec("create table if not exists folio_schema").WillReturnResult(sqlmock.NewResult(0, 0))
	return NewManager(db, testFS(), seeds, WithLogger(quiet)), mock
}

func TestUpAppliesPendingOnly(t *testing.T) {
	m, mock := newManager(t, nil)
	mock.ExpectQuery("select name, applied_at from folio_schema where kind").
		WithArgs(kindMigration).
		WillReturnRows(sqlmock.NewRows([]string{"name", "applied_at"}).AddRow("0001_a", time.Now()))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("create table b (x text)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("insert into b values ('a;b')")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into folio_schema").
		WithArgs(kindMigration, "0002_b", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, m.Up(context.Background()))
}

func TestUpRollsBackFailedFile(t *testing.T) {
	m, mock := newManager(t, nil)
	mock.ExpectQuery("select name, applied_at from folio_schema").
		WillReturnRows(sqlmock.NewRows([]string{"name", "applied_at"}))
	mock.ExpectBegin()
	mock.ExpectExec("create table a").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := m.Up(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0001_a")
}

func TestDownRevertsLatest(t *testing.T) {
	m, mock := newManager(t, nil)
	mock.ExpectQuery("select name from folio_schema where kind = \\$1 order by applied_at desc").
		WithArgs(kindMigration).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0002_b"))
	mock.ExpectBegin()
	mock.ExpectExec("drop table b").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("delete from folio_schema where kind").
		WithArgs(kindMigration, "0002_b").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, m.Down(context.Background()))
}

func TestDownWithoutHistory(t *testing.T) {
	m, mock := newManager(t, nil)
	mock.ExpectQuery("select name from folio_schema").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	assert.ErrorIs(t, m.Down(context.Background()), ErrNothingApplied)
}

func TestStatusListsPending(t *testing.T) {
	m, mock := newManager(t, nil)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery("select name, applied_at from folio_schema").
		WillReturnRows(sqlmock.NewRows([]string{"name", "applied_at"}).AddRow("0001_a", at))

	steps, err := m.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Step{
		{Name: "0001_a", Applied: true, AppliedAt: at},
		{Name: "0002_b"},
	}, steps)
}

func TestSeedSkipsMigrationFiles(t *testing.T) {
	seeds := fstest.MapFS{
		"0001_demo.sql":    {Data: []byte("insert into a values (1);")},
		"0009_x.up.sql":    {Data: []byte("select 1;")},
		"nested/0002.sql":  {Data: []byte("insert into a values (2);")},
		"notes/readme.txt": {Data: []byte("ignored")},
	}
	m, mock := newManager(t, seeds)
	mock.ExpectQuery("select name, applied_at from folio_schema").
		WithArgs(kindSeed).
		WillReturnRows(sqlmock.NewRows([]string{"name", "applied_at"}).AddRow("0001_demo", time.Now()))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("insert into a values (2)")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into folio_schema").
		WithArgs(kindSeed, "0002", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, m.Seed(context.Background()))
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("-- header; ignored\ninsert into t values ('x;y'); select 1;\n")
	require.Len(t, stmts, 2)
	assert.Equal(t, "insert into t values ('x;y')", stmts[0])
	assert.Equal(t, "select 1", stmts[1])
}

func TestEmbeddedFiles(t *testing.T) {
	migrations, seeds := Embedded()
	ups, err := listFiles(migrations, ".up.sql")
	require.NoError(t, err)
	require.Equal(t, []string{"0001_users", "0002_content", "0003_audit_log"}, sortedNames(ups))

	downs, err := listFiles(migrations, ".down.sql")
	require.NoError(t, err)
	for name := range ups {
		assert.Contains(t, downs, name)
	}

	seedFiles, err := listFiles(seeds, ".sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_demo"}, sortedNames(seedFiles))
}
