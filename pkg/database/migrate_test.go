package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	createTrackingSQL = regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")
	checkAppliedSQL   = regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)")
	recordAppliedSQL  = regexp.QuoteMeta("INSERT INTO schema_migrations (version) VALUES ($1)")
)

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"000002_add_index.up.sql":      {Data: []byte("CREATE INDEX idx ON users (created_at);")},
		"000001_create_users.up.sql":   {Data: []byte("CREATE TABLE users (username VARCHAR(128) PRIMARY KEY);")},
		"000001_create_users.down.sql": {Data: []byte("DROP TABLE users;")},
		"README.md":                    {Data: []byte("ignored")},
	}
}

func TestUpMigrations_SortedAndFiltered(t *testing.T) {
	names, err := upMigrations(testMigrations())
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_create_users.up.sql", "000002_add_index.up.sql"}, names)
}

func TestRunMigrations_AppliesPendingInOrder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(createTrackingSQL).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	mock.ExpectQuery(checkAppliedSQL).WithArgs("000001_create_users.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	mock.ExpectQuery(checkAppliedSQL).WithArgs("000002_add_index.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX idx ON users (created_at);")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(recordAppliedSQL).WithArgs("000002_add_index.up.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = RunMigrations(context.Background(), mock, testMigrations(), discardLogger())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_SQLErrorRollsBackWithoutRetry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	migrations := fstest.MapFS{
		"000001_create_users.up.sql": {Data: []byte("CREAT TABLE users;")},
	}

	mock.ExpectExec(createTrackingSQL).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery(checkAppliedSQL).WithArgs("000001_create_users.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREAT TABLE users;")).
		WillReturnError(errors.New(`syntax error at or near "CREAT"`))
	mock.ExpectRollback()

	err = RunMigrations(context.Background(), mock, migrations, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute migration 000001_create_users.up.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_TrackingTableFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(createTrackingSQL).WillReturnError(errors.New("permission denied for schema public"))

	err = RunMigrations(context.Background(), mock, testMigrations(), discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create schema_migrations table")
	assert.NoError(t, mock.ExpectationsWereMet())
}
