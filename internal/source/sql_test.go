package source

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgres(t *testing.T) {
	s := NewSQL(nil, DialectPostgres)
	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	stmt, args, err := s.Build(Query{
		Dataset: "spotfire_actionlog",
		Columns: []string{"user_name", "log_category"},
		Filters: []Filter{
			NotIn("log_category", "admin", "auth"),
			Gte("logged_time", cutoff),
			NotIn("user_name", `SYS\automation`),
			NotNull("user_name"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT user_name, log_category FROM spotfire_actionlog WHERE log_category NOT IN ($1, $2) AND logged_time >= $3 AND user_name <> $4 AND user_name IS NOT NULL",
		stmt)
	assert.Equal(t, []any{"admin", "auth", cutoff, `SYS\automation`}, args)
}

func TestBuildMySQL(t *testing.T) {
	s := NewSQL(nil, DialectMySQL)
	stmt, args, err := s.Build(Query{
		Dataset: "employees",
		Columns: []string{"smtp"},
		Filters: []Filter{In("dept_name", "Ops"), Like("smtp", "%@x.com")},
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT smtp FROM employees WHERE dept_name IN (?) AND smtp LIKE ?", stmt)
	assert.Len(t, args, 2)
}

func TestBuildRejectsInjection(t *testing.T) {
	s := NewSQL(nil, DialectPostgres)
	_, _, err := s.Build(Query{Dataset: "users--", Columns: []string{"a"}})
	assert.True(t, errors.Is(err, ErrInvalidIdentifier))
}

func TestFetchScansToStrings(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	login := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, user_name, last_login FROM users WHERE last_login >= $1")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "user_name", "last_login"}).
			AddRow(int64(7), []byte("alice"), login).
			AddRow(int64(8), "bob", nil))

	s := NewSQL(db, DialectPostgres)
	rows, err := s.Fetch(context.Background(), Query{
		Dataset: "users",
		Columns: []string{"user_id", "user_name", "last_login"},
		Filters: []Filter{Gte("last_login", login.AddDate(0, -3, 0))},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "7", rows[0]["user_id"])
	assert.Equal(t, "alice", rows[0]["user_name"])
	assert.Equal(t, "2025-02-03T04:05:06Z", rows[0]["last_login"])
	assert.Equal(t, "", rows[1]["last_login"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchEmptyResultIsNotAnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT smtp FROM hr").WillReturnRows(sqlmock.NewRows([]string{"smtp"}))

	rows, err := NewSQL(db, DialectMySQL).Fetch(context.Background(), Query{Dataset: "hr", Columns: []string{"smtp"}})
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestFetchPropagatesQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("warehouse unavailable"))

	_, err = NewSQL(db, DialectPostgres).Fetch(context.Background(), Query{Dataset: "hr", Columns: []string{"smtp"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warehouse unavailable")
}

func TestOpenSQLRejectsUnknownDriver(t *testing.T) {
	_, err := OpenSQL(context.Background(), "oracle", "dsn")
	assert.Error(t, err)
}
