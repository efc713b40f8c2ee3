package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return Wrap(sqlDB), mock
}

func TestWithTransactionCommits(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE ticket_types").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.WithTransaction(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.Exec("UPDATE ticket_types SET available_quantity = available_quantity - 1")
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := db.WithTransaction(context.Background(), func(tx *sql.Tx) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryWithRetryRetriesConnectionErrors(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery("SELECT id FROM artists").WillReturnError(errors.New("read: connection reset by peer"))
	mock.ExpectQuery("SELECT id FROM artists").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	rows, err := db.QueryWithRetry(context.Background(), "SELECT id FROM artists")
	require.NoError(t, err)
	rows.Close()
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryWithRetryStopsOnOtherErrors(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery("SELECT id FROM artists").WillReturnError(&pq.Error{Code: "42P01"})

	_, err := db.QueryWithRetry(context.Background(), "SELECT id FROM artists")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsRetryable(&pq.Error{Code: "08006"}))
	assert.True(t, IsRetryable(&pq.Error{Code: "40001"}))
	assert.False(t, IsRetryable(&pq.Error{Code: "23505"}))
	assert.False(t, IsRetryable(nil))

	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, IsUniqueViolation(errors.New("duplicate")))
}
