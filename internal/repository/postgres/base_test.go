package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/intake-api/internal/repository"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestWithinTxCommits(t *testing.T) {
	db, mock := newMock(t)
	repos := NewRepositories(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE patients SET updated_at = $1 WHERE id = $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repos.Tx.WithinTx(context.Background(), func(ctx context.Context) error {
		return repos.Patients.Touch(ctx, 7, time.Now())
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	repos := NewRepositories(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM answers WHERE patient_id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM patients WHERE id = $1")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repos.Tx.WithinTx(context.Background(), func(ctx context.Context) error {
		if err := repos.Answers.DeleteByPatient(ctx, 7); err != nil {
			return err
		}
		return repos.Patients.Delete(ctx, 7)
	})
	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxJoinsOuterTransaction(t *testing.T) {
	db, mock := newMock(t)
	repos := NewRepositories(db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := repos.Tx.WithinTx(context.Background(), func(ctx context.Context) error {
		return repos.Tx.WithinTx(ctx, func(context.Context) error { return nil })
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestZeroRowUpdateIsNotFound(t *testing.T) {
	db, mock := newMock(t)
	repos := NewRepositories(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE patients SET updated_at")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repos.Patients.Touch(context.Background(), 99, time.Now())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
