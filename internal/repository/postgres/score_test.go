package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/intake-api/internal/model"
)

func TestScoreIncrementUpserts(t *testing.T) {
	db, mock := newMock(t)
	repo := NewScoreRepository(NewBaseRepository(db))

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (doctor_id) DO UPDATE SET score = scores.score + EXCLUDED.score")).
		WithArgs(int64(4), 1, 1, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"doctor_id", "score", "threshold", "updated_at"}).
			AddRow(4, 12, 50, time.Now()))

	score, err := repo.Increment(context.Background(), 4, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 12, score.Score)
	assert.Equal(t, 50, score.Threshold)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScoreReverseClampsAtZero(t *testing.T) {
	db, mock := newMock(t)
	repo := NewScoreRepository(NewBaseRepository(db))

	mock.ExpectExec(regexp.QuoteMeta("score = GREATEST(score - $1, 0), threshold = GREATEST(threshold - $1, 0)")).
		WithArgs(3, sqlmock.AnyArg(), int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Reverse(context.Background(), 4, 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScoreSumByPatient(t *testing.T) {
	db, mock := newMock(t)
	repo := NewScoreRepository(NewBaseRepository(db))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT doctor_id, SUM(delta) AS total FROM score_histories WHERE patient_id = $1 GROUP BY doctor_id")).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"doctor_id", "total"}).AddRow(4, 1).AddRow(6, 2))

	sums, err := repo.SumByPatient(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, []model.ScoreContribution{{DoctorID: 4, Total: 1}, {DoctorID: 6, Total: 2}}, sums)
	assert.NoError(t, mock.ExpectationsWereMet())
}
