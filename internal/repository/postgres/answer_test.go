package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/intake-api/internal/model"
)

func TestAnswerBulkInsertIsOneStatement(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAnswerRepository(NewBaseRepository(db))

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (patient_id, question_id, variant) DO UPDATE SET value = EXCLUDED.value")).
		WillReturnResult(sqlmock.NewResult(0, 3))

	answers := []*model.Answer{
		{DoctorID: 1, SectionID: 1, QuestionID: 1, PatientID: 9, Value: `"Jane Doe"`, Variant: model.VariantPrimary},
		{DoctorID: 1, SectionID: 1, QuestionID: 4, PatientID: 9, Value: `["a","b"]`, Variant: model.VariantPrimary},
		{DoctorID: 1, SectionID: 1, QuestionID: 4, PatientID: 9, Value: `"pets"`, Variant: model.VariantOther},
	}
	require.NoError(t, repo.BulkInsert(context.Background(), answers))
	for _, a := range answers {
		assert.False(t, a.UpdatedAt.IsZero())
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnswerBulkInsertEmptyIsNoop(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAnswerRepository(NewBaseRepository(db))

	require.NoError(t, repo.BulkInsert(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnswerExistingKeysBatched(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAnswerRepository(NewBaseRepository(db))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT question_id, variant FROM answers WHERE patient_id = $1 AND question_id = ANY($2)")).
		WillReturnRows(sqlmock.NewRows([]string{"question_id", "variant"}).
			AddRow(3, "primary").
			AddRow(3, "other").
			AddRow(5, "primary"))

	keys, err := repo.ExistingKeys(context.Background(), 9, []int64{3, 5, 6})
	require.NoError(t, err)
	assert.Len(t, keys, 3)
	assert.True(t, keys[model.AnswerKey{QuestionID: 3, Variant: model.VariantOther}])
	assert.False(t, keys[model.AnswerKey{QuestionID: 6, Variant: model.VariantPrimary}])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnswerDeleteVariant(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAnswerRepository(NewBaseRepository(db))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM answers WHERE patient_id = $1 AND variant = $2 AND question_id = ANY($3)")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeleteVariant(context.Background(), 9, []int64{7}, model.VariantOther))
	require.NoError(t, repo.DeleteVariant(context.Background(), 9, nil, model.VariantOther))
	assert.NoError(t, mock.ExpectationsWereMet())
}
