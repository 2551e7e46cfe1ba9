package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
)

func TestWithinTxRestoresOnError(t *testing.T) {
	store := New()
	repos := store.Repositories()
	ctx := context.Background()

	boom := errors.New("boom")
	var created model.Patient
	err := repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		created = model.Patient{DoctorID: 1}
		if err := repos.Patients.Create(ctx, &created); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repos.Patients.Get(ctx, created.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAnswerUpsertKeepsOneRow(t *testing.T) {
	store := New()
	repos := store.Repositories()
	ctx := context.Background()

	p := &model.Patient{DoctorID: 1}
	require.NoError(t, repos.Patients.Create(ctx, p))

	for _, v := range []string{`"first"`, `"second"`} {
		require.NoError(t, repos.Answers.BulkInsert(ctx, []*model.Answer{
			{PatientID: p.ID, QuestionID: 1, SectionID: 1, DoctorID: 1, Value: v, Variant: model.VariantPrimary},
		}))
	}

	assert.Equal(t, 1, store.AnswerCount(p.ID, 1, model.VariantPrimary))
	answers, err := repos.Answers.ListBySection(ctx, p.ID, 1)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, `"second"`, answers[0].Value)
}

func TestPageOrdersByUpdatedAtThenID(t *testing.T) {
	store := New()
	repos := store.Repositories()
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []int64
	for i := 0; i < 3; i++ {
		p := &model.Patient{DoctorID: 1}
		require.NoError(t, repos.Patients.Create(ctx, p))
		store.SetUpdatedAt(p.ID, base)
		ids = append(ids, p.ID)
	}
	store.SetUpdatedAt(ids[0], base.Add(time.Hour))

	q := &model.ListQuery{Actor: model.Actor{ID: 1}, Scope: model.ScopeAll, Pagination: model.Pagination{Page: 1, PageSize: 10}}
	patients, total, err := repos.Patients.Page(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []int64{ids[0], ids[2], ids[1]}, []int64{patients[0].ID, patients[1].ID, patients[2].ID})
}

func TestScoreReverseClamps(t *testing.T) {
	repos := New().Repositories()
	ctx := context.Background()

	_, err := repos.Scores.Increment(ctx, 4, 2, 2)
	require.NoError(t, err)
	require.NoError(t, repos.Scores.Reverse(ctx, 4, 5))

	score, err := repos.Scores.Get(ctx, 4)
	require.NoError(t, err)
	assert.Zero(t, score.Score)
	assert.Zero(t, score.Threshold)
}
