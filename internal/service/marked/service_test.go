package marked

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
	"github.com/jwalitptl/intake-api/internal/repository/memory"
	"github.com/jwalitptl/intake-api/internal/service/projection"
	"github.com/jwalitptl/intake-api/pkg/logger"
)

func setup(t *testing.T) (*Service, *repository.Repositories, model.Actor, []int64) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	repos := store.Repositories()
	doctor := store.AddUser(&model.User{Name: "Dr One", Role: model.RoleDoctor})

	var ids []int64
	for i, hidden := range []bool{false, false, true} {
		p := &model.Patient{DoctorID: doctor.ID, Hidden: hidden}
		require.NoError(t, repos.Patients.Create(ctx, p))
		require.NoError(t, repos.Answers.BulkInsert(ctx, []*model.Answer{{
			PatientID:  p.ID,
			QuestionID: model.QuestionIDName,
			Variant:    model.VariantPrimary,
			Value:      model.EncodeString([]string{"Ann", "Ben", "Cal"}[i]),
		}}))
		store.SetUpdatedAt(p.ID, time.Date(2024, 1, 1, i, 0, 0, 0, time.UTC))
		ids = append(ids, p.ID)
	}

	svc := NewService(repos, projection.NewBatchLister(repos), 10, 100, logger.Nop())
	return svc, repos, model.Actor{ID: doctor.ID, Role: model.RoleDoctor}, ids
}

func TestMarkIsIdempotent(t *testing.T) {
	svc, _, actor, ids := setup(t)
	ctx := context.Background()

	res, err := svc.Mark(ctx, actor, ids[0])
	require.NoError(t, err)
	assert.Equal(t, model.MarkResultMarked, res)
	assert.True(t, res.OK())

	res, err = svc.Mark(ctx, actor, ids[0])
	require.NoError(t, err)
	assert.Equal(t, model.MarkResultAlreadyMarked, res)
	assert.False(t, res.OK())
}

func TestMarkUnknownOrHiddenPatient(t *testing.T) {
	svc, _, actor, ids := setup(t)
	ctx := context.Background()

	res, err := svc.Mark(ctx, actor, 9999)
	require.NoError(t, err)
	assert.Equal(t, model.MarkResultNotFound, res)

	res, err = svc.Mark(ctx, actor, ids[2])
	require.NoError(t, err)
	assert.Equal(t, model.MarkResultNotFound, res)

	admin := model.Actor{ID: 500, Role: model.RoleAdmin}
	res, err = svc.Mark(ctx, admin, ids[2])
	require.NoError(t, err)
	assert.Equal(t, model.MarkResultMarked, res)
}

func TestUnmark(t *testing.T) {
	svc, _, actor, ids := setup(t)
	ctx := context.Background()

	res, err := svc.Unmark(ctx, actor, ids[1])
	require.NoError(t, err)
	assert.Equal(t, model.MarkResultNotMarked, res)

	_, err = svc.Mark(ctx, actor, ids[1])
	require.NoError(t, err)
	res, err = svc.Unmark(ctx, actor, ids[1])
	require.NoError(t, err)
	assert.Equal(t, model.MarkResultUnmarked, res)
}

func TestListNewestMarkFirst(t *testing.T) {
	svc, _, actor, ids := setup(t)
	ctx := context.Background()

	// patient 0 is the oldest by updated_at but the newest mark
	for _, id := range []int64{ids[1], ids[0]} {
		_, err := svc.Mark(ctx, actor, id)
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, actor, model.Pagination{})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, []string{"Ann", "Ben"}, []string{page.Data[0].Name, page.Data[1].Name})
	for _, s := range page.Data {
		assert.True(t, s.IsMarked)
		assert.Equal(t, "Dr One", s.Doctor.Name)
	}

	other, err := svc.List(ctx, model.Actor{ID: 77, Role: model.RoleDoctor}, model.Pagination{})
	require.NoError(t, err)
	assert.Empty(t, other.Data)
	assert.Zero(t, other.Total)
}

func TestListPaginates(t *testing.T) {
	svc, _, actor, ids := setup(t)
	ctx := context.Background()
	for _, id := range ids[:2] {
		_, err := svc.Mark(ctx, actor, id)
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, actor, model.Pagination{Page: 2, PageSize: 1})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, ids[0], page.Data[0].ID)
	assert.Equal(t, 2, page.LastPage)
}
