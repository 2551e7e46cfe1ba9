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
	"github.com/jwalitptl/intake-api/internal/repository"
)

func TestPatientCreateReturnsID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPatientRepository(NewBaseRepository(db))

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO patients (doctor_id, hidden, created_at, updated_at)")).
		WithArgs(int64(3), true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(41))

	p := &model.Patient{DoctorID: 3, Hidden: true}
	require.NoError(t, repo.Create(context.Background(), p))
	assert.Equal(t, int64(41), p.ID)
	assert.False(t, p.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientGetNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPatientRepository(NewBaseRepository(db))

	mock.ExpectQuery(regexp.QuoteMeta("FROM patients WHERE id = $1")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "doctor_id", "hidden", "created_at", "updated_at"}))

	_, err := repo.Get(context.Background(), 5)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPatientPagePaginatesInDatabase(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPatientRepository(NewBaseRepository(db))
	now := time.Now()

	submitted := true
	q := &model.ListQuery{
		Actor:      model.Actor{ID: 3, Role: model.RoleDoctor},
		Scope:      model.ScopeMine,
		Pagination: model.Pagination{Page: 2, PageSize: 10},
		Filter: model.PatientFilter{
			Answers:      map[int64]string{2: "City Hospital"},
			SubmitStatus: &submitted,
		},
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM patients p WHERE p.hidden = FALSE AND p.doctor_id = $1 AND EXISTS")).
		WithArgs(int64(3), int64(2), `"City Hospital"`, model.StatusKeySubmit).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY p.updated_at DESC, p.id DESC LIMIT $5 OFFSET $6")).
		WithArgs(int64(3), int64(2), `"City Hospital"`, model.StatusKeySubmit, 10, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "doctor_id", "hidden", "created_at", "updated_at"}).
			AddRow(2, 3, false, now, now).
			AddRow(1, 3, false, now, now))

	patients, total, err := repo.Page(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	require.Len(t, patients, 2)
	assert.Equal(t, int64(2), patients[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientPageSkipsSelectWhenEmpty(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPatientRepository(NewBaseRepository(db))

	q := &model.ListQuery{
		Actor:      model.Actor{ID: 1, Role: model.RoleAdmin},
		Scope:      model.ScopeAll,
		Pagination: model.Pagination{Page: 1, PageSize: 10},
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM patients p")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	patients, total, err := repo.Page(context.Background(), q)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, patients)
	assert.NoError(t, mock.ExpectationsWereMet())
}
