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

var summaryColumns = []string{
	"id", "doctor_id", "hidden", "created_at", "updated_at",
	"name_value", "hospital_value", "submit_status", "outcome_status",
	"doctor_name", "doctor_email", "doctor_hospital", "is_marked",
}

func TestListJoinedSingleQuery(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProjectionRepository(NewBaseRepository(db))
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	q := &model.ListQuery{
		Actor:      model.Actor{ID: 3, Role: model.RoleDoctor},
		Scope:      model.ScopeAll,
		Pagination: model.Pagination{Page: 1, PageSize: 10},
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM patients p WHERE p.hidden = FALSE")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN answers an ON an.patient_id = p.id AND an.question_id = $1")).
		WithArgs(int64(1), int64(2), model.StatusKeySubmit, model.StatusKeyOutcome, int64(3), 10, 0).
		WillReturnRows(sqlmock.NewRows(summaryColumns).
			AddRow(8, 3, false, now, now, `"Jane Doe"`, `"City Hospital"`, false, false, "Dr. Who", "who@example.com", "City", true).
			AddRow(7, 5, false, now, now, nil, nil, nil, nil, nil, nil, nil, false))

	rows, total, err := repo.ListJoined(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, rows, 2)

	first := rows[0].Summary()
	assert.Equal(t, "Jane Doe", first.Name)
	assert.Equal(t, "City Hospital", first.Hospital)
	assert.True(t, first.IsMarked)
	assert.Equal(t, "Dr. Who", first.Doctor.Name)

	second := rows[1].Summary()
	assert.Equal(t, "", second.Name)
	assert.Equal(t, int64(5), second.Doctor.ID)
	assert.False(t, second.Sections.SubmitStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}
