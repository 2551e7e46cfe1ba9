package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
)

type projectionRepository struct {
	BaseRepository
}

func NewProjectionRepository(base BaseRepository) repository.ProjectionRepository {
	return &projectionRepository{base}
}

// ListJoined resolves name, hospital, both workflow flags, the doctor and the caller's
// bookmark in one statement. Pagination and ordering stay in the database.
func (r *projectionRepository) ListJoined(ctx context.Context, q *model.ListQuery) ([]*model.SummaryRow, int, error) {
	countArgs := &args{}
	countWhere := listingWhere(q, countArgs)

	var total int
	if err := sqlx.GetContext(ctx, r.ext(ctx), &total, `SELECT COUNT(*) FROM patients p`+countWhere.String(), countArgs.values...); err != nil {
		return nil, 0, fmt.Errorf("failed to count patients: %w", err)
	}
	if total == 0 {
		return []*model.SummaryRow{}, 0, nil
	}

	a := &args{}
	joins := fmt.Sprintf(`
		LEFT JOIN answers an ON an.patient_id = p.id AND an.question_id = %s AND an.variant = 'primary'
		LEFT JOIN answers ah ON ah.patient_id = p.id AND ah.question_id = %s AND ah.variant = 'primary'
		LEFT JOIN patient_statuses ss ON ss.patient_id = p.id AND ss.key = %s
		LEFT JOIN patient_statuses os ON os.patient_id = p.id AND os.key = %s
		LEFT JOIN users u ON u.id = p.doctor_id
		LEFT JOIN marked_patients mp ON mp.patient_id = p.id AND mp.user_id = %s`,
		a.add(model.QuestionIDName),
		a.add(model.QuestionIDHospital),
		a.add(model.StatusKeySubmit),
		a.add(model.StatusKeyOutcome),
		a.add(q.Actor.ID),
	)
	w := listingWhere(q, a)

	query := fmt.Sprintf(`
		SELECT p.id, p.doctor_id, p.hidden, p.created_at, p.updated_at,
			an.value AS name_value,
			ah.value AS hospital_value,
			ss.status AS submit_status,
			os.status AS outcome_status,
			u.name AS doctor_name,
			u.email AS doctor_email,
			u.hospital AS doctor_hospital,
			(mp.user_id IS NOT NULL) AS is_marked
		FROM patients p%s%s
		ORDER BY p.updated_at DESC, p.id DESC
		LIMIT %s OFFSET %s
	`, joins, w.String(), a.add(q.Limit()), a.add(q.Offset()))

	var rows []*model.SummaryRow
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &rows, query, a.values...); err != nil {
		return nil, 0, fmt.Errorf("failed to list patient summaries: %w", err)
	}
	return rows, total, nil
}
