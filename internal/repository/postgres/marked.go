package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
)

type markedPatientRepository struct {
	BaseRepository
}

func NewMarkedPatientRepository(base BaseRepository) repository.MarkedPatientRepository {
	return &markedPatientRepository{base}
}

func (r *markedPatientRepository) Mark(ctx context.Context, userID, patientID int64) (bool, error) {
	query := `
		INSERT INTO marked_patients (user_id, patient_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, patient_id) DO NOTHING
	`
	res, err := r.ext(ctx).ExecContext(ctx, query, userID, patientID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to mark patient: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *markedPatientRepository) Unmark(ctx context.Context, userID, patientID int64) (bool, error) {
	res, err := r.ext(ctx).ExecContext(ctx,
		`DELETE FROM marked_patients WHERE user_id = $1 AND patient_id = $2`, userID, patientID)
	if err != nil {
		return false, fmt.Errorf("failed to unmark patient: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *markedPatientRepository) PatientIDs(ctx context.Context, userID int64, patientIDs []int64) (map[int64]bool, error) {
	marked := make(map[int64]bool)
	if len(patientIDs) == 0 {
		return marked, nil
	}

	var ids []int64
	query := `SELECT patient_id FROM marked_patients WHERE user_id = $1 AND patient_id = ANY($2)`
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &ids, query, userID, pq.Array(patientIDs)); err != nil {
		return nil, fmt.Errorf("failed to list marked patients: %w", err)
	}
	for _, id := range ids {
		marked[id] = true
	}
	return marked, nil
}

func (r *markedPatientRepository) Page(ctx context.Context, userID int64, p model.Pagination, includeHidden bool) ([]int64, int, error) {
	a := &args{}
	w := &where{}
	w.and("m.user_id = " + a.add(userID))
	if !includeHidden {
		w.and("p.hidden = FALSE")
	}
	from := ` FROM marked_patients m JOIN patients p ON p.id = m.patient_id` + w.String()

	var total int
	if err := sqlx.GetContext(ctx, r.ext(ctx), &total, `SELECT COUNT(*)`+from, a.values...); err != nil {
		return nil, 0, fmt.Errorf("failed to count marked patients: %w", err)
	}
	if total == 0 {
		return []int64{}, 0, nil
	}

	query := `SELECT m.patient_id` + from +
		fmt.Sprintf(` ORDER BY m.created_at DESC, m.patient_id DESC LIMIT %s OFFSET %s`, a.add(p.Limit()), a.add(p.Offset()))

	var ids []int64
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &ids, query, a.values...); err != nil {
		return nil, 0, fmt.Errorf("failed to page marked patients: %w", err)
	}
	return ids, total, nil
}

func (r *markedPatientRepository) DeleteByPatient(ctx context.Context, patientID int64) error {
	if _, err := r.ext(ctx).ExecContext(ctx, `DELETE FROM marked_patients WHERE patient_id = $1`, patientID); err != nil {
		return fmt.Errorf("failed to delete marks: %w", err)
	}
	return nil
}
