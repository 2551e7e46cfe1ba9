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

const statusColumns = `id, doctor_id, patient_id, key, status, created_at, updated_at`

type statusRepository struct {
	BaseRepository
}

func NewStatusRepository(base BaseRepository) repository.StatusRepository {
	return &statusRepository{base}
}

func (r *statusRepository) BulkInsert(ctx context.Context, statuses []*model.PatientStatus) error {
	if len(statuses) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, s := range statuses {
		s.CreatedAt = now
		s.UpdatedAt = now
	}

	query := `
		INSERT INTO patient_statuses (doctor_id, patient_id, key, status, created_at, updated_at)
		VALUES (:doctor_id, :patient_id, :key, :status, :created_at, :updated_at)
		ON CONFLICT (patient_id, key) DO NOTHING
	`
	if _, err := sqlx.NamedExecContext(ctx, r.ext(ctx), query, statuses); err != nil {
		return fmt.Errorf("failed to insert statuses: %w", err)
	}
	return nil
}

func (r *statusRepository) Get(ctx context.Context, patientID int64, key string) (*model.PatientStatus, error) {
	query := `SELECT ` + statusColumns + ` FROM patient_statuses WHERE patient_id = $1 AND key = $2`
	var status model.PatientStatus
	if err := sqlx.GetContext(ctx, r.ext(ctx), &status, query, patientID, key); err != nil {
		return nil, notFound(err, "patient status")
	}
	return &status, nil
}

// Complete is a single guarded upsert. A row that is already true is left alone and
// affects zero rows, so a racing transaction re-checks the WHERE after the first commits.
func (r *statusRepository) Complete(ctx context.Context, patientID int64, key string, doctorID int64, at time.Time) (bool, error) {
	query := `
		INSERT INTO patient_statuses (doctor_id, patient_id, key, status, created_at, updated_at)
		VALUES ($1, $2, $3, TRUE, $4, $4)
		ON CONFLICT (patient_id, key) DO UPDATE
		SET status = TRUE, doctor_id = EXCLUDED.doctor_id, updated_at = EXCLUDED.updated_at
		WHERE patient_statuses.status = FALSE
	`
	res, err := r.ext(ctx).ExecContext(ctx, query, doctorID, patientID, key, at)
	if err != nil {
		return false, fmt.Errorf("failed to complete status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to complete status: %w", err)
	}
	return n == 1, nil
}

func (r *statusRepository) Touch(ctx context.Context, patientID int64, key string, at time.Time) error {
	query := `UPDATE patient_statuses SET updated_at = $1 WHERE patient_id = $2 AND key = $3`
	res, err := r.ext(ctx).ExecContext(ctx, query, at, patientID, key)
	if err != nil {
		return fmt.Errorf("failed to touch status: %w", err)
	}
	return expectRow(res, "patient status")
}

func (r *statusRepository) ListByKeys(ctx context.Context, patientIDs []int64, keys []string) ([]*model.PatientStatus, error) {
	if len(patientIDs) == 0 || len(keys) == 0 {
		return []*model.PatientStatus{}, nil
	}

	query := `SELECT ` + statusColumns + ` FROM patient_statuses WHERE patient_id = ANY($1) AND key = ANY($2)`
	var statuses []*model.PatientStatus
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &statuses, query, pq.Array(patientIDs), pq.Array(keys)); err != nil {
		return nil, fmt.Errorf("failed to list statuses: %w", err)
	}
	return statuses, nil
}

func (r *statusRepository) ListByPatient(ctx context.Context, patientID int64) ([]*model.PatientStatus, error) {
	query := `SELECT ` + statusColumns + ` FROM patient_statuses WHERE patient_id = $1 ORDER BY key`
	var statuses []*model.PatientStatus
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &statuses, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list patient statuses: %w", err)
	}
	return statuses, nil
}

func (r *statusRepository) DeleteByPatient(ctx context.Context, patientID int64) error {
	if _, err := r.ext(ctx).ExecContext(ctx, `DELETE FROM patient_statuses WHERE patient_id = $1`, patientID); err != nil {
		return fmt.Errorf("failed to delete statuses: %w", err)
	}
	return nil
}
