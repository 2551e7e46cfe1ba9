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

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (doctor_id, hidden, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	now := time.Now().UTC()
	patient.CreatedAt = now
	patient.UpdatedAt = now

	err := r.ext(ctx).QueryRowxContext(ctx, query,
		patient.DoctorID,
		patient.Hidden,
		patient.CreatedAt,
		patient.UpdatedAt,
	).Scan(&patient.ID)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id int64) (*model.Patient, error) {
	query := `SELECT id, doctor_id, hidden, created_at, updated_at FROM patients WHERE id = $1`
	var patient model.Patient
	if err := sqlx.GetContext(ctx, r.ext(ctx), &patient, query, id); err != nil {
		return nil, notFound(err, "patient")
	}
	return &patient, nil
}

func (r *patientRepository) GetMany(ctx context.Context, ids []int64) ([]*model.Patient, error) {
	if len(ids) == 0 {
		return []*model.Patient{}, nil
	}
	query := `SELECT id, doctor_id, hidden, created_at, updated_at FROM patients WHERE id = ANY($1)`
	var patients []*model.Patient
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &patients, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to get patients: %w", err)
	}
	return patients, nil
}

func (r *patientRepository) Touch(ctx context.Context, id int64, at time.Time) error {
	res, err := r.ext(ctx).ExecContext(ctx, `UPDATE patients SET updated_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("failed to touch patient: %w", err)
	}
	return expectRow(res, "patient")
}

func (r *patientRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.ext(ctx).ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	return expectRow(res, "patient")
}

func (r *patientRepository) Page(ctx context.Context, q *model.ListQuery) ([]*model.Patient, int, error) {
	a := &args{}
	w := listingWhere(q, a)

	var total int
	if err := sqlx.GetContext(ctx, r.ext(ctx), &total, `SELECT COUNT(*) FROM patients p`+w.String(), a.values...); err != nil {
		return nil, 0, fmt.Errorf("failed to count patients: %w", err)
	}
	if total == 0 {
		return []*model.Patient{}, 0, nil
	}

	query := fmt.Sprintf(`
		SELECT p.id, p.doctor_id, p.hidden, p.created_at, p.updated_at
		FROM patients p%s
		ORDER BY p.updated_at DESC, p.id DESC
		LIMIT %s OFFSET %s
	`, w.String(), a.add(q.Limit()), a.add(q.Offset()))

	var patients []*model.Patient
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &patients, query, a.values...); err != nil {
		return nil, 0, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, total, nil
}
