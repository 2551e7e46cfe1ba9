package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
)

type scoreRepository struct {
	BaseRepository
}

func NewScoreRepository(base BaseRepository) repository.ScoreRepository {
	return &scoreRepository{base}
}

func (r *scoreRepository) Increment(ctx context.Context, doctorID int64, points, step int) (*model.Score, error) {
	query := `
		INSERT INTO scores (doctor_id, score, threshold, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (doctor_id) DO UPDATE SET
			score = scores.score + EXCLUDED.score,
			threshold = scores.threshold + EXCLUDED.threshold,
			updated_at = EXCLUDED.updated_at
		RETURNING doctor_id, score, threshold, updated_at
	`
	var score model.Score
	if err := sqlx.GetContext(ctx, r.ext(ctx), &score, query, doctorID, points, step, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to increment score: %w", err)
	}
	return &score, nil
}

func (r *scoreRepository) ResetThreshold(ctx context.Context, doctorID int64) error {
	query := `UPDATE scores SET threshold = 0, updated_at = $1 WHERE doctor_id = $2`
	if _, err := r.ext(ctx).ExecContext(ctx, query, time.Now().UTC(), doctorID); err != nil {
		return fmt.Errorf("failed to reset threshold: %w", err)
	}
	return nil
}

func (r *scoreRepository) Reverse(ctx context.Context, doctorID int64, amount int) error {
	query := `
		UPDATE scores SET
			score = GREATEST(score - $1, 0),
			threshold = GREATEST(threshold - $1, 0),
			updated_at = $2
		WHERE doctor_id = $3
	`
	if _, err := r.ext(ctx).ExecContext(ctx, query, amount, time.Now().UTC(), doctorID); err != nil {
		return fmt.Errorf("failed to reverse score: %w", err)
	}
	return nil
}

func (r *scoreRepository) Get(ctx context.Context, doctorID int64) (*model.Score, error) {
	query := `SELECT doctor_id, score, threshold, updated_at FROM scores WHERE doctor_id = $1`
	var score model.Score
	if err := sqlx.GetContext(ctx, r.ext(ctx), &score, query, doctorID); err != nil {
		return nil, notFound(err, "score")
	}
	return &score, nil
}

func (r *scoreRepository) AppendHistory(ctx context.Context, entry *model.ScoreHistory) error {
	query := `
		INSERT INTO score_histories (doctor_id, patient_id, delta, action, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	err := r.ext(ctx).QueryRowxContext(ctx, query,
		entry.DoctorID,
		entry.PatientID,
		entry.Delta,
		entry.Action,
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to append score history: %w", err)
	}
	return nil
}

// SumByPatient returns only doctors with a positive net contribution.
func (r *scoreRepository) SumByPatient(ctx context.Context, patientID int64) ([]model.ScoreContribution, error) {
	query := `
		SELECT doctor_id, SUM(delta) AS total
		FROM score_histories
		WHERE patient_id = $1
		GROUP BY doctor_id
		HAVING SUM(delta) > 0
		ORDER BY doctor_id
	`
	var sums []model.ScoreContribution
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &sums, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to sum score history: %w", err)
	}
	return sums, nil
}

func (r *scoreRepository) ListHistory(ctx context.Context, doctorID int64, limit int) ([]*model.ScoreHistory, error) {
	query := `
		SELECT id, doctor_id, patient_id, delta, action, created_at
		FROM score_histories
		WHERE doctor_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	var history []*model.ScoreHistory
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &history, query, doctorID, limit); err != nil {
		return nil, fmt.Errorf("failed to list score history: %w", err)
	}
	return history, nil
}
