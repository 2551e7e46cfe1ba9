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

const answerColumns = `id, doctor_id, section_id, question_id, patient_id, value, variant, created_at, updated_at`

type answerRepository struct {
	BaseRepository
}

func NewAnswerRepository(base BaseRepository) repository.AnswerRepository {
	return &answerRepository{base}
}

func (r *answerRepository) BulkInsert(ctx context.Context, answers []*model.Answer) error {
	if len(answers) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, a := range answers {
		a.Touch(now)
	}

	query := `
		INSERT INTO answers (doctor_id, section_id, question_id, patient_id, value, variant, created_at, updated_at)
		VALUES (:doctor_id, :section_id, :question_id, :patient_id, :value, :variant, :created_at, :updated_at)
		ON CONFLICT (patient_id, question_id, variant)
		DO UPDATE SET value = EXCLUDED.value, doctor_id = EXCLUDED.doctor_id, updated_at = EXCLUDED.updated_at
	`
	if _, err := sqlx.NamedExecContext(ctx, r.ext(ctx), query, answers); err != nil {
		return fmt.Errorf("failed to insert answers: %w", err)
	}
	return nil
}

func (r *answerRepository) ExistingKeys(ctx context.Context, patientID int64, questionIDs []int64) (map[model.AnswerKey]bool, error) {
	existing := make(map[model.AnswerKey]bool)
	if len(questionIDs) == 0 {
		return existing, nil
	}

	query := `SELECT question_id, variant FROM answers WHERE patient_id = $1 AND question_id = ANY($2)`
	var keys []model.AnswerKey
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &keys, query, patientID, pq.Array(questionIDs)); err != nil {
		return nil, fmt.Errorf("failed to check existing answers: %w", err)
	}
	for _, k := range keys {
		existing[k] = true
	}
	return existing, nil
}

func (r *answerRepository) UpdateValue(ctx context.Context, patientID int64, key model.AnswerKey, value string, at time.Time) error {
	query := `
		UPDATE answers SET value = $1, updated_at = $2
		WHERE patient_id = $3 AND question_id = $4 AND variant = $5
	`
	res, err := r.ext(ctx).ExecContext(ctx, query, value, at, patientID, key.QuestionID, key.Variant)
	if err != nil {
		return fmt.Errorf("failed to update answer: %w", err)
	}
	return expectRow(res, "answer")
}

func (r *answerRepository) ListByQuestions(ctx context.Context, patientIDs, questionIDs []int64) ([]*model.Answer, error) {
	if len(patientIDs) == 0 || len(questionIDs) == 0 {
		return []*model.Answer{}, nil
	}

	query := `SELECT ` + answerColumns + ` FROM answers WHERE patient_id = ANY($1) AND question_id = ANY($2)`
	var answers []*model.Answer
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &answers, query, pq.Array(patientIDs), pq.Array(questionIDs)); err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	return answers, nil
}

func (r *answerRepository) ListBySection(ctx context.Context, patientID, sectionID int64) ([]*model.Answer, error) {
	query := `SELECT ` + answerColumns + ` FROM answers WHERE patient_id = $1 AND section_id = $2 ORDER BY question_id, variant`
	var answers []*model.Answer
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &answers, query, patientID, sectionID); err != nil {
		return nil, fmt.Errorf("failed to list section answers: %w", err)
	}
	return answers, nil
}

func (r *answerRepository) DeleteVariant(ctx context.Context, patientID int64, questionIDs []int64, variant model.Variant) error {
	if len(questionIDs) == 0 {
		return nil
	}
	query := `DELETE FROM answers WHERE patient_id = $1 AND variant = $2 AND question_id = ANY($3)`
	if _, err := r.ext(ctx).ExecContext(ctx, query, patientID, variant, pq.Array(questionIDs)); err != nil {
		return fmt.Errorf("failed to delete answers: %w", err)
	}
	return nil
}

func (r *answerRepository) DeleteByPatient(ctx context.Context, patientID int64) error {
	if _, err := r.ext(ctx).ExecContext(ctx, `DELETE FROM answers WHERE patient_id = $1`, patientID); err != nil {
		return fmt.Errorf("failed to delete answers: %w", err)
	}
	return nil
}
