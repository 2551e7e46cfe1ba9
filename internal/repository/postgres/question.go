package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
)

type questionRepository struct {
	BaseRepository
}

func NewQuestionRepository(base BaseRepository) repository.QuestionRepository {
	return &questionRepository{base}
}

func (r *questionRepository) All(ctx context.Context) ([]*model.Question, error) {
	query := `SELECT id, section_id, type, mandatory, label FROM questions ORDER BY id`
	var questions []*model.Question
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &questions, query); err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	return questions, nil
}
