package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/intake-api/internal/repository"
)

// NewRepositories wires every repository over one pool sharing one transaction scope.
func NewRepositories(db *sqlx.DB) *repository.Repositories {
	base := NewBaseRepository(db)
	return &repository.Repositories{
		Tx:            base,
		Patients:      NewPatientRepository(base),
		Questions:     NewQuestionRepository(base),
		Answers:       NewAnswerRepository(base),
		Statuses:      NewStatusRepository(base),
		Scores:        NewScoreRepository(base),
		Users:         NewUserRepository(base),
		Notifications: NewNotificationRepository(base),
		Marked:        NewMarkedPatientRepository(base),
		Projection:    NewProjectionRepository(base),
		Stats:         NewStatsRepository(base),
	}
}
