package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/intake-api/internal/model"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("record not found")

// All repository interfaces in one file
type (
	// Transactor runs fn inside one transaction. Repository calls made with the
	// ctx passed to fn join that transaction; a returned error rolls everything back.
	Transactor interface {
		WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id int64) (*model.Patient, error)
		GetMany(ctx context.Context, ids []int64) ([]*model.Patient, error)
		// Touch bumps updated_at so the patient moves to the top of listings.
		Touch(ctx context.Context, id int64, at time.Time) error
		Delete(ctx context.Context, id int64) error
		// Page returns one page of visible patients ordered by updated_at DESC, id DESC,
		// plus the total count for the same filter.
		Page(ctx context.Context, q *model.ListQuery) ([]*model.Patient, int, error)
	}

	QuestionRepository interface {
		All(ctx context.Context) ([]*model.Question, error)
	}

	AnswerRepository interface {
		// BulkInsert writes rows in one statement. A row colliding with an existing
		// (patient, question, variant) overwrites it.
		BulkInsert(ctx context.Context, answers []*model.Answer) error
		ExistingKeys(ctx context.Context, patientID int64, questionIDs []int64) (map[model.AnswerKey]bool, error)
		UpdateValue(ctx context.Context, patientID int64, key model.AnswerKey, value string, at time.Time) error
		ListByQuestions(ctx context.Context, patientIDs, questionIDs []int64) ([]*model.Answer, error)
		ListBySection(ctx context.Context, patientID, sectionID int64) ([]*model.Answer, error)
		// DeleteVariant removes the given variant of each listed question.
		DeleteVariant(ctx context.Context, patientID int64, questionIDs []int64, variant model.Variant) error
		DeleteByPatient(ctx context.Context, patientID int64) error
	}

	StatusRepository interface {
		BulkInsert(ctx context.Context, statuses []*model.PatientStatus) error
		Get(ctx context.Context, patientID int64, key string) (*model.PatientStatus, error)
		// Complete moves (patient, key) to true, creating the row if needed. It reports
		// false when the flag was already true; only one concurrent caller sees true.
		Complete(ctx context.Context, patientID int64, key string, doctorID int64, at time.Time) (bool, error)
		Touch(ctx context.Context, patientID int64, key string, at time.Time) error
		ListByKeys(ctx context.Context, patientIDs []int64, keys []string) ([]*model.PatientStatus, error)
		ListByPatient(ctx context.Context, patientID int64) ([]*model.PatientStatus, error)
		DeleteByPatient(ctx context.Context, patientID int64) error
	}

	ScoreRepository interface {
		// Increment adds points to score and step to threshold, creating the row if needed.
		Increment(ctx context.Context, doctorID int64, points, step int) (*model.Score, error)
		ResetThreshold(ctx context.Context, doctorID int64) error
		// Reverse subtracts amount from both counters, never going below zero.
		Reverse(ctx context.Context, doctorID int64, amount int) error
		Get(ctx context.Context, doctorID int64) (*model.Score, error)
		AppendHistory(ctx context.Context, entry *model.ScoreHistory) error
		SumByPatient(ctx context.Context, patientID int64) ([]model.ScoreContribution, error)
		ListHistory(ctx context.Context, doctorID int64, limit int) ([]*model.ScoreHistory, error)
	}

	UserRepository interface {
		Get(ctx context.Context, id int64) (*model.User, error)
		GetMany(ctx context.Context, ids []int64) ([]*model.User, error)
		ListByRole(ctx context.Context, role string) ([]*model.User, error)
	}

	NotificationRepository interface {
		BulkCreate(ctx context.Context, notifications []*model.Notification) error
		UpdatePushStatus(ctx context.Context, id uuid.UUID, status model.PushStatus) error
		// ListPendingPush returns failed or pending rows under maxAttempts, oldest first.
		ListPendingPush(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]*model.PendingPush, error)
		// DeleteSettledBefore removes notifications created before cutoff whose push
		// is no longer pending, returning how many were removed.
		DeleteSettledBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}

	MarkedPatientRepository interface {
		// Mark returns false when the pair already existed.
		Mark(ctx context.Context, userID, patientID int64) (bool, error)
		// Unmark returns false when there was nothing to remove.
		Unmark(ctx context.Context, userID, patientID int64) (bool, error)
		PatientIDs(ctx context.Context, userID int64, patientIDs []int64) (map[int64]bool, error)
		// Page returns marked patient ids, most recently marked first.
		Page(ctx context.Context, userID int64, p model.Pagination, includeHidden bool) ([]int64, int, error)
		DeleteByPatient(ctx context.Context, patientID int64) error
	}

	// ProjectionRepository builds listing rows in a single joined query.
	ProjectionRepository interface {
		ListJoined(ctx context.Context, q *model.ListQuery) ([]*model.SummaryRow, int, error)
	}

	StatsRepository interface {
		Counts(ctx context.Context, doctorID int64, includeHidden bool) (*model.PatientCounts, error)
	}
)

// Repositories bundles every repository over one store so services can share a transaction.
type Repositories struct {
	Tx            Transactor
	Patients      PatientRepository
	Questions     QuestionRepository
	Answers       AnswerRepository
	Statuses      StatusRepository
	Scores        ScoreRepository
	Users         UserRepository
	Notifications NotificationRepository
	Marked        MarkedPatientRepository
	Projection    ProjectionRepository
	Stats         StatsRepository
}
