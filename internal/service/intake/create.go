package intake

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/jwalitptl/intake-api/internal/model"
	apperrors "github.com/jwalitptl/intake-api/pkg/errors"
	"github.com/jwalitptl/intake-api/pkg/event"
)

// CreatePatient registers a patient with the answers in payload. Patients created by
// elevated actors start hidden. The new patient begins with its first section
// complete and submit/outcome unset.
func (s *Service) CreatePatient(ctx context.Context, actor model.Actor, payload model.SectionPayload) (*model.CreatePatientResult, error) {
	cat, err := s.catalog.Load(ctx)
	if err != nil {
		return nil, err
	}
	firstSection, ok := cat.FirstSection()
	if !ok {
		return nil, apperrors.Internal(fmt.Errorf("question catalog is empty"))
	}

	prepared := s.prepare(ctx, cat, payload.Entries(), 0)

	patient := &model.Patient{DoctorID: actor.ID, Hidden: actor.Elevated()}
	doctorID := actor.ID

	err = s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Patients.Create(ctx, patient); err != nil {
			return err
		}

		answers := lo.Map(prepared, func(p preparedAnswer, _ int) *model.Answer { return p.row(patient.ID, doctorID) })
		if err := s.repos.Answers.BulkInsert(ctx, answers); err != nil {
			return err
		}

		return s.repos.Statuses.BulkInsert(ctx, []*model.PatientStatus{
			{DoctorID: &doctorID, PatientID: patient.ID, Key: model.SectionKey(firstSection), Status: true},
			{DoctorID: &doctorID, PatientID: patient.ID, Key: model.StatusKeySubmit, Status: false},
			{DoctorID: &doctorID, PatientID: patient.ID, Key: model.StatusKeyOutcome, Status: false},
		})
	})
	if err != nil {
		return nil, wrap(err, "create patient")
	}

	name := displayName(prepared)
	s.metrics.PatientsCreated.Inc()
	s.metrics.AnswersWritten.WithLabelValues("insert").Add(float64(len(prepared)))
	s.logger.Info("patient created",
		"patient_id", patient.ID,
		"doctor_id", actor.ID,
		"hidden", patient.Hidden,
		"answers", len(prepared))

	e := event.New(event.PatientCreated, patient.ID, actor.ID)
	e.OwnerID = actor.ID
	e.PatientName = name
	s.events.Publish(ctx, e)

	return &model.CreatePatientResult{
		PatientID:    patient.ID,
		Name:         name,
		SubmitStatus: false,
	}, nil
}
