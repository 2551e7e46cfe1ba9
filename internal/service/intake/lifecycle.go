package intake

import (
	"context"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/pkg/event"
)

// SubmitPatient sets submit_status. Submitting twice is a no-op that reports Changed=false.
func (s *Service) SubmitPatient(ctx context.Context, actor model.Actor, patientID int64) (*model.SubmitResult, error) {
	patient, err := s.repos.Patients.Get(ctx, patientID)
	if err != nil {
		return nil, notFound(err, "patient")
	}

	result := &model.SubmitResult{PatientID: patientID}
	err = s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		now := s.now()

		changed, err := s.repos.Statuses.Complete(ctx, patientID, model.StatusKeySubmit, actor.ID, now)
		if err != nil || !changed {
			return err
		}

		result.Changed = true
		return s.repos.Patients.Touch(ctx, patientID, now)
	})
	if err != nil {
		return nil, wrap(notFound(err, "patient"), "submit patient")
	}

	if result.Changed {
		s.logger.Info("patient submitted", "patient_id", patientID, "doctor_id", actor.ID)
		e := event.New(event.PatientSubmitted, patientID, actor.ID)
		e.OwnerID = patient.DoctorID
		s.events.Publish(ctx, e)
	}
	return result, nil
}

// DeletePatient removes a patient with its answers, statuses and marks, and takes
// back any score the patient earned. Score history rows stay as the audit trail.
func (s *Service) DeletePatient(ctx context.Context, actor model.Actor, patientID int64) (*model.DeleteResult, error) {
	patient, err := s.repos.Patients.Get(ctx, patientID)
	if err != nil {
		return nil, notFound(err, "patient")
	}

	var reversed map[int64]int
	err = s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if reversed, err = s.scorer.ReversePatient(ctx, patientID); err != nil {
			return err
		}
		if err := s.repos.Answers.DeleteByPatient(ctx, patientID); err != nil {
			return err
		}
		if err := s.repos.Statuses.DeleteByPatient(ctx, patientID); err != nil {
			return err
		}
		if err := s.repos.Marked.DeleteByPatient(ctx, patientID); err != nil {
			return err
		}
		return s.repos.Patients.Delete(ctx, patientID)
	})
	if err != nil {
		return nil, wrap(notFound(err, "patient"), "delete patient")
	}

	s.metrics.PatientsDeleted.Inc()
	s.logger.Info("patient deleted",
		"patient_id", patientID,
		"deleted_by", actor.ID,
		"reversed_doctors", len(reversed))

	e := event.New(event.PatientDeleted, patientID, actor.ID)
	e.OwnerID = patient.DoctorID
	e.Reversed = reversed
	s.events.Publish(ctx, e)

	return &model.DeleteResult{PatientID: patientID, Reversed: reversed}, nil
}
