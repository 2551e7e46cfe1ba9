package intake

import (
	"context"
	"strconv"

	"github.com/samber/lo"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/service/scoring"
	apperrors "github.com/jwalitptl/intake-api/pkg/errors"
	"github.com/jwalitptl/intake-api/pkg/event"
)

// UpdatePatientSection writes one section's answers for a patient. Existing answers
// are overwritten, new ones inserted, the section flag is set, and submitting the
// outcome section records the outcome. Everything commits or nothing does.
func (s *Service) UpdatePatientSection(ctx context.Context, actor model.Actor, patientID, sectionID int64, payload model.SectionPayload) (*model.SectionUpdateResult, error) {
	cat, err := s.catalog.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !cat.HasSection(sectionID) {
		return nil, apperrors.NotFound("section", nil)
	}
	patient, err := s.repos.Patients.Get(ctx, patientID)
	if err != nil {
		return nil, notFound(err, "patient")
	}

	prepared := s.prepare(ctx, cat, payload.Entries(), sectionID)
	questionIDs := lo.Uniq(lo.Map(prepared, func(p preparedAnswer, _ int) int64 { return p.QuestionID }))

	result := &model.SectionUpdateResult{PatientID: patientID, SectionID: sectionID}
	var outcome *scoring.Outcome

	err = s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		now := s.now()
		sectionKey := model.SectionKey(sectionID)

		existing, err := s.repos.Answers.ExistingKeys(ctx, patientID, questionIDs)
		if err != nil {
			return err
		}

		var inserts []*model.Answer
		var stale []int64
		result.Updated = 0
		for _, p := range prepared {
			if p.DropsOther && existing[model.AnswerKey{QuestionID: p.QuestionID, Variant: model.VariantOther}] {
				stale = append(stale, p.QuestionID)
			}
			if existing[p.key()] {
				if err := s.repos.Answers.UpdateValue(ctx, patientID, p.key(), p.Value, now); err != nil {
					return err
				}
				result.Updated++
				continue
			}
			inserts = append(inserts, p.row(patientID, actor.ID))
		}
		if err := s.repos.Answers.BulkInsert(ctx, inserts); err != nil {
			return err
		}
		result.Inserted = len(inserts)

		if err := s.repos.Answers.DeleteVariant(ctx, patientID, stale, model.VariantOther); err != nil {
			return err
		}

		changed, err := s.repos.Statuses.Complete(ctx, patientID, sectionKey, actor.ID, now)
		if err != nil {
			return err
		}
		if !changed {
			if err := s.repos.Statuses.Touch(ctx, patientID, sectionKey, now); err != nil {
				return err
			}
		}

		if sectionID == s.cfg.OutcomeSectionID {
			outcome, err = s.scorer.RecordOutcome(ctx, patientID, actor.ID)
			if err != nil {
				return err
			}
		}

		return s.repos.Patients.Touch(ctx, patientID, now)
	})

	section := strconv.FormatInt(sectionID, 10)
	if err != nil {
		s.metrics.SectionUpdates.WithLabelValues(section, "failed").Inc()
		return nil, wrap(notFound(err, "patient"), "update section")
	}
	s.metrics.SectionUpdates.WithLabelValues(section, "ok").Inc()
	s.metrics.AnswersWritten.WithLabelValues("insert").Add(float64(result.Inserted))
	s.metrics.AnswersWritten.WithLabelValues("update").Add(float64(result.Updated))

	updated := event.New(event.SectionUpdated, patientID, actor.ID)
	updated.OwnerID = patient.DoctorID
	updated.SectionID = sectionID
	events := []event.Event{updated}

	if outcome != nil && outcome.NewOutcome {
		result.NewOutcome = true
		s.metrics.OutcomesRecorded.Inc()
		s.metrics.ScoreAwarded.Add(float64(outcome.Points))

		recorded := event.New(event.OutcomeRecorded, patientID, actor.ID)
		recorded.OwnerID = patient.DoctorID
		recorded.SectionID = sectionID
		recorded.Score = outcome.Score.Score
		events = append(events, recorded)

		if outcome.MilestoneReached {
			s.metrics.MilestonesHit.Inc()
			milestone := event.New(event.MilestoneReached, patientID, actor.ID)
			milestone.Score = outcome.Score.Score
			events = append(events, milestone)
		}
	}

	s.logger.Info("section updated",
		"patient_id", patientID,
		"section_id", sectionID,
		"doctor_id", actor.ID,
		"inserted", result.Inserted,
		"updated", result.Updated,
		"new_outcome", result.NewOutcome)

	s.events.Publish(ctx, events...)
	return result, nil
}
