package intake

import (
	"context"
	"errors"
	"sort"

	"github.com/samber/lo"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
	apperrors "github.com/jwalitptl/intake-api/pkg/errors"
)

// GetSection returns the stored answers of one section, one view per question.
func (s *Service) GetSection(ctx context.Context, patientID, sectionID int64) (*model.SectionAnswers, error) {
	cat, err := s.catalog.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !cat.HasSection(sectionID) {
		return nil, apperrors.NotFound("section", nil)
	}
	if _, err := s.repos.Patients.Get(ctx, patientID); err != nil {
		return nil, notFound(err, "patient")
	}

	answers, err := s.repos.Answers.ListBySection(ctx, patientID, sectionID)
	if err != nil {
		return nil, wrap(err, "list section answers")
	}

	views := make(map[int64]*model.AnswerView)
	for _, a := range answers {
		v, ok := views[a.QuestionID]
		if !ok {
			qtype, _ := cat.TypeOf(a.QuestionID)
			v = &model.AnswerView{QuestionID: a.QuestionID, Type: qtype}
			views[a.QuestionID] = v
		}
		if a.Variant == model.VariantOther {
			v.Other = model.RawValue(a.Value)
		} else {
			v.Value = model.RawValue(a.Value)
		}
	}

	out := &model.SectionAnswers{
		PatientID: patientID,
		SectionID: sectionID,
		Answers:   make([]*model.AnswerView, 0, len(views)),
	}
	for _, id := range sortedKeys(views) {
		out.Answers = append(out.Answers, views[id])
	}

	status, err := s.repos.Statuses.Get(ctx, patientID, model.SectionKey(sectionID))
	switch {
	case err == nil:
		out.Completed = status.Status
	case !errors.Is(err, repository.ErrNotFound):
		return nil, wrap(err, "read section status")
	}
	return out, nil
}

// Progress reports which sections are complete and whether the patient is submitted
// and has an outcome.
func (s *Service) Progress(ctx context.Context, patientID int64) (*model.Progress, error) {
	if _, err := s.repos.Patients.Get(ctx, patientID); err != nil {
		return nil, notFound(err, "patient")
	}
	statuses, err := s.repos.Statuses.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, wrap(err, "list statuses")
	}
	return model.NewProgress(patientID, statuses), nil
}

func sortedKeys(m map[int64]*model.AnswerView) []int64 {
	keys := lo.Keys(m)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
