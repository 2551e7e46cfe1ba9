// Package marked is the per-user bookmark overlay on top of the patient listing.
package marked

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
	"github.com/jwalitptl/intake-api/internal/service/projection"
	"github.com/jwalitptl/intake-api/pkg/logger"
)

type Service struct {
	repos     *repository.Repositories
	assembler *projection.BatchLister
	pageSize  int
	maxSize   int
	logger    *logger.Logger
}

func NewService(repos *repository.Repositories, assembler *projection.BatchLister, pageSize, maxSize int, log *logger.Logger) *Service {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Service{
		repos:     repos,
		assembler: assembler,
		pageSize:  pageSize,
		maxSize:   maxSize,
		logger:    log.With("marked"),
	}
}

// Mark bookmarks a patient for the actor. A missing patient, or a hidden one the
// actor may not see, yields MarkResultNotFound rather than an error.
func (s *Service) Mark(ctx context.Context, actor model.Actor, patientID int64) (model.MarkResult, error) {
	ok, err := s.visible(ctx, actor, patientID)
	if err != nil || !ok {
		return model.MarkResultNotFound, err
	}

	created, err := s.repos.Marked.Mark(ctx, actor.ID, patientID)
	if err != nil {
		return "", fmt.Errorf("failed to mark patient: %w", err)
	}
	if !created {
		return model.MarkResultAlreadyMarked, nil
	}
	s.logger.Debug("patient marked", "user_id", actor.ID, "patient_id", patientID)
	return model.MarkResultMarked, nil
}

func (s *Service) Unmark(ctx context.Context, actor model.Actor, patientID int64) (model.MarkResult, error) {
	ok, err := s.visible(ctx, actor, patientID)
	if err != nil || !ok {
		return model.MarkResultNotFound, err
	}

	removed, err := s.repos.Marked.Unmark(ctx, actor.ID, patientID)
	if err != nil {
		return "", fmt.Errorf("failed to unmark patient: %w", err)
	}
	if !removed {
		return model.MarkResultNotMarked, nil
	}
	s.logger.Debug("patient unmarked", "user_id", actor.ID, "patient_id", patientID)
	return model.MarkResultUnmarked, nil
}

// List returns the actor's marked patients, most recently marked first, projected
// like any other listing.
func (s *Service) List(ctx context.Context, actor model.Actor, p model.Pagination) (*model.Page[*model.PatientSummary], error) {
	p.Normalize(s.pageSize, s.maxSize)

	ids, total, err := s.repos.Marked.Page(ctx, actor.ID, p, actor.Elevated())
	if err != nil {
		return nil, fmt.Errorf("failed to page marked patients: %w", err)
	}

	patients, err := s.repos.Patients.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load marked patients: %w", err)
	}
	byID := lo.KeyBy(patients, func(p *model.Patient) int64 { return p.ID })
	ordered := lo.FilterMap(ids, func(id int64, _ int) (*model.Patient, bool) {
		p, ok := byID[id]
		return p, ok
	})

	summaries, err := s.assembler.Assemble(ctx, actor.ID, ordered)
	if err != nil {
		return nil, fmt.Errorf("failed to project marked patients: %w", err)
	}
	for _, summary := range summaries {
		summary.IsMarked = true
	}
	return model.NewPage(summaries, total, p), nil
}

func (s *Service) visible(ctx context.Context, actor model.Actor, patientID int64) (bool, error) {
	patient, err := s.repos.Patients.Get(ctx, patientID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load patient: %w", err)
	}
	return !patient.Hidden || actor.Elevated(), nil
}
