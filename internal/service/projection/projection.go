// Package projection builds the flattened patient summaries used by every listing.
package projection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
	"github.com/jwalitptl/intake-api/pkg/metrics"
)

type Strategy string

const (
	StrategyBatch Strategy = "batch"
	StrategyJoin  Strategy = "join"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyBatch:
		return StrategyBatch, nil
	case StrategyJoin:
		return StrategyJoin, nil
	}
	return "", fmt.Errorf("unknown listing strategy %q", s)
}

// Lister produces one page of summaries plus the total match count.
type Lister interface {
	List(ctx context.Context, q *model.ListQuery) ([]*model.PatientSummary, int, error)
}

var (
	summaryQuestions = []int64{model.QuestionIDName, model.QuestionIDHospital}
	summaryKeys      = []string{model.StatusKeySubmit, model.StatusKeyOutcome}
)

// BatchLister pages patients, then resolves every page in a fixed number of
// batched lookups regardless of page size.
type BatchLister struct {
	repos *repository.Repositories
}

func NewBatchLister(repos *repository.Repositories) *BatchLister {
	return &BatchLister{repos: repos}
}

func (l *BatchLister) List(ctx context.Context, q *model.ListQuery) ([]*model.PatientSummary, int, error) {
	patients, total, err := l.repos.Patients.Page(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	summaries, err := l.Assemble(ctx, q.Actor.ID, patients)
	if err != nil {
		return nil, 0, err
	}
	return summaries, total, nil
}

// Assemble projects patients in the given order. viewerID decides isMarked.
func (l *BatchLister) Assemble(ctx context.Context, viewerID int64, patients []*model.Patient) ([]*model.PatientSummary, error) {
	if len(patients) == 0 {
		return []*model.PatientSummary{}, nil
	}

	ids := lo.Map(patients, func(p *model.Patient, _ int) int64 { return p.ID })
	doctorIDs := lo.Uniq(lo.Map(patients, func(p *model.Patient, _ int) int64 { return p.DoctorID }))

	answers, err := l.repos.Answers.ListByQuestions(ctx, ids, summaryQuestions)
	if err != nil {
		return nil, err
	}
	statuses, err := l.repos.Statuses.ListByKeys(ctx, ids, summaryKeys)
	if err != nil {
		return nil, err
	}
	doctors, err := l.repos.Users.GetMany(ctx, doctorIDs)
	if err != nil {
		return nil, err
	}
	marked, err := l.repos.Marked.PatientIDs(ctx, viewerID, ids)
	if err != nil {
		return nil, err
	}

	values := make(map[int64]map[int64]string, len(patients))
	for _, a := range answers {
		if a.Variant != model.VariantPrimary {
			continue
		}
		if values[a.PatientID] == nil {
			values[a.PatientID] = make(map[int64]string, len(summaryQuestions))
		}
		values[a.PatientID][a.QuestionID] = a.Value
	}

	flags := make(map[int64]map[string]bool, len(patients))
	for _, s := range statuses {
		if flags[s.PatientID] == nil {
			flags[s.PatientID] = make(map[string]bool, len(summaryKeys))
		}
		flags[s.PatientID][s.Key] = s.Status
	}

	doctorByID := lo.KeyBy(doctors, func(u *model.User) int64 { return u.ID })

	return lo.Map(patients, func(p *model.Patient, _ int) *model.PatientSummary {
		return model.NewPatientSummary(p, model.SummaryFields{
			NameValue:     values[p.ID][model.QuestionIDName],
			HospitalValue: values[p.ID][model.QuestionIDHospital],
			Doctor:        doctorByID[p.DoctorID],
			SubmitStatus:  flags[p.ID][model.StatusKeySubmit],
			OutcomeStatus: flags[p.ID][model.StatusKeyOutcome],
			IsMarked:      marked[p.ID],
		})
	}), nil
}

// JoinLister resolves a page in one joined query plus a count.
type JoinLister struct {
	repo repository.ProjectionRepository
}

func NewJoinLister(repo repository.ProjectionRepository) *JoinLister {
	return &JoinLister{repo: repo}
}

func (l *JoinLister) List(ctx context.Context, q *model.ListQuery) ([]*model.PatientSummary, int, error) {
	rows, total, err := l.repo.ListJoined(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	return lo.Map(rows, func(r *model.SummaryRow, _ int) *model.PatientSummary { return r.Summary() }), total, nil
}

type Config struct {
	Strategy        Strategy
	DefaultPageSize int
	MaxPageSize     int
}

// Service picks a strategy per call and normalizes paging.
type Service struct {
	listers map[Strategy]Lister
	cfg     Config
	metrics *metrics.Metrics
}

func NewService(batch *BatchLister, join *JoinLister, cfg Config, m *metrics.Metrics) *Service {
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyBatch
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 10
	}
	return &Service{
		listers: map[Strategy]Lister{StrategyBatch: batch, StrategyJoin: join},
		cfg:     cfg,
		metrics: m,
	}
}

// List uses the configured strategy.
func (s *Service) List(ctx context.Context, q *model.ListQuery) (*model.Page[*model.PatientSummary], error) {
	return s.ListWith(ctx, s.cfg.Strategy, q)
}

func (s *Service) ListWith(ctx context.Context, strategy Strategy, q *model.ListQuery) (*model.Page[*model.PatientSummary], error) {
	lister, ok := s.listers[strategy]
	if !ok {
		return nil, fmt.Errorf("unknown listing strategy %q", strategy)
	}
	if q.Scope == "" {
		q.Scope = model.ScopeAll
	}
	q.Normalize(s.cfg.DefaultPageSize, s.cfg.MaxPageSize)

	start := time.Now()
	summaries, total, err := lister.List(ctx, q)
	s.metrics.ListingLatency.WithLabelValues(string(strategy)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return model.NewPage(summaries, total, q.Pagination), nil
}
