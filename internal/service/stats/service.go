// Package stats serves dashboard patient counts from a short-lived cache.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
	"github.com/jwalitptl/intake-api/pkg/event"
	"github.com/jwalitptl/intake-api/pkg/logger"
	"github.com/jwalitptl/intake-api/pkg/metrics"
)

type Service struct {
	repo    repository.StatsRepository
	cache   *cache.Cache
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewService(repo repository.StatsRepository, ttl, cleanup time.Duration, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		cache:   cache.New(ttl, cleanup),
		logger:  log.With("stats"),
		metrics: m,
	}
}

// Counts returns totals for the actor's scope. Values may be stale for up to the
// cache TTL unless a write invalidated them.
func (s *Service) Counts(ctx context.Context, actor model.Actor, scope model.Scope) (*model.PatientCounts, error) {
	q := model.ListQuery{Actor: actor, Scope: scope}
	doctorID, includeHidden := q.DoctorScope(), q.IncludeHidden()
	key := fmt.Sprintf("counts:%d:%t", doctorID, includeHidden)

	if cached, ok := s.cache.Get(key); ok {
		s.metrics.StatsCache.WithLabelValues("hit").Inc()
		counts := *cached.(*model.PatientCounts)
		return &counts, nil
	}
	s.metrics.StatsCache.WithLabelValues("miss").Inc()

	counts, err := s.repo.Counts(ctx, doctorID, includeHidden)
	if err != nil {
		return nil, fmt.Errorf("failed to count patients: %w", err)
	}
	stored := *counts
	s.cache.SetDefault(key, &stored)
	return counts, nil
}

// Invalidate drops every cached count.
func (s *Service) Invalidate() {
	s.cache.Flush()
}

// Subscribe invalidates the cache on every event that changes a counted quantity.
func (s *Service) Subscribe(bus *event.Bus) {
	bus.Subscribe("stats", func(_ context.Context, e event.Event) error {
		s.logger.Debug("invalidating counts", "event_type", string(e.Type), "patient_id", e.PatientID)
		s.Invalidate()
		return nil
	}, event.PatientCreated, event.PatientSubmitted, event.OutcomeRecorded, event.PatientDeleted)
}
