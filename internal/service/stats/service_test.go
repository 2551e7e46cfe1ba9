package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
	"github.com/jwalitptl/intake-api/internal/repository/memory"
	"github.com/jwalitptl/intake-api/pkg/event"
	"github.com/jwalitptl/intake-api/pkg/logger"
	"github.com/jwalitptl/intake-api/pkg/metrics"
)

func addPatient(t *testing.T, repos *repository.Repositories, doctorID int64, hidden, submitted bool) int64 {
	t.Helper()
	ctx := context.Background()
	p := &model.Patient{DoctorID: doctorID, Hidden: hidden}
	require.NoError(t, repos.Patients.Create(ctx, p))
	require.NoError(t, repos.Statuses.BulkInsert(ctx, []*model.PatientStatus{
		{PatientID: p.ID, Key: model.StatusKeySubmit, Status: submitted},
	}))
	return p.ID
}

type countingRepo struct {
	repository.StatsRepository
	calls int
}

func (c *countingRepo) Counts(ctx context.Context, doctorID int64, includeHidden bool) (*model.PatientCounts, error) {
	c.calls++
	return c.StatsRepository.Counts(ctx, doctorID, includeHidden)
}

func TestCountsAreCachedUntilInvalidated(t *testing.T) {
	repos := memory.New().Repositories()
	m := metrics.NewNop()
	repo := &countingRepo{StatsRepository: repos.Stats}
	svc := NewService(repo, time.Minute, time.Minute, logger.Nop(), m)
	ctx := context.Background()
	doctor := model.Actor{ID: 1, Role: model.RoleDoctor}

	addPatient(t, repos, 1, false, true)
	addPatient(t, repos, 2, false, false)
	addPatient(t, repos, 1, true, false)

	counts, err := svc.Counts(ctx, doctor, model.ScopeAll)
	require.NoError(t, err)
	assert.Equal(t, &model.PatientCounts{Total: 2, Submitted: 1}, counts)

	addPatient(t, repos, 1, false, false)
	cached, err := svc.Counts(ctx, doctor, model.ScopeAll)
	require.NoError(t, err)
	assert.Equal(t, 2, cached.Total)
	assert.Equal(t, 1, repo.calls)

	bus := event.NewBus(logger.Nop(), m)
	svc.Subscribe(bus)
	bus.Publish(ctx, event.New(event.PatientCreated, 4, 1))

	fresh, err := svc.Counts(ctx, doctor, model.ScopeAll)
	require.NoError(t, err)
	assert.Equal(t, 3, fresh.Total)
	assert.Equal(t, 2, repo.calls)
}

func TestCountsByScope(t *testing.T) {
	repos := memory.New().Repositories()
	svc := NewService(repos.Stats, time.Minute, time.Minute, logger.Nop(), metrics.NewNop())
	ctx := context.Background()

	addPatient(t, repos, 1, false, true)
	addPatient(t, repos, 2, false, false)
	addPatient(t, repos, 1, true, false)

	mine, err := svc.Counts(ctx, model.Actor{ID: 1, Role: model.RoleDoctor}, model.ScopeMine)
	require.NoError(t, err)
	assert.Equal(t, 1, mine.Total)

	admin, err := svc.Counts(ctx, model.Actor{ID: 9, Role: model.RoleAdmin}, model.ScopeAll)
	require.NoError(t, err)
	assert.Equal(t, 3, admin.Total)
}

func TestSectionUpdatesDoNotInvalidate(t *testing.T) {
	repos := memory.New().Repositories()
	m := metrics.NewNop()
	repo := &countingRepo{StatsRepository: repos.Stats}
	svc := NewService(repo, time.Minute, time.Minute, logger.Nop(), m)
	bus := event.NewBus(logger.Nop(), m)
	svc.Subscribe(bus)
	ctx := context.Background()
	actor := model.Actor{ID: 1, Role: model.RoleDoctor}

	_, err := svc.Counts(ctx, actor, model.ScopeAll)
	require.NoError(t, err)
	bus.Publish(ctx, event.New(event.SectionUpdated, 1, 1))
	_, err = svc.Counts(ctx, actor, model.ScopeAll)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.calls)
}
