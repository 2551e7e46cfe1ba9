// Package intake is the transactional write path of the questionnaire: patient
// creation, section updates, submission and deletion.
package intake

import (
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/intake-api/internal/repository"
	"github.com/jwalitptl/intake-api/internal/service/catalog"
	"github.com/jwalitptl/intake-api/internal/service/scoring"
	apperrors "github.com/jwalitptl/intake-api/pkg/errors"
	"github.com/jwalitptl/intake-api/pkg/event"
	"github.com/jwalitptl/intake-api/pkg/logger"
	"github.com/jwalitptl/intake-api/pkg/metrics"
	"github.com/jwalitptl/intake-api/pkg/storage"
)

type Config struct {
	// OutcomeSectionID is the terminal section whose completion triggers scoring.
	OutcomeSectionID int64
}

type Service struct {
	repos    *repository.Repositories
	catalog  *catalog.Loader
	scorer   *scoring.Dispatcher
	uploader storage.Uploader
	events   event.Publisher
	cfg      Config
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewService(
	repos *repository.Repositories,
	loader *catalog.Loader,
	scorer *scoring.Dispatcher,
	uploader storage.Uploader,
	events event.Publisher,
	cfg Config,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		repos:    repos,
		catalog:  loader,
		scorer:   scorer,
		uploader: uploader,
		events:   events,
		cfg:      cfg,
		logger:   log.With("intake"),
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// notFound converts a repository miss into the caller-facing NotFound error.
func notFound(err error, resource string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(resource, err)
	}
	return err
}

func wrap(err error, action string) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}
