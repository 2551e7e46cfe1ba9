package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/intake-api/internal/repository"
	"github.com/jwalitptl/intake-api/pkg/logger"
)

// NotificationCleanupWorker prunes notifications whose push has settled once they
// are older than the retention window.
type NotificationCleanupWorker struct {
	repo            repository.NotificationRepository
	retention       time.Duration
	cleanupInterval time.Duration
	logger          *logger.Logger
	now             func() time.Time
}

func NewNotificationCleanupWorker(repo repository.NotificationRepository, retention, cleanupInterval time.Duration, log *logger.Logger) *NotificationCleanupWorker {
	return &NotificationCleanupWorker{
		repo:            repo,
		retention:       retention,
		cleanupInterval: cleanupInterval,
		logger:          log.With("notification_cleanup"),
		now:             time.Now,
	}
}

func (w *NotificationCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Cleanup(ctx); err != nil {
				w.logger.Error(err, "Error cleaning up notifications")
			}
		}
	}
}

func (w *NotificationCleanupWorker) Cleanup(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.retention)

	rows, err := w.repo.DeleteSettledBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup notifications: %w", err)
	}

	if rows > 0 {
		w.logger.Info("Cleaned up notifications", "count", rows, "cutoff", cutoff)
	}
	return rows, nil
}
