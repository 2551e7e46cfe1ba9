package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
	"github.com/jwalitptl/intake-api/pkg/logger"
	"github.com/jwalitptl/intake-api/pkg/metrics"
)

type PushRetryConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// RetryAfter is how old a pending or failed push must be before it is retried.
	RetryAfter  time.Duration
	MaxAttempts int
}

// Redeliverer sends one stored notification again and records the result.
type Redeliverer interface {
	Redeliver(ctx context.Context, pending *model.PendingPush) error
}

// PushRetryProcessor picks up notifications whose push never went out and hands
// them back to the notification service.
type PushRetryProcessor struct {
	repo    repository.NotificationRepository
	sender  Redeliverer
	config  PushRetryConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewPushRetryProcessor(
	repo repository.NotificationRepository,
	sender Redeliverer,
	config PushRetryConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *PushRetryProcessor {
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.MaxAttempts <= 0 {
		panic("MaxAttempts must be greater than 0")
	}

	return &PushRetryProcessor{
		repo:    repo,
		sender:  sender,
		config:  config,
		logger:  logger.With("push_retry"),
		metrics: metrics,
		now:     time.Now,
	}
}

func (p *PushRetryProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting push retry processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down push retry processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process pending pushes")
			}
		}
	}
}

// ProcessBatch retries one batch and returns how many pushes were attempted.
func (p *PushRetryProcessor) ProcessBatch(ctx context.Context) (int, error) {
	cutoff := p.now().Add(-p.config.RetryAfter)
	pending, err := p.repo.ListPendingPush(ctx, cutoff, p.config.MaxAttempts, p.config.BatchSize)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("list_pending_push", "error").Inc()
		return 0, fmt.Errorf("failed to list pending pushes: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("list_pending_push", "success").Inc()

	for _, n := range pending {
		if err := p.sender.Redeliver(ctx, n); err != nil {
			p.logger.Error(err, "Failed to redeliver push",
				"notification_id", n.ID.String(),
				"user_id", n.UserID,
				"attempts", n.PushAttempts)
			continue
		}
	}
	if len(pending) > 0 {
		p.logger.Debug("Retried pending pushes", "count", len(pending))
	}
	return len(pending), nil
}
