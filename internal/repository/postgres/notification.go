package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
)

type notificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(base BaseRepository) repository.NotificationRepository {
	return &notificationRepository{base}
}

func (r *notificationRepository) BulkCreate(ctx context.Context, notifications []*model.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, n := range notifications {
		if n.ID == uuid.Nil {
			n.ID = uuid.New()
		}
		if n.PushStatus == "" {
			n.PushStatus = model.PushStatusPending
		}
		n.CreatedAt = now
		n.UpdatedAt = now
	}

	query := `
		INSERT INTO notifications (id, user_id, type, title, body, patient_id, push_status, push_attempts, created_at, updated_at)
		VALUES (:id, :user_id, :type, :title, :body, :patient_id, :push_status, :push_attempts, :created_at, :updated_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, r.ext(ctx), query, notifications); err != nil {
		return fmt.Errorf("failed to create notifications: %w", err)
	}
	return nil
}

// UpdatePushStatus records a delivery result. Only sent and failed count as attempts.
func (r *notificationRepository) UpdatePushStatus(ctx context.Context, id uuid.UUID, status model.PushStatus) error {
	query := `
		UPDATE notifications SET
			push_status = $1,
			push_attempts = push_attempts + CASE WHEN $1 IN ('sent', 'failed') THEN 1 ELSE 0 END,
			updated_at = $2
		WHERE id = $3
	`
	res, err := r.ext(ctx).ExecContext(ctx, query, string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update push status: %w", err)
	}
	return expectRow(res, "notification")
}

func (r *notificationRepository) ListPendingPush(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]*model.PendingPush, error) {
	query := `
		SELECT n.id, n.user_id, n.type, n.title, n.body, n.patient_id, n.push_status,
			n.push_attempts, n.read_at, n.created_at, n.updated_at, u.push_token
		FROM notifications n
		JOIN users u ON u.id = n.user_id
		WHERE n.push_status IN ('pending', 'failed')
		AND n.push_attempts < $1
		AND n.updated_at < $2
		AND u.push_token <> ''
		ORDER BY n.created_at ASC
		LIMIT $3
	`
	var pending []*model.PendingPush
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &pending, query, maxAttempts, olderThan, limit); err != nil {
		return nil, fmt.Errorf("failed to list pending pushes: %w", err)
	}
	return pending, nil
}

func (r *notificationRepository) DeleteSettledBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM notifications WHERE created_at < $1 AND push_status <> 'pending'`
	res, err := r.ext(ctx).ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete notifications: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted notifications: %w", err)
	}
	return n, nil
}
