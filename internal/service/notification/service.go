package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
	"github.com/jwalitptl/intake-api/pkg/logger"
	"github.com/jwalitptl/intake-api/pkg/metrics"
	"github.com/jwalitptl/intake-api/pkg/push"
)

const defaultPushTimeout = 10 * time.Second

// Message is the content shared by every recipient of one fan-out.
type Message struct {
	Type      string
	Title     string
	Body      string
	PatientID *int64
}

type Service interface {
	// NotifyAdmins stores one notification per admin and pushes them asynchronously.
	NotifyAdmins(ctx context.Context, msg Message) error
	NotifyUser(ctx context.Context, userID int64, msg Message) error
	// Redeliver retries the push of one stored notification synchronously.
	Redeliver(ctx context.Context, pending *model.PendingPush) error
	// Wait blocks until in-flight async pushes finish.
	Wait()
}

type service struct {
	users         repository.UserRepository
	notifications repository.NotificationRepository
	pusher        push.Pusher
	logger        *logger.Logger
	metrics       *metrics.Metrics
	timeout       time.Duration
	inflight      sync.WaitGroup
}

func NewService(users repository.UserRepository, notifications repository.NotificationRepository, pusher push.Pusher, timeout time.Duration, log *logger.Logger, m *metrics.Metrics) Service {
	if timeout <= 0 {
		timeout = defaultPushTimeout
	}
	return &service{
		users:         users,
		notifications: notifications,
		pusher:        pusher,
		logger:        log.With("notification"),
		metrics:       m,
		timeout:       timeout,
	}
}

func (s *service) NotifyAdmins(ctx context.Context, msg Message) error {
	admins, err := s.users.ListByRole(ctx, model.RoleAdmin)
	if err != nil {
		return fmt.Errorf("failed to list admins: %w", err)
	}
	return s.fanOut(ctx, admins, msg)
}

func (s *service) NotifyUser(ctx context.Context, userID int64, msg Message) error {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get recipient: %w", err)
	}
	return s.fanOut(ctx, []*model.User{user}, msg)
}

type delivery struct {
	notification *model.Notification
	token        string
}

func (s *service) fanOut(ctx context.Context, recipients []*model.User, msg Message) error {
	if len(recipients) == 0 {
		return nil
	}

	deliveries := lo.Map(recipients, func(u *model.User, _ int) delivery {
		status := model.PushStatusPending
		if u.PushToken == "" {
			status = model.PushStatusSkipped
		}
		return delivery{
			notification: &model.Notification{
				UserID:     u.ID,
				Type:       msg.Type,
				Title:      msg.Title,
				Body:       msg.Body,
				PatientID:  msg.PatientID,
				PushStatus: status,
			},
			token: u.PushToken,
		}
	})

	rows := lo.Map(deliveries, func(d delivery, _ int) *model.Notification { return d.notification })
	if err := s.notifications.BulkCreate(ctx, rows); err != nil {
		s.metrics.NotificationsCreated.WithLabelValues(msg.Type, "failed").Inc()
		return fmt.Errorf("failed to store notifications: %w", err)
	}
	s.metrics.NotificationsCreated.WithLabelValues(msg.Type, "stored").Add(float64(len(rows)))

	pending := lo.Filter(deliveries, func(d delivery, _ int) bool { return d.token != "" })
	if len(pending) == 0 {
		return nil
	}

	// the request context ends with the response; pushes outlive it
	pushCtx := context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go s.deliver(pushCtx, pending)
	return nil
}

func (s *service) deliver(ctx context.Context, deliveries []delivery) {
	defer s.inflight.Done()
	for _, d := range deliveries {
		s.send(ctx, d.notification, d.token)
	}
}

func (s *service) send(ctx context.Context, n *model.Notification, token string) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	status := model.PushStatusSent
	if err := s.pusher.Send(ctx, n.Title, n.Body, []string{token}); err != nil {
		status = model.PushStatusFailed
		s.logger.Error(err, "push delivery failed",
			"notification_id", n.ID.String(),
			"user_id", n.UserID,
			"type", n.Type)
	}
	s.metrics.PushDeliveries.WithLabelValues(string(status)).Inc()

	if err := s.notifications.UpdatePushStatus(ctx, n.ID, status); err != nil {
		s.logger.Error(err, "failed to record push status",
			"notification_id", n.ID.String(),
			"status", string(status))
	}
}

func (s *service) Redeliver(ctx context.Context, pending *model.PendingPush) error {
	if pending.PushToken == "" {
		return s.notifications.UpdatePushStatus(ctx, pending.ID, model.PushStatusSkipped)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	sendErr := s.pusher.Send(ctx, pending.Title, pending.Body, []string{pending.PushToken})
	status := model.PushStatusSent
	if sendErr != nil {
		status = model.PushStatusFailed
	}
	s.metrics.PushDeliveries.WithLabelValues(string(status)).Inc()

	if err := s.notifications.UpdatePushStatus(ctx, pending.ID, status); err != nil {
		return fmt.Errorf("failed to record push status: %w", err)
	}
	return sendErr
}

func (s *service) Wait() {
	s.inflight.Wait()
}
