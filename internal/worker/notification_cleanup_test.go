package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository/memory"
	"github.com/jwalitptl/intake-api/pkg/logger"
)

func TestCleanupKeepsPendingPushes(t *testing.T) {
	store := memory.New()
	repos := store.Repositories()
	admin := store.AddUser(&model.User{Name: "Admin", Role: model.RoleAdmin})

	require.NoError(t, repos.Notifications.BulkCreate(context.Background(), []*model.Notification{
		{UserID: admin.ID, Type: model.NotificationNewPatient, PushStatus: model.PushStatusSent},
		{UserID: admin.ID, Type: model.NotificationNewPatient, PushStatus: model.PushStatusSkipped},
		{UserID: admin.ID, Type: model.NotificationNewOutcome, PushStatus: model.PushStatusPending},
	}))

	w := NewNotificationCleanupWorker(repos.Notifications, 24*time.Hour, time.Hour, logger.Nop())

	n, err := w.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, store.Notifications(), 3)

	w.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	n, err = w.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left := store.Notifications()
	require.Len(t, left, 1)
	assert.Equal(t, model.PushStatusPending, left[0].PushStatus)
}
