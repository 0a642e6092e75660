package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govdash/internal/notification/models"
	"govdash/pkg/domain"
	"govdash/pkg/platform/sentinel"
)

func newNotification(t *testing.T, recipient domain.ActorID, at time.Time) *models.Notification {
	t.Helper()
	n, err := models.NewNotification(domain.NewNotificationID(), recipient, models.TypeSystem,
		"Notice", "Hello", nil, []models.Channel{models.ChannelInApp}, at)
	require.NoError(t, err)
	return n
}

func TestInMemory_Notifications(t *testing.T) {
	ctx := context.Background()
	s := New()
	recipient := domain.ActorID(uuid.New())
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	older := newNotification(t, recipient, base)
	newer := newNotification(t, recipient, base.Add(time.Hour))
	other := newNotification(t, domain.ActorID(uuid.New()), base)
	for _, n := range []*models.Notification{older, newer, other} {
		require.NoError(t, s.SaveNotification(ctx, n))
	}

	t.Run("save is idempotent", func(t *testing.T) {
		changed := *older
		changed.Title = "Changed"
		require.NoError(t, s.SaveNotification(ctx, &changed))
		got, err := s.FindNotification(ctx, older.ID)
		require.NoError(t, err)
		assert.Equal(t, "Notice", got.Title)
	})

	t.Run("list newest first with limit", func(t *testing.T) {
		got, err := s.ListByRecipient(ctx, recipient, 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, newer.ID, got[0].ID)

		got, err = s.ListByRecipient(ctx, recipient, 1)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("returned values are copies", func(t *testing.T) {
		got, err := s.FindNotification(ctx, newer.ID)
		require.NoError(t, err)
		got.Channels[0] = models.ChannelSMS
		again, err := s.FindNotification(ctx, newer.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ChannelInApp, again.Channels[0])
	})

	t.Run("missing", func(t *testing.T) {
		_, err := s.FindNotification(ctx, domain.NewNotificationID())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestInMemory_Logs(t *testing.T) {
	ctx := context.Background()
	s := New()
	id := domain.NewNotificationID()

	_, err := s.GetLog(ctx, id, models.ChannelEmail)
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, s.UpsertLog(ctx, &models.Log{NotificationID: id, Channel: models.ChannelEmail, Status: models.DeliveryFailed, Attempts: 2}))
	require.NoError(t, s.UpsertLog(ctx, &models.Log{NotificationID: id, Channel: models.ChannelEmail, Status: models.DeliverySent, Attempts: 3}))
	require.NoError(t, s.UpsertLog(ctx, &models.Log{NotificationID: id, Channel: models.ChannelInApp, Status: models.DeliverySent, Attempts: 1}))

	got, err := s.GetLog(ctx, id, models.ChannelEmail)
	require.NoError(t, err)
	assert.Equal(t, models.DeliverySent, got.Status)
	assert.Equal(t, 3, got.Attempts)

	logs, err := s.ListLogs(ctx, id)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestInMemory_ClaimLog(t *testing.T) {
	ctx := context.Background()
	s := New()
	id := domain.NewNotificationID()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	lease := now.Add(-30 * time.Second)

	got, claimed, err := s.ClaimLog(ctx, id, models.ChannelSMS, now, lease)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, models.DeliveryInFlight, got.Status)

	got, claimed, err = s.ClaimLog(ctx, id, models.ChannelSMS, now.Add(time.Second), lease)
	require.NoError(t, err)
	assert.False(t, claimed, "live claim is held")
	assert.Equal(t, models.DeliveryInFlight, got.Status)

	_, claimed, err = s.ClaimLog(ctx, id, models.ChannelSMS, now.Add(time.Minute), now.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, claimed, "stale claim is taken over")

	require.NoError(t, s.UpsertLog(ctx, &models.Log{NotificationID: id, Channel: models.ChannelSMS, Status: models.DeliveryFailed, Attempts: 3}))
	got, claimed, err = s.ClaimLog(ctx, id, models.ChannelSMS, now.Add(time.Hour), lease)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, 3, got.Attempts)

	require.NoError(t, s.UpsertLog(ctx, &models.Log{NotificationID: id, Channel: models.ChannelSMS, Status: models.DeliverySent, Attempts: 4}))
	got, claimed, err = s.ClaimLog(ctx, id, models.ChannelSMS, now.Add(2*time.Hour), now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, models.DeliverySent, got.Status)
}

func TestInMemory_ClaimLogSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := New()
	id := domain.NewNotificationID()
	now := time.Now()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, claimed, err := s.ClaimLog(ctx, id, models.ChannelEmail, now, now.Add(-time.Minute))
			if err == nil && claimed {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
