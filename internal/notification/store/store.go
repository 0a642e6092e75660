// Package store defines notification persistence. Stores return
// pkg/platform/sentinel errors.
package store

import (
	"context"
	"time"

	"govdash/internal/notification/models"
	"govdash/pkg/domain"
)

type Store interface {
	// SaveNotification inserts n; saving an existing notification is a no-op.
	SaveNotification(ctx context.Context, n *models.Notification) error
	FindNotification(ctx context.Context, id domain.NotificationID) (*models.Notification, error)
	// ListByRecipient returns up to limit notifications, newest first.
	ListByRecipient(ctx context.Context, recipient domain.ActorID, limit int) ([]*models.Notification, error)

	// GetLog returns sentinel.ErrNotFound when the pair was never attempted.
	GetLog(ctx context.Context, id domain.NotificationID, channel models.Channel) (*models.Log, error)
	// ClaimLog moves the pair to in_flight unless it is sent or held by a
	// claim refreshed at or after staleBefore. It returns the stored log and
	// whether the caller now holds the claim.
	ClaimLog(ctx context.Context, id domain.NotificationID, channel models.Channel, now, staleBefore time.Time) (*models.Log, bool, error)
	UpsertLog(ctx context.Context, log *models.Log) error
	ListLogs(ctx context.Context, id domain.NotificationID) ([]*models.Log, error)
}
