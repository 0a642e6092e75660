// Package events carries lifecycle events from the engine to its observers:
// the notification trigger, the change feed and the Kafka event stream.
// Delivery is best-effort; a failing sink never affects a committed change.
package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"govdash/internal/registry/models"
	"govdash/pkg/domain"
)

type Kind string

const (
	KindShopCreated         Kind = "shop.created"
	KindShopApproved        Kind = "shop.approved"
	KindShopRejected        Kind = "shop.rejected"
	KindShopSuspended       Kind = "shop.suspended"
	KindShopReinstated      Kind = "shop.reinstated"
	KindShopDeleted         Kind = "shop.deleted"
	KindShopWarned          Kind = "shop.warned"
	KindComplianceUpdated   Kind = "compliance.updated"
	KindDocumentCreated     Kind = "document.created"
	KindDocumentApproved    Kind = "document.approved"
	KindDocumentRejected    Kind = "document.rejected"
	KindDocumentExpired     Kind = "document.expired"
	KindInspectionScheduled Kind = "inspection.scheduled"
	KindInspectionStarted   Kind = "inspection.started"
	KindInspectionCompleted Kind = "inspection.completed"
	KindInspectionCancelled Kind = "inspection.cancelled"
	KindReviewCreated       Kind = "review.created"
	KindFavoriteCreated     Kind = "favorite.created"
)

// LifecycleEvent describes one committed change.
type LifecycleEvent struct {
	ID         uuid.UUID      `json:"id"`
	Kind       Kind           `json:"kind"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	ShopID     domain.ShopID  `json:"shop_id"`
	OwnerID    domain.ActorID `json:"owner_id"`
	ActorID    domain.ActorID `json:"actor_id"`
	From       string         `json:"from,omitempty"`
	To         string         `json:"to,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	At         time.Time      `json:"at"`
	// Shop is the shop as of this change, used as the change-feed payload.
	Shop *models.Shop `json:"shop,omitempty"`
}

// New builds an event for a change to shop.
func New(kind Kind, shop *models.Shop, entityType, entityID string, actor domain.Actor, at time.Time) LifecycleEvent {
	return LifecycleEvent{
		ID:         uuid.New(),
		Kind:       kind,
		EntityType: entityType,
		EntityID:   entityID,
		ShopID:     shop.ID,
		OwnerID:    shop.OwnerID,
		ActorID:    actor.ID,
		At:         at,
		Shop:       shop.Clone(),
	}
}

// Sink consumes lifecycle events.
type Sink interface {
	Emit(ctx context.Context, event LifecycleEvent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event LifecycleEvent) error

func (f SinkFunc) Emit(ctx context.Context, event LifecycleEvent) error {
	return f(ctx, event)
}

// Bus fans events out to every sink. Publish never fails; sink errors are
// logged.
type Bus struct {
	sinks  []Sink
	logger *slog.Logger
}

func NewBus(logger *slog.Logger, sinks ...Sink) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{sinks: sinks, logger: logger}
}

// Subscribe adds a sink. It is not safe to call concurrently with Publish.
func (b *Bus) Subscribe(sink Sink) {
	b.sinks = append(b.sinks, sink)
}

func (b *Bus) Publish(ctx context.Context, event LifecycleEvent) {
	if b == nil {
		return
	}
	var errs []error
	for _, sink := range b.sinks {
		if err := sink.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		b.logger.ErrorContext(ctx, "lifecycle event delivery failed",
			"event_id", event.ID.String(),
			"kind", string(event.Kind),
			"error", err,
		)
	}
}
