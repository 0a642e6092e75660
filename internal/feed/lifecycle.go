package feed

import (
	"context"

	"govdash/internal/events"
)

// LifecycleSink turns lifecycle events into shop-topic feed events.
type LifecycleSink struct {
	publisher Publisher
}

func NewLifecycleSink(publisher Publisher) *LifecycleSink {
	return &LifecycleSink{publisher: publisher}
}

func (s *LifecycleSink) Emit(ctx context.Context, le events.LifecycleEvent) error {
	op := OpUpdate
	switch le.Kind {
	case events.KindShopCreated:
		op = OpInsert
	case events.KindShopDeleted:
		op = OpDelete
	}
	event, err := NewEvent(TopicShop, op, le.ShopID.String(), le.OwnerID.String(), le.Shop, le.At)
	if err != nil {
		return err
	}
	event.ID = le.ID.String()
	event.Kind = string(le.Kind)
	if le.Shop != nil {
		event.Status = string(le.Shop.Status)
	}
	return s.publisher.Publish(ctx, event)
}
