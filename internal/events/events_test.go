package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"govdash/internal/registry/models"
	"govdash/pkg/domain"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.records = append(f.records, rs...)
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func testShop(t *testing.T) *models.Shop {
	t.Helper()
	shop, err := models.NewShop(domain.NewShopID(), domain.ActorID(uuid.New()), "Night Market", "", "", time.Now())
	require.NoError(t, err)
	return shop
}

func TestBus_DeliversToEverySinkDespiteFailures(t *testing.T) {
	var delivered []Kind
	failing := SinkFunc(func(context.Context, LifecycleEvent) error { return errors.New("broker down") })
	recording := SinkFunc(func(_ context.Context, e LifecycleEvent) error {
		delivered = append(delivered, e.Kind)
		return nil
	})
	bus := NewBus(slog.New(slog.NewTextHandler(io.Discard, nil)), failing, recording)

	shop := testShop(t)
	bus.Publish(context.Background(), New(KindShopApproved, shop, "shop", shop.ID.String(), domain.Anonymous, time.Now()))

	assert.Equal(t, []Kind{KindShopApproved}, delivered)
}

func TestBus_NilIsNoop(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), LifecycleEvent{})
	})
}

func TestNew_SnapshotsShop(t *testing.T) {
	shop := testShop(t)
	event := New(KindShopCreated, shop, "shop", shop.ID.String(), domain.Anonymous, time.Now())
	shop.Name = "renamed later"
	assert.Equal(t, "Night Market", event.Shop.Name)
	assert.Equal(t, shop.OwnerID, event.OwnerID)
}

func TestKafkaSink(t *testing.T) {
	shop := testShop(t)
	event := New(KindShopSuspended, shop, "shop", shop.ID.String(), domain.Anonymous, time.Now())

	t.Run("keys by shop and tags kind", func(t *testing.T) {
		producer := &fakeProducer{}
		sink := NewKafkaSink(producer, "govdash.lifecycle")
		require.NoError(t, sink.Emit(context.Background(), event))
		require.Len(t, producer.records, 1)

		rec := producer.records[0]
		assert.Equal(t, "govdash.lifecycle", rec.Topic)
		assert.Equal(t, shop.ID.String(), string(rec.Key))
		assert.Equal(t, "kind", rec.Headers[0].Key)
		assert.Equal(t, string(KindShopSuspended), string(rec.Headers[0].Value))

		var decoded LifecycleEvent
		require.NoError(t, json.Unmarshal(rec.Value, &decoded))
		assert.Equal(t, event.ID, decoded.ID)
	})

	t.Run("surfaces produce errors", func(t *testing.T) {
		sink := NewKafkaSink(&fakeProducer{err: errors.New("not leader")}, "govdash.lifecycle")
		assert.Error(t, sink.Emit(context.Background(), event))
	})
}
