package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "govdash/pkg/platform/audit"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		f.records = append(f.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func TestStore_Append(t *testing.T) {
	producer := &fakeProducer{}
	store := New(producer, "audit-events")

	shopID := uuid.NewString()
	event := audit.Event{
		ID:         uuid.New(),
		Category:   audit.CategoryCompliance,
		Timestamp:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		ActorRole:  "government",
		Action:     string(audit.EventShopApproved),
		EntityType: "shop",
		EntityID:   shopID,
		Outcome:    audit.OutcomeSuccess,
	}
	require.NoError(t, store.Append(context.Background(), event))

	require.Len(t, producer.records, 1)
	rec := producer.records[0]
	assert.Equal(t, "audit-events", rec.Topic)
	assert.Equal(t, "shop/"+shopID, string(rec.Key))

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Value, &got))
	assert.Equal(t, "shop.approve", got["action"])
	assert.Equal(t, "success", got["outcome"])
	assert.Equal(t, "2026-03-01T10:00:00Z", got["timestamp"])
}

func TestStore_AppendPropagatesProduceError(t *testing.T) {
	store := New(&fakeProducer{err: errors.New("broker down")}, "audit-events")

	err := store.Append(context.Background(), audit.Event{Action: "shop.create"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}
