//go:build integration

package feed_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govdash/internal/feed"
	"govdash/pkg/testutil/containers"
)

// Two brokers sharing a Redis channel behave like two server instances.
func TestRedisBroker_FansOutAcrossInstances(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	localA, localB := feed.NewBroker(), feed.NewBroker()
	instanceA := feed.NewRedisBroker(rc.Client, "govdash:feed:test", localA, nil)
	instanceB := feed.NewRedisBroker(rc.Client, "govdash:feed:test", localB, nil)
	go func() { _ = instanceA.Run(ctx) }()
	go func() { _ = instanceB.Run(ctx) }()

	sub := localB.Subscribe(ctx, feed.Filter{Topic: feed.TopicShop}, 4)

	event, err := feed.NewEvent(feed.TopicShop, feed.OpUpdate, "shop-1", "owner-1", map[string]int{"score": 93}, time.Now())
	require.NoError(t, err)

	// Subscriptions in Run are established asynchronously; publish until seen.
	deadline := time.After(10 * time.Second)
	for {
		require.NoError(t, instanceA.Publish(ctx, event))
		select {
		case got := <-sub.C:
			assert.Equal(t, event.ID, got.ID)
			assert.JSONEq(t, `{"score":93}`, string(got.Payload))
			return
		case <-time.After(200 * time.Millisecond):
		case <-deadline:
			t.Fatal("event never relayed through redis")
		}
	}
}
