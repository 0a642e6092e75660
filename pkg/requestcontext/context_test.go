package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"govdash/pkg/domain"
)

func TestDefaults(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, domain.Anonymous, Actor(ctx))
	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, ClientIP(ctx))
	assert.Empty(t, UserAgent(ctx))
	assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
}

func TestInjectedValues(t *testing.T) {
	actor := domain.Actor{ID: domain.ActorID(uuid.New()), Role: domain.RoleGovernment}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	ctx := WithActor(context.Background(), actor)
	ctx = WithRequestID(ctx, "req-42")
	ctx = WithClientMetadata(ctx, "10.0.0.7", "govdash-cli/1.0")
	ctx = WithTime(ctx, fixed)

	assert.Equal(t, actor, Actor(ctx))
	assert.Equal(t, "req-42", RequestID(ctx))
	assert.Equal(t, "10.0.0.7", ClientIP(ctx))
	assert.Equal(t, "govdash-cli/1.0", UserAgent(ctx))
	assert.Equal(t, fixed, Now(ctx))
}
