package notification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govdash/internal/notification/models"
	"govdash/internal/notification/store/memory"
	"govdash/internal/policy"
	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
	"govdash/pkg/platform/sentinel"
	"govdash/pkg/requestcontext"
)

// claimRoles has no provisioned roles, so identity claims decide.
type claimRoles struct{}

func (claimRoles) RoleOf(context.Context, domain.ActorID) (domain.Role, error) {
	return "", sentinel.ErrNotFound
}

func newTestService(t *testing.T) (*Service, *memory.InMemory, *scriptedSender) {
	t.Helper()
	st := memory.New()
	inApp := &scriptedSender{channel: models.ChannelInApp}
	evaluator, err := policy.New(policy.NewStoreRoleLookup(claimRoles{}, nil))
	require.NoError(t, err)
	svc, err := NewService(st, NewDispatcher(st, WithSender(inApp)), evaluator, nil)
	require.NoError(t, err)
	return svc, st, inApp
}

func actorCtx(role domain.Role) (context.Context, domain.Actor) {
	actor := domain.Actor{ID: domain.ActorID(uuid.New()), Role: role}
	ctx := requestcontext.WithActor(context.Background(), actor)
	return requestcontext.WithTime(ctx, time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)), actor
}

func sendCommand(recipient domain.ActorID) SendCommand {
	return SendCommand{
		RecipientID: recipient,
		Type:        models.TypeSystem,
		Title:       "Maintenance",
		Message:     "The registry is read-only tonight.",
		Channels:    []models.Channel{models.ChannelInApp},
	}
}

func TestService_Send(t *testing.T) {
	recipient := domain.ActorID(uuid.New())

	t.Run("government official sends", func(t *testing.T) {
		svc, st, inApp := newTestService(t)
		ctx, _ := actorCtx(domain.RoleGovernment)

		result, err := svc.Send(ctx, sendCommand(recipient))
		require.NoError(t, err)
		assert.True(t, result.Success())
		assert.Equal(t, 1, inApp.Calls())

		stored, err := st.FindNotification(ctx, result.NotificationID)
		require.NoError(t, err)
		assert.Equal(t, recipient, stored.RecipientID)
	})

	t.Run("service identity sends", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		ctx, _ := actorCtx(domain.RoleService)

		_, err := svc.Send(ctx, sendCommand(recipient))
		require.NoError(t, err)
	})

	t.Run("customer is forbidden", func(t *testing.T) {
		svc, _, inApp := newTestService(t)
		ctx, _ := actorCtx(domain.RoleCustomer)

		_, err := svc.Send(ctx, sendCommand(recipient))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
		assert.Zero(t, inApp.Calls())
	})

	t.Run("anonymous is unauthorized", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.Send(context.Background(), sendCommand(recipient))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("invalid content is rejected", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		ctx, _ := actorCtx(domain.RoleGovernment)
		cmd := sendCommand(recipient)
		cmd.Title = "  "

		_, err := svc.Send(ctx, cmd)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestService_SendRetry(t *testing.T) {
	recipient := domain.ActorID(uuid.New())
	svc, _, inApp := newTestService(t)
	ctx, _ := actorCtx(domain.RoleGovernment)

	first, err := svc.Send(ctx, sendCommand(recipient))
	require.NoError(t, err)

	id := first.NotificationID
	retry := SendCommand{NotificationID: &id, RecipientID: recipient}
	second, err := svc.Send(ctx, retry)
	require.NoError(t, err)
	assert.Equal(t, id, second.NotificationID)
	assert.True(t, second.Channels[models.ChannelInApp].Skipped)
	assert.Equal(t, 1, inApp.Calls())

	t.Run("other recipient conflicts", func(t *testing.T) {
		retry.RecipientID = domain.ActorID(uuid.New())
		_, err := svc.Send(ctx, retry)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("unknown notification", func(t *testing.T) {
		missing := domain.NewNotificationID()
		_, err := svc.Send(ctx, SendCommand{NotificationID: &missing, RecipientID: recipient})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestService_ListMine(t *testing.T) {
	svc, _, _ := newTestService(t)
	gov, _ := actorCtx(domain.RoleGovernment)
	mineCtx, me := actorCtx(domain.RoleShopOwner)

	_, err := svc.Send(gov, sendCommand(me.ID))
	require.NoError(t, err)
	_, err = svc.Send(gov, sendCommand(domain.ActorID(uuid.New())))
	require.NoError(t, err)

	got, err := svc.ListMine(mineCtx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, me.ID, got[0].RecipientID)

	_, err = svc.ListMine(context.Background(), 10)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestService_TemplatesArePublic(t *testing.T) {
	svc, _, _ := newTestService(t)

	templates, err := svc.Templates(context.Background())
	require.NoError(t, err)
	assert.Len(t, templates, len(models.Templates()))
}
