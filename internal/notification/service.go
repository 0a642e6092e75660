package notification

import (
	"context"
	"errors"

	"govdash/internal/notification/models"
	"govdash/internal/notification/store"
	"govdash/internal/policy"
	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
	"govdash/pkg/platform/audit"
	"govdash/pkg/platform/sentinel"
	"govdash/pkg/requestcontext"
)

// Authorizer decides who may send and read notifications.
type Authorizer interface {
	Require(ctx context.Context, actor domain.Actor, action policy.Action, resource policy.Resource) (policy.Decision, error)
}

// SendCommand is an explicit send by the service identity or an official.
// A non-nil NotificationID re-dispatches a stored notification; channels
// already delivered are skipped.
type SendCommand struct {
	NotificationID *domain.NotificationID
	RecipientID    domain.ActorID
	Type           models.Type
	Title          string
	Message        string
	ShopID         *domain.ShopID
	Channels       []models.Channel
}

// Service is the notification surface exposed to callers.
type Service struct {
	store      store.Store
	dispatcher *Dispatcher
	authorizer Authorizer
	auditor    *audit.Recorder
}

func NewService(st store.Store, dispatcher *Dispatcher, authorizer Authorizer, auditor *audit.Recorder) (*Service, error) {
	if st == nil || dispatcher == nil {
		return nil, errors.New("notification store and dispatcher are required")
	}
	if authorizer == nil {
		return nil, errors.New("notification authorizer is required")
	}
	return &Service{store: st, dispatcher: dispatcher, authorizer: authorizer, auditor: auditor}, nil
}

// Send dispatches synchronously and reports every channel outcome.
func (s *Service) Send(ctx context.Context, cmd SendCommand) (models.DispatchResult, error) {
	actor := requestcontext.Actor(ctx)
	decision, err := s.authorizer.Require(ctx, actor, policy.ActionNotificationSend, policy.NotificationResource(cmd.RecipientID))
	if err != nil {
		s.auditor.RecordReason(ctx, actor, audit.EventNotificationSent,
			audit.EntityRef{Type: "notification", ID: cmd.RecipientID.String()}, audit.OutcomeDenied, decision.Rule)
		return models.DispatchResult{}, err
	}

	n, err := s.prepare(ctx, cmd)
	if err != nil {
		return models.DispatchResult{}, err
	}
	return s.dispatcher.Dispatch(ctx, n)
}

func (s *Service) prepare(ctx context.Context, cmd SendCommand) (*models.Notification, error) {
	if cmd.NotificationID == nil {
		n, err := models.NewNotification(domain.NewNotificationID(), cmd.RecipientID, cmd.Type,
			cmd.Title, cmd.Message, cmd.ShopID, cmd.Channels, requestcontext.Now(ctx))
		if err != nil {
			return nil, err
		}
		return n, nil
	}

	n, err := s.store.FindNotification(ctx, *cmd.NotificationID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "notification not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load notification")
	}
	if n.RecipientID != cmd.RecipientID {
		return nil, dErrors.New(dErrors.CodeConflict, "notification belongs to another recipient")
	}
	if len(cmd.Channels) > 0 {
		n.Channels = cmd.Channels
	}
	return n, nil
}

// Templates lists the public notification templates.
func (s *Service) Templates(ctx context.Context) ([]models.Template, error) {
	if _, err := s.authorizer.Require(ctx, requestcontext.Actor(ctx), policy.ActionTemplateRead, policy.TemplateResource()); err != nil {
		return nil, err
	}
	return models.Templates(), nil
}

// ListMine returns the caller's notifications, newest first.
func (s *Service) ListMine(ctx context.Context, limit int) ([]*models.Notification, error) {
	actor := requestcontext.Actor(ctx)
	if _, err := s.authorizer.Require(ctx, actor, policy.ActionNotificationRead, policy.NotificationResource(actor.ID)); err != nil {
		return nil, err
	}
	out, err := s.store.ListByRecipient(ctx, actor.ID, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}
	return out, nil
}
