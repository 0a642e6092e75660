package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"govdash/internal/feed"
	"govdash/internal/policy"
	"govdash/internal/registry/models"
	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
	"govdash/pkg/platform/httputil"
	"govdash/pkg/requestcontext"
)

// Subscriber opens filtered subscriptions.
type Subscriber interface {
	Subscribe(ctx context.Context, filter feed.Filter, buffer int) *feed.Subscription
}

// Authorizer decides which events a caller may see.
type Authorizer interface {
	Authorize(ctx context.Context, actor domain.Actor, action policy.Action, resource policy.Resource) policy.Decision
	Require(ctx context.Context, actor domain.Actor, action policy.Action, resource policy.Resource) (policy.Decision, error)
}

const defaultHeartbeat = 15 * time.Second

type Handler struct {
	broker     Subscriber
	authorizer Authorizer
	logger     *slog.Logger
	heartbeat  time.Duration
}

func New(broker Subscriber, authorizer Authorizer, logger *slog.Logger) *Handler {
	return &Handler{broker: broker, authorizer: authorizer, logger: logger, heartbeat: defaultHeartbeat}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/feed", h.handleFeed)
}

// handleFeed streams matching changes as server-sent events. Notification
// subscriptions are limited to the caller's own notifications; shop events
// are delivered only when the caller may read the shop after the change.
func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	filter, err := h.filterFor(ctx, actor, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "streaming unsupported"))
		return
	}

	sub := h.broker.Subscribe(ctx, filter, 0)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			if !h.visible(ctx, actor, event) {
				continue
			}
			if err := writeEvent(w, event); err != nil {
				h.logger.DebugContext(ctx, "feed client went away", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func (h *Handler) filterFor(ctx context.Context, actor domain.Actor, r *http.Request) (feed.Filter, error) {
	q := r.URL.Query()
	filter := feed.Filter{
		Topic:    feed.Topic(q.Get("topic")),
		EntityID: q.Get("id"),
		OwnerID:  q.Get("owner"),
	}
	if !filter.Topic.IsValid() {
		return feed.Filter{}, dErrors.New(dErrors.CodeValidation, "topic must be shop or notification")
	}
	for _, v := range []string{filter.EntityID, filter.OwnerID} {
		if v == "" {
			continue
		}
		if _, err := uuid.Parse(v); err != nil {
			return feed.Filter{}, dErrors.New(dErrors.CodeValidation, "id and owner must be UUIDs")
		}
	}

	if filter.Topic == feed.TopicNotification {
		if filter.OwnerID == "" {
			filter.OwnerID = actor.ID.String()
		}
		// An unparsable owner is the nil actor, which nobody owns.
		owner, _ := domain.ParseActorID(filter.OwnerID)
		if _, err := h.authorizer.Require(ctx, actor, policy.ActionNotificationRead, policy.NotificationResource(owner)); err != nil {
			return feed.Filter{}, err
		}
	}
	return filter, nil
}

func (h *Handler) visible(ctx context.Context, actor domain.Actor, event feed.Event) bool {
	if event.Topic != feed.TopicShop {
		return true
	}
	owner, err := domain.ParseActorID(event.OwnerID)
	if err != nil {
		return false
	}
	resource := policy.Resource{
		Kind:       policy.KindShop,
		ShopStatus: models.ShopStatus(event.Status),
		OwnerID:    owner,
	}
	return h.authorizer.Authorize(ctx, actor, policy.ActionShopRead, resource).Allowed
}

func writeEvent(w http.ResponseWriter, event feed.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Topic, data)
	return err
}
