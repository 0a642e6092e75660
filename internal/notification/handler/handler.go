package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"govdash/internal/notification"
	"govdash/internal/notification/models"
	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
	"govdash/pkg/platform/httputil"
	"govdash/pkg/requestcontext"
)

// Service is the notification surface exposed over HTTP.
type Service interface {
	Send(ctx context.Context, cmd notification.SendCommand) (models.DispatchResult, error)
	Templates(ctx context.Context) ([]models.Template, error)
	ListMine(ctx context.Context, limit int) ([]*models.Notification, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/notifications/send", h.handleSend)
	r.Get("/v1/notifications/templates", h.handleTemplates)
	r.Get("/v1/notifications", h.handleList)
}

type SendRequest struct {
	UserID         string   `json:"userId"`
	Type           string   `json:"type"`
	Title          string   `json:"title"`
	Message        string   `json:"message"`
	ShopID         string   `json:"shopId,omitempty"`
	Channels       []string `json:"channels"`
	NotificationID string   `json:"notificationId,omitempty"`

	recipient domain.ActorID
	shopID    *domain.ShopID
	channels  []models.Channel
	retryOf   *domain.NotificationID
}

func (r *SendRequest) Validate() error {
	var err error
	if r.recipient, err = domain.ParseActorID(strings.TrimSpace(r.UserID)); err != nil {
		return dErrors.New(dErrors.CodeValidation, "userId must be a valid id")
	}
	if raw := strings.TrimSpace(r.ShopID); raw != "" {
		id, err := domain.ParseShopID(raw)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "shopId must be a valid id")
		}
		r.shopID = &id
	}
	if raw := strings.TrimSpace(r.NotificationID); raw != "" {
		id, err := domain.ParseNotificationID(raw)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "notificationId must be a valid id")
		}
		r.retryOf = &id
		// A retry may narrow the channels but does not have to name any.
		if len(r.Channels) == 0 {
			return nil
		}
	}
	if r.channels, err = models.ParseChannels(r.Channels); err != nil {
		return err
	}
	return nil
}

func (r *SendRequest) command() notification.SendCommand {
	return notification.SendCommand{
		NotificationID: r.retryOf,
		RecipientID:    r.recipient,
		Type:           models.Type(strings.TrimSpace(r.Type)),
		Title:          r.Title,
		Message:        r.Message,
		ShopID:         r.shopID,
		Channels:       r.channels,
	}
}

type SendResponse struct {
	Success        bool                                    `json:"success"`
	NotificationID string                                  `json:"notificationId"`
	ChannelResults map[models.Channel]models.ChannelResult `json:"channelResults"`
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SendRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	result, err := h.service.Send(ctx, req.command())
	if err != nil {
		h.logFailure(ctx, "notification send failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SendResponse{
		Success:        result.Success(),
		NotificationID: result.NotificationID.String(),
		ChannelResults: result.Channels,
	})
}

type TemplatesResponse struct {
	Templates []models.Template `json:"templates"`
}

func (h *Handler) handleTemplates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	templates, err := h.service.Templates(ctx)
	if err != nil {
		h.logFailure(ctx, "notification templates failed", requestcontext.RequestID(ctx), err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, TemplatesResponse{Templates: templates})
}

type ListResponse struct {
	Notifications []*models.Notification `json:"notifications"`
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be between 1 and 200"))
			return
		}
		limit = n
	}
	out, err := h.service.ListMine(ctx, limit)
	if err != nil {
		h.logFailure(ctx, "notification list failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	if out == nil {
		out = []*models.Notification{}
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Notifications: out})
}

func (h *Handler) logFailure(ctx context.Context, msg, requestID string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestID, "error", err)
		return
	}
	h.logger.WarnContext(ctx, msg, "request_id", requestID, "error", err)
}
