package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"govdash/internal/compliance"
	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
	"govdash/pkg/platform/audit"
	"govdash/pkg/platform/httputil"
	"govdash/pkg/requestcontext"
)

type Service interface {
	SetRole(ctx context.Context, actorID domain.ActorID, role domain.Role) error
	Recompute(ctx context.Context, shopID domain.ShopID) (*compliance.Outcome, error)
	RunSweep(ctx context.Context) error
	Broadcast(ctx context.Context, recipients []domain.ActorID, message string) (int, error)
	AuditTrail(ctx context.Context, ref audit.EntityRef) ([]audit.Event, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Put("/v1/system/roles/{actorId}", h.handleSetRole)
	r.Post("/v1/system/shops/{id}/recompute", h.handleRecompute)
	r.Post("/v1/system/sweep", h.handleSweep)
	r.Post("/v1/system/notifications", h.handleBroadcast)
	r.Get("/v1/system/audit", h.handleAuditTrail)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
	} else {
		h.logger.WarnContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
	}
	httputil.WriteError(w, err)
}

type SetRoleRequest struct {
	Role string `json:"role"`
}

func (r *SetRoleRequest) Validate() error {
	role, err := domain.ParseRole(strings.TrimSpace(r.Role))
	if err != nil {
		return err
	}
	r.Role = string(role)
	return nil
}

func (h *Handler) handleSetRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, err := domain.ParseActorID(chi.URLParam(r, "actorId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[SetRoleRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.service.SetRole(ctx, actorID, domain.Role(req.Role)); err != nil {
		h.fail(w, r, "role provisioning failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type RecomputeResponse struct {
	ShopID     string    `json:"shopId"`
	Score      int       `json:"score"`
	Status     string    `json:"status"`
	RecordedAt time.Time `json:"recordedAt"`
}

func (h *Handler) handleRecompute(w http.ResponseWriter, r *http.Request) {
	shopID, err := domain.ParseShopID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out, err := h.service.Recompute(r.Context(), shopID)
	if err != nil {
		h.fail(w, r, "forced recompute failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RecomputeResponse{
		ShopID:     out.ShopID.String(),
		Score:      out.Result.Score,
		Status:     string(out.Result.Status),
		RecordedAt: out.RecordedAt,
	})
}

func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RunSweep(r.Context()); err != nil {
		h.fail(w, r, "on-demand sweep failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type BroadcastRequest struct {
	Recipients []string `json:"recipients"`
	Message    string   `json:"message"`

	recipients []domain.ActorID
}

func (r *BroadcastRequest) Validate() error {
	if len(r.Recipients) == 0 {
		return dErrors.New(dErrors.CodeValidation, "recipients are required")
	}
	r.recipients = make([]domain.ActorID, 0, len(r.Recipients))
	for _, raw := range r.Recipients {
		id, err := domain.ParseActorID(strings.TrimSpace(raw))
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "recipients must be valid ids")
		}
		r.recipients = append(r.recipients, id)
	}
	return nil
}

type BroadcastResponse struct {
	Queued int `json:"queued"`
}

func (h *Handler) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[BroadcastRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	queued, err := h.service.Broadcast(ctx, req.recipients, req.Message)
	if err != nil {
		h.fail(w, r, "system notice failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, BroadcastResponse{Queued: queued})
}

type AuditEventResponse struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actorId,omitempty"`
	ActorRole string    `json:"actorRole,omitempty"`
	Action    string    `json:"action"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
}

type AuditTrailResponse struct {
	EntityType string               `json:"entityType"`
	EntityID   string               `json:"entityId"`
	Events     []AuditEventResponse `json:"events"`
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ref := audit.EntityRef{
		Type: strings.TrimSpace(r.URL.Query().Get("entityType")),
		ID:   strings.TrimSpace(r.URL.Query().Get("entityId")),
	}
	if ref.Type == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "entityType is required"))
		return
	}
	events, err := h.service.AuditTrail(r.Context(), ref)
	if err != nil {
		h.fail(w, r, "audit trail read failed", err)
		return
	}
	resp := AuditTrailResponse{EntityType: ref.Type, EntityID: ref.ID, Events: make([]AuditEventResponse, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, AuditEventResponse{
			ID:        e.ID.String(),
			Category:  string(e.Category),
			Timestamp: e.Timestamp,
			ActorID:   e.ActorID,
			ActorRole: e.ActorRole,
			Action:    e.Action,
			Outcome:   string(e.Outcome),
			Reason:    e.Reason,
			RequestID: e.RequestID,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
