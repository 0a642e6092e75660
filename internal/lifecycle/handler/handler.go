package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"govdash/internal/lifecycle"
	lmodels "govdash/internal/lifecycle/models"
	registry "govdash/internal/registry/models"
	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
	"govdash/pkg/platform/httputil"
	strutil "govdash/pkg/platform/strings"
	"govdash/pkg/requestcontext"
)

// Service is the lifecycle surface exposed over HTTP.
type Service interface {
	CreateShop(ctx context.Context, cmd lifecycle.CreateShopCommand) (*registry.Shop, error)
	GetShop(ctx context.Context, id domain.ShopID) (*registry.Shop, error)
	TransitionShop(ctx context.Context, id domain.ShopID, cmd lifecycle.ShopTransitionCommand) (*registry.Shop, error)
	IssueWarning(ctx context.Context, id domain.ShopID, reason string) error
	DeleteShop(ctx context.Context, id domain.ShopID) error

	CreateDocument(ctx context.Context, shopID domain.ShopID, cmd lifecycle.CreateDocumentCommand) (*registry.Document, error)
	ListDocuments(ctx context.Context, shopID domain.ShopID) ([]*registry.Document, error)
	TransitionDocument(ctx context.Context, id domain.DocumentID, cmd lifecycle.DocumentTransitionCommand) (*registry.Document, error)

	ScheduleInspection(ctx context.Context, shopID domain.ShopID, cmd lifecycle.ScheduleInspectionCommand) (*registry.Inspection, error)
	TransitionInspection(ctx context.Context, id domain.InspectionID, cmd lifecycle.InspectionTransitionCommand) (*registry.Inspection, error)

	CreateReview(ctx context.Context, shopID domain.ShopID, cmd lifecycle.CreateReviewCommand) (*registry.Review, error)
	ListReviews(ctx context.Context, shopID domain.ShopID) ([]*registry.Review, error)
	AddFavorite(ctx context.Context, shopID domain.ShopID) (*registry.Favorite, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/shops", h.handleCreateShop)
	r.Get("/v1/shops/{id}", h.handleGetShop)
	r.Delete("/v1/shops/{id}", h.handleDeleteShop)
	r.Post("/v1/shops/{id}/transitions", h.handleShopTransition)
	r.Post("/v1/shops/{id}/warnings", h.handleIssueWarning)

	r.Post("/v1/shops/{id}/documents", h.handleCreateDocument)
	r.Get("/v1/shops/{id}/documents", h.handleListDocuments)
	r.Post("/v1/documents/{id}/transitions", h.handleDocumentTransition)

	r.Post("/v1/shops/{id}/inspections", h.handleScheduleInspection)
	r.Post("/v1/inspections/{id}/transitions", h.handleInspectionTransition)

	r.Post("/v1/shops/{id}/reviews", h.handleCreateReview)
	r.Get("/v1/shops/{id}/reviews", h.handleListReviews)
	r.Post("/v1/shops/{id}/favorites", h.handleAddFavorite)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestID, "error", err)
	} else {
		h.logger.WarnContext(ctx, msg, "request_id", requestID, "error", err)
	}
	httputil.WriteError(w, err)
}

func shopIDParam(w http.ResponseWriter, r *http.Request) (domain.ShopID, bool) {
	id, err := domain.ParseShopID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.ShopID{}, false
	}
	return id, true
}

func decode[T any, PT httputil.Validatable[T]](h *Handler, w http.ResponseWriter, r *http.Request) (*T, bool) {
	ctx := r.Context()
	return httputil.DecodeAndPrepare[T, PT](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
}

type CreateShopRequest struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Category string `json:"category"`
}

func (r *CreateShopRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

func (h *Handler) handleCreateShop(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[CreateShopRequest](h, w, r)
	if !ok {
		return
	}
	shop, err := h.service.CreateShop(r.Context(), lifecycle.CreateShopCommand{
		Name: req.Name, Address: req.Address, Category: req.Category,
	})
	if err != nil {
		h.fail(w, r, "shop create failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, shop)
}

func (h *Handler) handleGetShop(w http.ResponseWriter, r *http.Request) {
	id, ok := shopIDParam(w, r)
	if !ok {
		return
	}
	shop, err := h.service.GetShop(r.Context(), id)
	if err != nil {
		h.fail(w, r, "shop read failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, shop)
}

func (h *Handler) handleDeleteShop(w http.ResponseWriter, r *http.Request) {
	id, ok := shopIDParam(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteShop(r.Context(), id); err != nil {
		h.fail(w, r, "shop delete failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type ShopTransitionRequest struct {
	Transition   string `json:"transition"`
	Reason       string `json:"reason,omitempty"`
	DurationDays int    `json:"durationDays,omitempty"`
}

func (r *ShopTransitionRequest) Validate() error {
	r.Transition = strings.TrimSpace(r.Transition)
	if !lmodels.ShopTransition(r.Transition).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "transition must be one of approve, reject, suspend, reinstate")
	}
	if r.DurationDays < 0 {
		return dErrors.New(dErrors.CodeValidation, "durationDays must be positive")
	}
	return nil
}

func (h *Handler) handleShopTransition(w http.ResponseWriter, r *http.Request) {
	id, ok := shopIDParam(w, r)
	if !ok {
		return
	}
	req, ok := decode[ShopTransitionRequest](h, w, r)
	if !ok {
		return
	}
	shop, err := h.service.TransitionShop(r.Context(), id, lifecycle.ShopTransitionCommand{
		Transition: lmodels.ShopTransition(req.Transition),
		Reason:     req.Reason,
		Duration:   time.Duration(req.DurationDays) * 24 * time.Hour,
	})
	if err != nil {
		h.fail(w, r, "shop transition failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, shop)
}

type WarningRequest struct {
	Reason string `json:"reason"`
}

func (r *WarningRequest) Validate() error {
	if strings.TrimSpace(r.Reason) == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	return nil
}

func (h *Handler) handleIssueWarning(w http.ResponseWriter, r *http.Request) {
	id, ok := shopIDParam(w, r)
	if !ok {
		return
	}
	req, ok := decode[WarningRequest](h, w, r)
	if !ok {
		return
	}
	if err := h.service.IssueWarning(r.Context(), id, req.Reason); err != nil {
		h.fail(w, r, "warning issue failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type CreateDocumentRequest struct {
	Type      string     `json:"type"`
	FileRef   string     `json:"fileRef"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func (r *CreateDocumentRequest) Validate() error {
	r.Type = strings.TrimSpace(r.Type)
	if !registry.DocumentType(r.Type).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown document type")
	}
	return nil
}

func (h *Handler) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}
	req, ok := decode[CreateDocumentRequest](h, w, r)
	if !ok {
		return
	}
	doc, err := h.service.CreateDocument(r.Context(), shopID, lifecycle.CreateDocumentCommand{
		Type:      registry.DocumentType(req.Type),
		FileRef:   req.FileRef,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		h.fail(w, r, "document create failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, doc)
}

type DocumentsResponse struct {
	Documents []*registry.Document `json:"documents"`
}

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}
	docs, err := h.service.ListDocuments(r.Context(), shopID)
	if err != nil {
		h.fail(w, r, "document list failed", err)
		return
	}
	if docs == nil {
		docs = []*registry.Document{}
	}
	httputil.WriteJSON(w, http.StatusOK, DocumentsResponse{Documents: docs})
}

type DocumentTransitionRequest struct {
	Transition string `json:"transition"`
	Reason     string `json:"reason,omitempty"`
}

func (r *DocumentTransitionRequest) Validate() error {
	switch lmodels.DocumentTransition(strings.TrimSpace(r.Transition)) {
	case lmodels.DocumentApprove, lmodels.DocumentReject:
		r.Transition = strings.TrimSpace(r.Transition)
		return nil
	}
	return dErrors.New(dErrors.CodeValidation, "transition must be approve or reject")
}

func (h *Handler) handleDocumentTransition(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := decode[DocumentTransitionRequest](h, w, r)
	if !ok {
		return
	}
	doc, err := h.service.TransitionDocument(r.Context(), id, lifecycle.DocumentTransitionCommand{
		Transition: lmodels.DocumentTransition(req.Transition),
		Reason:     req.Reason,
	})
	if err != nil {
		h.fail(w, r, "document transition failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

type ScheduleInspectionRequest struct {
	InspectorID string    `json:"inspectorId,omitempty"`
	Type        string    `json:"type"`
	ScheduledAt time.Time `json:"scheduledAt"`

	inspector domain.ActorID
}

func (r *ScheduleInspectionRequest) Validate() error {
	if !registry.InspectionType(strings.TrimSpace(r.Type)).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "type must be one of routine, complaint, follow_up, renewal")
	}
	r.Type = strings.TrimSpace(r.Type)
	if r.ScheduledAt.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "scheduledAt is required")
	}
	if raw := strings.TrimSpace(r.InspectorID); raw != "" {
		id, err := domain.ParseActorID(raw)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "inspectorId must be a valid id")
		}
		r.inspector = id
	}
	return nil
}

func (h *Handler) handleScheduleInspection(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}
	req, ok := decode[ScheduleInspectionRequest](h, w, r)
	if !ok {
		return
	}
	inspection, err := h.service.ScheduleInspection(r.Context(), shopID, lifecycle.ScheduleInspectionCommand{
		InspectorID: req.inspector,
		Type:        registry.InspectionType(req.Type),
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		h.fail(w, r, "inspection schedule failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, inspection)
}

type InspectionTransitionRequest struct {
	Transition string   `json:"transition"`
	Score      *int     `json:"score,omitempty"`
	Issues     []string `json:"issues,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

func (r *InspectionTransitionRequest) Validate() error {
	r.Transition = strings.TrimSpace(r.Transition)
	if !lmodels.InspectionTransition(r.Transition).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "transition must be one of start, complete, cancel")
	}
	r.Issues = strutil.DedupeAndTrim(r.Issues)
	return nil
}

func (h *Handler) handleInspectionTransition(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseInspectionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := decode[InspectionTransitionRequest](h, w, r)
	if !ok {
		return
	}
	inspection, err := h.service.TransitionInspection(r.Context(), id, lifecycle.InspectionTransitionCommand{
		Transition: lmodels.InspectionTransition(req.Transition),
		Score:      req.Score,
		Issues:     req.Issues,
		Reason:     req.Reason,
	})
	if err != nil {
		h.fail(w, r, "inspection transition failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, inspection)
}

type CreateReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

func (r *CreateReviewRequest) Validate() error {
	if r.Rating < registry.MinRating || r.Rating > registry.MaxRating {
		return dErrors.New(dErrors.CodeValidation, "rating must be between 1 and 5")
	}
	return nil
}

func (h *Handler) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}
	req, ok := decode[CreateReviewRequest](h, w, r)
	if !ok {
		return
	}
	review, err := h.service.CreateReview(r.Context(), shopID, lifecycle.CreateReviewCommand{
		Rating: req.Rating, Comment: req.Comment,
	})
	if err != nil {
		h.fail(w, r, "review create failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, review)
}

type ReviewsResponse struct {
	Reviews []*registry.Review `json:"reviews"`
}

func (h *Handler) handleListReviews(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}
	reviews, err := h.service.ListReviews(r.Context(), shopID)
	if err != nil {
		h.fail(w, r, "review list failed", err)
		return
	}
	if reviews == nil {
		reviews = []*registry.Review{}
	}
	httputil.WriteJSON(w, http.StatusOK, ReviewsResponse{Reviews: reviews})
}

func (h *Handler) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}
	favorite, err := h.service.AddFavorite(r.Context(), shopID)
	if err != nil {
		h.fail(w, r, "favorite create failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, favorite)
}
