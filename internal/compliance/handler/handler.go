package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"govdash/internal/compliance"
	"govdash/internal/registry/models"
	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
	"govdash/pkg/platform/httputil"
	"govdash/pkg/requestcontext"
)

// Service is the compliance surface exposed over HTTP.
type Service interface {
	Compute(ctx context.Context, shopID domain.ShopID) (*compliance.Outcome, error)
	History(ctx context.Context, shopID domain.ShopID, limit int) ([]*models.HistoryRecord, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/compliance/compute", h.handleCompute)
	r.Get("/v1/shops/{id}/compliance/history", h.handleHistory)
}

type ComputeRequest struct {
	ShopID string `json:"shopId"`
}

func (r *ComputeRequest) Validate() error {
	r.ShopID = strings.TrimSpace(r.ShopID)
	if r.ShopID == "" {
		return dErrors.New(dErrors.CodeValidation, "shopId is required")
	}
	return nil
}

type FactorResponse struct {
	Score  int     `json:"score"`
	Weight float64 `json:"weight"`
}

type FactorsResponse struct {
	Documents   FactorResponse `json:"documents"`
	Inspections FactorResponse `json:"inspections"`
	Reviews     FactorResponse `json:"reviews"`
	History     FactorResponse `json:"history"`
}

type ComputeResponse struct {
	ShopID          string          `json:"shopId"`
	Score           int             `json:"score"`
	Status          string          `json:"status"`
	Factors         FactorsResponse `json:"factors"`
	Recommendations []string        `json:"recommendations"`
}

func toComputeResponse(out *compliance.Outcome) ComputeResponse {
	f := out.Result.Factors
	return ComputeResponse{
		ShopID: out.ShopID.String(),
		Score:  out.Result.Score,
		Status: string(out.Result.Status),
		Factors: FactorsResponse{
			Documents:   FactorResponse{Score: f.Documents, Weight: weight(compliance.WeightDocuments)},
			Inspections: FactorResponse{Score: f.Inspections, Weight: weight(compliance.WeightInspections)},
			Reviews:     FactorResponse{Score: f.Reviews, Weight: weight(compliance.WeightReviews)},
			History:     FactorResponse{Score: f.History, Weight: weight(compliance.WeightHistory)},
		},
		Recommendations: out.Result.Recommendations,
	}
}

func weight(percent int) float64 {
	return float64(percent) / 100
}

func (h *Handler) handleCompute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ComputeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	shopID, err := domain.ParseShopID(req.ShopID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out, err := h.service.Compute(ctx, shopID)
	if err != nil {
		h.logFailure(ctx, "compliance compute failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toComputeResponse(out))
}

type HistoryResponse struct {
	ShopID  string                  `json:"shopId"`
	Records []*models.HistoryRecord `json:"records"`
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	shopID, err := domain.ParseShopID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be between 1 and 100"))
			return
		}
		limit = n
	}

	records, err := h.service.History(ctx, shopID, limit)
	if err != nil {
		h.logFailure(ctx, "compliance history failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	if records == nil {
		records = []*models.HistoryRecord{}
	}
	httputil.WriteJSON(w, http.StatusOK, HistoryResponse{ShopID: shopID.String(), Records: records})
}

func (h *Handler) logFailure(ctx context.Context, msg, requestID string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestID, "error", err)
		return
	}
	h.logger.WarnContext(ctx, msg, "request_id", requestID, "error", err)
}
