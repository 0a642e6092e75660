package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govdash/internal/compliance"
	"govdash/internal/registry/models"
	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
	"govdash/pkg/testutil"
)

type stubService struct {
	outcome *compliance.Outcome
	history []*models.HistoryRecord
	err     error

	gotShop  domain.ShopID
	gotLimit int
}

func (s *stubService) Compute(_ context.Context, shopID domain.ShopID) (*compliance.Outcome, error) {
	s.gotShop = shopID
	return s.outcome, s.err
}

func (s *stubService) History(_ context.Context, shopID domain.ShopID, limit int) ([]*models.HistoryRecord, error) {
	s.gotShop = shopID
	s.gotLimit = limit
	return s.history, s.err
}

func newRouter(svc Service) http.Handler {
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func TestHandleCompute(t *testing.T) {
	shopID := domain.NewShopID()
	svc := &stubService{outcome: &compliance.Outcome{
		ShopID: shopID,
		Result: compliance.Result{
			Score:           60,
			Status:          models.ComplianceStatusWarning,
			Factors:         models.Factors{Documents: 0, Inspections: 100, Reviews: 100, History: 100},
			Recommendations: []string{"Upload documents"},
		},
		RecordedAt: time.Now(),
	}}

	rr := testutil.DoRequest(newRouter(svc), testutil.NewJSONRequest(t, http.MethodPost, "/v1/compliance/compute",
		map[string]string{"shopId": shopID.String()}))

	testutil.AssertStatusOK(t, rr)
	resp := testutil.UnmarshalResponse[ComputeResponse](t, rr)
	assert.Equal(t, shopID, svc.gotShop)
	assert.Equal(t, 60, resp.Score)
	assert.Equal(t, "warning", resp.Status)
	assert.Equal(t, FactorResponse{Score: 0, Weight: 0.4}, resp.Factors.Documents)
	assert.Equal(t, FactorResponse{Score: 100, Weight: 0.3}, resp.Factors.Inspections)
	assert.Equal(t, FactorResponse{Score: 100, Weight: 0.2}, resp.Factors.Reviews)
	assert.Equal(t, FactorResponse{Score: 100, Weight: 0.1}, resp.Factors.History)
	assert.Equal(t, []string{"Upload documents"}, resp.Recommendations)
}

func TestHandleCompute_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"missing shop id", `{}`, nil, http.StatusBadRequest, "validation_error"},
		{"malformed shop id", `{"shopId":"nope"}`, nil, http.StatusBadRequest, "invalid_input"},
		{"unknown field", `{"shop":"x"}`, nil, http.StatusBadRequest, "bad_request"},
		{"forbidden", `{"shopId":"` + domain.NewShopID().String() + `"}`, dErrors.New(dErrors.CodeForbidden, "no"), http.StatusForbidden, "forbidden"},
		{"pending shop", `{"shopId":"` + domain.NewShopID().String() + `"}`, dErrors.New(dErrors.CodeConflict, "pending"), http.StatusConflict, "conflict"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := testutil.DoRequest(newRouter(&stubService{err: tt.err}),
				testutil.NewRequestWithBody(t, http.MethodPost, "/v1/compliance/compute", tt.body))
			testutil.AssertStatusAndError(t, rr, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestHandleHistory(t *testing.T) {
	shopID := domain.NewShopID()

	t.Run("default limit and empty list", func(t *testing.T) {
		svc := &stubService{}
		rr := testutil.DoRequest(newRouter(svc), testutil.NewRequest(t, http.MethodGet, "/v1/shops/"+shopID.String()+"/compliance/history"))
		testutil.AssertStatusOK(t, rr)
		assert.Equal(t, defaultHistoryLimit, svc.gotLimit)
		assert.JSONEq(t, `{"shopId":"`+shopID.String()+`","records":[]}`, rr.Body.String())
	})

	t.Run("explicit limit", func(t *testing.T) {
		svc := &stubService{history: []*models.HistoryRecord{{ShopID: shopID, Score: 71}}}
		rr := testutil.DoRequest(newRouter(svc), testutil.NewRequest(t, http.MethodGet, "/v1/shops/"+shopID.String()+"/compliance/history?limit=5"))
		testutil.AssertStatusOK(t, rr)
		assert.Equal(t, 5, svc.gotLimit)
		resp := testutil.UnmarshalResponse[HistoryResponse](t, rr)
		require.Len(t, resp.Records, 1)
		assert.Equal(t, 71, resp.Records[0].Score)
	})

	t.Run("limit out of range", func(t *testing.T) {
		rr := testutil.DoRequest(newRouter(&stubService{}), testutil.NewRequest(t, http.MethodGet, "/v1/shops/"+shopID.String()+"/compliance/history?limit=500"))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
	})
}
