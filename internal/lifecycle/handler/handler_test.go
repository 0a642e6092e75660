package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govdash/internal/lifecycle"
	lmodels "govdash/internal/lifecycle/models"
	registry "govdash/internal/registry/models"
	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
	"govdash/pkg/testutil"
)

// stubService records the last command; methods a test does not use panic
// through the embedded nil interface.
type stubService struct {
	Service
	err error

	gotShop       domain.ShopID
	gotCreate     lifecycle.CreateShopCommand
	gotTransition lifecycle.ShopTransitionCommand
	gotSchedule   lifecycle.ScheduleInspectionCommand
	gotInspection lifecycle.InspectionTransitionCommand
	gotReview     lifecycle.CreateReviewCommand
	gotDocument   lifecycle.CreateDocumentCommand
	deleted       bool
}

func (s *stubService) CreateShop(_ context.Context, cmd lifecycle.CreateShopCommand) (*registry.Shop, error) {
	s.gotCreate = cmd
	if s.err != nil {
		return nil, s.err
	}
	return &registry.Shop{ID: domain.NewShopID(), Name: cmd.Name, Status: registry.ShopStatusPending}, nil
}

func (s *stubService) GetShop(_ context.Context, id domain.ShopID) (*registry.Shop, error) {
	s.gotShop = id
	if s.err != nil {
		return nil, s.err
	}
	return &registry.Shop{ID: id, Name: "Corner Grocer", Status: registry.ShopStatusApproved}, nil
}

func (s *stubService) TransitionShop(_ context.Context, id domain.ShopID, cmd lifecycle.ShopTransitionCommand) (*registry.Shop, error) {
	s.gotShop = id
	s.gotTransition = cmd
	if s.err != nil {
		return nil, s.err
	}
	return &registry.Shop{ID: id, Status: registry.ShopStatusSuspended}, nil
}

func (s *stubService) DeleteShop(_ context.Context, id domain.ShopID) error {
	s.gotShop = id
	s.deleted = s.err == nil
	return s.err
}

func (s *stubService) CreateDocument(_ context.Context, shopID domain.ShopID, cmd lifecycle.CreateDocumentCommand) (*registry.Document, error) {
	s.gotShop = shopID
	s.gotDocument = cmd
	return &registry.Document{ID: domain.NewDocumentID(), ShopID: shopID, Type: cmd.Type, Status: registry.DocumentStatusPending}, s.err
}

func (s *stubService) ListDocuments(_ context.Context, shopID domain.ShopID) ([]*registry.Document, error) {
	s.gotShop = shopID
	return nil, s.err
}

func (s *stubService) ScheduleInspection(_ context.Context, shopID domain.ShopID, cmd lifecycle.ScheduleInspectionCommand) (*registry.Inspection, error) {
	s.gotShop = shopID
	s.gotSchedule = cmd
	return &registry.Inspection{ID: domain.NewInspectionID(), ShopID: shopID, Type: cmd.Type}, s.err
}

func (s *stubService) TransitionInspection(_ context.Context, id domain.InspectionID, cmd lifecycle.InspectionTransitionCommand) (*registry.Inspection, error) {
	s.gotInspection = cmd
	return &registry.Inspection{ID: id, Status: registry.InspectionStatusCompleted}, s.err
}

func (s *stubService) CreateReview(_ context.Context, shopID domain.ShopID, cmd lifecycle.CreateReviewCommand) (*registry.Review, error) {
	s.gotShop = shopID
	s.gotReview = cmd
	if s.err != nil {
		return nil, s.err
	}
	return &registry.Review{ID: domain.NewReviewID(), ShopID: shopID, Rating: cmd.Rating}, nil
}

func newRouter(svc Service) http.Handler {
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func TestHandleCreateShop(t *testing.T) {
	svc := &stubService{}
	rr := testutil.DoRequest(newRouter(svc), testutil.NewJSONRequest(t, http.MethodPost, "/v1/shops",
		map[string]string{"name": "  Corner Grocer ", "category": "grocery"}))

	testutil.AssertStatus(t, rr, http.StatusCreated)
	assert.Equal(t, "Corner Grocer", svc.gotCreate.Name)
	resp := testutil.UnmarshalResponse[registry.Shop](t, rr)
	assert.Equal(t, registry.ShopStatusPending, resp.Status)

	t.Run("missing name", func(t *testing.T) {
		rr := testutil.DoRequest(newRouter(&stubService{}), testutil.NewRequestWithBody(t, http.MethodPost, "/v1/shops", `{"name":" "}`))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
	})

	t.Run("rate limited", func(t *testing.T) {
		svc := &stubService{err: dErrors.RateLimited("slow down", 30*time.Second)}
		rr := testutil.DoRequest(newRouter(svc), testutil.NewRequestWithBody(t, http.MethodPost, "/v1/shops", `{"name":"A"}`))
		testutil.AssertStatusAndError(t, rr, http.StatusTooManyRequests, "rate_limited")
		testutil.AssertRetryAfter(t, rr, 30)
	})
}

func TestHandleGetShop(t *testing.T) {
	shopID := domain.NewShopID()
	svc := &stubService{}
	rr := testutil.DoRequest(newRouter(svc), testutil.NewRequest(t, http.MethodGet, "/v1/shops/"+shopID.String()))
	testutil.AssertStatusOK(t, rr)
	assert.Equal(t, shopID, svc.gotShop)

	rr = testutil.DoRequest(newRouter(svc), testutil.NewRequest(t, http.MethodGet, "/v1/shops/not-a-uuid"))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")

	rr = testutil.DoRequest(newRouter(&stubService{err: dErrors.New(dErrors.CodeNotFound, "shop not found")}),
		testutil.NewRequest(t, http.MethodGet, "/v1/shops/"+shopID.String()))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}

func TestHandleDeleteShop(t *testing.T) {
	svc := &stubService{}
	rr := testutil.DoRequest(newRouter(svc), testutil.NewRequest(t, http.MethodDelete, "/v1/shops/"+domain.NewShopID().String()))
	testutil.AssertStatus(t, rr, http.StatusNoContent)
	assert.True(t, svc.deleted)
}

func TestHandleShopTransition(t *testing.T) {
	shopID := domain.NewShopID()
	path := "/v1/shops/" + shopID.String() + "/transitions"

	svc := &stubService{}
	rr := testutil.DoRequest(newRouter(svc), testutil.NewRequestWithBody(t, http.MethodPost, path,
		`{"transition":"suspend","reason":"hygiene","durationDays":7}`))
	testutil.AssertStatusOK(t, rr)
	assert.Equal(t, lmodels.ShopSuspend, svc.gotTransition.Transition)
	assert.Equal(t, "hygiene", svc.gotTransition.Reason)
	assert.Equal(t, 7*24*time.Hour, svc.gotTransition.Duration)

	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unknown transition", `{"transition":"close"}`, nil, http.StatusBadRequest, "validation_error"},
		{"negative duration", `{"transition":"suspend","durationDays":-1}`, nil, http.StatusBadRequest, "validation_error"},
		{"forbidden", `{"transition":"approve"}`, dErrors.New(dErrors.CodeForbidden, "no"), http.StatusForbidden, "forbidden"},
		{"invalid transition", `{"transition":"reinstate"}`, dErrors.New(dErrors.CodeInvalidTransition, "no"), http.StatusConflict, "invalid_transition"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := testutil.DoRequest(newRouter(&stubService{err: tt.err}), testutil.NewRequestWithBody(t, http.MethodPost, path, tt.body))
			testutil.AssertStatusAndError(t, rr, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestHandleCreateDocument(t *testing.T) {
	shopID := domain.NewShopID()
	path := "/v1/shops/" + shopID.String() + "/documents"

	svc := &stubService{}
	rr := testutil.DoRequest(newRouter(svc), testutil.NewRequestWithBody(t, http.MethodPost, path,
		`{"type":"business_license","fileRef":"files/license.pdf","expiresAt":"2027-01-01T00:00:00Z"}`))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	assert.Equal(t, registry.DocumentBusinessLicense, svc.gotDocument.Type)
	require.NotNil(t, svc.gotDocument.ExpiresAt)

	rr = testutil.DoRequest(newRouter(&stubService{}), testutil.NewRequestWithBody(t, http.MethodPost, path, `{"type":"passport"}`))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")

	rr = testutil.DoRequest(newRouter(&stubService{}), testutil.NewRequest(t, http.MethodGet, path))
	testutil.AssertStatusOK(t, rr)
	assert.JSONEq(t, `{"documents":[]}`, rr.Body.String())
}

func TestHandleScheduleInspection(t *testing.T) {
	shopID := domain.NewShopID()
	inspector := domain.ActorID(uuid.New())
	path := "/v1/shops/" + shopID.String() + "/inspections"

	svc := &stubService{}
	rr := testutil.DoRequest(newRouter(svc), testutil.NewJSONRequest(t, http.MethodPost, path, map[string]string{
		"inspectorId": inspector.String(),
		"type":        "routine",
		"scheduledAt": "2026-05-01T10:00:00Z",
	}))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	assert.Equal(t, inspector, svc.gotSchedule.InspectorID)
	assert.Equal(t, registry.InspectionRoutine, svc.gotSchedule.Type)

	rr = testutil.DoRequest(newRouter(&stubService{}), testutil.NewRequestWithBody(t, http.MethodPost, path, `{"type":"routine"}`))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")

	rr = testutil.DoRequest(newRouter(&stubService{}), testutil.NewRequestWithBody(t, http.MethodPost, path,
		`{"type":"routine","scheduledAt":"2026-05-01T10:00:00Z","inspectorId":"bob"}`))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
}

func TestHandleInspectionTransition(t *testing.T) {
	path := "/v1/inspections/" + domain.NewInspectionID().String() + "/transitions"

	svc := &stubService{}
	rr := testutil.DoRequest(newRouter(svc), testutil.NewRequestWithBody(t, http.MethodPost, path,
		`{"transition":"complete","score":85,"issues":["dusty shelves"," dusty shelves ",""]}`))
	testutil.AssertStatusOK(t, rr)
	require.NotNil(t, svc.gotInspection.Score)
	assert.Equal(t, 85, *svc.gotInspection.Score)
	assert.Equal(t, []string{"dusty shelves"}, svc.gotInspection.Issues)

	rr = testutil.DoRequest(newRouter(&stubService{}), testutil.NewRequestWithBody(t, http.MethodPost, path, `{"transition":"finish"}`))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
}

func TestHandleCreateReview(t *testing.T) {
	shopID := domain.NewShopID()
	path := "/v1/shops/" + shopID.String() + "/reviews"

	svc := &stubService{}
	rr := testutil.DoRequest(newRouter(svc), testutil.NewRequestWithBody(t, http.MethodPost, path, `{"rating":4,"comment":"friendly"}`))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	assert.Equal(t, lifecycle.CreateReviewCommand{Rating: 4, Comment: "friendly"}, svc.gotReview)

	rr = testutil.DoRequest(newRouter(&stubService{}), testutil.NewRequestWithBody(t, http.MethodPost, path, `{"rating":6}`))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")

	dup := &stubService{err: dErrors.New(dErrors.CodeConflict, "you have already reviewed this shop")}
	rr = testutil.DoRequest(newRouter(dup), testutil.NewRequestWithBody(t, http.MethodPost, path, `{"rating":3}`))
	testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")
}
