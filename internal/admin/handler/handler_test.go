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

	"govdash/internal/compliance"
	"govdash/internal/registry/models"
	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
	"govdash/pkg/platform/audit"
	"govdash/pkg/testutil"
)

type stubService struct {
	err error

	gotActor      domain.ActorID
	gotRole       domain.Role
	gotRecipients []domain.ActorID
	gotRef        audit.EntityRef
	swept         bool
}

func (s *stubService) SetRole(_ context.Context, actorID domain.ActorID, role domain.Role) error {
	s.gotActor, s.gotRole = actorID, role
	return s.err
}

func (s *stubService) Recompute(_ context.Context, shopID domain.ShopID) (*compliance.Outcome, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &compliance.Outcome{
		ShopID:     shopID,
		Result:     compliance.Result{Score: 72, Status: models.ComplianceStatusCompliant},
		RecordedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}, nil
}

func (s *stubService) RunSweep(context.Context) error {
	s.swept = s.err == nil
	return s.err
}

func (s *stubService) Broadcast(_ context.Context, recipients []domain.ActorID, _ string) (int, error) {
	s.gotRecipients = recipients
	return len(recipients), s.err
}

func (s *stubService) AuditTrail(_ context.Context, ref audit.EntityRef) ([]audit.Event, error) {
	s.gotRef = ref
	return []audit.Event{{ID: uuid.New(), Action: "shop.approve", Outcome: audit.OutcomeSuccess}}, s.err
}

func newRouter(svc Service) http.Handler {
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func TestHandleSetRole(t *testing.T) {
	actorID := domain.ActorID(uuid.New())
	path := "/v1/system/roles/" + actorID.String()

	svc := &stubService{}
	rr := testutil.DoRequest(newRouter(svc), testutil.NewRequestWithBody(t, http.MethodPut, path, `{"role":"government"}`))
	testutil.AssertStatus(t, rr, http.StatusNoContent)
	assert.Equal(t, actorID, svc.gotActor)
	assert.Equal(t, domain.RoleGovernment, svc.gotRole)

	rr = testutil.DoRequest(newRouter(&stubService{}), testutil.NewRequestWithBody(t, http.MethodPut, path, `{"role":"admin"}`))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")

	forbidden := &stubService{err: dErrors.New(dErrors.CodeForbidden, "no")}
	rr = testutil.DoRequest(newRouter(forbidden), testutil.NewRequestWithBody(t, http.MethodPut, path, `{"role":"customer"}`))
	testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
}

func TestHandleRecompute(t *testing.T) {
	shopID := domain.NewShopID()
	rr := testutil.DoRequest(newRouter(&stubService{}),
		testutil.NewRequest(t, http.MethodPost, "/v1/system/shops/"+shopID.String()+"/recompute"))

	testutil.AssertStatusOK(t, rr)
	resp := testutil.UnmarshalResponse[RecomputeResponse](t, rr)
	assert.Equal(t, shopID.String(), resp.ShopID)
	assert.Equal(t, 72, resp.Score)
	assert.Equal(t, "compliant", resp.Status)
}

func TestHandleSweep(t *testing.T) {
	svc := &stubService{}
	rr := testutil.DoRequest(newRouter(svc), testutil.NewRequest(t, http.MethodPost, "/v1/system/sweep"))
	testutil.AssertStatus(t, rr, http.StatusNoContent)
	assert.True(t, svc.swept)

	disabled := &stubService{err: dErrors.New(dErrors.CodeUnavailable, "sweep is disabled")}
	rr = testutil.DoRequest(newRouter(disabled), testutil.NewRequest(t, http.MethodPost, "/v1/system/sweep"))
	testutil.AssertStatusAndError(t, rr, http.StatusServiceUnavailable, "unavailable")
}

func TestHandleBroadcast(t *testing.T) {
	a, b := uuid.NewString(), uuid.NewString()
	svc := &stubService{}
	rr := testutil.DoRequest(newRouter(svc), testutil.NewJSONRequest(t, http.MethodPost, "/v1/system/notifications",
		map[string]any{"recipients": []string{a, b}, "message": "maintenance"}))

	testutil.AssertStatus(t, rr, http.StatusAccepted)
	require.Len(t, svc.gotRecipients, 2)
	assert.Equal(t, a, svc.gotRecipients[0].String())
	assert.Equal(t, 2, testutil.UnmarshalResponse[BroadcastResponse](t, rr).Queued)

	rr = testutil.DoRequest(newRouter(&stubService{}), testutil.NewRequestWithBody(t, http.MethodPost, "/v1/system/notifications",
		`{"recipients":["nope"],"message":"x"}`))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
}

func TestHandleAuditTrail(t *testing.T) {
	svc := &stubService{}
	rr := testutil.DoRequest(newRouter(svc), testutil.NewRequest(t, http.MethodGet, "/v1/system/audit?entityType=shop&entityId=abc"))

	testutil.AssertStatusOK(t, rr)
	assert.Equal(t, audit.EntityRef{Type: "shop", ID: "abc"}, svc.gotRef)
	resp := testutil.UnmarshalResponse[AuditTrailResponse](t, rr)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "shop.approve", resp.Events[0].Action)

	rr = testutil.DoRequest(newRouter(&stubService{}), testutil.NewRequest(t, http.MethodGet, "/v1/system/audit"))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
}
