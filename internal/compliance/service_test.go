package compliance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"govdash/internal/events"
	notifmodels "govdash/internal/notification/models"
	"govdash/internal/policy"
	"govdash/internal/registry/models"
	"govdash/internal/registry/store/memory"
	"govdash/internal/registry/txn"
	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
	"govdash/pkg/requestcontext"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []*notifmodels.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n *notifmodels.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) all() []*notifmodels.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*notifmodels.Notification(nil), r.sent...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.LifecycleEvent
}

func (r *recordingPublisher) Publish(_ context.Context, e events.LifecycleEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

type ServiceSuite struct {
	suite.Suite
	store     *memory.InMemory
	notifier  *recordingNotifier
	publisher *recordingPublisher
	service   *Service
	ctx       context.Context
	now       time.Time

	owner domain.Actor
	shop  *models.Shop
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = memory.New()
	s.notifier = &recordingNotifier{}
	s.publisher = &recordingPublisher{}
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	evaluator, err := policy.New(policy.NewStoreRoleLookup(s.store, nil))
	s.Require().NoError(err)

	s.service, err = NewService(s.store, txn.NewShopTx(txn.NoTx{}), required,
		WithNotifier(s.notifier),
		WithEventPublisher(s.publisher),
		WithAuthorizer(evaluator),
		WithSequencer(NewSequencer(16)),
	)
	s.Require().NoError(err)
	s.T().Cleanup(s.service.Close)

	s.owner = domain.Actor{ID: domain.ActorID(uuid.New()), Role: domain.RoleShopOwner}
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.shop = s.createShop(models.ShopStatusApproved)
}

func (s *ServiceSuite) createShop(status models.ShopStatus) *models.Shop {
	shop, err := models.NewShop(domain.NewShopID(), s.owner.ID, "Corner Grocer "+uuid.NewString()[:4], "", "grocery", s.now.Add(-time.Hour))
	s.Require().NoError(err)
	shop.Status = status
	s.Require().NoError(s.store.CreateShop(s.ctx, shop))
	return shop
}

func (s *ServiceSuite) TestFirstComputationOfUndocumentedShop() {
	out, err := s.service.Recompute(s.ctx, s.shop.ID)
	s.Require().NoError(err)

	s.Equal(60, out.Result.Score)
	s.Equal(models.ComplianceStatusWarning, out.Result.Status)
	s.Equal(s.now, out.RecordedAt)

	stored, err := s.store.FindShop(s.ctx, s.shop.ID)
	s.Require().NoError(err)
	s.Equal(60, stored.ComplianceScore)
	s.Equal(models.ComplianceStatusWarning, stored.ComplianceStatus)
	s.Equal(s.shop.Version+1, stored.Version)

	history, err := s.store.ListHistory(s.ctx, s.shop.ID, 10)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(60, history[0].Score)

	alerts := s.notifier.all()
	s.Require().Len(alerts, 1)
	s.Equal(notifmodels.TypeComplianceAlert, alerts[0].Type)
	s.Equal(s.owner.ID, alerts[0].RecipientID)
	s.Contains(alerts[0].Message, "warning")

	s.Require().Len(s.publisher.events, 1)
	event := s.publisher.events[0]
	s.Equal(events.KindComplianceUpdated, event.Kind)
	s.Equal(string(models.ComplianceStatusPending), event.From)
	s.Equal(string(models.ComplianceStatusWarning), event.To)
}

func (s *ServiceSuite) TestRecomputeIsIdempotentButAppendsHistory() {
	first, err := s.service.Recompute(s.ctx, s.shop.ID)
	s.Require().NoError(err)
	second, err := s.service.Recompute(s.ctx, s.shop.ID)
	s.Require().NoError(err)

	s.Equal(first.Result, second.Result)
	history, err := s.store.ListHistory(s.ctx, s.shop.ID, 10)
	s.Require().NoError(err)
	s.Len(history, 2)
	s.Len(s.notifier.all(), 1, "an unchanged status raises no second alert")
}

func (s *ServiceSuite) TestImprovingShopBecomesCompliant() {
	types := required[:2]
	svc, err := NewService(s.store, txn.NewShopTx(nil), types, WithNotifier(s.notifier))
	s.Require().NoError(err)
	defer svc.Close()

	for _, t := range types {
		doc, err := models.NewDocument(domain.NewDocumentID(), s.shop.ID, t, "s3://docs/"+string(t), nil, s.now.Add(-48*time.Hour))
		s.Require().NoError(err)
		doc.Status = models.DocumentStatusApproved
		s.Require().NoError(s.store.CreateDocument(s.ctx, doc))
	}
	score := 90
	completedAt := s.now.Add(-time.Hour)
	s.Require().NoError(s.store.CreateInspection(s.ctx, &models.Inspection{
		ID:          domain.NewInspectionID(),
		ShopID:      s.shop.ID,
		InspectorID: domain.ActorID(uuid.New()),
		Type:        models.InspectionRoutine,
		Status:      models.InspectionStatusCompleted,
		Score:       &score,
		CompletedAt: &completedAt,
	}))
	for _, rating := range []int{5, 3} {
		review, err := models.NewReview(domain.NewReviewID(), s.shop.ID, domain.ActorID(uuid.New()), rating, "", s.now)
		s.Require().NoError(err)
		s.Require().NoError(s.store.CreateReview(s.ctx, review))
	}
	s.Require().NoError(s.store.AppendHistory(s.ctx, &models.HistoryRecord{
		ShopID: s.shop.ID, Score: 60, Status: models.ComplianceStatusWarning, RecordedAt: s.now.Add(-24 * time.Hour),
	}))

	out, err := svc.Recompute(s.ctx, s.shop.ID)
	s.Require().NoError(err)
	s.Equal(models.Factors{Documents: 100, Inspections: 90, Reviews: 80, History: 100}, out.Result.Factors)
	s.Equal(93, out.Result.Score)
	s.Equal(models.ComplianceStatusCompliant, out.Result.Status)
	s.Empty(s.notifier.all())
}

func (s *ServiceSuite) TestPendingShopIsNotScored() {
	pending := s.createShop(models.ShopStatusPending)

	_, err := s.service.Recompute(s.ctx, pending.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	history, err := s.store.ListHistory(s.ctx, pending.ID, 10)
	s.Require().NoError(err)
	s.Empty(history)
}

func (s *ServiceSuite) TestMissingShop() {
	_, err := s.service.Recompute(s.ctx, domain.NewShopID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestConcurrentRecomputesAreSequential() {
	const n = 10
	var wg sync.WaitGroup
	for range n {
		wg.Go(func() {
			_, err := s.service.Recompute(s.ctx, s.shop.ID)
			s.NoError(err)
		})
	}
	wg.Wait()

	history, err := s.store.ListHistory(s.ctx, s.shop.ID, 2*n)
	s.Require().NoError(err)
	s.Len(history, n)

	stored, err := s.store.FindShop(s.ctx, s.shop.ID)
	s.Require().NoError(err)
	s.Equal(s.shop.Version+n, stored.Version)
}

func (s *ServiceSuite) TestEnqueueRunsBeforeLaterRecompute() {
	s.service.Enqueue(s.shop.ID)
	_, err := s.service.Recompute(s.ctx, s.shop.ID)
	s.Require().NoError(err)

	history, err := s.store.ListHistory(s.ctx, s.shop.ID, 10)
	s.Require().NoError(err)
	s.Len(history, 2)
}

func (s *ServiceSuite) TestComputeAuthorization() {
	customer := domain.Actor{ID: domain.ActorID(uuid.New()), Role: domain.RoleCustomer}
	official := domain.Actor{ID: domain.ActorID(uuid.New()), Role: domain.RoleGovernment}

	_, err := s.service.Compute(requestcontext.WithActor(s.ctx, customer), s.shop.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.service.Compute(s.ctx, s.shop.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.service.Compute(requestcontext.WithActor(s.ctx, s.owner), s.shop.ID)
	s.NoError(err)

	_, err = s.service.Compute(requestcontext.WithActor(s.ctx, official), s.shop.ID)
	s.NoError(err)

	records, err := s.service.History(requestcontext.WithActor(s.ctx, customer), s.shop.ID, 10)
	s.Require().NoError(err, "approved shops are publicly readable")
	s.Len(records, 2)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, txn.NewShopTx(nil), required)
	if err == nil {
		t.Fatal("expected error for missing store")
	}
	_, err = NewService(memory.New(), nil, required)
	if err == nil {
		t.Fatal("expected error for missing transaction runner")
	}
}
