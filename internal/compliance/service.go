package compliance

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"govdash/internal/compliance/metrics"
	"govdash/internal/events"
	notifmodels "govdash/internal/notification/models"
	"govdash/internal/platform/tracing"
	"govdash/internal/policy"
	"govdash/internal/registry/models"
	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
	"govdash/pkg/platform/audit"
	"govdash/pkg/platform/sentinel"
	"govdash/pkg/requestcontext"
)

// Store is the registry surface a recompute reads and writes.
type Store interface {
	FindShop(ctx context.Context, id domain.ShopID) (*models.Shop, error)
	UpdateShop(ctx context.Context, shop *models.Shop, expectedVersion int64) error
	ListDocumentsByShop(ctx context.Context, shopID domain.ShopID) ([]*models.Document, error)
	ListCompletedInspections(ctx context.Context, shopID domain.ShopID, limit int) ([]*models.Inspection, error)
	ListReviewsByShop(ctx context.Context, shopID domain.ShopID) ([]*models.Review, error)
	AppendHistory(ctx context.Context, record *models.HistoryRecord) error
	LatestHistory(ctx context.Context, shopID domain.ShopID) (*models.HistoryRecord, error)
	ListHistory(ctx context.Context, shopID domain.ShopID, limit int) ([]*models.HistoryRecord, error)
}

// ShopTx serializes writes to one shop inside a storage transaction.
type ShopTx interface {
	RunInShop(ctx context.Context, shopID domain.ShopID, fn func(ctx context.Context) error) error
}

// Authorizer decides whether an actor may run or read a computation.
type Authorizer interface {
	Require(ctx context.Context, actor domain.Actor, action policy.Action, resource policy.Resource) (policy.Decision, error)
}

// Notifier delivers notifications without blocking the caller.
type Notifier interface {
	Notify(ctx context.Context, n *notifmodels.Notification)
}

// EventPublisher receives the compliance.updated lifecycle event.
type EventPublisher interface {
	Publish(ctx context.Context, event events.LifecycleEvent)
}

// Outcome is a persisted computation.
type Outcome struct {
	ShopID     domain.ShopID `json:"shop_id"`
	Result     Result        `json:"result"`
	RecordedAt time.Time     `json:"recorded_at"`
}

const (
	maxStaleRetries  = 3
	asyncTimeout     = 30 * time.Second
	defaultQueueSize = 64
)

// Service recomputes and persists compliance scores, one shop at a time.
type Service struct {
	store         Store
	tx            ShopTx
	seq           *Sequencer
	requiredTypes []models.DocumentType
	authorizer    Authorizer
	notifier      Notifier
	events        EventPublisher
	auditor       *audit.Recorder
	systemActor   domain.Actor
	logger        *slog.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuthorizer(a Authorizer) Option {
	return func(s *Service) {
		s.authorizer = a
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.events = p
	}
}

func WithAuditor(r *audit.Recorder) Option {
	return func(s *Service) {
		s.auditor = r
	}
}

// WithSystemActor sets the actor recorded for background recomputes.
func WithSystemActor(actor domain.Actor) Option {
	return func(s *Service) {
		s.systemActor = actor
	}
}

// WithSequencer replaces the per-shop queue, mainly to bound it differently.
func WithSequencer(seq *Sequencer) Option {
	return func(s *Service) {
		s.seq = seq
	}
}

func NewService(store Store, tx ShopTx, requiredTypes []models.DocumentType, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("compliance store is required")
	}
	if tx == nil {
		return nil, errors.New("compliance transaction runner is required")
	}
	s := &Service{
		store:         store,
		tx:            tx,
		requiredTypes: append([]models.DocumentType(nil), requiredTypes...),
		logger:        slog.Default(),
		tracer:        tracing.Tracer("govdash/compliance"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.seq == nil {
		s.seq = NewSequencer(defaultQueueSize)
	}
	return s, nil
}

// RequiredTypes returns the document types that count toward the score.
func (s *Service) RequiredTypes() []models.DocumentType {
	return append([]models.DocumentType(nil), s.requiredTypes...)
}

// Recompute scores the shop now, after any recompute already queued for it,
// and persists the result. Each call appends exactly one history record.
func (s *Service) Recompute(ctx context.Context, shopID domain.ShopID) (*Outcome, error) {
	var out *Outcome
	err := s.seq.Do(ctx, shopID, func(ctx context.Context) error {
		var err error
		out, err = s.recompute(ctx, shopID)
		return err
	})
	if errors.Is(err, ErrQueueFull) {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "compliance recompute queue is full, retry shortly")
	}
	if err != nil && dErrors.CodeOf(err) == dErrors.CodeInternal && ctx.Err() != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "compliance recompute timed out")
	}
	return out, err
}

// Enqueue schedules a background recompute behind any already queued for the
// shop. A full queue drops the trigger: the queued recomputes will read the
// same or newer state.
func (s *Service) Enqueue(shopID domain.ShopID) {
	ctx, cancel := context.WithTimeout(context.Background(), asyncTimeout)
	_, err := s.seq.Submit(ctx, shopID, func(ctx context.Context) {
		defer cancel()
		if _, err := s.recompute(ctx, shopID); err != nil {
			s.logger.ErrorContext(ctx, "background compliance recompute failed",
				"shop_id", shopID.String(),
				"error", err,
			)
		}
	})
	if err != nil {
		cancel()
		if errors.Is(err, ErrQueueFull) {
			s.metrics.IncCoalesced()
			return
		}
		s.logger.Warn("compliance recompute not scheduled", "shop_id", shopID.String(), "error", err)
	}
}

// Compute is Recompute on behalf of the actor in ctx.
func (s *Service) Compute(ctx context.Context, shopID domain.ShopID) (*Outcome, error) {
	if err := s.authorize(ctx, policy.ActionComplianceRun, shopID); err != nil {
		return nil, err
	}
	return s.Recompute(ctx, shopID)
}

// History returns up to limit records for the shop, newest first.
func (s *Service) History(ctx context.Context, shopID domain.ShopID, limit int) ([]*models.HistoryRecord, error) {
	if err := s.authorize(ctx, policy.ActionComplianceRead, shopID); err != nil {
		return nil, err
	}
	records, err := s.store.ListHistory(ctx, shopID, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load compliance history")
	}
	return records, nil
}

func (s *Service) authorize(ctx context.Context, action policy.Action, shopID domain.ShopID) error {
	actor := requestcontext.Actor(ctx)
	shop, err := s.store.FindShop(ctx, shopID)
	if err != nil {
		err = translate(err, "shop")
		if dErrors.HasCode(err, dErrors.CodeNotFound) && actor.IsAnonymous() {
			return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
		}
		return err
	}
	if s.authorizer == nil {
		return dErrors.New(dErrors.CodeForbidden, "not permitted to "+string(action))
	}
	decision, err := s.authorizer.Require(ctx, actor, action, policy.ComplianceResource(shop))
	if err != nil {
		s.auditor.RecordReason(ctx, actor, audit.AuditEvent(action),
			audit.EntityRef{Type: "shop", ID: shopID.String()}, audit.OutcomeDenied, decision.Rule)
		return err
	}
	return nil
}

// Close stops accepting recomputes.
func (s *Service) Close() {
	s.seq.Close()
}

func (s *Service) recompute(ctx context.Context, shopID domain.ShopID) (out *Outcome, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "compliance.recompute",
		attribute.String("shop.id", shopID.String()))
	start := time.Now()
	defer func() {
		s.metrics.ObserveRecompute(time.Since(start))
		if err != nil {
			s.metrics.IncFailure()
		}
		tracing.End(span, err)
	}()

	now := requestcontext.Now(ctx)
	var (
		result   Result
		updated  *models.Shop
		previous models.ComplianceStatus
	)
	err = s.tx.RunInShop(ctx, shopID, func(ctx context.Context) error {
		shop, in, err := s.gather(ctx, shopID, now)
		if err != nil {
			return err
		}
		result = Score(in)
		previous = shop.ComplianceStatus

		updated, err = s.persist(ctx, shop, result, now)
		if err != nil {
			return err
		}
		record := &models.HistoryRecord{
			ShopID:     shopID,
			Score:      result.Score,
			Status:     result.Status,
			Factors:    result.Factors,
			RecordedAt: now,
		}
		if err := s.store.AppendHistory(ctx, record); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append compliance history")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("compliance.score", result.Score),
		attribute.String("compliance.status", string(result.Status)),
	)
	s.metrics.IncResult(string(result.Status))
	s.afterCommit(ctx, updated, previous, result, now)

	return &Outcome{ShopID: shopID, Result: result, RecordedAt: now}, nil
}

func (s *Service) gather(ctx context.Context, shopID domain.ShopID, now time.Time) (*models.Shop, Inputs, error) {
	shop, err := s.store.FindShop(ctx, shopID)
	if err != nil {
		return nil, Inputs{}, translate(err, "shop")
	}
	if shop.Status != models.ShopStatusApproved && shop.Status != models.ShopStatusSuspended {
		return nil, Inputs{}, dErrors.New(dErrors.CodeConflict, "compliance is computed only for approved or suspended shops")
	}
	docs, err := s.store.ListDocumentsByShop(ctx, shopID)
	if err != nil {
		return nil, Inputs{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load documents")
	}
	inspections, err := s.store.ListCompletedInspections(ctx, shopID, RecentInspections)
	if err != nil {
		return nil, Inputs{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load inspections")
	}
	reviews, err := s.store.ListReviewsByShop(ctx, shopID)
	if err != nil {
		return nil, Inputs{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load reviews")
	}
	previous, err := s.store.LatestHistory(ctx, shopID)
	if errors.Is(err, sentinel.ErrNotFound) {
		previous, err = nil, nil
	}
	if err != nil {
		return nil, Inputs{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load compliance history")
	}
	return shop, Inputs{
		Now:           now,
		RequiredTypes: s.requiredTypes,
		Documents:     docs,
		Inspections:   inspections,
		Reviews:       reviews,
		Previous:      previous,
	}, nil
}

// persist writes the score onto the shop. Under PostgreSQL another instance
// may win the version race; the shop is then re-read and the write retried.
func (s *Service) persist(ctx context.Context, shop *models.Shop, result Result, now time.Time) (*models.Shop, error) {
	for attempt := 0; ; attempt++ {
		expected := shop.Version
		shop.ComplianceScore = result.Score
		shop.ComplianceStatus = result.Status
		shop.Touch(now)

		err := s.store.UpdateShop(ctx, shop, expected)
		if err == nil {
			return shop, nil
		}
		if !errors.Is(err, sentinel.ErrStaleVersion) || attempt >= maxStaleRetries {
			return nil, translate(err, "shop")
		}
		if shop, err = s.store.FindShop(ctx, shop.ID); err != nil {
			return nil, translate(err, "shop")
		}
	}
}

func (s *Service) afterCommit(ctx context.Context, shop *models.Shop, previous models.ComplianceStatus, result Result, now time.Time) {
	actor := requestcontext.Actor(ctx)
	if actor.IsAnonymous() {
		actor = s.systemActor
	}
	s.auditor.RecordReason(ctx, actor, audit.EventShopScoreUpdate,
		audit.EntityRef{Type: "shop", ID: shop.ID.String()}, audit.OutcomeSuccess, string(result.Status))

	if s.events != nil {
		event := events.New(events.KindComplianceUpdated, shop, "shop", shop.ID.String(), actor, now)
		event.From = string(previous)
		event.To = string(result.Status)
		s.events.Publish(ctx, event)
	}

	if result.Status == previous || result.Status == models.ComplianceStatusCompliant || s.notifier == nil {
		return
	}
	shopID := shop.ID
	n, err := notifmodels.Render(domain.NewNotificationID(), shop.OwnerID, notifmodels.TypeComplianceAlert, &shopID,
		map[string]string{
			"shop":   shop.Name,
			"status": string(result.Status),
			"score":  strconv.Itoa(result.Score),
		}, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to render compliance alert", "shop_id", shop.ID.String(), "error", err)
		return
	}
	s.metrics.IncAlert()
	s.notifier.Notify(ctx, n)
}

func translate(err error, what string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, what+" not found")
	case errors.Is(err, sentinel.ErrStaleVersion):
		return dErrors.Wrap(err, dErrors.CodeConflict, what+" was modified concurrently")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "storage unavailable")
	}
	if _, ok := dErrors.From(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to access "+what)
}
