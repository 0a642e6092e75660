// Package lifecycle runs registry commands: authorize, validate the state
// transition, apply it under the shop lock, then trigger scoring,
// notifications, change-feed events and audit once the change is committed.
// Side effects after commit never roll the command back.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"govdash/internal/events"
	"govdash/internal/lifecycle/metrics"
	notifmodels "govdash/internal/notification/models"
	"govdash/internal/platform/tracing"
	"govdash/internal/policy"
	ratemodels "govdash/internal/ratelimit/models"
	registry "govdash/internal/registry/models"
	"govdash/internal/registry/store"
	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
	"govdash/pkg/platform/audit"
	"govdash/pkg/platform/sentinel"
	"govdash/pkg/requestcontext"
)

// ShopTx serializes writes to one shop inside a storage transaction.
type ShopTx interface {
	RunInShop(ctx context.Context, shopID domain.ShopID, fn func(ctx context.Context) error) error
}

type Authorizer interface {
	Require(ctx context.Context, actor domain.Actor, action policy.Action, resource policy.Resource) (policy.Decision, error)
}

type RateLimiter interface {
	Check(ctx context.Context, actor domain.Actor, action ratemodels.Action) error
}

// Scorer schedules a compliance recompute behind any already queued for the shop.
type Scorer interface {
	Enqueue(shopID domain.ShopID)
}

type Notifier interface {
	Notify(ctx context.Context, n *notifmodels.Notification)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.LifecycleEvent)
}

// Change is one committed mutation and the side effects it triggers.
type Change struct {
	Kind       events.Kind
	Shop       *registry.Shop
	EntityType string
	EntityID   string
	Actor      domain.Actor
	From       string
	To         string
	Reason     string
	Audit      audit.AuditEvent
	At         time.Time
	Notify     []*notifmodels.Notification
	// Recompute requests a compliance recompute; it is skipped for shops
	// that are not approved or suspended.
	Recompute bool
}

// Hook runs after a change of its kind is committed.
type Hook func(ctx context.Context, change Change)

const (
	maxReasonLength    = 500
	minSuspension      = 24 * time.Hour
	maxSuspension      = 365 * 24 * time.Hour
	maxScheduleHorizon = 2 * 365 * 24 * time.Hour
)

type Service struct {
	store      store.Store
	tx         ShopTx
	authorizer Authorizer
	limiter    RateLimiter
	scorer     Scorer
	notifier   Notifier
	events     EventPublisher
	auditor    *audit.Recorder
	hooks      map[events.Kind][]Hook
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
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

func WithRateLimiter(l RateLimiter) Option {
	return func(s *Service) {
		s.limiter = l
	}
}

func WithScorer(sc Scorer) Option {
	return func(s *Service) {
		s.scorer = sc
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

// WithHook registers a post-commit hook for one change kind.
func WithHook(kind events.Kind, hook Hook) Option {
	return func(s *Service) {
		s.hooks[kind] = append(s.hooks[kind], hook)
	}
}

func NewService(st store.Store, tx ShopTx, authorizer Authorizer, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("lifecycle store is required")
	}
	if tx == nil {
		return nil, errors.New("lifecycle transaction runner is required")
	}
	if authorizer == nil {
		return nil, errors.New("lifecycle authorizer is required")
	}
	s := &Service{
		store:      st,
		tx:         tx,
		authorizer: authorizer,
		hooks:      make(map[events.Kind][]Hook),
		logger:     slog.Default(),
		tracer:     tracing.Tracer("govdash/lifecycle"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// run wraps one command with a span and the command metrics.
func (s *Service) run(ctx context.Context, operation string, attrs []attribute.KeyValue, fn func(ctx context.Context) error) error {
	ctx, span := tracing.Start(ctx, s.tracer, "lifecycle."+operation, attrs...)
	start := time.Now()
	err := fn(ctx)
	code := "ok"
	if err != nil {
		code = string(dErrors.CodeOf(err))
	}
	s.metrics.ObserveCommand(operation, code, time.Since(start))
	tracing.End(span, err)
	return err
}

// require authorizes and audits denials.
func (s *Service) require(ctx context.Context, actor domain.Actor, action policy.Action, resource policy.Resource, ref audit.EntityRef) error {
	decision, err := s.authorizer.Require(ctx, actor, action, resource)
	if err != nil {
		s.auditor.RecordReason(ctx, actor, audit.AuditEvent(action), ref, audit.OutcomeDenied, decision.Rule)
		return err
	}
	return nil
}

func (s *Service) checkRate(ctx context.Context, actor domain.Actor, action ratemodels.Action) error {
	if s.limiter == nil {
		return nil
	}
	if err := s.limiter.Check(ctx, actor, action); err != nil {
		s.auditor.Record(ctx, actor, audit.EventRateLimitExceeded,
			audit.EntityRef{Type: "actor", ID: actor.ID.String()}, audit.OutcomeDenied)
		return err
	}
	return nil
}

// loadShop reads a shop, reporting an unknown shop to anonymous callers as
// unauthorized so existence is not disclosed.
func (s *Service) loadShop(ctx context.Context, actor domain.Actor, id domain.ShopID) (*registry.Shop, error) {
	shop, err := s.store.FindShop(ctx, id)
	if err != nil {
		err = translate(err, "shop")
		if dErrors.HasCode(err, dErrors.CodeNotFound) && actor.IsAnonymous() {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
		}
		return nil, err
	}
	return shop, nil
}

// saveShop is the shop write hook: it stamps UpdatedAt, bumps Version and
// writes with an optimistic version check.
func (s *Service) saveShop(ctx context.Context, shop *registry.Shop, now time.Time) error {
	expected := shop.Version
	shop.Touch(now)
	if err := s.store.UpdateShop(ctx, shop, expected); err != nil {
		return translate(err, "shop")
	}
	return nil
}

func (s *Service) afterCommit(ctx context.Context, ch Change) {
	s.auditor.RecordReason(ctx, ch.Actor, ch.Audit,
		audit.EntityRef{Type: ch.EntityType, ID: ch.EntityID}, audit.OutcomeSuccess, ch.Reason)
	if ch.To != "" {
		s.metrics.IncTransition(ch.EntityType, ch.To)
	}

	if s.events != nil {
		event := events.New(ch.Kind, ch.Shop, ch.EntityType, ch.EntityID, ch.Actor, ch.At)
		event.From = ch.From
		event.To = ch.To
		event.Reason = ch.Reason
		s.events.Publish(ctx, event)
	}

	if ch.Recompute && s.scorer != nil &&
		(ch.Shop.Status == registry.ShopStatusApproved || ch.Shop.Status == registry.ShopStatusSuspended) {
		s.scorer.Enqueue(ch.Shop.ID)
	}

	if s.notifier != nil {
		for _, n := range ch.Notify {
			if n != nil {
				s.notifier.Notify(ctx, n)
			}
		}
	}

	for _, hook := range s.hooks[ch.Kind] {
		hook(ctx, ch)
	}
}

// render builds a templated notification about shop. A rendering failure is
// logged and yields nil so the command still succeeds.
func (s *Service) render(ctx context.Context, recipient domain.ActorID, t notifmodels.Type, shop *registry.Shop, vars map[string]string, now time.Time) *notifmodels.Notification {
	if recipient.IsNil() {
		return nil
	}
	all := map[string]string{"shop": shop.Name}
	for k, v := range vars {
		all[k] = v
	}
	shopID := shop.ID
	n, err := notifmodels.Render(domain.NewNotificationID(), recipient, t, &shopID, all, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to render notification",
			"type", string(t),
			"shop_id", shop.ID.String(),
			"error", err,
		)
		return nil
	}
	return n
}

func validReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	if len(reason) > maxReasonLength {
		return "", dErrors.New(dErrors.CodeValidation, "reason must be 500 characters or less")
	}
	return reason, nil
}

func shopRef(id domain.ShopID) audit.EntityRef {
	return audit.EntityRef{Type: "shop", ID: id.String()}
}

func actorAndNow(ctx context.Context) (domain.Actor, time.Time) {
	return requestcontext.Actor(ctx), requestcontext.Now(ctx)
}

func translate(err error, what string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, what+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, what+" already exists")
	case errors.Is(err, sentinel.ErrStaleVersion):
		return dErrors.Wrap(err, dErrors.CodeConflict, what+" was modified concurrently")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "storage unavailable")
	}
	if de, ok := dErrors.From(err); ok {
		if de.Code == dErrors.CodeInvariantViolation {
			return dErrors.Wrap(err, dErrors.CodeValidation, de.Message)
		}
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to access "+what)
}
