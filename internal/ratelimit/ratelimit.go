// Package ratelimit enforces per-actor sliding-window budgets on
// user-initiated writes. Exceeding a budget fails the command with a
// retryable rate_limited error instead of blocking.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"govdash/internal/platform/config"
	"govdash/internal/ratelimit/metrics"
	"govdash/internal/ratelimit/models"
	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
)

// BucketStore owns the sliding-window state.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
	Reset(ctx context.Context, key string) error
	Prune(ctx context.Context) (int, error)
}

// Limiter maps actions to budgets and checks them per actor.
type Limiter struct {
	store   BucketStore
	limits  map[models.Action]models.Limit
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Limiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

// WithLimit overrides the budget of one action.
func WithLimit(action models.Action, limit models.Limit) Option {
	return func(l *Limiter) {
		l.limits[action] = limit
	}
}

// LimitsFromConfig builds the action budgets from configuration.
func LimitsFromConfig(cfg config.RateLimitConfig) map[models.Action]models.Limit {
	return map[models.Action]models.Limit{
		models.ActionReviewCreate:   {Requests: cfg.ReviewLimit, Window: cfg.Window},
		models.ActionShopCreate:     {Requests: cfg.ShopLimit, Window: cfg.Window},
		models.ActionFavoriteCreate: {Requests: cfg.FavoriteLimit, Window: cfg.Window},
		models.ActionDocumentCreate: {Requests: cfg.DocumentLimit, Window: cfg.Window},
	}
}

func New(store BucketStore, limits map[models.Action]models.Limit, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		limits: make(map[models.Action]models.Limit, len(limits)),
	}
	for action, limit := range limits {
		l.limits[action] = limit
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check consumes one slot of the actor's budget for action. Actions without a
// configured budget, and the service identity, are never limited. A failing
// bucket store lets the command through.
func (l *Limiter) Check(ctx context.Context, actor domain.Actor, action models.Action) error {
	limit, ok := l.limits[action]
	if !ok || limit.Requests <= 0 || actor.IsService() || actor.IsAnonymous() {
		return nil
	}

	result, err := l.store.Allow(ctx, models.Key(action, actor.ID), limit.Requests, limit.Window)
	if err != nil {
		l.metrics.IncStoreError()
		if l.logger != nil {
			l.logger.ErrorContext(ctx, "rate limit store failed",
				"action", string(action),
				"error", err,
			)
		}
		return nil
	}
	if !result.Allowed {
		l.metrics.IncCheck(string(action), "denied")
		return dErrors.RateLimited("rate limit exceeded for "+string(action), result.RetryAfter)
	}
	l.metrics.IncCheck(string(action), "allowed")
	return nil
}

// Reset clears an actor's budget for action.
func (l *Limiter) Reset(ctx context.Context, actorID domain.ActorID, action models.Action) error {
	return l.store.Reset(ctx, models.Key(action, actorID))
}

// Prune drops idle buckets. It runs on the sweep schedule.
func (l *Limiter) Prune(ctx context.Context) error {
	n, err := l.store.Prune(ctx)
	if err != nil {
		return err
	}
	l.metrics.AddPruned(n)
	if n > 0 && l.logger != nil {
		l.logger.DebugContext(ctx, "pruned idle rate limit buckets", "count", n)
	}
	return nil
}
