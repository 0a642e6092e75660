// Package sweep runs the periodic registry maintenance jobs: expiring
// documents, warning owners ahead of expiry, reminding officials of elapsed
// suspensions and pruning rate limit state. Every job acts as the service
// identity and goes through the lifecycle commands, so the usual
// authorization, audit and side effects apply.
package sweep

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	registry "govdash/internal/registry/models"
	"govdash/internal/sweep/metrics"
	"govdash/pkg/domain"
	"govdash/pkg/requestcontext"
)

const (
	JobExpireDocuments   = "expire_documents"
	JobWarnExpiring      = "warn_expiring_documents"
	JobSuspensionsEnded  = "suspensions_ended"
	JobPruneRateLimits   = "prune_rate_limits"
	defaultInterval      = 15 * time.Minute
	defaultPruneInterval = 5 * time.Minute
	defaultWarningLead   = 30 * 24 * time.Hour
	defaultRunTimeout    = 2 * time.Minute
)

// Store lists the entities due for a sweep.
type Store interface {
	ListDocumentsExpiringBefore(ctx context.Context, t time.Time) ([]*registry.Document, error)
	ListSuspensionsEnded(ctx context.Context, now time.Time) ([]*registry.Shop, error)
}

// Lifecycle applies the sweep's changes.
type Lifecycle interface {
	ExpireDocument(ctx context.Context, id domain.DocumentID) (*registry.Document, error)
	WarnExpiringDocument(ctx context.Context, id domain.DocumentID) (bool, error)
	NotifySuspensionEnded(ctx context.Context, id domain.ShopID) (bool, error)
}

type Pruner interface {
	Prune(ctx context.Context) error
}

type job struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) (int, error)
}

type Sweeper struct {
	store         Store
	lifecycle     Lifecycle
	pruner        Pruner
	actor         domain.Actor
	interval      time.Duration
	pruneInterval time.Duration
	warningLead   time.Duration
	runTimeout    time.Duration
	clock         func() time.Time
	scheduler     *gocron.Scheduler
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

func WithPruner(p Pruner) Option {
	return func(s *Sweeper) {
		s.pruner = p
	}
}

func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithPruneInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.pruneInterval = d
		}
	}
}

// WithWarningLead sets how long before expiry the owner is warned.
func WithWarningLead(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.warningLead = d
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Sweeper) {
		s.clock = clock
	}
}

// New builds a sweeper acting as actor, which must be the service identity.
func New(store Store, lifecycle Lifecycle, actor domain.Actor, opts ...Option) (*Sweeper, error) {
	if store == nil || lifecycle == nil {
		return nil, errors.New("sweep store and lifecycle service are required")
	}
	if !actor.IsService() {
		return nil, errors.New("sweep must run as the service identity")
	}
	s := &Sweeper{
		store:         store,
		lifecycle:     lifecycle,
		actor:         actor,
		interval:      defaultInterval,
		pruneInterval: defaultPruneInterval,
		warningLead:   defaultWarningLead,
		runTimeout:    defaultRunTimeout,
		clock:         time.Now,
		scheduler:     gocron.NewScheduler(time.UTC),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start schedules every job and returns immediately. A job never overlaps a
// still running instance of itself.
func (s *Sweeper) Start() error {
	s.scheduler.SingletonModeAll()
	jobs := []job{
		{JobExpireDocuments, s.interval, s.ExpireDocuments},
		{JobWarnExpiring, s.interval, s.WarnExpiring},
		{JobSuspensionsEnded, s.interval, s.RemindSuspensionsEnded},
	}
	if s.pruner != nil {
		jobs = append(jobs, job{JobPruneRateLimits, s.pruneInterval, s.pruneRateLimits})
	}
	for _, j := range jobs {
		if _, err := s.scheduler.Every(j.interval).Tag(j.name).Do(s.runJob, j.name, j.run); err != nil {
			return err
		}
	}
	s.scheduler.StartAsync()
	s.logger.Info("sweep scheduler started",
		"interval", s.interval.String(),
		"warning_lead", s.warningLead.String(),
	)
	return nil
}

// Stop waits for running jobs and stops the scheduler.
func (s *Sweeper) Stop() {
	s.scheduler.Stop()
}

// RunAll runs each job once, in order.
func (s *Sweeper) RunAll(ctx context.Context) error {
	var errs []error
	for _, run := range []func(ctx context.Context) (int, error){
		s.ExpireDocuments, s.WarnExpiring, s.RemindSuspensionsEnded,
	} {
		if _, err := run(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Sweeper) runJob(name string, run func(ctx context.Context) (int, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()
	start := time.Now()
	n, err := run(ctx)
	s.metrics.ObserveRun(name, err, time.Since(start))
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep job failed", "job", name, "error", err)
		return
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "sweep job completed", "job", name, "changed", n)
	}
}

// systemContext carries the service actor and the sweep's notion of now.
func (s *Sweeper) systemContext(ctx context.Context) (context.Context, time.Time) {
	now := s.clock()
	ctx = requestcontext.WithActor(ctx, s.actor)
	return requestcontext.WithTime(ctx, now), now
}

// ExpireDocuments marks every document past its expiry as expired. One
// failing document does not stop the others.
func (s *Sweeper) ExpireDocuments(ctx context.Context) (int, error) {
	ctx, now := s.systemContext(ctx)
	docs, err := s.store.ListDocumentsExpiringBefore(ctx, now)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, doc := range docs {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		if _, err := s.lifecycle.ExpireDocument(ctx, doc.ID); err != nil {
			s.itemFailed(ctx, JobExpireDocuments, "document_id", doc.ID.String(), err)
			continue
		}
		s.metrics.IncItem(JobExpireDocuments, "changed")
		expired++
	}
	return expired, nil
}

// WarnExpiring warns owners of documents expiring within the warning lead.
// Each document is warned at most once.
func (s *Sweeper) WarnExpiring(ctx context.Context) (int, error) {
	ctx, now := s.systemContext(ctx)
	docs, err := s.store.ListDocumentsExpiringBefore(ctx, now.Add(s.warningLead))
	if err != nil {
		return 0, err
	}
	warned := 0
	for _, doc := range docs {
		if ctx.Err() != nil {
			return warned, ctx.Err()
		}
		if doc.WarningSent || (doc.ExpiresAt != nil && doc.ExpiresAt.Before(now)) {
			continue
		}
		sent, err := s.lifecycle.WarnExpiringDocument(ctx, doc.ID)
		if err != nil {
			s.itemFailed(ctx, JobWarnExpiring, "document_id", doc.ID.String(), err)
			continue
		}
		if sent {
			s.metrics.IncItem(JobWarnExpiring, "changed")
			warned++
		}
	}
	return warned, nil
}

// RemindSuspensionsEnded tells the suspending official once a suspension
// elapsed. Reinstatement is left to them.
func (s *Sweeper) RemindSuspensionsEnded(ctx context.Context) (int, error) {
	ctx, now := s.systemContext(ctx)
	shops, err := s.store.ListSuspensionsEnded(ctx, now)
	if err != nil {
		return 0, err
	}
	reminded := 0
	for _, shop := range shops {
		if ctx.Err() != nil {
			return reminded, ctx.Err()
		}
		sent, err := s.lifecycle.NotifySuspensionEnded(ctx, shop.ID)
		if err != nil {
			s.itemFailed(ctx, JobSuspensionsEnded, "shop_id", shop.ID.String(), err)
			continue
		}
		if sent {
			s.metrics.IncItem(JobSuspensionsEnded, "changed")
			reminded++
		}
	}
	return reminded, nil
}

func (s *Sweeper) pruneRateLimits(ctx context.Context) (int, error) {
	return 0, s.pruner.Prune(ctx)
}

func (s *Sweeper) itemFailed(ctx context.Context, job, key, id string, err error) {
	s.metrics.IncItem(job, "failed")
	s.logger.WarnContext(ctx, "sweep item failed", "job", job, key, id, "error", err)
}
