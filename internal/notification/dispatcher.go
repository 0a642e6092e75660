// Package notification delivers notifications over email, SMS and in-app
// channels. Each (notification, channel) pair is delivered and logged
// independently; a pair already logged as sent is never sent again.
package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"govdash/internal/notification/metrics"
	"govdash/internal/notification/models"
	"govdash/internal/notification/store"
	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
	"govdash/pkg/platform/audit"
	"govdash/pkg/requestcontext"
)

const (
	defaultMaxAttempts     = 4
	defaultInitialBackoff  = 200 * time.Millisecond
	defaultMaxBackoff      = 5 * time.Second
	defaultDispatchTimeout = 30 * time.Second
)

// Dispatcher runs channel deliveries in parallel with bounded retries.
type Dispatcher struct {
	store   store.Store
	senders map[models.Channel]Sender
	logger  *slog.Logger
	metrics *metrics.Metrics
	auditor *audit.Recorder

	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	timeout        time.Duration
	sleep          func(ctx context.Context, d time.Duration) error

	inflight sync.WaitGroup
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func WithAuditor(r *audit.Recorder) Option {
	return func(d *Dispatcher) {
		d.auditor = r
	}
}

func WithSender(s Sender) Option {
	return func(d *Dispatcher) {
		d.senders[s.Channel()] = s
	}
}

// WithRetry bounds delivery attempts per channel and the backoff between them.
func WithRetry(maxAttempts int, initial, max time.Duration) Option {
	return func(d *Dispatcher) {
		if maxAttempts > 0 {
			d.maxAttempts = maxAttempts
		}
		if initial > 0 {
			d.initialBackoff = initial
		}
		if max > 0 {
			d.maxBackoff = max
		}
	}
}

// WithTimeout bounds a background dispatch.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithSleep replaces the backoff wait, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Dispatcher) {
		d.sleep = sleep
	}
}

func NewDispatcher(st store.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:          st,
		senders:        make(map[models.Channel]Sender),
		logger:         slog.Default(),
		maxAttempts:    defaultMaxAttempts,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
		timeout:        defaultDispatchTimeout,
		sleep:          sleepCtx,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch delivers n over each of its channels concurrently and reports the
// per-channel outcome. A failing channel never prevents the others.
func (d *Dispatcher) Dispatch(ctx context.Context, n *models.Notification) (models.DispatchResult, error) {
	result := models.DispatchResult{
		NotificationID: n.ID,
		Channels:       make(map[models.Channel]models.ChannelResult, len(n.Channels)),
	}
	if err := d.store.SaveNotification(ctx, n); err != nil {
		return result, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store notification")
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, channel := range n.Channels {
		g.Go(func() error {
			res := d.deliver(gctx, n, channel)
			mu.Lock()
			result.Channels[channel] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	outcome := audit.OutcomeSuccess
	if !result.Success() {
		outcome = audit.OutcomeFailed
	}
	d.auditor.RecordReason(ctx, requestcontext.Actor(ctx), audit.EventNotificationSent,
		audit.EntityRef{Type: "notification", ID: n.ID.String()}, outcome, string(n.Type))
	return result, nil
}

// Notify dispatches in the background. The dispatch outlives ctx's
// cancellation but not the dispatcher timeout.
func (d *Dispatcher) Notify(ctx context.Context, n *models.Notification) {
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		if _, err := d.Dispatch(bg, n); err != nil {
			d.logger.ErrorContext(bg, "background notification dispatch failed",
				"notification_id", n.ID.String(),
				"type", string(n.Type),
				"error", err,
			)
		}
	}()
}

// Wait blocks until background dispatches finish.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

// Logs returns the delivery log of a notification.
func (d *Dispatcher) Logs(ctx context.Context, id domain.NotificationID) ([]*models.Log, error) {
	return d.store.ListLogs(ctx, id)
}

func (d *Dispatcher) deliver(ctx context.Context, n *models.Notification, channel models.Channel) models.ChannelResult {
	// A claim older than the dispatch timeout belongs to a dispatch that died.
	now := requestcontext.Now(ctx)
	prior, claimed, err := d.store.ClaimLog(ctx, n.ID, channel, now, now.Add(-d.timeout))
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to claim notification log",
			"notification_id", n.ID.String(), "channel", string(channel), "error", err)
		return models.ChannelResult{Error: "delivery log unavailable"}
	}
	if !claimed {
		if prior.Status == models.DeliverySent {
			d.metrics.IncDelivery(string(channel), "skipped")
			return models.ChannelResult{Sent: true, Skipped: true}
		}
		d.metrics.IncDelivery(string(channel), "in_flight")
		return models.ChannelResult{Skipped: true, Error: "delivery already in progress"}
	}
	attempts := prior.Attempts

	sender, ok := d.senders[channel]
	if !ok {
		err = errors.New("channel not configured")
		d.record(ctx, n.ID, channel, models.DeliveryFailed, attempts, err)
		d.metrics.IncDelivery(string(channel), "failed")
		return models.ChannelResult{Error: err.Error()}
	}

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if attempt > 1 {
			d.metrics.IncRetry(string(channel))
			if serr := d.sleep(ctx, d.backoff(attempt-1)); serr != nil {
				err = serr
				break
			}
		}
		attempts++
		if err = sender.Send(ctx, n); err == nil {
			d.record(ctx, n.ID, channel, models.DeliverySent, attempts, nil)
			d.metrics.IncDelivery(string(channel), "sent")
			return models.ChannelResult{Sent: true}
		}
		if errors.Is(err, ErrPermanent) || ctx.Err() != nil {
			break
		}
	}

	d.record(ctx, n.ID, channel, models.DeliveryFailed, attempts, err)
	d.metrics.IncDelivery(string(channel), "failed")
	d.logger.ErrorContext(ctx, "notification delivery failed",
		"notification_id", n.ID.String(),
		"channel", string(channel),
		"attempts", attempts,
		"error", err,
	)
	return models.ChannelResult{Error: err.Error()}
}

func (d *Dispatcher) record(ctx context.Context, id domain.NotificationID, channel models.Channel, status models.DeliveryStatus, attempts int, cause error) {
	entry := &models.Log{
		NotificationID: id,
		Channel:        channel,
		Status:         status,
		Attempts:       attempts,
		UpdatedAt:      requestcontext.Now(ctx),
	}
	if cause != nil {
		entry.LastError = cause.Error()
	}
	// The log write must land even when the dispatch deadline has passed.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := d.store.UpsertLog(wctx, entry); err != nil {
		d.logger.ErrorContext(ctx, "failed to write notification log",
			"notification_id", id.String(), "channel", string(channel), "error", err)
	}
}

// backoff doubles from the initial delay up to the cap.
func (d *Dispatcher) backoff(retry int) time.Duration {
	delay := d.initialBackoff
	for i := 1; i < retry; i++ {
		delay *= 2
		if delay >= d.maxBackoff {
			return d.maxBackoff
		}
	}
	return min(delay, d.maxBackoff)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
