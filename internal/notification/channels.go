package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"govdash/internal/feed"
	"govdash/internal/notification/metrics"
	"govdash/internal/notification/models"
	"govdash/pkg/platform/circuit"
)

var (
	// ErrPermanent marks a delivery failure that retrying cannot fix.
	ErrPermanent = errors.New("permanent delivery failure")

	errBreakerOpen = fmt.Errorf("provider circuit open: %w", ErrPermanent)
)

// Sender delivers a notification over one channel.
type Sender interface {
	Channel() models.Channel
	Send(ctx context.Context, n *models.Notification) error
}

// Provider is an outbound vendor (mail relay, SMS gateway). Providers wrap
// non-retryable failures with ErrPermanent.
type Provider interface {
	Deliver(ctx context.Context, channel models.Channel, n *models.Notification) error
}

// ProviderSender throttles calls to a provider and stops calling it while its
// circuit breaker is open.
type ProviderSender struct {
	channel  models.Channel
	provider Provider
	limiter  *rate.Limiter
	breaker  *circuit.Breaker
	metrics  *metrics.Metrics
}

func NewProviderSender(channel models.Channel, provider Provider, limiter *rate.Limiter, breaker *circuit.Breaker, m *metrics.Metrics) *ProviderSender {
	return &ProviderSender{
		channel:  channel,
		provider: provider,
		limiter:  limiter,
		breaker:  breaker,
		metrics:  m,
	}
}

func (s *ProviderSender) Channel() models.Channel {
	return s.channel
}

func (s *ProviderSender) Send(ctx context.Context, n *models.Notification) error {
	if s.breaker != nil && !s.breaker.Allow() {
		return errBreakerOpen
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("send throttle: %w", err)
		}
	}
	err := s.provider.Deliver(ctx, s.channel, n)
	if s.breaker == nil {
		return err
	}
	if err != nil && !errors.Is(err, ErrPermanent) {
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.metrics.IncBreaker(string(s.channel), string(circuit.StateOpen))
		}
		return err
	}
	// A permanent rejection still shows the provider is reachable.
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.metrics.IncBreaker(string(s.channel), string(circuit.StateClosed))
	}
	return err
}

// InAppSender delivers in-app notifications through the change feed.
type InAppSender struct {
	publisher feed.Publisher
}

func NewInAppSender(publisher feed.Publisher) *InAppSender {
	return &InAppSender{publisher: publisher}
}

func (s *InAppSender) Channel() models.Channel {
	return models.ChannelInApp
}

func (s *InAppSender) Send(ctx context.Context, n *models.Notification) error {
	event, err := feed.NewEvent(feed.TopicNotification, feed.OpInsert, n.ID.String(), n.RecipientID.String(), n, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: encode notification: %v", ErrPermanent, err)
	}
	event.Kind = string(n.Type)
	return s.publisher.Publish(ctx, event)
}

// LogProvider writes outbound messages to the operational log. It stands in
// for a vendor when none is configured.
type LogProvider struct {
	logger *slog.Logger
}

func NewLogProvider(logger *slog.Logger) *LogProvider {
	return &LogProvider{logger: logger}
}

func (p *LogProvider) Deliver(ctx context.Context, channel models.Channel, n *models.Notification) error {
	p.logger.InfoContext(ctx, "outbound notification",
		"channel", string(channel),
		"notification_id", n.ID.String(),
		"recipient_id", n.RecipientID.String(),
		"type", string(n.Type),
		"title", n.Title,
	)
	return nil
}
