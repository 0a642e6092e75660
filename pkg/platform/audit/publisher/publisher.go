package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	audit "govdash/pkg/platform/audit"
)

var (
	errBufferFull = errors.New("audit buffer full")
	errClosed     = errors.New("audit publisher closed")
)

const (
	asyncWriteTimeout     = 5 * time.Second
	defaultAppendAttempts = 3
	defaultInitialBackoff = 100 * time.Millisecond
	defaultMaxBackoff     = time.Second
)

// Publisher persists audit events to a store, either synchronously or through
// a bounded async buffer drained by a single background writer.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *audit.Metrics

	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	sleep          func(ctx context.Context, d time.Duration) error

	buffer chan audit.Event
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with the given buffer size.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.buffer = make(chan audit.Event, size)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *audit.Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithRetry bounds how often a failed append is retried and the backoff
// between attempts.
func WithRetry(maxAttempts int, initial, max time.Duration) Option {
	return func(p *Publisher) {
		if maxAttempts > 0 {
			p.maxAttempts = maxAttempts
		}
		if initial > 0 {
			p.initialBackoff = initial
		}
		if max > 0 {
			p.maxBackoff = max
		}
	}
}

// WithSleep replaces the backoff wait. Tests use it to skip real delays.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Publisher) {
		p.sleep = sleep
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:          store,
		logger:         slog.Default(),
		maxAttempts:    defaultAppendAttempts,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
		sleep:          sleepCtx,
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		go p.run()
	} else {
		close(p.done)
	}
	return p
}

// Emit stamps the event timestamp when unset and hands it to the store.
// In async mode a full buffer drops the event and reports errBufferFull.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if p.buffer == nil {
		return p.append(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errClosed
	}
	select {
	case p.buffer <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.metrics.IncDropped()
		return errBufferFull
	}
}

// List returns the audit trail of one entity when the store supports reads.
func (p *Publisher) List(ctx context.Context, ref audit.EntityRef) ([]audit.Event, error) {
	reader, ok := p.store.(audit.Reader)
	if !ok {
		return nil, errors.New("audit store does not support reads")
	}
	return reader.ListByEntity(ctx, ref)
}

// Close drains buffered events and stops the background writer.
func (p *Publisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		if p.buffer != nil {
			close(p.buffer)
		}
	}
	p.mu.Unlock()
	<-p.done
}

func (p *Publisher) run() {
	defer close(p.done)
	for event := range p.buffer {
		ctx, cancel := context.WithTimeout(context.Background(), asyncWriteTimeout)
		if err := p.append(ctx, event); err != nil {
			p.metrics.IncFailed()
			p.logger.Error("async audit append failed",
				"action", event.Action,
				"entity", event.Entity().String(),
				"error", err,
			)
		}
		cancel()
	}
}

// append retries failed writes with exponential backoff. After a partial
// fanout failure only the stores that rejected the event are retried.
func (p *Publisher) append(ctx context.Context, event audit.Event) error {
	target := p.store
	var err error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if attempt > 1 {
			if serr := p.sleep(ctx, p.backoff(attempt-1)); serr != nil {
				return errors.Join(err, serr)
			}
		}
		if err = target.Append(ctx, event); err == nil {
			return nil
		}
		var partial *audit.FanoutError
		if errors.As(err, &partial) {
			target = partial.Remaining
		}
	}
	return err
}

// backoff doubles from the initial delay up to the cap.
func (p *Publisher) backoff(retry int) time.Duration {
	delay := p.initialBackoff
	for i := 1; i < retry; i++ {
		delay *= 2
		if delay >= p.maxBackoff {
			return p.maxBackoff
		}
	}
	return min(delay, p.maxBackoff)
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
