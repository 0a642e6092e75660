// Package feed is the real-time change feed. Subscribers filter by topic,
// entity and owner; delivery is at-most-once and a slow subscriber loses
// events rather than stalling publishers.
package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"govdash/internal/feed/metrics"
)

type Topic string

const (
	TopicShop         Topic = "shop"
	TopicNotification Topic = "notification"
)

func (t Topic) IsValid() bool {
	return t == TopicShop || t == TopicNotification
}

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event is one change as seen by feed subscribers.
type Event struct {
	ID       string `json:"id"`
	Topic    Topic  `json:"topic"`
	Op       Op     `json:"op"`
	Kind     string `json:"kind,omitempty"`
	EntityID string `json:"entity_id"`
	OwnerID  string `json:"owner_id,omitempty"`
	// Status is the shop status after the change, used to decide visibility.
	Status  string          `json:"status,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}

// NewEvent marshals payload into a new event.
func NewEvent(topic Topic, op Op, entityID, ownerID string, payload any, at time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:       uuid.NewString(),
		Topic:    topic,
		Op:       op,
		EntityID: entityID,
		OwnerID:  ownerID,
		Payload:  raw,
		At:       at,
	}, nil
}

// Filter selects events. Empty fields match anything.
type Filter struct {
	Topic    Topic
	EntityID string
	OwnerID  string
}

func (f Filter) Matches(e Event) bool {
	if f.Topic != "" && f.Topic != e.Topic {
		return false
	}
	if f.EntityID != "" && f.EntityID != e.EntityID {
		return false
	}
	if f.OwnerID != "" && f.OwnerID != e.OwnerID {
		return false
	}
	return true
}

// Publisher accepts events for delivery.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

const defaultBuffer = 32

// Subscription receives matching events on C until its context ends or the
// broker closes.
type Subscription struct {
	C      <-chan Event
	ch     chan Event
	filter Filter
}

// Broker fans events out to local subscribers.
type Broker struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	closed  bool
	metrics *metrics.Metrics
}

type Option func(*Broker)

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Broker) {
		b.metrics = m
	}
}

func NewBroker(opts ...Option) *Broker {
	b := &Broker{subs: make(map[*Subscription]struct{})}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a subscription that ends when ctx is done.
func (b *Broker) Subscribe(ctx context.Context, filter Filter, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	ch := make(chan Event, buffer)
	sub := &Subscription{C: ch, ch: ch, filter: filter}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	b.metrics.AddSubscribers(1)

	go func() {
		<-ctx.Done()
		b.unsubscribe(sub)
	}()
	return sub
}

func (b *Broker) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
	b.metrics.AddSubscribers(-1)
}

// Publish delivers to every matching subscriber without blocking.
func (b *Broker) Publish(_ context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	b.metrics.IncPublished(string(event.Topic))
	for sub := range b.subs {
		if !sub.filter.Matches(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.metrics.IncDropped()
		}
	}
	return nil
}

// Close ends every subscription.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
		delete(b.subs, sub)
		b.metrics.AddSubscribers(-1)
	}
}

// Subscribers returns the number of open subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
