package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"govdash/internal/notification/models"
	"govdash/internal/notification/store"
	"govdash/pkg/domain"
	"govdash/pkg/platform/sentinel"
)

type logKey struct {
	id      domain.NotificationID
	channel models.Channel
}

// InMemory keeps notifications and delivery logs in process.
type InMemory struct {
	mu            sync.RWMutex
	notifications map[domain.NotificationID]*models.Notification
	logs          map[logKey]*models.Log
}

var _ store.Store = (*InMemory)(nil)

func New() *InMemory {
	return &InMemory{
		notifications: make(map[domain.NotificationID]*models.Notification),
		logs:          make(map[logKey]*models.Log),
	}
}

func cloneNotification(n *models.Notification) *models.Notification {
	c := *n
	if n.ShopID != nil {
		v := *n.ShopID
		c.ShopID = &v
	}
	c.Channels = slices.Clone(n.Channels)
	return &c
}

func (s *InMemory) SaveNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[n.ID]; !ok {
		s.notifications[n.ID] = cloneNotification(n)
	}
	return nil
}

func (s *InMemory) FindNotification(_ context.Context, id domain.NotificationID) (*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil, fmt.Errorf("notification %s: %w", id, sentinel.ErrNotFound)
	}
	return cloneNotification(n), nil
}

func (s *InMemory) ListByRecipient(_ context.Context, recipient domain.ActorID, limit int) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Notification
	for _, n := range s.notifications {
		if n.RecipientID == recipient {
			out = append(out, cloneNotification(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemory) GetLog(_ context.Context, id domain.NotificationID, channel models.Channel) (*models.Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.logs[logKey{id, channel}]
	if !ok {
		return nil, fmt.Errorf("notification log %s/%s: %w", id, channel, sentinel.ErrNotFound)
	}
	c := *l
	return &c, nil
}

func (s *InMemory) ClaimLog(_ context.Context, id domain.NotificationID, channel models.Channel, now, staleBefore time.Time) (*models.Log, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := logKey{id, channel}
	l, ok := s.logs[key]
	if ok {
		held := l.Status == models.DeliveryInFlight && !l.UpdatedAt.Before(staleBefore)
		if l.Status == models.DeliverySent || held {
			c := *l
			return &c, false, nil
		}
	} else {
		l = &models.Log{NotificationID: id, Channel: channel}
		s.logs[key] = l
	}
	l.Status = models.DeliveryInFlight
	l.UpdatedAt = now
	c := *l
	return &c, true, nil
}

func (s *InMemory) UpsertLog(_ context.Context, log *models.Log) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *log
	s.logs[logKey{log.NotificationID, log.Channel}] = &c
	return nil
}

func (s *InMemory) ListLogs(_ context.Context, id domain.NotificationID) ([]*models.Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Log
	for k, l := range s.logs {
		if k.id == id {
			c := *l
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out, nil
}
