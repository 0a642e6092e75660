package policy

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"

	"govdash/internal/policy/metrics"
	"govdash/pkg/domain"
	"govdash/pkg/platform/sentinel"
)

// RoleStore is the registry of provisioned roles.
type RoleStore interface {
	RoleOf(ctx context.Context, actorID domain.ActorID) (domain.Role, error)
}

// StoreRoleLookup resolves roles from the registry. A provisioned role wins
// over the identity claim; an actor with no registry row keeps the role the
// identity provider asserted. Concurrent lookups for one actor share a
// single registry read.
type StoreRoleLookup struct {
	store   RoleStore
	group   singleflight.Group
	metrics *metrics.Metrics
}

func NewStoreRoleLookup(store RoleStore, m *metrics.Metrics) *StoreRoleLookup {
	return &StoreRoleLookup{store: store, metrics: m}
}

func (l *StoreRoleLookup) RoleOf(ctx context.Context, actor domain.Actor) (domain.Role, error) {
	if actor.IsAnonymous() {
		return domain.RoleAnonymous, nil
	}
	v, err, _ := l.group.Do(actor.ID.String(), func() (any, error) {
		return l.store.RoleOf(ctx, actor.ID)
	})
	switch {
	case err == nil:
		l.metrics.IncRoleLookup("registry")
		return v.(domain.Role), nil
	case errors.Is(err, sentinel.ErrNotFound):
		l.metrics.IncRoleLookup("claim")
		return actor.Role, nil
	default:
		l.metrics.IncRoleLookup("error")
		return domain.RoleAnonymous, err
	}
}
