package policy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govdash/pkg/domain"
	"govdash/pkg/platform/sentinel"
)

type stubRoleStore struct {
	roles map[domain.ActorID]domain.Role
	err   error
	calls atomic.Int32
	delay time.Duration
}

func (s *stubRoleStore) RoleOf(_ context.Context, id domain.ActorID) (domain.Role, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return domain.RoleAnonymous, s.err
	}
	role, ok := s.roles[id]
	if !ok {
		return domain.RoleAnonymous, sentinel.ErrNotFound
	}
	return role, nil
}

func TestStoreRoleLookup(t *testing.T) {
	ctx := context.Background()
	provisioned := domain.ActorID(uuid.New())
	store := &stubRoleStore{roles: map[domain.ActorID]domain.Role{provisioned: domain.RoleGovernment}}
	lookup := NewStoreRoleLookup(store, nil)

	t.Run("registry role wins over claim", func(t *testing.T) {
		role, err := lookup.RoleOf(ctx, domain.Actor{ID: provisioned, Role: domain.RoleCustomer})
		require.NoError(t, err)
		assert.Equal(t, domain.RoleGovernment, role)
	})

	t.Run("falls back to claim when not provisioned", func(t *testing.T) {
		role, err := lookup.RoleOf(ctx, domain.Actor{ID: domain.ActorID(uuid.New()), Role: domain.RoleShopOwner})
		require.NoError(t, err)
		assert.Equal(t, domain.RoleShopOwner, role)
	})

	t.Run("anonymous never hits the store", func(t *testing.T) {
		before := store.calls.Load()
		role, err := lookup.RoleOf(ctx, domain.Anonymous)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleAnonymous, role)
		assert.Equal(t, before, store.calls.Load())
	})
}

func TestStoreRoleLookup_ErrorPropagates(t *testing.T) {
	lookup := NewStoreRoleLookup(&stubRoleStore{err: errors.New("connection refused")}, nil)
	_, err := lookup.RoleOf(context.Background(), domain.Actor{ID: domain.ActorID(uuid.New()), Role: domain.RoleGovernment})
	require.Error(t, err)
}

func TestStoreRoleLookup_DeduplicatesConcurrentLookups(t *testing.T) {
	actor := domain.Actor{ID: domain.ActorID(uuid.New()), Role: domain.RoleCustomer}
	store := &stubRoleStore{roles: map[domain.ActorID]domain.Role{actor.ID: domain.RoleCustomer}, delay: 50 * time.Millisecond}
	lookup := NewStoreRoleLookup(store, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = lookup.RoleOf(context.Background(), actor)
		}()
	}
	wg.Wait()

	assert.Less(t, store.calls.Load(), int32(20))
}
