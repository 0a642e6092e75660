package txn

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
)

func TestShopTx_SerializesOneShop(t *testing.T) {
	tx := NewShopTx(NoTx{})
	shopID := domain.NewShopID()

	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			err := tx.RunInShop(context.Background(), shopID, func(context.Context) error {
				n := active.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				active.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		})
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load())
}

func TestShopTx_PropagatesErrors(t *testing.T) {
	tx := NewShopTx(nil)
	boom := errors.New("boom")
	err := tx.RunInShop(context.Background(), domain.NewShopID(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestShopTx_AppliesDefaultDeadline(t *testing.T) {
	tx := NewShopTx(NoTx{}, WithTimeout(time.Second))
	err := tx.RunInShop(context.Background(), domain.NewShopID(), func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestShopTx_CancelledContext(t *testing.T) {
	tx := NewShopTx(NoTx{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := tx.RunInShop(ctx, domain.NewShopID(), func(context.Context) error {
		called = true
		return nil
	})
	assert.False(t, called)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}
