// Package txn provides the transactional boundary of registry mutations:
// a storage transaction plus per-shop mutual exclusion within the process.
package txn

import (
	"context"
	"database/sql"
	"hash/fnv"
	"sync"
	"time"

	"govdash/internal/platform/postgres"
	"govdash/pkg/domain"
	dErrors "govdash/pkg/domain-errors"
)

// Runner runs fn inside a storage transaction carried in the context.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NoTx runs fn directly. The in-memory store applies each write atomically
// and ShopTx serializes writers, which is all it needs.
type NoTx struct{}

func (NoTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// SQL runs fn inside a PostgreSQL transaction.
type SQL struct {
	db *sql.DB
}

func NewSQL(db *sql.DB) *SQL {
	return &SQL{db: db}
}

func (s *SQL) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return postgres.RunInTx(ctx, s.db, fn)
}

// numShopShards bounds the lock table; shops hash onto shards.
const numShopShards = 128

const defaultTimeout = 5 * time.Second

// ShopTx serializes mutations of one shop inside this process and runs them in
// a storage transaction. Across processes the store's version check decides.
type ShopTx struct {
	shards  [numShopShards]sync.Mutex
	runner  Runner
	timeout time.Duration
}

type Option func(*ShopTx)

func WithTimeout(d time.Duration) Option {
	return func(t *ShopTx) {
		if d > 0 {
			t.timeout = d
		}
	}
}

func NewShopTx(runner Runner, opts ...Option) *ShopTx {
	if runner == nil {
		runner = NoTx{}
	}
	t := &ShopTx{runner: runner, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RunInShop holds the shop's shard lock for the duration of fn.
func (t *ShopTx) RunInShop(ctx context.Context, shopID domain.ShopID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	mu := &t.shards[shard(shopID)]
	mu.Lock()
	defer mu.Unlock()

	// The wait for the lock may have outlived the caller.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return t.runner.RunInTx(ctx, fn)
}

// RunInTx runs fn in a storage transaction without a shop lock, for writes
// that do not touch a shop row.
func (t *ShopTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.runner.RunInTx(ctx, fn)
}

func shard(shopID domain.ShopID) uint32 {
	h := fnv.New32a()
	_, _ = h.Write(shopID[:])
	return h.Sum32() % numShopShards
}
