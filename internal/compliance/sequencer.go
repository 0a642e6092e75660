package compliance

import (
	"context"
	"errors"
	"sync"

	"govdash/pkg/domain"
)

var (
	errSequencerClosed = errors.New("recompute sequencer closed")
	// ErrQueueFull reports that a shop already has the maximum number of
	// pending jobs. A pending recompute reads the latest state when it runs,
	// so callers may treat the new request as covered by it.
	ErrQueueFull = errors.New("recompute queue full")
)

type job struct {
	ctx  context.Context
	fn   func(ctx context.Context)
	done chan struct{}
}

type shopQueue struct {
	jobs []job
}

// Sequencer runs jobs one at a time per shop, in submission order. Jobs for
// different shops run concurrently. A shop's worker goroutine exists only
// while its queue is non-empty.
type Sequencer struct {
	mu       sync.Mutex
	queues   map[domain.ShopID]*shopQueue
	maxQueue int
	closed   bool
	wg       sync.WaitGroup
}

// NewSequencer creates a sequencer allowing maxQueue pending jobs per shop.
// maxQueue <= 0 means unbounded.
func NewSequencer(maxQueue int) *Sequencer {
	return &Sequencer{
		queues:   make(map[domain.ShopID]*shopQueue),
		maxQueue: maxQueue,
	}
}

// Submit enqueues fn for the shop and returns a channel closed once fn ran or
// was skipped because ctx ended first.
func (s *Sequencer) Submit(ctx context.Context, shopID domain.ShopID, fn func(ctx context.Context)) (<-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errSequencerClosed
	}

	q, running := s.queues[shopID]
	if !running {
		q = &shopQueue{}
		s.queues[shopID] = q
	}
	if s.maxQueue > 0 && len(q.jobs) >= s.maxQueue {
		return nil, ErrQueueFull
	}
	j := job{ctx: ctx, fn: fn, done: make(chan struct{})}
	q.jobs = append(q.jobs, j)
	if !running {
		s.wg.Add(1)
		go s.drain(shopID, q)
	}
	return j.done, nil
}

// Do runs fn in the shop's order and waits for it. If ctx ends first, Do
// returns ctx.Err(); a job that has not started by then is skipped.
func (s *Sequencer) Do(ctx context.Context, shopID domain.ShopID, fn func(ctx context.Context) error) error {
	var (
		err      error
		executed bool
	)
	done, submitErr := s.Submit(ctx, shopID, func(ctx context.Context) {
		executed = true
		err = fn(ctx)
	})
	if submitErr != nil {
		return submitErr
	}
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if !executed {
		return ctx.Err()
	}
	return err
}

func (s *Sequencer) drain(shopID domain.ShopID, q *shopQueue) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		if len(q.jobs) == 0 {
			delete(s.queues, shopID)
			s.mu.Unlock()
			return
		}
		j := q.jobs[0]
		q.jobs = q.jobs[1:]
		s.mu.Unlock()

		if j.ctx.Err() == nil {
			j.fn(j.ctx)
		}
		close(j.done)
	}
}

// Pending returns the number of queued jobs for a shop, excluding one running.
func (s *Sequencer) Pending(shopID domain.ShopID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.queues[shopID]; ok {
		return len(q.jobs)
	}
	return 0
}

// Close stops accepting jobs and waits for queued ones to finish.
func (s *Sequencer) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}
