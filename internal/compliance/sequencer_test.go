package compliance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govdash/pkg/domain"
)

func TestSequencer_PerShopFIFO(t *testing.T) {
	seq := NewSequencer(0)
	defer seq.Close()
	shop := domain.NewShopID()

	var (
		mu    sync.Mutex
		order []int
		dones []<-chan struct{}
	)
	for i := range 20 {
		done, err := seq.Submit(context.Background(), shop, func(context.Context) {
			time.Sleep(time.Millisecond)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
		require.NoError(t, err)
		dones = append(dones, done)
	}
	for _, d := range dones {
		<-d
	}

	expected := make([]int, 20)
	for i := range expected {
		expected[i] = i
	}
	assert.Equal(t, expected, order)
}

func TestSequencer_NeverOverlapsForOneShop(t *testing.T) {
	seq := NewSequencer(0)
	shop := domain.NewShopID()

	var (
		mu      sync.Mutex
		running int
		peak    int
		wg      sync.WaitGroup
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = seq.Do(context.Background(), shop, func(context.Context) error {
				mu.Lock()
				running++
				peak = max(peak, running)
				mu.Unlock()
				time.Sleep(2 * time.Millisecond)
				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	seq.Close()

	assert.Equal(t, 1, peak)
}

func TestSequencer_ShopsRunConcurrently(t *testing.T) {
	seq := NewSequencer(0)
	defer seq.Close()
	release := make(chan struct{})

	blocked, err := seq.Submit(context.Background(), domain.NewShopID(), func(context.Context) { <-release })
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err = seq.Do(ctx, domain.NewShopID(), func(context.Context) error { return nil })
	require.NoError(t, err, "another shop must not wait behind a blocked one")

	close(release)
	<-blocked
}

func TestSequencer_QueueBound(t *testing.T) {
	seq := NewSequencer(1)
	defer seq.Close()
	shop := domain.NewShopID()
	release := make(chan struct{})
	started := make(chan struct{})

	first, err := seq.Submit(context.Background(), shop, func(context.Context) {
		close(started)
		<-release
	})
	require.NoError(t, err)
	<-started

	second, err := seq.Submit(context.Background(), shop, func(context.Context) {})
	require.NoError(t, err)

	_, err = seq.Submit(context.Background(), shop, func(context.Context) {})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	<-first
	<-second
}

func TestSequencer_SkipsCancelledJobs(t *testing.T) {
	seq := NewSequencer(0)
	defer seq.Close()
	shop := domain.NewShopID()
	release := make(chan struct{})
	started := make(chan struct{})

	blocker, err := seq.Submit(context.Background(), shop, func(context.Context) {
		close(started)
		<-release
	})
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	ran := false
	done, err := seq.Submit(ctx, shop, func(context.Context) { ran = true })
	require.NoError(t, err)
	cancel()

	close(release)
	<-blocker
	<-done
	assert.False(t, ran)
}

func TestSequencer_RejectsAfterClose(t *testing.T) {
	seq := NewSequencer(0)
	seq.Close()
	_, err := seq.Submit(context.Background(), domain.NewShopID(), func(context.Context) {})
	assert.Error(t, err)
}
