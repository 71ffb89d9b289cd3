package worker_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/programme-lv/judgehost/internal/worker"
	"github.com/stretchr/testify/require"
)

func TestConcurrencyCeiling(t *testing.T) {
	pool := worker.New(3)

	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		err := pool.Submit(context.Background(), func() {
			defer wg.Done()
			n := active.Add(1)
			for {
				old := maxActive.Load()
				if n <= old || maxActive.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
		})
		require.NoError(t, err)
	}
	wg.Wait()
	pool.Close()

	require.LessOrEqual(t, maxActive.Load(), int32(3))
	require.Greater(t, maxActive.Load(), int32(0))
}

func TestStartsInArrivalOrder(t *testing.T) {
	pool := worker.New(1)

	var order []int
	var mu sync.Mutex
	for i := 0; i < 10; i++ {
		err := pool.Submit(context.Background(), func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
		require.NoError(t, err)
	}
	pool.Close()

	require.Len(t, order, 10)
	for i, got := range order {
		require.Equal(t, i, got)
	}
}

func TestSubmitRespectsContext(t *testing.T) {
	pool := worker.New(1)
	defer pool.Close()

	block := make(chan struct{})
	require.NoError(t, pool.Submit(context.Background(), func() { <-block }))
	defer close(block)

	// fill the queue so the next submit has to block
	filled := 0
	for {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		err := pool.Submit(ctx, func() {})
		cancel()
		if err != nil {
			require.ErrorIs(t, err, context.DeadlineExceeded)
			break
		}
		filled++
		require.Less(t, filled, 100000)
	}
}
