// Package worker runs dispatched judge tasks on a fixed number of
// goroutines. Tasks start in arrival order; completion order is not
// guaranteed.
package worker

import (
	"context"
	"sync"
)

const defaultQueueSize = 1024

type Pool struct {
	tasks chan func()
	wg    sync.WaitGroup

	closeOnce sync.Once
}

// New creates a pool with n workers. The concurrency ceiling is fixed
// for the pool's lifetime.
func New(n int) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{tasks: make(chan func(), defaultQueueSize)}
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.work()
	}
	return p
}

func (p *Pool) work() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit enqueues a task. It blocks when the queue is full, which
// back-pressures the session's read loop, and fails only when ctx is
// done first.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops intake and waits for queued and running tasks to finish
func (p *Pool) Close() {
	p.closeOnce.Do(func() { close(p.tasks) })
	p.wg.Wait()
}
