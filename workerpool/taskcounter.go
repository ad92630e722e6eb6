package workerpool

import "sync"

// TaskCounter tracks a batch of tasks submitted to a Pool and lets the
// caller block until every task in the batch has completed, the Go
// analogue of xgrammar's ThreadPool::TaskCounter. Unlike a bare
// sync.WaitGroup, a TaskCounter submits its tasks through the owning
// Pool so the batch still respects the pool's fixed worker count.
//
// A TaskCounter is not safe for reuse after Wait; create a new one per
// batch, matching the teacher's one-shot RAII TaskCounter.
type TaskCounter struct {
	pool *Pool
	wg   sync.WaitGroup
}

// NewTaskCounter creates a TaskCounter bound to pool.
func NewTaskCounter(pool *Pool) *TaskCounter {
	return &TaskCounter{pool: pool}
}

// Submit enqueues fn as part of this counter's batch. fn runs on a pool
// worker; Submit blocks until a worker takes fn, since the pool hands
// tasks over an unbuffered channel.
func (c *TaskCounter) Submit(fn func()) {
	c.wg.Add(1)
	c.pool.submit(func() {
		defer c.wg.Done()
		fn()
	})
}

// Wait blocks until every task submitted to this counter has completed.
func (c *TaskCounter) Wait() {
	c.wg.Wait()
}
