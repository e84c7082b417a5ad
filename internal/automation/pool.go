// internal/automation/pool.go
package automation

import (
	"context"
	"errors"
	"sync"

	"filing-automation/internal/common/metrics"
)

// ErrShuttingDown is returned by Start once Shutdown has begun.
var ErrShuttingDown = errors.New("orchestrator is shutting down")

// workerPool runs submitted tasks on a fixed set of goroutines. When the queue
// is full the task runs on its own goroutine so nothing is dropped.
type workerPool struct {
	queue chan func()
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func newWorkerPool(workers, queueSize int) *workerPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	p := &workerPool{queue: make(chan func(), queueSize)}
	for i := 0; i < workers; i++ {
		go p.loop()
	}
	return p
}

func (p *workerPool) loop() {
	for task := range p.queue {
		task()
	}
}

// submit never blocks.
func (p *workerPool) submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrShuttingDown
	}

	p.wg.Add(1)
	wrapped := func() {
		defer p.wg.Done()
		task()
	}
	select {
	case p.queue <- wrapped:
	default:
		metrics.AutomationQueueOverflow.Inc()
		go wrapped()
	}
	return nil
}

// shutdown stops intake and waits for queued and running tasks.
func (p *workerPool) shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
