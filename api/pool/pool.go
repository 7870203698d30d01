package pool

import (
	"context"
	"sync"
)

// WorkerPool bounds how many jobs run at once. Submitted jobs wait for a free
// slot without blocking the caller.
type WorkerPool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		sem: make(chan struct{}, maxWorkers),
	}
}

// Submit schedules job. If ctx is cancelled before a slot frees up the job is
// dropped and onDrop, when non-nil, is called instead.
func (p *WorkerPool) Submit(ctx context.Context, job func(context.Context), onDrop func(error)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
			job(ctx)
		case <-ctx.Done():
			if onDrop != nil {
				onDrop(ctx.Err())
			}
		}
	}()
}

func (p *WorkerPool) Wait() {
	p.wg.Wait()
}
