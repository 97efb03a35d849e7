package worker

import (
	"context"
	"sync"
)

// Task is a unit of work producing a value of type R
type Task[R any] func(ctx context.Context) R

type indexedTask[R any] struct {
	index int
	task  Task[R]
}

type indexedResult[R any] struct {
	index  int
	result R
}

// Pool runs tasks on a fixed number of goroutines and returns their results
// in submission order
type Pool[R any] struct {
	workers    int
	tasks      chan indexedTask[R]
	results    chan indexedResult[R]
	wg         sync.WaitGroup
	collected  chan []indexedResult[R]
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once

	mu        sync.Mutex
	submitted int
}

// NewPool creates a pool with the given number of workers, at least one.
// Cancelling ctx stops workers from picking up further tasks.
func NewPool[R any](ctx context.Context, workers int) *Pool[R] {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool[R]{
		workers:    workers,
		tasks:      make(chan indexedTask[R], workers*2),
		results:    make(chan indexedResult[R], workers*2),
		collected:  make(chan []indexedResult[R], 1),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the workers and the result collector
func (p *Pool[R]) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	go p.collect()
}

func (p *Pool[R]) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case t, ok := <-p.tasks:
			if !ok {
				return
			}
			p.results <- indexedResult[R]{index: t.index, result: t.task(p.ctx)}
		}
	}
}

func (p *Pool[R]) collect() {
	var all []indexedResult[R]
	for r := range p.results {
		all = append(all, r)
	}
	p.collected <- all
}

// Submit queues a task. It returns false when the pool was shut down
// before the task could be queued.
func (p *Pool[R]) Submit(task Task[R]) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx.Err() != nil {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.tasks <- indexedTask[R]{index: p.submitted, task: task}:
		p.submitted++
		return true
	}
}

// Wait closes the queue, waits for every task and returns the results in
// submission order. Tasks dropped by a shutdown leave the zero value in
// their slot.
func (p *Pool[R]) Wait() []R {
	p.closeTasks()
	p.wg.Wait()
	close(p.results)

	all := <-p.collected

	p.mu.Lock()
	out := make([]R, p.submitted)
	p.mu.Unlock()
	for _, r := range all {
		out[r.index] = r.result
	}
	return out
}

// Shutdown cancels the pool. Running tasks see a cancelled context and
// queued tasks are dropped. Call Wait afterwards to release the collector.
func (p *Pool[R]) Shutdown() {
	p.cancelFunc()
}

func (p *Pool[R]) closeTasks() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		close(p.tasks)
		p.mu.Unlock()
	})
}
