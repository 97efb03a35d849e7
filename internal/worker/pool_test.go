package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewPool(t *testing.T) {
	p1 := NewPool[int](context.Background(), 5)
	if p1.workers != 5 {
		t.Errorf("expected 5 workers, got %d", p1.workers)
	}

	p2 := NewPool[int](context.Background(), 0)
	if p2.workers != 1 {
		t.Errorf("expected default 1 worker for 0 input, got %d", p2.workers)
	}

	p3 := NewPool[int](context.Background(), -1)
	if p3.workers != 1 {
		t.Errorf("expected default 1 worker for negative input, got %d", p3.workers)
	}
}

func TestPool_Execution(t *testing.T) {
	pool := NewPool[int](context.Background(), 2)
	pool.Start()

	var executed int32
	count := 10

	for i := 0; i < count; i++ {
		pool.Submit(func(ctx context.Context) int {
			atomic.AddInt32(&executed, 1)
			return 1
		})
	}

	results := pool.Wait()

	if len(results) != count {
		t.Errorf("expected %d results, got %d", count, len(results))
	}
	if atomic.LoadInt32(&executed) != int32(count) {
		t.Errorf("expected %d executed tasks, got %d", count, executed)
	}
}

func TestPool_PreservesSubmissionOrder(t *testing.T) {
	pool := NewPool[int](context.Background(), 4)
	pool.Start()

	count := 50
	for i := 0; i < count; i++ {
		n := i
		pool.Submit(func(ctx context.Context) int {
			// Earlier tasks sleep longer so they finish last
			time.Sleep(time.Duration(count-n) * 100 * time.Microsecond)
			return n
		})
	}

	results := pool.Wait()
	for i, got := range results {
		if got != i {
			t.Fatalf("result %d: expected %d, got %d", i, i, got)
		}
	}
}

func TestPool_Concurrency(t *testing.T) {
	workers := 3
	pool := NewPool[int](context.Background(), workers)
	pool.Start()

	var running, peak int32
	for i := 0; i < 12; i++ {
		pool.Submit(func(ctx context.Context) int {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return 0
		})
	}
	pool.Wait()

	if peak > int32(workers) {
		t.Errorf("expected at most %d concurrent tasks, saw %d", workers, peak)
	}
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewPool[int](context.Background(), 1)
	pool.Start()
	pool.Shutdown()

	if pool.Submit(func(ctx context.Context) int { return 1 }) {
		t.Error("expected submit to fail after shutdown")
	}

	results := pool.Wait()
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestPool_CancelledContextReachesTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool[error](ctx, 1)
	pool.Start()

	started := make(chan struct{})
	pool.Submit(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	<-started
	cancel()

	results := pool.Wait()
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0] == nil {
		t.Error("expected the running task to observe cancellation")
	}
}
