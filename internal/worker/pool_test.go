package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type stubResult struct {
	err error
}

func (r *stubResult) GetError() error { return r.err }

type stubJob struct {
	duration  time.Duration
	shouldErr bool
	executed  *int32
}

func (j *stubJob) Execute(ctx context.Context) Result {
	if j.executed != nil {
		atomic.AddInt32(j.executed, 1)
	}
	if j.duration > 0 {
		select {
		case <-time.After(j.duration):
		case <-ctx.Done():
			return &stubResult{err: ctx.Err()}
		}
	}
	if j.shouldErr {
		return &stubResult{err: errors.New("job error")}
	}
	return &stubResult{}
}

func TestNewPoolSizes(t *testing.T) {
	if p := NewPool(nil, 5); p.workers != 5 {
		t.Errorf("expected 5 workers, got %d", p.workers)
	}
	if p := NewPool(nil, 0); p.workers != 1 {
		t.Errorf("expected 1 worker for size 0, got %d", p.workers)
	}
	if p := NewPool(nil, -1); p.workers != 1 {
		t.Errorf("expected 1 worker for negative size, got %d", p.workers)
	}
}

func TestPoolRunsEveryJob(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()

	// Far more jobs than any queue buffering: the collector must keep
	// the workers draining regardless.
	var executed int32
	count := 40
	for i := 0; i < count; i++ {
		pool.Submit(&stubJob{executed: &executed})
	}

	results := pool.Wait()
	if len(results) != count {
		t.Errorf("expected %d results, got %d", count, len(results))
	}
	if n := atomic.LoadInt32(&executed); n != int32(count) {
		t.Errorf("expected %d executions, got %d", count, n)
	}
}

type gatedJob struct {
	start func()
	end   func()
	hold  time.Duration
}

func (j *gatedJob) Execute(ctx context.Context) Result {
	if j.start != nil {
		j.start()
	}
	time.Sleep(j.hold)
	if j.end != nil {
		j.end()
	}
	return &stubResult{}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	workers := 4
	pool := NewPool(context.Background(), workers)
	pool.Start()

	var current, peak, completed int32
	var mu sync.Mutex
	total := 24

	for i := 0; i < total; i++ {
		pool.Submit(&gatedJob{
			start: func() {
				cur := atomic.AddInt32(&current, 1)
				mu.Lock()
				if cur > peak {
					peak = cur
				}
				mu.Unlock()
			},
			end: func() {
				atomic.AddInt32(&current, -1)
				atomic.AddInt32(&completed, 1)
			},
			hold: 5 * time.Millisecond,
		})
	}
	pool.Wait()

	if atomic.LoadInt32(&completed) != int32(total) {
		t.Errorf("expected %d completions, got %d", total, completed)
	}
	mu.Lock()
	p := peak
	mu.Unlock()
	if p > int32(workers) {
		t.Errorf("peak concurrency %d exceeded %d workers", p, workers)
	}
}

func TestPoolCollectsErrors(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()

	pool.Submit(&stubJob{shouldErr: true})
	pool.Submit(&stubJob{})

	results := pool.Wait()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	failures := 0
	for _, res := range results {
		if res.GetError() != nil {
			failures++
		}
	}
	if failures != 1 {
		t.Errorf("expected 1 failure, got %d", failures)
	}
}

func TestPoolSubmitAfterShutdown(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()
	pool.Shutdown()

	done := make(chan struct{})
	go func() {
		pool.Submit(&stubJob{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit after Shutdown blocked")
	}
}

func TestPoolParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(ctx, 2)
	pool.Start()

	started := make(chan struct{})
	pool.Submit(&gatedJob{
		start: func() { close(started) },
		hold:  200 * time.Millisecond,
	})
	<-started
	cancel()

	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait after parent cancellation timed out")
	}
}

func TestResultCollector(t *testing.T) {
	c := NewResultCollector()
	c.Add(&stubResult{})
	c.Add(&stubResult{err: errors.New("err")})

	res := c.Results()
	if len(res) != 2 {
		t.Fatalf("expected 2 results, got %d", len(res))
	}

	// The returned slice is a copy; growing it must not touch the
	// collector.
	_ = append(res, &stubResult{})
	if len(c.Results()) != 2 {
		t.Error("Results must return a copy")
	}
}
