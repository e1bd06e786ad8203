package worker

import (
	"context"
	"sync"
)

// Job is one unit of pool work.
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is the outcome of one executed job.
type Result interface {
	GetError() error
}

// Pool runs jobs over a fixed set of workers. Results accumulate in a
// collector, so workers never block on delivery and the queue keeps
// draining no matter how many jobs are submitted.
type Pool struct {
	workers   int
	jobQueue  chan Job
	collector *ResultCollector
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewPool creates a pool of the given size. The pool context derives from
// parent, so cancelling parent stops the workers; a nil parent means no
// external cancellation. Sizes below one run a single worker.
func NewPool(parent context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	return &Pool{
		workers:   workers,
		jobQueue:  make(chan Job, workers*2),
		collector: NewResultCollector(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.collector.Add(job.Execute(p.ctx))
		}
	}
}

// Submit queues a job, blocking while the queue is full. After Shutdown
// or parent cancellation it returns without queueing.
func (p *Pool) Submit(job Job) {
	select {
	case <-p.ctx.Done():
	case p.jobQueue <- job:
	}
}

// Wait closes the queue, waits for the workers to drain it, and returns
// every collected result. No Submit may follow.
func (p *Pool) Wait() []Result {
	p.closeOnce.Do(func() { close(p.jobQueue) })
	p.wg.Wait()
	return p.collector.Results()
}

// Shutdown cancels in-flight work and waits for the workers to exit.
// Results of jobs that completed before the cancellation stay available
// through Wait.
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
}

// ResultCollector accumulates results from concurrent workers.
type ResultCollector struct {
	mu      sync.Mutex
	results []Result
}

// NewResultCollector creates an empty collector.
func NewResultCollector() *ResultCollector {
	return &ResultCollector{}
}

// Add appends one result.
func (c *ResultCollector) Add(result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, result)
}

// Results returns a copy of the collected results.
func (c *ResultCollector) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Result(nil), c.results...)
}
