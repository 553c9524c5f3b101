// Package worker runs the scoring worker pool.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/pkg/logger"
	"github.com/okian/pulse/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2
	poolShutdownTimeout     = 30 * time.Second
)

// Queue is where workers read jobs from.
type Queue interface {
	Dequeue() <-chan model.Job
}

// Processor scores one subject.
type Processor interface {
	Process(ctx context.Context, job model.Job) (model.ScoreResult, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, job model.Job) (model.ScoreResult, error)

func (f ProcessorFunc) Process(ctx context.Context, job model.Job) (model.ScoreResult, error) {
	return f(ctx, job)
}

// Collector receives every outcome. It must be safe for concurrent use.
type Collector interface {
	Collect(o model.Outcome)
}

// InMemoryWorker pulls jobs until the queue closes or ctx is done.
type InMemoryWorker struct {
	queue     Queue
	processor Processor
	collector Collector
	name      string
	logger    logger.Logger
	done      chan struct{}
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(q Queue, p Processor, c Collector, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		processor: p,
		collector: c,
		name:      "worker",
		logger:    logger.Named("worker"),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(logger.String("worker", w.name))
	return w
}

// Run processes jobs. It returns when the queue is drained and closed or ctx is done.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.collector.Collect(w.process(ctx, job))
		}
	}
}

// Done is closed once Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, job model.Job) model.Outcome {
	start := time.Now()
	res, err := w.processor.Process(ctx, job)
	metrics.RecordScoringLatency(float64(time.Since(start).Milliseconds()))

	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordSubjectScored("failed")
		w.logger.Warn(ctx, "subject not scored",
			logger.String("subject", job.SubjectID),
			logger.Error(err),
		)
		return model.Outcome{Job: job, Err: fmt.Errorf("score %s: %w", job.SubjectID, err)}
	}
	metrics.RecordSubjectScored("scored")
	return model.Outcome{Job: job, Result: res}
}

// Pool runs a fixed set of workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
	wg      sync.WaitGroup
}

// NewPool creates workerCount workers. Values < 1 use twice the CPU count.
func NewPool(workerCount int, q Queue, p Processor, c Collector) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Named("worker-pool"),
	}
	for i := range pool.workers {
		pool.workers[i] = NewInMemoryWorker(q, p, c, WithName("worker-"+strconv.Itoa(i)))
	}
	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *InMemoryWorker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Shutdown closes the queue if it can be closed and waits for the workers
// to drain it, up to ctx's deadline.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "worker pool shutdown timed out")
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}
