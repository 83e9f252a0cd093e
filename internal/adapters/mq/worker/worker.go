// Package worker drains recompute jobs with a bounded set of workers.
package worker

import (
	"context"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/tierd/internal/adapters/mq/queue"
	"github.com/okian/tierd/pkg/logger"
	"github.com/okian/tierd/pkg/metrics"
)

// Handler processes one job. Errors are logged and never stop the pool.
type Handler func(ctx context.Context, j queue.Job) error

// Source is where workers read jobs from.
type Source interface {
	Dequeue() <-chan queue.Job
}

// InMemoryWorker runs a Handler over jobs from a Source.
type InMemoryWorker struct {
	source  Source
	handler Handler
	name    string
	logger  logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(source Source, handler Handler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		source:  source,
		handler: handler,
		name:    "worker",
		logger:  logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes jobs until the source is closed and drained or ctx is done.
// It returns the number of jobs handled.
func (w *InMemoryWorker) Run(ctx context.Context) int {
	handled := 0
	jobs := w.source.Dequeue()
	for {
		// Prefer cancellation over a ready job so a deadline stops work promptly.
		if ctx.Err() != nil {
			return handled
		}
		select {
		case <-ctx.Done():
			return handled
		case j, ok := <-jobs:
			if !ok {
				return handled
			}
			if ctx.Err() != nil {
				return handled
			}
			w.process(ctx, j)
			handled++
		}
	}
}

func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := w.handler(ctx, j); err != nil {
		metrics.RecordErrorByComponent("worker", "handler_error")
		w.logger.Warn(ctx, "job failed",
			logger.String("worker", w.name),
			logger.String("run_id", j.RunID),
			logger.DriverID(j.DriverID),
			logger.Error(err),
		)
	}
}

// Pool runs a fixed number of workers over one source.
type Pool struct {
	size   int
	active atomic.Int32
	logger logger.Logger
}

// NewPool creates a pool of workerCount workers, defaulting to NumCPU.
func NewPool(workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	return &Pool{
		size:   workerCount,
		logger: logger.Get().Named("worker-pool"),
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Run starts the workers and blocks until all of them return. Workers stop
// when the source is closed and drained or ctx is done. It returns the total
// number of jobs handled.
func (p *Pool) Run(ctx context.Context, source Source, handler Handler) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	var handled atomic.Int64

	for i := 0; i < p.size; i++ {
		w := NewInMemoryWorker(source, handler,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(p.logger.Named("worker-"+strconv.Itoa(i))),
		)
		g.Go(func() error {
			metrics.UpdateWorkerActiveCount(int(p.active.Add(1)))
			defer func() { metrics.UpdateWorkerActiveCount(int(p.active.Add(-1))) }()

			handled.Add(int64(w.Run(gctx)))
			return nil
		})
	}

	err := g.Wait()
	return int(handled.Load()), err
}
