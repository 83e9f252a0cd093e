// Package batch runs one recompute pass over every active driver, advancing
// each eligible driver by exactly one rung.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/tierd/internal/adapters/mq/queue"
	"github.com/okian/tierd/internal/adapters/mq/worker"
	"github.com/okian/tierd/internal/domain/ladder"
	"github.com/okian/tierd/internal/domain/model"
	"github.com/okian/tierd/pkg/logger"
	"github.com/okian/tierd/pkg/metrics"
)

// Run outcomes used as metric labels.
const (
	outcomeCompleted = "completed"
	outcomeDeadline  = "deadline"
	outcomeFailed    = "failed"
)

// Lister lists the drivers a pass covers.
type Lister interface {
	ActiveIDs(ctx context.Context) ([]string, error)
}

// Advancer is the shared single-rung conditional update.
type Advancer interface {
	Advance(ctx context.Context, reg *ladder.Registry, driverID string, now time.Time) (model.PromotionResult, error)
}

// Orchestrator fans a recompute pass out over a worker pool.
type Orchestrator struct {
	drivers   Lister
	ladder    *ladder.Holder
	advancer  Advancer
	workers   int
	queueSize int
	log       logger.Logger
}

// New creates an orchestrator.
func New(drivers Lister, h *ladder.Holder, advancer Advancer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		drivers:   drivers,
		ladder:    h,
		advancer:  advancer,
		workers:   defaultWorkers,
		queueSize: defaultQueueSize,
		log:       logger.Named("batch"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RecomputeAll evaluates every active driver as of now.
//
// Per-driver failures count as unchanged and never abort the pass. When ctx
// ends first, drivers not yet handled are reported as Skipped and left for
// the next pass. The only error is failing to list the drivers.
func (o *Orchestrator) RecomputeAll(ctx context.Context, now time.Time) (model.BatchSummary, error) {
	summary := model.BatchSummary{RunID: uuid.NewString(), StartedAt: time.Now()}
	reg := o.ladder.Current()
	log := o.log.With(logger.String("run_id", summary.RunID))

	ids, err := o.drivers.ActiveIDs(ctx)
	if err != nil {
		summary.FinishedAt = time.Now()
		metrics.RecordBatchRun(outcomeFailed, summary.FinishedAt.Sub(summary.StartedAt), 0, 0, 0, 0)
		metrics.RecordErrorByComponent("batch", "list_drivers")
		log.Error(ctx, "recompute could not list drivers", logger.Error(err))
		return summary, fmt.Errorf("list active drivers: %w", err)
	}
	log.Info(ctx, "recompute started", logger.Int("drivers", len(ids)), logger.Int("levels", reg.Len()))

	var promoted, unchanged atomic.Int64
	handle := func(ctx context.Context, j queue.Job) error {
		_, err := o.advancer.Advance(ctx, reg, j.DriverID, now)
		switch {
		case err == nil:
			promoted.Add(1)
			return nil
		case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
			// Interrupted mid-driver: leave it for the next pass.
			return nil
		}
		unchanged.Add(1)
		if expected(err) {
			return nil
		}
		return err
	}

	q := queue.NewInMemoryQueue(queue.WithCapacity(o.queueSize))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer func() { _ = q.Close() }()
		for _, id := range ids {
			if q.Put(gctx, queue.Job{RunID: summary.RunID, DriverID: id, EnqueuedAt: time.Now()}) != nil {
				break
			}
		}
		return nil
	})
	g.Go(func() error {
		_, err := worker.NewPool(o.workers).Run(gctx, q, handle)
		return err
	})
	_ = g.Wait()

	summary.Promoted = int(promoted.Load())
	summary.Unchanged = int(unchanged.Load())
	summary.Processed = summary.Promoted + summary.Unchanged
	summary.Skipped = len(ids) - summary.Processed
	summary.FinishedAt = time.Now()

	outcome := outcomeCompleted
	if summary.Skipped > 0 {
		outcome = outcomeDeadline
	}
	metrics.RecordBatchRun(outcome, summary.FinishedAt.Sub(summary.StartedAt),
		summary.Processed, summary.Promoted, summary.Unchanged, summary.Skipped)
	log.Info(ctx, "recompute finished",
		logger.String("outcome", outcome),
		logger.Int("processed", summary.Processed),
		logger.Int("promoted", summary.Promoted),
		logger.Int("unchanged", summary.Unchanged),
		logger.Int("skipped", summary.Skipped),
		logger.Duration("took", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, nil
}

// expected reports per-driver outcomes that are normal for a pass.
func expected(err error) bool {
	return errors.Is(err, model.ErrNotEligible) ||
		errors.Is(err, model.ErrAlreadyMaxLevel) ||
		errors.Is(err, model.ErrConcurrentModification) ||
		errors.Is(err, model.ErrInactive) ||
		errors.Is(err, model.ErrNotFound)
}
