// Package service wires the progression engine into the operations exposed
// over HTTP and the CLI.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/okian/tierd/internal/adapters/repository"
	"github.com/okian/tierd/internal/domain/batch"
	"github.com/okian/tierd/internal/domain/dedupe"
	"github.com/okian/tierd/internal/domain/ladder"
	"github.com/okian/tierd/internal/domain/model"
	"github.com/okian/tierd/internal/domain/promotion"
	"github.com/okian/tierd/internal/domain/scoring"
	"github.com/okian/tierd/pkg/logger"
	"github.com/okian/tierd/pkg/metrics"
)

// Service implements the API dependencies for the tier progression engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	ladder   *ladder.Holder
	scorer   scoring.Scorer
	deduper  dedupe.Deduper
	promoter *promotion.Command
	batch    *batch.Orchestrator

	// ladderMu orders enrolments against ladder replacement.
	ladderMu sync.RWMutex

	// pending holds submission keys whose first write has not settled.
	pendingMu sync.Mutex
	pending   map[string]chan struct{}

	// Configuration
	batchWorkers      int
	batchQueueSize    int
	batchTimeout      time.Duration
	recomputeInterval time.Duration
	dedupeSize        int
	now               func() time.Time

	// State
	started   bool
	stopped   bool
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	batchMu   sync.Mutex
	lastBatch *model.BatchSummary

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithBatchWorkers sets how many drivers a recompute pass handles in parallel.
func WithBatchWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchWorkers = n
		}
	}
}

// WithBatchQueueSize bounds the recompute job queue.
func WithBatchQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchQueueSize = n
		}
	}
}

// WithBatchTimeout sets the deadline for each recompute pass. 0 disables it.
func WithBatchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.batchTimeout = d
		}
	}
}

// WithRecomputeInterval runs recompute on a ticker after Start. 0 disables it.
func WithRecomputeInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.recomputeInterval = d
		}
	}
}

// WithDedupeSize sets how many evaluation submission IDs are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.dedupeSize = size
		}
	}
}

// WithScorer replaces the default 15/85 care score weighting.
func WithScorer(sc scoring.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service over store and the ladder held by h. The service
// owns store and closes it on Stop.
func New(store repository.Store, h *ladder.Holder, opts ...Option) *Service {
	s := &Service{
		store:          store,
		ladder:         h,
		scorer:         scoring.NewWeightedScorer(),
		batchWorkers:   8,
		batchQueueSize: 1024,
		batchTimeout:   time.Minute,
		dedupeSize:     50000,
		now:            time.Now,
		stopCh:         make(chan struct{}),
		pending:        make(map[string]chan struct{}),
		logger:         logger.Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.promoter = promotion.New(store, h,
		promotion.WithClock(s.now),
		promotion.WithLogger(s.logger.Named("promotion")),
	)
	s.batch = batch.New(store, h, s.promoter,
		batch.WithWorkers(s.batchWorkers),
		batch.WithQueueSize(s.batchQueueSize),
		batch.WithLogger(s.logger.Named("batch")),
	)
	metrics.UpdateLadderLevels(h.Current().Len())
	return s
}

// Start launches background loops: gauge refresh and, when configured, the
// recompute scheduler.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}

	s.wg.Add(1)
	go s.runTicker(ctx, metrics.RefreshInterval(), s.RefreshMetrics)

	if s.recomputeInterval > 0 {
		s.wg.Add(1)
		go s.runTicker(ctx, s.recomputeInterval, func(ctx context.Context) {
			if _, err := s.RecomputeAll(ctx); err != nil {
				s.logger.Error(ctx, "scheduled recompute failed", logger.Error(err))
			}
		})
	}

	s.started = true
	s.logger.Info(ctx, "tier service started",
		logger.Int("batch_workers", s.batchWorkers),
		logger.Int("batch_queue_size", s.batchQueueSize),
		logger.Duration("batch_timeout", s.batchTimeout),
		logger.Duration("recompute_interval", s.recomputeInterval),
		logger.Int("levels", s.ladder.Current().Len()),
	)
	return nil
}

func (s *Service) runTicker(ctx context.Context, every time.Duration, fn func(context.Context)) {
	defer s.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// Stop halts background loops and closes the store. Later calls do nothing
// and the service cannot be started again.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		if err := s.store.Close(); err != nil {
			s.logger.Warn(context.Background(), "closing store failed", logger.Error(err))
		}
		s.started = false
		s.stopped = true
		s.logger.Info(context.Background(), "tier service stopped")
	})
}

// RefreshMetrics publishes driver totals and the per-level distribution.
func (s *Service) RefreshMetrics(ctx context.Context) {
	if total, err := s.store.Count(ctx); err == nil {
		metrics.UpdateDriversTotal(total)
	}
	if byLevel, err := s.store.CountByLevel(ctx); err == nil {
		metrics.UpdateDriversPerLevel(byLevel)
	}
	metrics.UpdateLadderLevels(s.ladder.Current().Len())
}

// LastRecompute returns the summary of the most recent pass, if any.
func (s *Service) LastRecompute() *model.BatchSummary {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	if s.lastBatch == nil {
		return nil
	}
	out := *s.lastBatch
	return &out
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":          s.started,
		"batchWorkers":     s.batchWorkers,
		"batchQueueSize":   s.batchQueueSize,
		"batchTimeoutMs":   s.batchTimeout.Milliseconds(),
		"recomputeEveryMs": s.recomputeInterval.Milliseconds(),
		"dedupeSize":       s.deduper.Size(),
		"levels":           s.ladder.Current().Len(),
	}
	if total, err := s.store.Count(ctx); err == nil {
		stats["totalDrivers"] = total
	}
	if byLevel, err := s.store.CountByLevel(ctx); err == nil {
		named := make(map[string]int, len(byLevel))
		reg := s.ladder.Current()
		for rank, n := range byLevel {
			if lvl, ok := reg.Lookup(rank); ok {
				named[lvl.Name] = n
			}
		}
		stats["activeDriversPerLevel"] = named
	}
	if last := s.LastRecompute(); last != nil {
		stats["lastRecompute"] = *last
	}
	return stats
}
