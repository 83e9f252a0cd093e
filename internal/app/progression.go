package service

import (
	"context"
	"fmt"

	"github.com/okian/tierd/internal/domain/ladder"
	"github.com/okian/tierd/internal/domain/model"
	"github.com/okian/tierd/internal/domain/progression"
	"github.com/okian/tierd/pkg/logger"
	"github.com/okian/tierd/pkg/metrics"
)

// GetProgression reports the driver's tier, the next rung and what is missing.
func (s *Service) GetProgression(ctx context.Context, driverID string) (model.ProgressionReport, error) {
	p, err := s.store.Get(ctx, driverID)
	if err != nil {
		return model.ProgressionReport{}, fmt.Errorf("progression %s: %w", driverID, err)
	}
	return progression.NewEvaluator(s.ladder.Current()).Evaluate(p, s.now())
}

// Promote advances one driver exactly one rung.
func (s *Service) Promote(ctx context.Context, driverID string) (model.PromotionResult, error) {
	s.ladderMu.RLock()
	defer s.ladderMu.RUnlock()
	return s.promoter.Promote(ctx, driverID)
}

// RecomputeAll runs one recompute pass bounded by the configured timeout.
func (s *Service) RecomputeAll(ctx context.Context) (model.BatchSummary, error) {
	if s.batchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.batchTimeout)
		defer cancel()
	}

	s.ladderMu.RLock()
	summary, err := s.batch.RecomputeAll(ctx, s.now())
	s.ladderMu.RUnlock()
	if err != nil {
		return summary, err
	}

	s.batchMu.Lock()
	s.lastBatch = &summary
	s.batchMu.Unlock()
	s.RefreshMetrics(context.WithoutCancel(ctx))
	return summary, nil
}

// Levels returns the ladder in effect, ascending by rank.
func (s *Service) Levels() []model.Level {
	return s.ladder.Current().Levels()
}

// ReplaceLadder validates levels and makes them the ladder for every pass that
// starts afterwards. A ladder that drops a rank any stored driver holds,
// inactive ones included, is rejected.
func (s *Service) ReplaceLadder(ctx context.Context, levels []model.Level) ([]model.Level, error) {
	reg, err := ladder.New(levels)
	if err != nil {
		return nil, err
	}

	s.ladderMu.Lock()
	defer s.ladderMu.Unlock()

	inUse, err := s.store.RanksInUse(ctx)
	if err != nil {
		return nil, fmt.Errorf("replace ladder: %w", err)
	}
	for rank, n := range inUse {
		if _, ok := reg.Lookup(rank); !ok && n > 0 {
			return nil, model.NewConfigurationError("rank %d is still held by %d drivers", rank, n)
		}
	}

	s.ladder.Swap(reg)
	metrics.RecordLadderReplaced()
	metrics.UpdateLadderLevels(reg.Len())
	s.logger.Info(ctx, "ladder replaced", logger.Int("levels", reg.Len()))
	return reg.Levels(), nil
}
