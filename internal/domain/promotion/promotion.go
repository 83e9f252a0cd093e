// Package promotion advances a driver exactly one rung, re-checking
// eligibility at write time under a version guard.
package promotion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/tierd/internal/domain/ladder"
	"github.com/okian/tierd/internal/domain/model"
	"github.com/okian/tierd/internal/domain/progression"
	"github.com/okian/tierd/pkg/logger"
	"github.com/okian/tierd/pkg/metrics"
)

// Store is the slice of the repository the command needs.
type Store interface {
	Get(ctx context.Context, driverID string) (model.DriverProgression, error)
	CompareAndSwap(ctx context.Context, p model.DriverProgression, expected int64) (model.DriverProgression, error)
}

// Option applies a configuration option to the Command.
type Option func(*Command)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Command) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the command's logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Command) {
		if l != nil {
			c.log = l
		}
	}
}

// Command performs single-rung promotions.
type Command struct {
	store  Store
	ladder *ladder.Holder
	now    func() time.Time
	log    logger.Logger
}

// New creates a promotion command over store and the ladder held by h.
func New(store Store, h *ladder.Holder, opts ...Option) *Command {
	c := &Command{
		store:  store,
		ladder: h,
		now:    time.Now,
		log:    logger.Named("promotion"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Promote moves driverID up one rung if it is eligible now.
//
// Errors: model.ErrNotFound, model.ErrInactive, model.ErrAlreadyMaxLevel,
// *model.NotEligibleError and model.ErrConcurrentModification after one retry.
func (c *Command) Promote(ctx context.Context, driverID string) (model.PromotionResult, error) {
	return c.advance(ctx, c.ladder.Current(), driverID, c.now(), SourceSingle)
}

// Advance is the conditional-update step shared with batch recompute. reg and
// now are fixed by the caller for the whole pass.
func (c *Command) Advance(ctx context.Context, reg *ladder.Registry, driverID string, now time.Time) (model.PromotionResult, error) {
	return c.advance(ctx, reg, driverID, now, SourceBatch)
}

func (c *Command) advance(ctx context.Context, reg *ladder.Registry, driverID string, now time.Time, source string) (model.PromotionResult, error) {
	eval := progression.NewEvaluator(reg)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, err := c.attempt(ctx, eval, driverID, now)
		if err == nil {
			metrics.RecordPromotion(source, res.PromotedTo.Name)
			c.log.Info(ctx, "driver promoted",
				logger.DriverID(driverID),
				logger.String("source", source),
				logger.String("from", res.PromotedFrom.Name),
				logger.String("to", res.PromotedTo.Name),
				logger.Float64("bonus_percentage", res.BonusPercentage),
			)
			return res, nil
		}
		if !errors.Is(err, model.ErrVersionConflict) {
			metrics.RecordPromotionRejected(source, rejectionReason(err))
			return model.PromotionResult{}, err
		}
		metrics.RecordVersionConflict("promote")
		c.log.Debug(ctx, "promotion lost a race",
			logger.DriverID(driverID), logger.Int("attempt", attempt))
	}

	metrics.RecordPromotionRejected(source, reasonConflict)
	return model.PromotionResult{}, fmt.Errorf("promote %s: %w", driverID, model.ErrConcurrentModification)
}

func (c *Command) attempt(ctx context.Context, eval *progression.Evaluator, driverID string, now time.Time) (model.PromotionResult, error) {
	p, err := c.store.Get(ctx, driverID)
	if err != nil {
		return model.PromotionResult{}, fmt.Errorf("load driver %s: %w", driverID, err)
	}
	if !p.Active {
		return model.PromotionResult{}, fmt.Errorf("promote %s: %w", driverID, model.ErrInactive)
	}

	report, err := eval.Evaluate(p, now)
	if err != nil {
		return model.PromotionResult{}, err
	}
	if report.NextLevel == nil {
		return model.PromotionResult{}, fmt.Errorf("promote %s: %w", driverID, model.ErrAlreadyMaxLevel)
	}
	if !report.Eligible {
		return model.PromotionResult{}, &model.NotEligibleError{DriverID: driverID, Reasons: report.UnmetReasons}
	}

	next := *report.NextLevel
	p.CurrentLevelRank = next.Rank
	p.UpdatedAt = now
	if _, err := c.store.CompareAndSwap(ctx, p, p.Version); err != nil {
		return model.PromotionResult{}, fmt.Errorf("advance driver %s: %w", driverID, err)
	}

	return model.PromotionResult{
		DriverID:        driverID,
		PromotedFrom:    report.CurrentLevel,
		PromotedTo:      next,
		BonusPercentage: next.BonusPercentage,
	}, nil
}
