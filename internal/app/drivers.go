package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/tierd/internal/domain/dedupe"
	"github.com/okian/tierd/internal/domain/model"
	"github.com/okian/tierd/internal/domain/scoring"
	"github.com/okian/tierd/pkg/logger"
	"github.com/okian/tierd/pkg/metrics"
)

// maxWriteAttempts is the initial write plus one optimistic retry.
const maxWriteAttempts = 2

// Enroll creates the progression record for a newly active driver at the
// lowest rung. A zero enrolledAt means now.
func (s *Service) Enroll(ctx context.Context, driverID string, enrolledAt time.Time, otherSignal int) (model.DriverProgression, error) {
	driverID = strings.TrimSpace(driverID)
	if driverID == "" {
		return model.DriverProgression{}, model.NewValidationError("driver_id", "must not be empty")
	}
	if err := scoring.ValidateScore("other_signal_score", otherSignal); err != nil {
		return model.DriverProgression{}, err
	}
	careScore, err := s.scorer.CareScore(nil, otherSignal)
	if err != nil {
		return model.DriverProgression{}, err
	}

	now := s.now()
	if enrolledAt.IsZero() {
		enrolledAt = now
	}

	s.ladderMu.RLock()
	defer s.ladderMu.RUnlock()

	p, err := s.store.Create(ctx, model.DriverProgression{
		DriverID:         driverID,
		CurrentLevelRank: s.ladder.Current().Lowest().Rank,
		EnrolledAt:       enrolledAt,
		OtherSignalScore: otherSignal,
		CareScore:        careScore,
		Active:           true,
		UpdatedAt:        now,
	})
	if err != nil {
		return model.DriverProgression{}, fmt.Errorf("enroll %s: %w", driverID, err)
	}

	metrics.RecordDriverEnrolled()
	metrics.RecordCareScore(careScore)
	s.logger.Info(ctx, "driver enrolled",
		logger.DriverID(driverID),
		logger.Time("enrolled_at", enrolledAt),
		logger.Int("care_score", careScore),
	)
	return p, nil
}

// Driver returns the stored progression record.
func (s *Service) Driver(ctx context.Context, driverID string) (model.DriverProgression, error) {
	p, err := s.store.Get(ctx, driverID)
	if err != nil {
		return model.DriverProgression{}, fmt.Errorf("driver %s: %w", driverID, err)
	}
	return p, nil
}

// Deactivate archives a driver: it keeps its record and tier but is left out
// of recompute passes and rejects further writes.
func (s *Service) Deactivate(ctx context.Context, driverID string) error {
	_, err := s.update(ctx, driverID, "deactivate", func(p *model.DriverProgression) error {
		p.Active = false
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "driver deactivated", logger.DriverID(driverID))
	return nil
}

// SubmitEvaluation records a partner evaluation and recomputes the care score.
// It never changes the driver's tier. A repeated submissionID for the same
// driver is acknowledged without writing.
func (s *Service) SubmitEvaluation(ctx context.Context, driverID string, evaluation int, submissionID string) (model.EvaluationResult, error) {
	if err := scoring.ValidateScore("partner_evaluation", evaluation); err != nil {
		return model.EvaluationResult{}, err
	}

	var key string
	if submissionID != "" {
		key = dedupe.Key(driverID, submissionID)
		seen, release, err := s.claimSubmission(ctx, key)
		if err != nil {
			return model.EvaluationResult{}, fmt.Errorf("submit evaluation %s: %w", driverID, err)
		}
		if seen {
			metrics.RecordEvaluationDuplicate()
			p, err := s.store.Get(ctx, driverID)
			if err != nil {
				return model.EvaluationResult{}, fmt.Errorf("submit evaluation %s: %w", driverID, err)
			}
			return model.EvaluationResult{DriverID: driverID, CareScore: p.CareScore, Version: p.Version, Duplicate: true}, nil
		}
		defer release()
	}

	p, err := s.update(ctx, driverID, "evaluation", func(p *model.DriverProgression) error {
		v := evaluation
		p.PartnerEvaluation = &v
		return s.rescore(p)
	})
	if err != nil {
		if key != "" {
			s.deduper.Unrecord(ctx, key)
		}
		return model.EvaluationResult{}, err
	}

	metrics.RecordEvaluationSubmitted()
	metrics.RecordCareScore(p.CareScore)
	s.logger.Info(ctx, "partner evaluation applied",
		logger.DriverID(driverID),
		logger.Int("evaluation", evaluation),
		logger.Int("care_score", p.CareScore),
	)
	return model.EvaluationResult{DriverID: driverID, CareScore: p.CareScore, Version: p.Version}, nil
}

// UpdateSignal stores the externally computed signal and recomputes the care
// score. Like SubmitEvaluation it never promotes.
func (s *Service) UpdateSignal(ctx context.Context, driverID string, score int) (model.EvaluationResult, error) {
	if err := scoring.ValidateScore("other_signal_score", score); err != nil {
		return model.EvaluationResult{}, err
	}

	p, err := s.update(ctx, driverID, "signal", func(p *model.DriverProgression) error {
		p.OtherSignalScore = score
		return s.rescore(p)
	})
	if err != nil {
		return model.EvaluationResult{}, err
	}

	metrics.RecordSignalUpdate()
	metrics.RecordCareScore(p.CareScore)
	s.logger.Debug(ctx, "signal updated",
		logger.DriverID(driverID),
		logger.Int("other_signal_score", score),
		logger.Int("care_score", p.CareScore),
	)
	return model.EvaluationResult{DriverID: driverID, CareScore: p.CareScore, Version: p.Version}, nil
}

func (s *Service) rescore(p *model.DriverProgression) error {
	score, err := s.scorer.CareScore(p.PartnerEvaluation, p.OtherSignalScore)
	if err != nil {
		return err
	}
	p.CareScore = score
	return nil
}

// update applies mutate to the latest record under the version guard,
// retrying once on a lost race. Inactive drivers are rejected.
func (s *Service) update(ctx context.Context, driverID, op string, mutate func(*model.DriverProgression) error) (model.DriverProgression, error) {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		p, err := s.store.Get(ctx, driverID)
		if err != nil {
			return model.DriverProgression{}, fmt.Errorf("%s %s: %w", op, driverID, err)
		}
		if !p.Active {
			return model.DriverProgression{}, fmt.Errorf("%s %s: %w", op, driverID, model.ErrInactive)
		}

		expected := p.Version
		if err := mutate(&p); err != nil {
			return model.DriverProgression{}, err
		}
		p.UpdatedAt = s.now()

		stored, err := s.store.CompareAndSwap(ctx, p, expected)
		if err == nil {
			return stored, nil
		}
		if !errors.Is(err, model.ErrVersionConflict) {
			return model.DriverProgression{}, fmt.Errorf("%s %s: %w", op, driverID, err)
		}
		metrics.RecordVersionConflict(op)
	}
	return model.DriverProgression{}, fmt.Errorf("%s %s: %w", op, driverID, model.ErrConcurrentModification)
}

// claimSubmission records key for the caller or reports it as already seen.
// While the first holder's write is in flight, later callers with the same key
// wait for it to settle, so a duplicate sees the committed score and a failed
// first write lets the retry through.
func (s *Service) claimSubmission(ctx context.Context, key string) (seen bool, release func(), err error) {
	for {
		s.pendingMu.Lock()
		wait, busy := s.pending[key]
		if !busy {
			if s.deduper.SeenAndRecord(ctx, key) {
				s.pendingMu.Unlock()
				return true, nil, nil
			}
			done := make(chan struct{})
			s.pending[key] = done
			s.pendingMu.Unlock()
			return false, func() {
				s.pendingMu.Lock()
				delete(s.pending, key)
				s.pendingMu.Unlock()
				close(done)
			}, nil
		}
		s.pendingMu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return false, nil, ctx.Err()
		}
	}
}
