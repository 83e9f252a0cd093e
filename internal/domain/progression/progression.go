// Package progression decides whether a driver may advance to the next tier.
// It is the only place eligibility is computed; promotion and batch recompute
// both call it.
package progression

import (
	"fmt"
	"time"

	"github.com/okian/tierd/internal/domain/ladder"
	"github.com/okian/tierd/internal/domain/model"
)

// Evaluator checks a driver against the next rung of one captured ladder.
type Evaluator struct {
	ladder *ladder.Registry
}

// NewEvaluator binds an evaluator to reg for the duration of one operation.
func NewEvaluator(reg *ladder.Registry) *Evaluator {
	return &Evaluator{ladder: reg}
}

// Ladder returns the registry the evaluator was built with.
func (e *Evaluator) Ladder() *ladder.Registry { return e.ladder }

// Evaluate builds the progression report for p as of now. It has no side effects.
func (e *Evaluator) Evaluate(p model.DriverProgression, now time.Time) (model.ProgressionReport, error) {
	current, ok := e.ladder.Lookup(p.CurrentLevelRank)
	if !ok {
		return model.ProgressionReport{}, model.NewConfigurationError(
			"driver %s references unknown rank %d", p.DriverID, p.CurrentLevelRank)
	}

	report := model.ProgressionReport{
		DriverID:      p.DriverID,
		CurrentLevel:  current,
		MonthsService: MonthsBetween(p.EnrolledAt, now),
		CareScore:     p.CareScore,
		UnmetReasons:  []string{},
	}

	next, ok := e.ladder.Next(p.CurrentLevelRank)
	if !ok {
		return report, nil
	}
	report.NextLevel = &next

	if report.MonthsService < next.MinMonthsService {
		report.UnmetReasons = append(report.UnmetReasons, MonthsReason(report.MonthsService, next.MinMonthsService))
	}
	if report.CareScore < next.MinCareScore {
		report.UnmetReasons = append(report.UnmetReasons, ScoreReason(report.CareScore, next.MinCareScore))
	}
	report.Eligible = len(report.UnmetReasons) == 0
	return report, nil
}

// MonthsReason formats an unmet service-time criterion.
func MonthsReason(actual, required int) string {
	return fmt.Sprintf("Tempo de serviço insuficiente: %d/%d meses", actual, required)
}

// ScoreReason formats an unmet care-score criterion.
func ScoreReason(actual, required int) string {
	return fmt.Sprintf("Pontuação insuficiente: %d/%d", actual, required)
}
