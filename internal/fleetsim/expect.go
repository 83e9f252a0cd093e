package fleetsim

import (
	"time"

	"github.com/okian/tierd/internal/domain/ladder"
	"github.com/okian/tierd/internal/domain/model"
	"github.com/okian/tierd/internal/domain/progression"
	"github.com/okian/tierd/internal/domain/scoring"
)

// Expectation tracks the level every simulated driver should hold.
type Expectation struct {
	eval    *progression.Evaluator
	records map[string]model.DriverProgression
}

// NewExpectation seeds the model with every profile on the lowest level.
func NewExpectation(reg *ladder.Registry, profiles []Profile) (*Expectation, error) {
	e := &Expectation{
		eval:    progression.NewEvaluator(reg),
		records: make(map[string]model.DriverProgression, len(profiles)),
	}
	for _, p := range profiles {
		score, err := scoring.CareScore(p.Evaluation, p.Signal)
		if err != nil {
			return nil, err
		}
		rec := p.Record(score)
		rec.CurrentLevelRank = reg.Lowest().Rank
		e.records[p.DriverID] = rec
	}
	return e, nil
}

// Pass applies one recompute pass as of now and returns how many drivers
// should have moved up a level.
func (e *Expectation) Pass(now time.Time) (int, error) {
	promoted := 0
	for id, rec := range e.records {
		report, err := e.eval.Evaluate(rec, now)
		if err != nil {
			return 0, err
		}
		if report.Eligible {
			rec.CurrentLevelRank = report.NextLevel.Rank
			e.records[id] = rec
			promoted++
		}
	}
	return promoted, nil
}

// Rank returns the expected level rank for a driver.
func (e *Expectation) Rank(driverID string) (int, bool) {
	rec, ok := e.records[driverID]
	return rec.CurrentLevelRank, ok
}

// CareScore returns the expected care score for a driver.
func (e *Expectation) CareScore(driverID string) (int, bool) {
	rec, ok := e.records[driverID]
	return rec.CareScore, ok
}
