package model

import "time"

// Score bounds shared by evaluations, signals and care scores.
const (
	MinScore = 0
	MaxScore = 100
)

// DriverProgression is the persisted tier state of one driver.
type DriverProgression struct {
	DriverID          string    `json:"driver_id"`
	CurrentLevelRank  int       `json:"current_level_rank"`
	EnrolledAt        time.Time `json:"enrolled_at"`
	PartnerEvaluation *int      `json:"partner_evaluation"` // nil until the first submission
	OtherSignalScore  int       `json:"other_signal_score"`
	CareScore         int       `json:"care_score"`
	Active            bool      `json:"active"`
	Version           int64     `json:"version"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers never share the evaluation pointer.
func (p DriverProgression) Clone() DriverProgression {
	if p.PartnerEvaluation != nil {
		v := *p.PartnerEvaluation
		p.PartnerEvaluation = &v
	}
	return p
}

// ProgressionReport is the transient answer to "may this driver advance?".
type ProgressionReport struct {
	DriverID      string   `json:"driver_id"`
	CurrentLevel  Level    `json:"current_level"`
	MonthsService int      `json:"months_service"`
	CareScore     int      `json:"care_score"`
	NextLevel     *Level   `json:"next_level"`
	Eligible      bool     `json:"eligible"`
	UnmetReasons  []string `json:"unmet_reasons"`
}

// PromotionResult describes a successful one-rung promotion.
type PromotionResult struct {
	DriverID        string  `json:"driver_id"`
	PromotedFrom    Level   `json:"promoted_from"`
	PromotedTo      Level   `json:"promoted_to"`
	BonusPercentage float64 `json:"bonus_percentage"`
}

// EvaluationResult is returned after a partner evaluation or signal update.
type EvaluationResult struct {
	DriverID  string `json:"driver_id"`
	CareScore int    `json:"care_score"`
	Version   int64  `json:"version"`
	Duplicate bool   `json:"duplicate"`
}

// BatchSummary aggregates one recompute pass.
// Skipped counts drivers omitted because the pass deadline elapsed; they are
// not part of Processed.
type BatchSummary struct {
	RunID      string    `json:"run_id"`
	Processed  int       `json:"processed"`
	Promoted   int       `json:"promoted"`
	Unchanged  int       `json:"unchanged"`
	Skipped    int       `json:"skipped"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
