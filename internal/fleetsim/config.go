// Package fleetsim drives a running tierd server end to end: it enrolls a
// synthetic fleet, feeds scores, runs recompute passes and checks every
// driver's level against a locally computed expectation.
package fleetsim

import (
	"time"

	"github.com/okian/tierd/internal/domain/model"
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Drivers    int           // Number of synthetic drivers
	Workers    int           // Concurrent HTTP requests
	Timeout    time.Duration // HTTP request timeout
	Seed       uint64        // Profile generator seed
	Passes     int           // Recompute passes to run and verify
	OutputFile string        // Optional JSON dump of the generated fleet
}

// Profile is one synthetic driver and the inputs fed for it.
type Profile struct {
	DriverID     string    `json:"driver_id"`
	EnrolledAt   time.Time `json:"enrolled_at"`
	Signal       int       `json:"other_signal_score"`
	Evaluation   *int      `json:"evaluation,omitempty"`
	SubmissionID string    `json:"submission_id,omitempty"`
}

// Record converts p to the stored shape the server should converge to before
// any promotion.
func (p Profile) Record(careScore int) model.DriverProgression {
	return model.DriverProgression{
		DriverID:          p.DriverID,
		EnrolledAt:        p.EnrolledAt,
		PartnerEvaluation: p.Evaluation,
		OtherSignalScore:  p.Signal,
		CareScore:         careScore,
		Active:            true,
	}
}

// Stats holds run statistics.
type Stats struct {
	Enrolled    int
	Signals     int
	Evaluations int
	Duplicates  int
	Failed      int
	Passes      []model.BatchSummary
	Mismatches  int
	StartTime   time.Time
	Duration    time.Duration
}
