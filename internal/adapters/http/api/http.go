// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/tierd/internal/domain/model"
)

// DriverDependencies covers the per-driver operations.
type DriverDependencies interface {
	Enroll(ctx context.Context, driverID string, enrolledAt time.Time, otherSignal int) (model.DriverProgression, error)
	Driver(ctx context.Context, driverID string) (model.DriverProgression, error)
	Deactivate(ctx context.Context, driverID string) error
	GetProgression(ctx context.Context, driverID string) (model.ProgressionReport, error)
	SubmitEvaluation(ctx context.Context, driverID string, evaluation int, submissionID string) (model.EvaluationResult, error)
	UpdateSignal(ctx context.Context, driverID string, score int) (model.EvaluationResult, error)
	Promote(ctx context.Context, driverID string) (model.PromotionResult, error)
}

// LadderDependencies reads and replaces the level ladder.
type LadderDependencies interface {
	Levels() []model.Level
	ReplaceLadder(ctx context.Context, levels []model.Level) ([]model.Level, error)
}

// RecomputeDependencies runs a batch pass.
type RecomputeDependencies interface {
	RecomputeAll(ctx context.Context) (model.BatchSummary, error)
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	DriverDependencies
	LadderDependencies
	RecomputeDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	driversHandler   *DriversHandler
	levelsHandler    *LevelsHandler
	recomputeHandler *RecomputeHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(deps),
		driversHandler:   NewDriversHandler(deps),
		levelsHandler:    NewLevelsHandler(deps),
		recomputeHandler: NewRecomputeHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("GET /levels", MetricsMiddleware(s.levelsHandler.HandleGetLevels, "levels"))
	mux.HandleFunc("PUT /levels", MetricsMiddleware(s.levelsHandler.HandleReplaceLevels, "levels"))

	mux.HandleFunc("POST /drivers", MetricsMiddleware(s.driversHandler.HandleEnroll, "drivers"))
	mux.HandleFunc("GET /drivers/{id}", MetricsMiddleware(s.driversHandler.HandleGetDriver, "driver"))
	mux.HandleFunc("DELETE /drivers/{id}", MetricsMiddleware(s.driversHandler.HandleDeactivate, "driver"))
	mux.HandleFunc("GET /drivers/{id}/progression", MetricsMiddleware(s.driversHandler.HandleGetProgression, "progression"))
	mux.HandleFunc("POST /drivers/{id}/evaluation", MetricsMiddleware(s.driversHandler.HandleSubmitEvaluation, "evaluation"))
	mux.HandleFunc("PUT /drivers/{id}/signal", MetricsMiddleware(s.driversHandler.HandleUpdateSignal, "signal"))
	mux.HandleFunc("POST /drivers/{id}/promote", MetricsMiddleware(s.driversHandler.HandlePromote, "promote"))

	mux.HandleFunc("POST /recompute", MetricsMiddleware(s.recomputeHandler.HandleRecompute, "recompute"))
}
