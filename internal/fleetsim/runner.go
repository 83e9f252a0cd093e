package fleetsim

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/okian/tierd/internal/domain/ladder"
	"github.com/okian/tierd/internal/domain/model"
	"github.com/okian/tierd/pkg/logger"
)

// ErrMismatch is returned when the server disagrees with the expectation.
var ErrMismatch = errors.New("server state does not match expectation")

const directoryPermission = 0o750

// Runner executes one simulation.
type Runner struct {
	cfg    Config
	client *client
	log    logger.Logger
}

// NewRunner creates a runner for cfg.
func NewRunner(cfg Config) *Runner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Passes < 1 {
		cfg.Passes = 2
	}
	return &Runner{
		cfg:    cfg,
		client: newClient(cfg.BaseURL, cfg.Timeout),
		log:    logger.Named("fleet-sim"),
	}
}

// Run executes the complete simulation and returns its statistics.
func (r *Runner) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	r.log.Info(ctx, "starting fleet simulation",
		logger.String("baseURL", r.cfg.BaseURL),
		logger.Int("drivers", r.cfg.Drivers),
		logger.Int("workers", r.cfg.Workers),
		logger.Int("passes", r.cfg.Passes),
	)

	if err := r.client.do(ctx, http.MethodGet, "/healthz", nil, http.StatusOK, nil); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	var levels struct {
		Levels []model.Level `json:"levels"`
	}
	if err := r.client.do(ctx, http.MethodGet, "/levels", nil, http.StatusOK, &levels); err != nil {
		return stats, fmt.Errorf("fetch ladder: %w", err)
	}
	reg, err := ladder.New(levels.Levels)
	if err != nil {
		return stats, fmt.Errorf("server ladder: %w", err)
	}

	profiles := Generate(r.cfg.Drivers, r.cfg.Seed, time.Now())
	expect, err := NewExpectation(reg, profiles)
	if err != nil {
		return stats, err
	}
	if r.cfg.OutputFile != "" {
		if err := saveProfiles(r.cfg.OutputFile, profiles); err != nil {
			r.log.Warn(ctx, "failed to save profiles", logger.Error(err))
		}
	}

	if err := r.feed(ctx, profiles, stats); err != nil {
		return stats, err
	}
	if err := r.verify(ctx, expect, profiles, stats, "after feed"); err != nil {
		return stats, err
	}

	for pass := 1; pass <= r.cfg.Passes; pass++ {
		var summary model.BatchSummary
		if err := r.client.do(ctx, http.MethodPost, "/recompute", nil, http.StatusOK, &summary); err != nil {
			return stats, fmt.Errorf("recompute pass %d: %w", pass, err)
		}
		stats.Passes = append(stats.Passes, summary)

		want, err := expect.Pass(time.Now())
		if err != nil {
			return stats, err
		}
		r.log.Info(ctx, "recompute pass finished",
			logger.Int("pass", pass),
			logger.String("run_id", summary.RunID),
			logger.Int("promoted", summary.Promoted),
			logger.Int("expected_promoted", want),
			logger.Int("skipped", summary.Skipped),
		)
		if summary.Skipped > 0 {
			return stats, fmt.Errorf("%w: pass %d skipped %d drivers", ErrMismatch, pass, summary.Skipped)
		}
		// Other drivers on the server may be promoted too.
		if summary.Promoted < want {
			return stats, fmt.Errorf("%w: pass %d promoted %d, expected at least %d", ErrMismatch, pass, summary.Promoted, want)
		}
		if err := r.verify(ctx, expect, profiles, stats, fmt.Sprintf("pass %d", pass)); err != nil {
			return stats, err
		}
	}

	stats.Duration = time.Since(stats.StartTime)
	r.log.Info(ctx, "fleet simulation passed",
		logger.Int("enrolled", stats.Enrolled),
		logger.Int("signals", stats.Signals),
		logger.Int("evaluations", stats.Evaluations),
		logger.Int("duplicates", stats.Duplicates),
		logger.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// feed enrolls every driver, sends its signal and evaluation, and replays the
// evaluation once to check idempotency.
func (r *Runner) feed(ctx context.Context, profiles []Profile, stats *Stats) error {
	var enrolled, signals, evaluations, duplicates, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for _, p := range profiles {
		g.Go(func() error {
			err := r.feedOne(gctx, p, &enrolled, &signals, &evaluations, &duplicates)
			if err != nil {
				failed.Add(1)
			}
			return err
		})
	}
	err := g.Wait()

	stats.Enrolled = int(enrolled.Load())
	stats.Signals = int(signals.Load())
	stats.Evaluations = int(evaluations.Load())
	stats.Duplicates = int(duplicates.Load())
	stats.Failed = int(failed.Load())
	if err != nil {
		return fmt.Errorf("feed drivers: %w", err)
	}
	return nil
}

func (r *Runner) feedOne(ctx context.Context, p Profile, enrolled, signals, evaluations, duplicates *atomic.Int64) error {
	enroll := map[string]any{"driver_id": p.DriverID, "enrolled_at": p.EnrolledAt}
	if err := r.client.do(ctx, http.MethodPost, "/drivers", enroll, http.StatusCreated, nil); err != nil {
		return err
	}
	enrolled.Add(1)

	path := "/drivers/" + p.DriverID
	if err := r.client.do(ctx, http.MethodPut, path+"/signal", map[string]int{"score": p.Signal}, http.StatusOK, nil); err != nil {
		return err
	}
	signals.Add(1)

	if p.Evaluation == nil {
		return nil
	}
	body := map[string]any{"evaluation": *p.Evaluation, "submission_id": p.SubmissionID}
	var first, replay model.EvaluationResult
	if err := r.client.do(ctx, http.MethodPost, path+"/evaluation", body, http.StatusOK, &first); err != nil {
		return err
	}
	evaluations.Add(1)
	if err := r.client.do(ctx, http.MethodPost, path+"/evaluation", body, http.StatusOK, &replay); err != nil {
		return err
	}
	if !replay.Duplicate || replay.Version != first.Version {
		return fmt.Errorf("%w: %s evaluation replay was applied again", ErrMismatch, p.DriverID)
	}
	duplicates.Add(1)
	return nil
}

// verify compares every simulated driver's level and care score with expect.
func (r *Runner) verify(ctx context.Context, expect *Expectation, profiles []Profile, stats *Stats, stage string) error {
	var mismatches atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for _, p := range profiles {
		g.Go(func() error {
			var got model.DriverProgression
			if err := r.client.do(gctx, http.MethodGet, "/drivers/"+p.DriverID, nil, http.StatusOK, &got); err != nil {
				return err
			}
			wantRank, _ := expect.Rank(p.DriverID)
			wantScore, _ := expect.CareScore(p.DriverID)
			if got.CurrentLevelRank != wantRank || got.CareScore != wantScore {
				mismatches.Add(1)
				r.log.Warn(gctx, "driver mismatch",
					logger.String("stage", stage),
					logger.DriverID(p.DriverID),
					logger.Int("rank", got.CurrentLevelRank),
					logger.Int("expected_rank", wantRank),
					logger.Int("care_score", got.CareScore),
					logger.Int("expected_care_score", wantScore),
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("verify %s: %w", stage, err)
	}
	stats.Mismatches += int(mismatches.Load())
	if n := mismatches.Load(); n > 0 {
		return fmt.Errorf("%w: %d drivers differ %s", ErrMismatch, n, stage)
	}
	return nil
}

func saveProfiles(filename string, profiles []Profile) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o600)
}
