package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/tierd/internal/domain/model"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS driver_progressions (
		driver_id TEXT PRIMARY KEY,
		current_level_rank INTEGER NOT NULL,
		enrolled_at TIMESTAMPTZ NOT NULL,
		partner_evaluation INTEGER,
		other_signal_score INTEGER NOT NULL DEFAULT 0,
		care_score INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		version BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_progressions_active ON driver_progressions(active, current_level_rank);
`

// PostgresStore is a shared Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL, verifies the connection and
// applies the schema.
func NewPostgresStore(ctx context.Context, databaseURL string, opts ...Option) (*PostgresStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	cfg.MaxConns = o.maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Create implements Store.Create.
func (s *PostgresStore) Create(ctx context.Context, p model.DriverProgression) (out model.DriverProgression, err error) {
	defer func(start time.Time) { observe(BackendPostgres, "create", start, err) }(time.Now())

	p.Version = 1
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO driver_progressions (`+progressionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (driver_id) DO NOTHING`,
		p.DriverID, p.CurrentLevelRank, p.EnrolledAt, p.PartnerEvaluation,
		p.OtherSignalScore, p.CareScore, p.Active, p.Version, p.UpdatedAt,
	)
	if err != nil {
		return model.DriverProgression{}, fmt.Errorf("failed to insert driver %s: %w", p.DriverID, err)
	}
	if tag.RowsAffected() == 0 {
		return model.DriverProgression{}, ErrAlreadyExists
	}
	return p, nil
}

// Get implements Store.Get.
func (s *PostgresStore) Get(ctx context.Context, driverID string) (out model.DriverProgression, err error) {
	defer func(start time.Time) { observe(BackendPostgres, "get", start, err) }(time.Now())

	var p model.DriverProgression
	err = s.pool.QueryRow(ctx,
		`SELECT `+progressionColumns+` FROM driver_progressions WHERE driver_id = $1`, driverID,
	).Scan(&p.DriverID, &p.CurrentLevelRank, &p.EnrolledAt, &p.PartnerEvaluation,
		&p.OtherSignalScore, &p.CareScore, &p.Active, &p.Version, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.DriverProgression{}, ErrNotFound
	}
	if err != nil {
		return model.DriverProgression{}, fmt.Errorf("failed to load driver %s: %w", driverID, err)
	}
	return p, nil
}

// ActiveIDs implements Store.ActiveIDs.
func (s *PostgresStore) ActiveIDs(ctx context.Context) (ids []string, err error) {
	defer func(start time.Time) { observe(BackendPostgres, "active_ids", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, `SELECT driver_id FROM driver_progressions WHERE active ORDER BY driver_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active drivers: %w", err)
	}
	ids, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan driver ids: %w", err)
	}
	return ids, nil
}

// CompareAndSwap implements Store.CompareAndSwap.
func (s *PostgresStore) CompareAndSwap(ctx context.Context, p model.DriverProgression, expected int64) (out model.DriverProgression, err error) {
	defer func(start time.Time) { observe(BackendPostgres, "compare_and_swap", start, err) }(time.Now())

	p.Version = expected + 1
	tag, err := s.pool.Exec(ctx,
		`UPDATE driver_progressions
		 SET current_level_rank = $1, enrolled_at = $2, partner_evaluation = $3, other_signal_score = $4,
		     care_score = $5, active = $6, version = $7, updated_at = $8
		 WHERE driver_id = $9 AND version = $10`,
		p.CurrentLevelRank, p.EnrolledAt, p.PartnerEvaluation, p.OtherSignalScore,
		p.CareScore, p.Active, p.Version, p.UpdatedAt,
		p.DriverID, expected,
	)
	if err != nil {
		return model.DriverProgression{}, fmt.Errorf("failed to update driver %s: %w", p.DriverID, err)
	}
	if tag.RowsAffected() == 1 {
		return p, nil
	}

	var exists bool
	err = s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM driver_progressions WHERE driver_id = $1)`, p.DriverID).Scan(&exists)
	if err != nil {
		return model.DriverProgression{}, fmt.Errorf("failed to check driver %s: %w", p.DriverID, err)
	}
	if !exists {
		return model.DriverProgression{}, ErrNotFound
	}
	return model.DriverProgression{}, ErrVersionConflict
}

// Count implements Store.Count.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM driver_progressions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count drivers: %w", err)
	}
	return n, nil
}

// CountByLevel implements Store.CountByLevel.
func (s *PostgresStore) CountByLevel(ctx context.Context) (map[int]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT current_level_rank, COUNT(*) FROM driver_progressions WHERE active GROUP BY current_level_rank`)
	if err != nil {
		return nil, fmt.Errorf("failed to count drivers per level: %w", err)
	}
	defer rows.Close()

	out := make(map[int]int)
	for rows.Next() {
		var rank, n int
		if err := rows.Scan(&rank, &n); err != nil {
			return nil, fmt.Errorf("failed to scan level count: %w", err)
		}
		out[rank] = n
	}
	return out, rows.Err()
}

// RanksInUse implements Store.RanksInUse.
func (s *PostgresStore) RanksInUse(ctx context.Context) (map[int]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT current_level_rank, COUNT(*) FROM driver_progressions GROUP BY current_level_rank`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ranks in use: %w", err)
	}
	defer rows.Close()

	out := make(map[int]int)
	for rows.Next() {
		var rank, n int
		if err := rows.Scan(&rank, &n); err != nil {
			return nil, fmt.Errorf("failed to scan rank count: %w", err)
		}
		out[rank] = n
	}
	return out, rows.Err()
}

// Close implements Store.Close.
func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
