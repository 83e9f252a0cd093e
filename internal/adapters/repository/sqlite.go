package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/tierd/internal/domain/model"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS driver_progressions (
		driver_id TEXT PRIMARY KEY,
		current_level_rank INTEGER NOT NULL,
		enrolled_at TEXT NOT NULL,
		partner_evaluation INTEGER,
		other_signal_score INTEGER NOT NULL DEFAULT 0,
		care_score INTEGER NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		version INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_progressions_active ON driver_progressions(active, current_level_rank);
`

const progressionColumns = `driver_id, current_level_rank, enrolled_at, partner_evaluation,
	other_signal_score, care_score, active, version, updated_at`

// SQLiteStore is a single-node durable Store on modernc.org/sqlite.
type SQLiteStore struct {
	conn *sql.DB
	path string
}

// NewSQLiteStore opens or creates the database at path and applies the schema.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		path, o.busyTimeout.Milliseconds())
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One writer at a time; version checks stay atomic without SQLITE_BUSY retries.
	conn.SetMaxOpenConns(1)

	if _, err := conn.ExecContext(ctx, sqliteSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{conn: conn, path: path}, nil
}

// Create implements Store.Create.
func (s *SQLiteStore) Create(ctx context.Context, p model.DriverProgression) (out model.DriverProgression, err error) {
	defer func(start time.Time) { observe(BackendSQLite, "create", start, err) }(time.Now())

	p.Version = 1
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO driver_progressions (`+progressionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(driver_id) DO NOTHING`,
		p.DriverID, p.CurrentLevelRank, formatTime(p.EnrolledAt), nullableInt(p.PartnerEvaluation),
		p.OtherSignalScore, p.CareScore, p.Active, p.Version, formatTime(p.UpdatedAt),
	)
	if err != nil {
		return model.DriverProgression{}, fmt.Errorf("failed to insert driver %s: %w", p.DriverID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.DriverProgression{}, ErrAlreadyExists
	}
	return p, nil
}

// Get implements Store.Get.
func (s *SQLiteStore) Get(ctx context.Context, driverID string) (out model.DriverProgression, err error) {
	defer func(start time.Time) { observe(BackendSQLite, "get", start, err) }(time.Now())

	row := s.conn.QueryRowContext(ctx,
		`SELECT `+progressionColumns+` FROM driver_progressions WHERE driver_id = ?`, driverID)
	p, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DriverProgression{}, ErrNotFound
	}
	if err != nil {
		return model.DriverProgression{}, fmt.Errorf("failed to load driver %s: %w", driverID, err)
	}
	return p, nil
}

// ActiveIDs implements Store.ActiveIDs.
func (s *SQLiteStore) ActiveIDs(ctx context.Context) (ids []string, err error) {
	defer func(start time.Time) { observe(BackendSQLite, "active_ids", start, err) }(time.Now())

	rows, err := s.conn.QueryContext(ctx,
		`SELECT driver_id FROM driver_progressions WHERE active = 1 ORDER BY driver_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active drivers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan driver id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CompareAndSwap implements Store.CompareAndSwap.
func (s *SQLiteStore) CompareAndSwap(ctx context.Context, p model.DriverProgression, expected int64) (out model.DriverProgression, err error) {
	defer func(start time.Time) { observe(BackendSQLite, "compare_and_swap", start, err) }(time.Now())

	p.Version = expected + 1
	res, err := s.conn.ExecContext(ctx,
		`UPDATE driver_progressions
		 SET current_level_rank = ?, enrolled_at = ?, partner_evaluation = ?, other_signal_score = ?,
		     care_score = ?, active = ?, version = ?, updated_at = ?
		 WHERE driver_id = ? AND version = ?`,
		p.CurrentLevelRank, formatTime(p.EnrolledAt), nullableInt(p.PartnerEvaluation), p.OtherSignalScore,
		p.CareScore, p.Active, p.Version, formatTime(p.UpdatedAt),
		p.DriverID, expected,
	)
	if err != nil {
		return model.DriverProgression{}, fmt.Errorf("failed to update driver %s: %w", p.DriverID, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return p, nil
	}

	var exists int
	err = s.conn.QueryRowContext(ctx, `SELECT 1 FROM driver_progressions WHERE driver_id = ?`, p.DriverID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DriverProgression{}, ErrNotFound
	}
	if err != nil {
		return model.DriverProgression{}, fmt.Errorf("failed to check driver %s: %w", p.DriverID, err)
	}
	return model.DriverProgression{}, ErrVersionConflict
}

// Count implements Store.Count.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM driver_progressions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count drivers: %w", err)
	}
	return n, nil
}

// CountByLevel implements Store.CountByLevel.
func (s *SQLiteStore) CountByLevel(ctx context.Context) (map[int]int, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT current_level_rank, COUNT(*) FROM driver_progressions WHERE active = 1 GROUP BY current_level_rank`)
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
func (s *SQLiteStore) RanksInUse(ctx context.Context) (map[int]int, error) {
	rows, err := s.conn.QueryContext(ctx,
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
func (s *SQLiteStore) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func scanSQLite(row *sql.Row) (model.DriverProgression, error) {
	var (
		p                 model.DriverProgression
		enrolled, updated string
		partner           sql.NullInt64
	)
	if err := row.Scan(&p.DriverID, &p.CurrentLevelRank, &enrolled, &partner,
		&p.OtherSignalScore, &p.CareScore, &p.Active, &p.Version, &updated); err != nil {
		return model.DriverProgression{}, err
	}
	var err error
	if p.EnrolledAt, err = parseTime(enrolled); err != nil {
		return model.DriverProgression{}, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return model.DriverProgression{}, err
	}
	if partner.Valid {
		v := int(partner.Int64)
		p.PartnerEvaluation = &v
	}
	return p, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
