// Package repository persists driver progression records behind a
// version-guarded Store interface.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/tierd/internal/domain/model"
	"github.com/okian/tierd/pkg/metrics"
)

// Store provides read/write access to driver progression records. Every
// implementation serializes writes to one driver through the version field.
type Store interface {
	// Create inserts a new record with version 1.
	// Returns ErrAlreadyExists if the driver is already tracked.
	Create(ctx context.Context, p model.DriverProgression) (model.DriverProgression, error)

	// Get returns the record with its current version.
	// Returns ErrNotFound if the driver is unknown.
	Get(ctx context.Context, driverID string) (model.DriverProgression, error)

	// ActiveIDs lists drivers with Active set, ordered by ID.
	ActiveIDs(ctx context.Context) ([]string, error)

	// CompareAndSwap replaces the stored record with p only if the stored
	// version still equals expected. The written record carries expected+1.
	// Returns ErrVersionConflict on mismatch and ErrNotFound if the driver is gone.
	CompareAndSwap(ctx context.Context, p model.DriverProgression, expected int64) (model.DriverProgression, error)

	// Count returns the number of tracked drivers.
	Count(ctx context.Context) (int, error)

	// CountByLevel returns active drivers per rank.
	CountByLevel(ctx context.Context) (map[int]int, error)

	// RanksInUse returns every tracked driver per rank, inactive ones included.
	RanksInUse(ctx context.Context) (map[int]int, error)

	// Close releases the underlying resources.
	Close() error
}

// Backend names, also used as metric labels.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// observe records latency and, on failure, an error for one store call.
// Expected outcomes (not found, conflicts) are not counted as errors.
func observe(backend, op string, start time.Time, err error) {
	metrics.RecordStoreLatency(backend, op, float64(time.Since(start).Microseconds())/1000)
	if err != nil && !isExpected(err) {
		metrics.RecordStoreError(backend, op)
	}
}

func isExpected(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrVersionConflict)
}

// Open builds the Store for backend. dsn is the SQLite path or the Postgres URL
// and is ignored for the memory backend.
func Open(ctx context.Context, backend, dsn string, opts ...Option) (Store, error) {
	switch backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendSQLite:
		return NewSQLiteStore(ctx, dsn, opts...)
	case BackendPostgres:
		return NewPostgresStore(ctx, dsn, opts...)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, backend)
	}
}
