package repository

import "time"

// Default store configuration.
const (
	defaultBusyTimeout = 5 * time.Second
	defaultMaxConns    = 10
)

type options struct {
	busyTimeout time.Duration
	maxConns    int32
}

func defaultOptions() options {
	return options{
		busyTimeout: defaultBusyTimeout,
		maxConns:    defaultMaxConns,
	}
}

// Option applies a configuration option to a SQL-backed store.
type Option func(*options)

// WithBusyTimeout sets how long SQLite waits on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.busyTimeout = d
		}
	}
}

// WithMaxConns caps the Postgres connection pool.
func WithMaxConns(n int32) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConns = n
		}
	}
}
