package batch

import (
	"github.com/okian/tierd/pkg/logger"
)

// Default orchestrator configuration.
const (
	defaultWorkers   = 8
	defaultQueueSize = 256
)

// Option applies a configuration option to the Orchestrator.
type Option func(*Orchestrator)

// WithWorkers sets how many drivers are evaluated in parallel.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithQueueSize bounds how many driver IDs are buffered ahead of the workers.
func WithQueueSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithLogger sets the orchestrator's logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}
