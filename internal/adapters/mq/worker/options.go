package worker

import (
	"time"

	"github.com/okian/cfpboard/internal/domain/dedupe"
	"github.com/okian/cfpboard/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithJobTimeout bounds a single screening job.
func WithJobTimeout(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithDeduper lets a failed job's key be forgotten so it can be retried.
func WithDeduper(d dedupe.Deduper) Option {
	return func(w *InMemoryWorker) { w.deduper = d }
}
