// Package worker screens queued submissions in the background.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/cfpboard/internal/adapters/mq/queue"
	"github.com/okian/cfpboard/internal/domain/dedupe"
	"github.com/okian/cfpboard/internal/domain/model"
	"github.com/okian/cfpboard/internal/domain/screening"
	"github.com/okian/cfpboard/pkg/logger"
	"github.com/okian/cfpboard/pkg/metrics"
)

const (
	defaultJobTimeout   = time.Minute
	poolShutdownTimeout = 30 * time.Second
)

// Outcomes recorded per job.
const (
	OutcomeScreened = "screened"
	OutcomeStale    = "stale"
	OutcomeMissing  = "missing"
	OutcomeFailed   = "failed"
)

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Store is what a worker reads and writes.
type Store interface {
	GetSubmission(ctx context.Context, id string) (model.Submission, error)
	ListSubmissions(ctx context.Context) ([]model.Submission, error)
	SetScreening(ctx context.Context, id string, s model.Screening) error
}

// Worker processes jobs until its queue closes or it is shut down.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker runs a detector over each dequeued submission.
type InMemoryWorker struct {
	queue    Queue
	detector screening.Detector
	store    Store
	deduper  dedupe.Deduper
	name     string
	timeout  time.Duration

	shutdown chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(q Queue, d screening.Detector, s Store, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		detector: d,
		store:    s,
		name:     "worker",
		timeout:  defaultJobTimeout,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Error(ctx, "screening failed",
					logger.String("submissionID", j.SubmissionID),
					logger.Int("revision", j.Revision),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker and waits for the current job.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) error {
	start := time.Now()
	outcome, err := w.screen(ctx, j)
	metrics.RecordScreeningJob(outcome, float64(time.Since(start).Milliseconds()))
	if outcome == OutcomeStale || outcome == OutcomeMissing {
		metrics.RecordScreeningSkipped()
	}
	if err != nil {
		metrics.RecordErrorByComponent("worker", "screening_error")
		if w.deduper != nil {
			w.deduper.Forget(ctx, dedupe.Key(j.SubmissionID, j.Revision))
		}
	}
	return err
}

func (w *InMemoryWorker) screen(ctx context.Context, j queue.Job) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	sub, err := w.store.GetSubmission(ctx, j.SubmissionID)
	if err != nil {
		w.logger.Warn(ctx, "submission gone before screening", logger.String("submissionID", j.SubmissionID))
		return OutcomeMissing, nil
	}
	// A newer revision has its own job.
	if sub.Revision != j.Revision {
		return OutcomeStale, nil
	}
	corpus, err := w.store.ListSubmissions(ctx)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("list submissions: %w", err)
	}
	verdict, err := w.detector.Screen(ctx, screening.Target{Submission: sub, Corpus: corpus})
	if err != nil {
		return OutcomeFailed, fmt.Errorf("detector %s: %w", w.detector.Name(), err)
	}
	verdict.Revision = j.Revision
	if verdict.CheckedAt.IsZero() {
		verdict.CheckedAt = time.Now().UTC()
	}
	if err := w.store.SetScreening(ctx, sub.ID, verdict); err != nil {
		return OutcomeFailed, fmt.Errorf("store verdict: %w", err)
	}
	w.logger.Debug(ctx, "submission screened",
		logger.String("submissionID", sub.ID),
		logger.Bool("suspected", verdict.Suspected),
		logger.Int("duplicates", len(verdict.Duplicates)),
	)
	return OutcomeScreened, nil
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	active  atomic.Int32
	logger  logger.Logger
}

// NewPool creates count workers. count below one means one worker.
func NewPool(count int, q Queue, d screening.Detector, s Store, opts ...Option) *Pool {
	if count < 1 {
		count = 1
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, count),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, d, s, wopts...)
	}
	return p
}

// Start runs every worker in its own goroutine.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.active.Add(1)
		metrics.UpdateWorkerActiveCount(int(p.active.Load()))
		go func(w *InMemoryWorker) {
			defer func() {
				metrics.UpdateWorkerActiveCount(int(p.active.Add(-1)))
			}()
			w.Run(ctx)
		}(w)
	}
	p.logger.Info(ctx, "screening workers started", logger.Int("count", len(p.workers)))
}

// Size is the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Shutdown closes the queue so workers drain it, then waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
		}
	}
	return nil
}
