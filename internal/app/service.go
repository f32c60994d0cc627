// Package service implements the CFP scoring operations on top of a store
// and runs the optional background screening pipeline.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/cfpboard/internal/adapters/mq/queue"
	"github.com/okian/cfpboard/internal/adapters/mq/worker"
	"github.com/okian/cfpboard/internal/adapters/repository"
	"github.com/okian/cfpboard/internal/domain/dedupe"
	"github.com/okian/cfpboard/internal/domain/ranking"
	"github.com/okian/cfpboard/internal/domain/screening"
	"github.com/okian/cfpboard/internal/domain/scoring"
	"github.com/okian/cfpboard/internal/domain/user"
	"github.com/okian/cfpboard/internal/domain/validation"
	"github.com/okian/cfpboard/internal/domain/weights"
	"github.com/okian/cfpboard/pkg/logger"
)

const tracerName = "github.com/okian/cfpboard/internal/app"

// Defaults applied by New.
const (
	DefaultWorkerCount         = 2
	DefaultQueueSize           = 1024
	DefaultDedupeSize          = 10000
	DefaultMaxLeaderboardLimit = 500
	DefaultConcurrency         = 8
)

// System is the caller used by trusted local tooling such as the admin CLI.
var System = user.Caller{UserID: "system", Role: user.RoleAdmin}

// TokenIssuer signs session tokens for logged-in users.
type TokenIssuer interface {
	Issue(u user.User) (string, time.Time, error)
}

// Service implements the API dependencies for the review board.
type Service struct {
	mu sync.RWMutex

	store      repository.Store
	validator  *validation.Validator
	aggregator weights.Aggregator
	scorer     scoring.Scorer
	ranker     *ranking.Ranker
	issuer     TokenIssuer

	// Screening pipeline, nil when disabled.
	detector screening.Detector
	queue    queue.Queue
	deduper  dedupe.Deduper
	pool     *worker.Pool

	workerCount int
	queueSize   int
	dedupeSize  int
	maxLimit    int
	concurrency int
	jobTimeout  time.Duration

	started bool

	logger logger.Logger
	tracer trace.Tracer
	now    func() time.Time
	newID  func() string
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence backend. The default is an empty memory store.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithAggregator replaces the weight aggregator.
func WithAggregator(a weights.Aggregator) Option {
	return func(s *Service) {
		if a != nil {
			s.aggregator = a
		}
	}
}

// WithScorer replaces the submission scorer.
func WithScorer(sc scoring.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithRanker replaces the leaderboard ranker.
func WithRanker(r *ranking.Ranker) Option {
	return func(s *Service) {
		if r != nil {
			s.ranker = r
		}
	}
}

// WithIssuer enables Login.
func WithIssuer(i TokenIssuer) Option {
	return func(s *Service) {
		s.issuer = i
	}
}

// WithDetector enables background screening with d.
func WithDetector(d screening.Detector) Option {
	return func(s *Service) {
		s.detector = d
	}
}

// WithWorkerCount sets the number of screening workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the screening queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many screened revisions are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithJobTimeout bounds a single screening job.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.jobTimeout = d
		}
	}
}

// WithMaxLeaderboardLimit caps the limit accepted by GetLeaderboard.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithLeaderboardConcurrency bounds parallel scoring.
func WithLeaderboardConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracer replaces the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces uuid generation for new records.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// New constructs a Service. Call Start before use when screening is enabled.
func New(opts ...Option) *Service {
	s := &Service{
		validator:   validation.New(),
		aggregator:  weights.NewMeanAggregator(),
		scorer:      scoring.NewWeightedMeanScorer(),
		ranker:      ranking.New(),
		workerCount: DefaultWorkerCount,
		queueSize:   DefaultQueueSize,
		dedupeSize:  DefaultDedupeSize,
		maxLimit:    DefaultMaxLeaderboardLimit,
		concurrency: DefaultConcurrency,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s
}

// Start launches the screening workers and queues every submission whose
// current revision has no verdict yet.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.detector == nil {
		s.started = true
		s.logger.Info(ctx, "service started, screening disabled")
		return nil
	}

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.deduper = dedupe.NewMemoryDeduper(dedupe.WithCapacity(s.dedupeSize))
	wopts := []worker.Option{worker.WithDeduper(s.deduper)}
	if s.jobTimeout > 0 {
		wopts = append(wopts, worker.WithJobTimeout(s.jobTimeout))
	}
	s.pool = worker.NewPool(s.workerCount, s.queue, s.detector, s.store, wopts...)
	s.pool.Start(ctx)
	s.started = true

	subs, err := s.store.ListSubmissions(ctx)
	if err != nil {
		s.logger.Warn(ctx, "could not list submissions for screening backfill", logger.Error(err))
	}
	pending := 0
	for _, sub := range subs {
		if sub.Screening == nil || sub.Screening.Revision != sub.Revision {
			s.enqueue(ctx, sub.ID, sub.Revision)
			pending++
		}
	}

	s.logger.Info(ctx, "service started",
		logger.String("detector", s.detector.Name()),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("backfill", pending),
	)
	return nil
}

// Stop drains the screening queue and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping service...")

	var firstErr error
	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if err := s.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.started = false
	s.logger.Info(ctx, "service stopped")
	return firstErr
}

// ScreeningEnabled reports whether a detector is configured.
func (s *Service) ScreeningEnabled() bool { return s.detector != nil }

func (s *Service) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, op, trace.WithAttributes(attrs...))
}

// finish ends span, marking it failed when err is set.
func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
