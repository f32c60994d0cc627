package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/okian/cfpboard/internal/domain/errs"
	"github.com/okian/cfpboard/internal/domain/model"
	"github.com/okian/cfpboard/pkg/metrics"
)

// Stats is the operational snapshot served on /stats.
type Stats struct {
	Started          bool  `json:"started"`
	Submissions      int   `json:"submissions"`
	Reviews          int   `json:"reviews"`
	Votes            int   `json:"votes"`
	Users            int   `json:"users"`
	ScreeningEnabled bool  `json:"screeningEnabled"`
	Workers          int   `json:"workers"`
	QueueLength      int   `json:"queueLength"`
	QueueCapacity    int   `json:"queueCapacity"`
	DedupeSize       int64 `json:"dedupeSize"`
}

// GetStats counts records and reports the screening pipeline state.
func (s *Service) GetStats(ctx context.Context) (_ Stats, err error) {
	const op = "Service.GetStats"
	ctx, span := s.startSpan(ctx, op)
	defer func() { finish(span, err) }()

	s.mu.RLock()
	st := Stats{Started: s.started, ScreeningEnabled: s.detector != nil}
	if s.queue != nil {
		st.QueueLength = s.queue.Len()
		st.QueueCapacity = s.queue.Cap()
	}
	if s.deduper != nil {
		st.DedupeSize = s.deduper.Size()
	}
	if s.pool != nil {
		st.Workers = s.pool.Size()
	}
	s.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		subs, err := s.store.ListSubmissions(gctx)
		st.Submissions = len(subs)
		return err
	})
	g.Go(func() error {
		reviews, err := s.store.ListReviews(gctx, model.ReviewFilter{})
		st.Reviews = len(reviews)
		return err
	})
	g.Go(func() error {
		votes, err := s.store.ListVotes(gctx)
		st.Votes = len(votes)
		return err
	})
	g.Go(func() error {
		users, err := s.store.ListUsers(gctx)
		st.Users = len(users)
		return err
	})
	if err = g.Wait(); err != nil {
		return Stats{}, errs.Wrap(err, op)
	}

	if s.queue != nil {
		metrics.UpdateQueue(st.QueueLength, st.QueueCapacity)
	}
	metrics.UpdateWeightVotes(st.Votes)
	return st, nil
}
