package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/okian/cfpboard/internal/domain/errs"
	"github.com/okian/cfpboard/internal/domain/model"
	"github.com/okian/cfpboard/internal/domain/ranking"
	"github.com/okian/cfpboard/internal/domain/scoring"
	"github.com/okian/cfpboard/internal/domain/types"
	"github.com/okian/cfpboard/internal/domain/user"
	"github.com/okian/cfpboard/pkg/metrics"
)

// MaxLeaderboardLimit is the largest limit GetLeaderboard accepts.
func (s *Service) MaxLeaderboardLimit() int { return s.maxLimit }

// GetLeaderboard ranks every submission from a fresh snapshot of votes and
// reviews. A zero limit returns all entries. Admin only.
func (s *Service) GetLeaderboard(ctx context.Context, c user.Caller, limit int) (_ []types.Entry, err error) {
	const op = "Service.GetLeaderboard"
	ctx, span := s.startSpan(ctx, op, attribute.Int("limit", limit))
	defer func() { finish(span, err) }()

	if err = requireAdmin(op, c); err != nil {
		return nil, err
	}
	if limit < 0 || limit > s.maxLimit {
		metrics.RecordValidationRejected(op)
		return nil, errs.Validation(op, errs.FieldError{
			Field:   "limit",
			Message: fmt.Sprintf("must be between 0 and %d", s.maxLimit),
		})
	}

	start := time.Now()
	var (
		votes   []model.WeightVote
		subs    []model.Submission
		reviews []model.Review
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		votes, err = s.store.ListVotes(gctx)
		return err
	})
	g.Go(func() (err error) {
		subs, err = s.store.ListSubmissions(gctx)
		return err
	})
	g.Go(func() (err error) {
		reviews, err = s.store.ListReviews(gctx, model.ReviewFilter{})
		return err
	})
	if err = g.Wait(); err != nil {
		return nil, errs.Wrap(err, op)
	}

	w := s.aggregator.Aggregate(votes)
	bySubmission := make(map[string][]model.Review, len(subs))
	for _, r := range reviews {
		bySubmission[r.SubmissionID] = append(bySubmission[r.SubmissionID], r)
	}

	active := subs[:0:0]
	for _, sub := range subs {
		if sub.Status != model.StatusWithdrawn {
			active = append(active, sub)
		}
	}
	cands := make([]ranking.Candidate, len(active))
	sg, sctx := errgroup.WithContext(ctx)
	sg.SetLimit(s.concurrency)
	for i, sub := range active {
		sg.Go(func() error {
			res, err := s.scorer.Score(sctx, scoring.Input{
				SubmissionID: sub.ID,
				Reviews:      bySubmission[sub.ID],
				Weights:      w,
			})
			if err != nil {
				return fmt.Errorf("score %s: %w", sub.ID, err)
			}
			cands[i] = ranking.Candidate{
				Result:    res,
				Title:     sub.Title,
				CreatedAt: sub.CreatedAt,
				Suspected: sub.Screening != nil && sub.Screening.Suspected,
			}
			return nil
		})
	}
	if err = sg.Wait(); err != nil {
		return nil, errs.Wrap(err, op)
	}

	entries := ranking.Limit(s.ranker.Rank(cands, w), limit)
	metrics.RecordLeaderboardComputed(float64(time.Since(start).Milliseconds()), len(entries))
	metrics.UpdateWeightVotes(len(votes))
	span.SetAttributes(
		attribute.Int("votes", len(votes)),
		attribute.Int("submissions", len(active)),
		attribute.Int("reviews", len(reviews)),
		attribute.Int("entries", len(entries)),
	)
	return entries, nil
}
