package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/cfpboard/internal/domain/criteria"
	"github.com/okian/cfpboard/internal/domain/errs"
	"github.com/okian/cfpboard/internal/domain/model"
	"github.com/okian/cfpboard/internal/domain/user"
	"github.com/okian/cfpboard/pkg/logger"
	"github.com/okian/cfpboard/pkg/metrics"
)

// SubmitWeightVote stores the caller's weight vote, replacing any earlier one.
func (s *Service) SubmitWeightVote(ctx context.Context, c user.Caller, in model.WeightVoteInput) (_ model.WeightVote, err error) {
	const op = "Service.SubmitWeightVote"
	ctx, span := s.startSpan(ctx, op, attribute.String("member.id", c.UserID))
	defer func() { finish(span, err) }()

	if err = requireReviewer(op, c); err != nil {
		return model.WeightVote{}, err
	}
	if err = s.validate(op, in); err != nil {
		return model.WeightVote{}, err
	}
	now := s.now()
	v := in.Vote(c.UserID)
	v.CreatedAt, v.UpdatedAt = now, now
	stored, err := s.store.UpsertVote(ctx, v)
	if err != nil {
		return model.WeightVote{}, errs.Wrap(err, op)
	}
	metrics.RecordVoteSubmitted()
	s.logger.Info(ctx, "weight vote stored", logger.String("memberID", c.UserID))
	return stored, nil
}

// GetGlobalWeights averages every vote, falling back to unit weights.
func (s *Service) GetGlobalWeights(ctx context.Context) (_ criteria.Weights, err error) {
	const op = "Service.GetGlobalWeights"
	ctx, span := s.startSpan(ctx, op)
	defer func() { finish(span, err) }()

	votes, err := s.store.ListVotes(ctx)
	if err != nil {
		return criteria.Weights{}, errs.Wrap(err, op)
	}
	metrics.UpdateWeightVotes(len(votes))
	span.SetAttributes(attribute.Int("votes", len(votes)))
	return s.aggregator.Aggregate(votes), nil
}

// GetOwnWeightVote returns the caller's vote.
func (s *Service) GetOwnWeightVote(ctx context.Context, c user.Caller) (_ model.WeightVote, err error) {
	const op = "Service.GetOwnWeightVote"
	ctx, span := s.startSpan(ctx, op, attribute.String("member.id", c.UserID))
	defer func() { finish(span, err) }()

	if err = requireReviewer(op, c); err != nil {
		return model.WeightVote{}, err
	}
	v, err := s.store.GetVote(ctx, c.UserID)
	if err != nil {
		return model.WeightVote{}, storeErr(op, "weight vote", c.UserID, err)
	}
	return v, nil
}

// DeleteWeightVote removes a member's vote. Admin only.
func (s *Service) DeleteWeightVote(ctx context.Context, c user.Caller, memberID string) (err error) {
	const op = "Service.DeleteWeightVote"
	ctx, span := s.startSpan(ctx, op, attribute.String("member.id", memberID))
	defer func() { finish(span, err) }()

	if err = requireAdmin(op, c); err != nil {
		return err
	}
	if err = s.store.DeleteVote(ctx, memberID); err != nil {
		return storeErr(op, "weight vote", memberID, err)
	}
	s.logger.Info(ctx, "weight vote deleted", logger.String("memberID", memberID), logger.String("by", c.UserID))
	return nil
}
