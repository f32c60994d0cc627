package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/cfpboard/internal/domain/model"
	"github.com/okian/cfpboard/internal/domain/user"
	"github.com/okian/cfpboard/pkg/logger"
	"github.com/okian/cfpboard/pkg/metrics"
)

// SubmitReview stores a review for the caller. Only admins may write under
// another reviewer's id; for everyone else the id is replaced with their own.
func (s *Service) SubmitReview(ctx context.Context, c user.Caller, in model.ReviewInput) (_ model.Review, err error) {
	const op = "Service.SubmitReview"
	ctx, span := s.startSpan(ctx, op, attribute.String("submission.id", in.SubmissionID))
	defer func() { finish(span, err) }()

	if err = requireReviewer(op, c); err != nil {
		return model.Review{}, err
	}
	if err = s.validate(op, in); err != nil {
		return model.Review{}, err
	}

	reviewerID, forced := c.UserID, false
	switch {
	case c.IsAdmin() && in.ReviewerID != "":
		reviewerID = in.ReviewerID
	case in.ReviewerID != "" && in.ReviewerID != c.UserID:
		forced = true
		s.logger.Warn(ctx, "reviewer id overridden",
			logger.String("requested", in.ReviewerID),
			logger.String("caller", c.UserID),
		)
	}

	if _, err = s.store.GetSubmission(ctx, in.SubmissionID); err != nil {
		return model.Review{}, storeErr(op, "submission", in.SubmissionID, err)
	}
	now := s.now()
	r := in.Review(reviewerID)
	r.CreatedAt, r.UpdatedAt = now, now
	stored, err := s.store.UpsertReview(ctx, r)
	if err != nil {
		return model.Review{}, storeErr(op, "submission", in.SubmissionID, err)
	}
	metrics.RecordReviewSubmitted(forced)
	span.SetAttributes(attribute.String("reviewer.id", reviewerID), attribute.Bool("reviewer.forced", forced))
	return stored, nil
}

// GetOwnReview returns the caller's review of a submission.
func (s *Service) GetOwnReview(ctx context.Context, c user.Caller, submissionID string) (_ model.Review, err error) {
	const op = "Service.GetOwnReview"
	ctx, span := s.startSpan(ctx, op, attribute.String("submission.id", submissionID))
	defer func() { finish(span, err) }()

	if err = requireReviewer(op, c); err != nil {
		return model.Review{}, err
	}
	r, err := s.store.GetReview(ctx, model.ReviewKey{SubmissionID: submissionID, ReviewerID: c.UserID})
	if err != nil {
		return model.Review{}, storeErr(op, "review", submissionID, err)
	}
	return r, nil
}

// ListReviews returns every review of a submission, or of all submissions for
// an empty id, with authors. Admin only.
func (s *Service) ListReviews(ctx context.Context, c user.Caller, submissionID string) (_ []model.Review, err error) {
	const op = "Service.ListReviews"
	ctx, span := s.startSpan(ctx, op, attribute.String("submission.id", submissionID))
	defer func() { finish(span, err) }()

	if err = requireAdmin(op, c); err != nil {
		return nil, err
	}
	if submissionID != "" {
		if _, err = s.store.GetSubmission(ctx, submissionID); err != nil {
			return nil, storeErr(op, "submission", submissionID, err)
		}
	}
	reviews, err := s.store.ListReviews(ctx, model.ReviewFilter{SubmissionID: submissionID})
	if err != nil {
		return nil, storeErr(op, "submission", submissionID, err)
	}
	span.SetAttributes(attribute.Int("reviews", len(reviews)))
	return reviews, nil
}
