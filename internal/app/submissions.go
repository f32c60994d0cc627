package service

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/cfpboard/internal/adapters/mq/queue"
	"github.com/okian/cfpboard/internal/domain/dedupe"
	"github.com/okian/cfpboard/internal/domain/errs"
	"github.com/okian/cfpboard/internal/domain/model"
	"github.com/okian/cfpboard/internal/domain/user"
	"github.com/okian/cfpboard/pkg/logger"
	"github.com/okian/cfpboard/pkg/metrics"
)

// CreateSubmission stores a proposal owned by the caller and queues it for
// screening when screening is enabled.
func (s *Service) CreateSubmission(ctx context.Context, c user.Caller, in model.SubmissionInput) (_ model.Submission, err error) {
	const op = "Service.CreateSubmission"
	ctx, span := s.startSpan(ctx, op)
	defer func() { finish(span, err) }()

	if err = requireIdentity(op, c); err != nil {
		return model.Submission{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if err = s.validate(op, in); err != nil {
		return model.Submission{}, err
	}
	now := s.now()
	sub := model.Submission{
		ID:        s.newID(),
		Title:     in.Title,
		Abstract:  in.Abstract,
		Takeaways: in.Takeaways,
		Level:     in.Level,
		Format:    in.Format,
		SpeakerID: c.UserID,
		Status:    model.StatusSubmitted,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = s.store.CreateSubmission(ctx, sub); err != nil {
		return model.Submission{}, errs.Wrap(err, op)
	}
	metrics.RecordSubmissionCreated()
	span.SetAttributes(attribute.String("submission.id", sub.ID))
	s.logger.Info(ctx, "submission created", logger.String("submissionID", sub.ID), logger.String("speakerID", c.UserID))

	s.enqueue(ctx, sub.ID, sub.Revision)
	return sub, nil
}

// enqueue hands a revision to the screening workers once. Failures are logged:
// screening is advisory and never blocks a submission.
func (s *Service) enqueue(ctx context.Context, id string, revision int) {
	if s.queue == nil {
		return
	}
	key := dedupe.Key(id, revision)
	if s.deduper.SeenAndRecord(ctx, key) {
		s.logger.Debug(ctx, "revision already queued", logger.String("key", key))
		return
	}
	if err := s.queue.Enqueue(ctx, queue.Job{SubmissionID: id, Revision: revision}); err != nil {
		s.deduper.Forget(ctx, key)
		s.logger.Warn(ctx, "screening not queued", logger.String("submissionID", id), logger.Error(err))
	}
}

// GetSubmission returns the view of a submission the caller may see.
func (s *Service) GetSubmission(ctx context.Context, c user.Caller, id string) (_ model.Submission, err error) {
	const op = "Service.GetSubmission"
	ctx, span := s.startSpan(ctx, op, attribute.String("submission.id", id))
	defer func() { finish(span, err) }()

	if err = requireIdentity(op, c); err != nil {
		return model.Submission{}, err
	}
	sub, err := s.store.GetSubmission(ctx, id)
	if err != nil {
		return model.Submission{}, storeErr(op, "submission", id, err)
	}
	view, ok := viewFor(c, sub)
	if !ok {
		metrics.RecordAuthorizationRejected(op)
		return model.Submission{}, errs.Forbidden(op, "not the owner of this submission")
	}
	return view, nil
}

// ListSubmissions returns all submissions for the committee and the caller's
// own submissions for everyone else.
func (s *Service) ListSubmissions(ctx context.Context, c user.Caller) (_ []model.Submission, err error) {
	const op = "Service.ListSubmissions"
	ctx, span := s.startSpan(ctx, op)
	defer func() { finish(span, err) }()

	if err = requireIdentity(op, c); err != nil {
		return nil, err
	}
	subs, err := s.store.ListSubmissions(ctx)
	if err != nil {
		return nil, errs.Wrap(err, op)
	}
	out := make([]model.Submission, 0, len(subs))
	for _, sub := range subs {
		if view, ok := viewFor(c, sub); ok {
			out = append(out, view)
		}
	}
	span.SetAttributes(attribute.Int("submissions", len(out)))
	return out, nil
}

// viewFor applies the visibility rules: admins see everything, reviewers see
// the anonymized record and owners see theirs without the screening verdict.
func viewFor(c user.Caller, sub model.Submission) (model.Submission, bool) {
	switch {
	case c.IsAdmin():
		return sub, true
	case c.CanReview():
		return sub.Anonymized(), true
	case sub.SpeakerID == c.UserID:
		sub.Screening = nil
		return sub, true
	default:
		return model.Submission{}, false
	}
}

// UpdateSubmission replaces the content of a submission. Owner or admin only.
// Every update starts a new revision, which is screened again.
func (s *Service) UpdateSubmission(ctx context.Context, c user.Caller, id string, in model.SubmissionInput) (_ model.Submission, err error) {
	const op = "Service.UpdateSubmission"
	ctx, span := s.startSpan(ctx, op, attribute.String("submission.id", id))
	defer func() { finish(span, err) }()

	if err = requireIdentity(op, c); err != nil {
		return model.Submission{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if err = s.validate(op, in); err != nil {
		return model.Submission{}, err
	}
	sub, err := s.ownedSubmission(ctx, op, c, id)
	if err != nil {
		return model.Submission{}, err
	}
	if sub.Status == model.StatusWithdrawn {
		return model.Submission{}, errs.Validation(op, errs.FieldError{Field: "status", Message: "withdrawn submissions cannot be edited"})
	}
	sub.Title, sub.Abstract, sub.Takeaways = in.Title, in.Abstract, in.Takeaways
	sub.Level, sub.Format = in.Level, in.Format
	sub.Revision++
	sub.UpdatedAt = s.now()
	if err = s.store.UpdateSubmission(ctx, sub); err != nil {
		return model.Submission{}, storeErr(op, "submission", id, err)
	}
	s.logger.Info(ctx, "submission updated", logger.String("submissionID", id), logger.Int("revision", sub.Revision))

	s.enqueue(ctx, sub.ID, sub.Revision)
	view, _ := viewFor(c, sub)
	return view, nil
}

// WithdrawSubmission takes a submission off the leaderboard. Owner or admin
// only; withdrawing twice is a no-op.
func (s *Service) WithdrawSubmission(ctx context.Context, c user.Caller, id string) (_ model.Submission, err error) {
	const op = "Service.WithdrawSubmission"
	ctx, span := s.startSpan(ctx, op, attribute.String("submission.id", id))
	defer func() { finish(span, err) }()

	if err = requireIdentity(op, c); err != nil {
		return model.Submission{}, err
	}
	sub, err := s.ownedSubmission(ctx, op, c, id)
	if err != nil {
		return model.Submission{}, err
	}
	if sub.Status != model.StatusWithdrawn {
		sub.Status = model.StatusWithdrawn
		sub.UpdatedAt = s.now()
		if err = s.store.UpdateSubmission(ctx, sub); err != nil {
			return model.Submission{}, storeErr(op, "submission", id, err)
		}
		s.logger.Info(ctx, "submission withdrawn", logger.String("submissionID", id))
	}
	view, _ := viewFor(c, sub)
	return view, nil
}

// ownedSubmission loads id and checks the caller may change it.
func (s *Service) ownedSubmission(ctx context.Context, op string, c user.Caller, id string) (model.Submission, error) {
	sub, err := s.store.GetSubmission(ctx, id)
	if err != nil {
		return model.Submission{}, storeErr(op, "submission", id, err)
	}
	if !c.IsAdmin() && sub.SpeakerID != c.UserID {
		metrics.RecordAuthorizationRejected(op)
		return model.Submission{}, errs.Forbidden(op, "not the owner of this submission")
	}
	return sub, nil
}
