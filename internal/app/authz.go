package service

import (
	"github.com/pkg/errors"

	"github.com/okian/cfpboard/internal/adapters/repository"
	"github.com/okian/cfpboard/internal/domain/errs"
	"github.com/okian/cfpboard/internal/domain/user"
	"github.com/okian/cfpboard/pkg/metrics"
)

func requireIdentity(op string, c user.Caller) error {
	if c.Anonymous() {
		metrics.RecordAuthorizationRejected(op)
		return errs.Unauthenticated(op)
	}
	return nil
}

func requireReviewer(op string, c user.Caller) error {
	if err := requireIdentity(op, c); err != nil {
		return err
	}
	if !c.CanReview() {
		metrics.RecordAuthorizationRejected(op)
		return errs.Forbidden(op, "reviewer or admin role required")
	}
	return nil
}

func requireAdmin(op string, c user.Caller) error {
	if err := requireIdentity(op, c); err != nil {
		return err
	}
	if !c.IsAdmin() {
		metrics.RecordAuthorizationRejected(op)
		return errs.Forbidden(op, "admin role required")
	}
	return nil
}

func (s *Service) validate(op string, v any) error {
	err := s.validator.Struct(op, v)
	if errs.IsValidation(err) {
		metrics.RecordValidationRejected(op)
	}
	return err
}

// storeErr turns a missing record into a NotFoundError and wraps the rest.
func storeErr(op, kind, id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errs.NotFound(kind, id)
	}
	return errs.Wrap(err, op)
}
