package api

import (
	"errors"
	"net/http"

	"github.com/okian/cfpboard/internal/adapters/repository"
	"github.com/okian/cfpboard/internal/domain/errs"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrInvalidJSON = errors.New("invalid json body")
	ErrBodyTooBig  = errors.New("request body too large")
)

// OpError ties an error to the handler operation that produced it. Kind, when
// set, is one of the sentinels above.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	switch {
	case e.Err != nil && e.Kind != nil:
		return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Op + ": " + e.Err.Error()
	case e.Kind != nil:
		return e.Op + ": " + e.Kind.Error()
	default:
		return e.Op
	}
}

func (e *OpError) Unwrap() []error {
	var out []error
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewKind returns an OpError of the given kind.
func NewKind(op string, kind error) error { return &OpError{Op: op, Kind: kind} }

// Wrap annotates err with op.
func Wrap(op string, err error) error { return &OpError{Op: op, Err: err} }

// WrapKind annotates err with op and kind.
func WrapKind(op string, kind, err error) error { return &OpError{Op: op, Kind: kind, Err: err} }

// httpStatus maps an error chain to a status code and error code.
func httpStatus(err error) (int, string) {
	var (
		verr *errs.ValidationError
		aerr *errs.AuthorizationError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "validation_failed"
	case errors.As(err, &aerr) && aerr.Unauthenticated:
		return http.StatusUnauthorized, "unauthenticated"
	case errors.As(err, &aerr):
		return http.StatusForbidden, "forbidden"
	case errs.IsNotFound(err), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ErrBodyTooBig):
		return http.StatusRequestEntityTooLarge, "body_too_large"
	case errors.Is(err, ErrInvalidJSON), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
