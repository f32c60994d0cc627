// Package errs defines the error taxonomy shared by the scoring core and its
// adapters: validation, authorization and not-found failures.
package errs

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports input that is out of range or missing.
type ValidationError struct {
	Op     string
	Fields []FieldError
}

// Validation builds a ValidationError for op.
func Validation(op string, fields ...FieldError) *ValidationError {
	return &ValidationError{Op: op, Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Op + ": invalid input"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return e.Op + ": invalid input: " + strings.Join(parts, "; ")
}

// FieldMap returns the field errors keyed by field name.
func (e *ValidationError) FieldMap() map[string]string {
	m := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		m[f.Field] = f.Message
	}
	return m
}

// AuthorizationError reports a caller without the role or ownership an
// operation requires. Unauthenticated is set when there is no identity at all.
type AuthorizationError struct {
	Op              string
	Reason          string
	Unauthenticated bool
}

// Forbidden builds an AuthorizationError for an identified caller.
func Forbidden(op, reason string) *AuthorizationError {
	return &AuthorizationError{Op: op, Reason: reason}
}

// Unauthenticated builds an AuthorizationError for a missing identity.
func Unauthenticated(op string) *AuthorizationError {
	return &AuthorizationError{Op: op, Reason: "authentication required", Unauthenticated: true}
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s: not authorized: %s", e.Op, e.Reason)
}

// NotFoundError reports an id that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

// NotFound builds a NotFoundError.
func NotFound(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsAuthorization reports whether err wraps an AuthorizationError.
func IsAuthorization(err error) bool {
	var a *AuthorizationError
	return errors.As(err, &a)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}

// Wrap annotates err with op, keeping the chain intact for errors.As.
func Wrap(err error, op string) error {
	return errors.Wrap(err, op)
}

// Cause returns the root cause of a pkg/errors chain.
func Cause(err error) error {
	return errors.Cause(err)
}
