package service

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/cfpboard/internal/adapters/repository"
	"github.com/okian/cfpboard/internal/domain/errs"
	"github.com/okian/cfpboard/internal/domain/user"
	"github.com/okian/cfpboard/pkg/logger"
)

// ErrNoIssuer is returned by Login when no token issuer is configured.
var ErrNoIssuer = errors.New("token issuer not configured")

const invalidCredentials = "invalid email or password"

// Session is the result of a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      user.User `json:"user"`
}

// Register creates an account with the user role.
func (s *Service) Register(ctx context.Context, in user.NewUserInput) (_ user.User, err error) {
	const op = "Service.Register"
	ctx, span := s.startSpan(ctx, op)
	defer func() { finish(span, err) }()

	in.Role = user.RoleUser
	return s.createUser(ctx, op, in)
}

// CreateUser creates an account with any role. Admin only.
func (s *Service) CreateUser(ctx context.Context, c user.Caller, in user.NewUserInput) (_ user.User, err error) {
	const op = "Service.CreateUser"
	ctx, span := s.startSpan(ctx, op)
	defer func() { finish(span, err) }()

	if err = requireAdmin(op, c); err != nil {
		return user.User{}, err
	}
	if in.Role == "" {
		in.Role = user.RoleUser
	}
	return s.createUser(ctx, op, in)
}

func (s *Service) createUser(ctx context.Context, op string, in user.NewUserInput) (user.User, error) {
	in.Email = user.NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate(op, in); err != nil {
		return user.User{}, err
	}
	now := s.now()
	u := user.User{
		ID:        s.newID(),
		Email:     in.Email,
		Name:      in.Name,
		Role:      in.Role,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.SetPassword(in.Password); err != nil {
		return user.User{}, errs.Wrap(err, op)
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return user.User{}, errs.Validation(op, errs.FieldError{Field: "email", Message: "email is already registered"})
		}
		return user.User{}, errs.Wrap(err, op)
	}
	s.logger.Info(ctx, "user created", logger.String("userID", u.ID), logger.String("role", string(u.Role)))
	return u, nil
}

// Login checks credentials and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (_ Session, err error) {
	const op = "Service.Login"
	ctx, span := s.startSpan(ctx, op)
	defer func() { finish(span, err) }()

	if s.issuer == nil {
		return Session{}, errs.Wrap(ErrNoIssuer, op)
	}
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, &errs.AuthorizationError{Op: op, Reason: invalidCredentials, Unauthenticated: true}
		}
		return Session{}, errs.Wrap(err, op)
	}
	if u.CheckPassword(password) != nil {
		return Session{}, &errs.AuthorizationError{Op: op, Reason: invalidCredentials, Unauthenticated: true}
	}
	if !u.Active {
		return Session{}, &errs.AuthorizationError{Op: op, Reason: "account deactivated", Unauthenticated: true}
	}
	token, exp, err := s.issuer.Issue(u)
	if err != nil {
		return Session{}, errs.Wrap(err, op)
	}
	span.SetAttributes(attribute.String("user.id", u.ID))
	return Session{Token: token, ExpiresAt: exp, User: u}, nil
}

// SetRole changes a user's role. Admin only; admins cannot demote themselves.
func (s *Service) SetRole(ctx context.Context, c user.Caller, userID, role string) (_ user.User, err error) {
	const op = "Service.SetRole"
	ctx, span := s.startSpan(ctx, op, attribute.String("user.id", userID))
	defer func() { finish(span, err) }()

	if err = requireAdmin(op, c); err != nil {
		return user.User{}, err
	}
	r, ok := user.ParseRole(role)
	if !ok {
		return user.User{}, errs.Validation(op, errs.FieldError{Field: "role", Message: "must be one of: user, reviewer, admin"})
	}
	if userID == c.UserID && r != user.RoleAdmin {
		return user.User{}, errs.Validation(op, errs.FieldError{Field: "role", Message: "cannot remove your own admin role"})
	}
	return s.updateUser(ctx, op, userID, func(u *user.User) { u.Role = r })
}

// DeactivateUser disables login for a user. Admin only.
func (s *Service) DeactivateUser(ctx context.Context, c user.Caller, userID string) (_ user.User, err error) {
	const op = "Service.DeactivateUser"
	ctx, span := s.startSpan(ctx, op, attribute.String("user.id", userID))
	defer func() { finish(span, err) }()

	if err = requireAdmin(op, c); err != nil {
		return user.User{}, err
	}
	if userID == c.UserID {
		return user.User{}, errs.Validation(op, errs.FieldError{Field: "id", Message: "cannot deactivate yourself"})
	}
	return s.updateUser(ctx, op, userID, func(u *user.User) { u.Active = false })
}

func (s *Service) updateUser(ctx context.Context, op, id string, mutate func(*user.User)) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, storeErr(op, "user", id, err)
	}
	mutate(&u)
	u.UpdatedAt = s.now()
	// An empty hash leaves the stored one untouched.
	u.PasswordHash = nil
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return user.User{}, storeErr(op, "user", id, err)
	}
	s.logger.Info(ctx, "user updated",
		logger.String("userID", u.ID),
		logger.String("role", string(u.Role)),
		logger.Bool("active", u.Active),
	)
	return u, nil
}

// ListUsers returns every account. Admin only.
func (s *Service) ListUsers(ctx context.Context, c user.Caller) (_ []user.User, err error) {
	const op = "Service.ListUsers"
	ctx, span := s.startSpan(ctx, op)
	defer func() { finish(span, err) }()

	if err = requireAdmin(op, c); err != nil {
		return nil, err
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, errs.Wrap(err, op)
	}
	return users, nil
}
