// Package user holds identities, roles and the password policy.
package user

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role of a user. Higher roles include the capabilities of lower ones.
type Role string

const (
	RoleUser     Role = "user"
	RoleReviewer Role = "reviewer"
	RoleAdmin    Role = "admin"
)

// AllRoles in ascending priority.
var AllRoles = []Role{RoleUser, RoleReviewer, RoleAdmin}

var rolePriorities = map[Role]int{
	RoleUser:     1,
	RoleReviewer: 10,
	RoleAdmin:    20,
}

// ParseRole accepts any case and surrounding whitespace.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	_, ok := rolePriorities[r]
	return r, ok
}

// Priority orders roles; unknown roles rank 0.
func (r Role) Priority() int { return rolePriorities[r] }

// AtLeast reports whether r includes the capabilities of min.
func (r Role) AtLeast(min Role) bool {
	return r.Priority() > 0 && r.Priority() >= min.Priority()
}

// User is an account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"` // UTC
	UpdatedAt    time.Time `json:"updatedAt"` // UTC
}

// BcryptCost is lowered by tests.
var BcryptCost = bcrypt.DefaultCost

// SetPassword hashes pwd into the user.
func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), BcryptCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

// CheckPassword returns nil when pwd matches the stored hash.
func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// IsAdmin reports admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// Caller is the authenticated identity performing an operation.
type Caller struct {
	UserID string
	Role   Role
}

// Anonymous reports a missing identity.
func (c Caller) Anonymous() bool { return c.UserID == "" }

// IsAdmin reports admin role.
func (c Caller) IsAdmin() bool { return !c.Anonymous() && c.Role == RoleAdmin }

// CanReview reports reviewer or admin role.
func (c Caller) CanReview() bool { return !c.Anonymous() && c.Role.AtLeast(RoleReviewer) }

type callerKey struct{}

// WithCaller stores c in ctx.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller stored in ctx, or an anonymous one.
func CallerFrom(ctx context.Context) Caller {
	c, _ := ctx.Value(callerKey{}).(Caller)
	return c
}

// NewUserInput is the write shape for registration and admin creation.
type NewUserInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,max=100"`
	Password string `json:"password" validate:"required"`
	Role     Role   `json:"role" validate:"omitempty,oneof=user reviewer admin"`
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
