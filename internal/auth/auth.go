// Package auth issues and verifies HS256 bearer tokens and guards HTTP routes
// by role.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/okian/cfpboard/internal/domain/user"
	"github.com/okian/cfpboard/pkg/metrics"
)

const (
	// DefaultTTL is the token lifetime when none is configured.
	DefaultTTL = 12 * time.Hour
	// MinSecretLen is the shortest accepted signing secret.
	MinSecretLen = 32

	defaultIssuer = "cfpboard"
	bearerPrefix  = "Bearer "
)

var (
	ErrEmptySecret   = errors.New("auth: empty signing secret")
	ErrInvalidToken  = errors.New("auth: invalid token")
	ErrInactiveUser  = errors.New("auth: account deactivated")
	ErrSigningFailed = errors.New("auth: token signing failed")
)

// Claims are the token claims. Subject carries the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.StandardClaims
}

// UserLookup reloads the account behind a token so role changes and
// deactivation apply before the token expires.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (user.User, error)
}

// Issuer signs and parses tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	name   string
	lookup UserLookup
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithTTL sets the token lifetime.
func WithTTL(d time.Duration) Option {
	return func(i *Issuer) {
		if d != 0 {
			i.ttl = d
		}
	}
}

// WithIssuerName sets the iss claim.
func WithIssuerName(name string) Option {
	return func(i *Issuer) {
		if name != "" {
			i.name = name
		}
	}
}

// WithUserLookup makes the middleware consult the store on every request.
func WithUserLookup(l UserLookup) Option {
	return func(i *Issuer) {
		i.lookup = l
	}
}

// NewIssuer returns an Issuer signing with secret.
func NewIssuer(secret string, opts ...Option) (*Issuer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	i := &Issuer{secret: []byte(secret), ttl: DefaultTTL, name: defaultIssuer}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue returns a signed token for u and its expiry.
func (i *Issuer) Issue(u user.User) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(i.ttl)
	claims := &Claims{
		Role: string(u.Role),
		StandardClaims: jwt.StandardClaims{
			Issuer:    i.name,
			Subject:   u.ID,
			IssuedAt:  now.Unix(),
			ExpiresAt: exp.Unix(),
		},
	}
	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
	return ss, exp.UTC(), nil
}

// Parse verifies a token and returns the identity it carries.
func (i *Issuer) Parse(token string) (user.Caller, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !tok.Valid {
		return user.Caller{}, ErrInvalidToken
	}
	role, ok := user.ParseRole(claims.Role)
	if !ok || claims.Subject == "" || claims.Issuer != i.name {
		return user.Caller{}, ErrInvalidToken
	}
	return user.Caller{UserID: claims.Subject, Role: role}, nil
}

// Middleware stores the bearer identity in the request context. Requests
// without a token pass through as anonymous; bad tokens get 401.
func (i *Issuer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !strings.HasPrefix(header, bearerPrefix) {
			reject(w, http.StatusUnauthorized, "unauthenticated", ErrInvalidToken)
			return
		}
		caller, err := i.Parse(strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)))
		if err == nil && i.lookup != nil {
			caller, err = i.refresh(r.Context(), caller)
		}
		if err != nil {
			reject(w, http.StatusUnauthorized, "unauthenticated", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(user.WithCaller(r.Context(), caller)))
	})
}

func (i *Issuer) refresh(ctx context.Context, c user.Caller) (user.Caller, error) {
	u, err := i.lookup.GetUser(ctx, c.UserID)
	if err != nil {
		return user.Caller{}, ErrInvalidToken
	}
	if !u.Active {
		return user.Caller{}, ErrInactiveUser
	}
	return user.Caller{UserID: u.ID, Role: u.Role}, nil
}

// Require admits callers holding one of roles. Anonymous callers get 401 and
// everyone else 403.
func Require(roles ...user.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			c := user.CallerFrom(r.Context())
			if c.Anonymous() {
				reject(w, http.StatusUnauthorized, "unauthenticated", errors.New("authentication required"))
				return
			}
			for _, role := range roles {
				if c.Role == role {
					next(w, r)
					return
				}
			}
			metrics.RecordAuthorizationRejected(r.Pattern)
			reject(w, http.StatusForbidden, "forbidden", fmt.Errorf("role %q may not access this route", c.Role))
		}
	}
}

func reject(w http.ResponseWriter, status int, code string, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{Code: code, Message: err.Error()})
}
