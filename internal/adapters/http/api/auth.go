package api

import (
	"context"
	"net/http"

	service "github.com/okian/cfpboard/internal/app"
	"github.com/okian/cfpboard/internal/domain/user"
)

// AuthDependencies covers registration and login.
type AuthDependencies interface {
	Register(ctx context.Context, in user.NewUserInput) (user.User, error)
	Login(ctx context.Context, email, password string) (service.Session, error)
}

// AuthHandler handles the public account routes.
type AuthHandler struct {
	deps AuthDependencies
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(deps AuthDependencies) *AuthHandler {
	return &AuthHandler{deps: deps}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister handles POST /auth/register.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	const op = "api.auth_register"
	var in user.NewUserInput
	if err := decodeJSON(op, w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.deps.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// HandleLogin handles POST /auth/login.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	const op = "api.auth_login"
	var in loginRequest
	if err := decodeJSON(op, w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := h.deps.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
