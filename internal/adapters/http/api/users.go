package api

import (
	"context"
	"net/http"

	"github.com/okian/cfpboard/internal/domain/user"
)

// UsersDependencies covers account administration.
type UsersDependencies interface {
	ListUsers(ctx context.Context, c user.Caller) ([]user.User, error)
	CreateUser(ctx context.Context, c user.Caller, in user.NewUserInput) (user.User, error)
	SetRole(ctx context.Context, c user.Caller, userID, role string) (user.User, error)
	DeactivateUser(ctx context.Context, c user.Caller, userID string) (user.User, error)
}

// UsersHandler handles the /admin/users routes.
type UsersHandler struct {
	deps UsersDependencies
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(deps UsersDependencies) *UsersHandler {
	return &UsersHandler{deps: deps}
}

type roleRequest struct {
	Role string `json:"role"`
}

// HandleList handles GET /admin/users.
func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_users"
	users, err := h.deps.ListUsers(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	if users == nil {
		users = []user.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleCreate handles POST /admin/users.
func (h *UsersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_user"
	var in user.NewUserInput
	if err := decodeJSON(op, w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.deps.CreateUser(r.Context(), caller(r), in)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// HandleSetRole handles PATCH /admin/users/{id}/role.
func (h *UsersHandler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_role"
	var in roleRequest
	if err := decodeJSON(op, w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.deps.SetRole(r.Context(), caller(r), r.PathValue("id"), in.Role)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// HandleDeactivate handles DELETE /admin/users/{id}.
func (h *UsersHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	const op = "api.deactivate_user"
	u, err := h.deps.DeactivateUser(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, u)
}
