package api

import (
	"context"
	"net/http"

	"github.com/okian/cfpboard/internal/domain/model"
	"github.com/okian/cfpboard/internal/domain/user"
)

// SubmissionsDependencies covers the submission routes.
type SubmissionsDependencies interface {
	CreateSubmission(ctx context.Context, c user.Caller, in model.SubmissionInput) (model.Submission, error)
	GetSubmission(ctx context.Context, c user.Caller, id string) (model.Submission, error)
	ListSubmissions(ctx context.Context, c user.Caller) ([]model.Submission, error)
	UpdateSubmission(ctx context.Context, c user.Caller, id string, in model.SubmissionInput) (model.Submission, error)
	WithdrawSubmission(ctx context.Context, c user.Caller, id string) (model.Submission, error)
}

// SubmissionsHandler handles the /submissions routes.
type SubmissionsHandler struct {
	deps SubmissionsDependencies
}

// NewSubmissionsHandler creates a new submissions handler.
func NewSubmissionsHandler(deps SubmissionsDependencies) *SubmissionsHandler {
	return &SubmissionsHandler{deps: deps}
}

// HandleCreate handles POST /submissions.
func (h *SubmissionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_submission"
	var in model.SubmissionInput
	if err := decodeJSON(op, w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := h.deps.CreateSubmission(r.Context(), caller(r), in)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// HandleGet handles GET /submissions/{id}.
func (h *SubmissionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_submission"
	sub, err := h.deps.GetSubmission(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// HandleList handles GET /submissions.
func (h *SubmissionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_submissions"
	subs, err := h.deps.ListSubmissions(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	if subs == nil {
		subs = []model.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// HandleUpdate handles PUT /submissions/{id}.
func (h *SubmissionsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_submission"
	var in model.SubmissionInput
	if err := decodeJSON(op, w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sub, err := h.deps.UpdateSubmission(r.Context(), caller(r), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// HandleWithdraw handles POST /submissions/{id}/withdraw.
func (h *SubmissionsHandler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	const op = "api.withdraw_submission"
	sub, err := h.deps.WithdrawSubmission(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sub)
}
