package api

import (
	"context"
	"net/http"

	"github.com/okian/cfpboard/internal/domain/model"
	"github.com/okian/cfpboard/internal/domain/user"
)

// ReviewsDependencies covers the review routes.
type ReviewsDependencies interface {
	SubmitReview(ctx context.Context, c user.Caller, in model.ReviewInput) (model.Review, error)
	GetOwnReview(ctx context.Context, c user.Caller, submissionID string) (model.Review, error)
	ListReviews(ctx context.Context, c user.Caller, submissionID string) ([]model.Review, error)
}

// ReviewsHandler handles the review sub-resources of a submission.
type ReviewsHandler struct {
	deps ReviewsDependencies
}

// NewReviewsHandler creates a new reviews handler.
func NewReviewsHandler(deps ReviewsDependencies) *ReviewsHandler {
	return &ReviewsHandler{deps: deps}
}

// HandlePutReview handles PUT /submissions/{id}/review. The path id wins over
// any submissionId in the body.
func (h *ReviewsHandler) HandlePutReview(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_review"
	var in model.ReviewInput
	if err := decodeJSON(op, w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.SubmissionID = r.PathValue("id")
	rev, err := h.deps.SubmitReview(r.Context(), caller(r), in)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

// HandleGetOwnReview handles GET /submissions/{id}/review.
func (h *ReviewsHandler) HandleGetOwnReview(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_review"
	rev, err := h.deps.GetOwnReview(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

// HandleListReviews handles GET /submissions/{id}/reviews.
func (h *ReviewsHandler) HandleListReviews(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_reviews"
	revs, err := h.deps.ListReviews(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	if revs == nil {
		revs = []model.Review{}
	}
	writeJSON(w, http.StatusOK, revs)
}
