package api

import (
	"context"
	"net/http"

	"github.com/okian/cfpboard/internal/domain/criteria"
	"github.com/okian/cfpboard/internal/domain/model"
	"github.com/okian/cfpboard/internal/domain/user"
)

// WeightsDependencies covers weight votes and the aggregate.
type WeightsDependencies interface {
	GetGlobalWeights(ctx context.Context) (criteria.Weights, error)
	SubmitWeightVote(ctx context.Context, c user.Caller, in model.WeightVoteInput) (model.WeightVote, error)
	GetOwnWeightVote(ctx context.Context, c user.Caller) (model.WeightVote, error)
	DeleteWeightVote(ctx context.Context, c user.Caller, memberID string) error
}

// WeightsHandler handles the /weights routes.
type WeightsHandler struct {
	deps WeightsDependencies
}

// NewWeightsHandler creates a new weights handler.
func NewWeightsHandler(deps WeightsDependencies) *WeightsHandler {
	return &WeightsHandler{deps: deps}
}

// HandleGetWeights handles GET /weights.
func (h *WeightsHandler) HandleGetWeights(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_weights"
	weights, err := h.deps.GetGlobalWeights(r.Context())
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, weights)
}

// HandlePutVote handles PUT /weights/vote.
func (h *WeightsHandler) HandlePutVote(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_vote"
	var in model.WeightVoteInput
	if err := decodeJSON(op, w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.deps.SubmitWeightVote(r.Context(), caller(r), in)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleGetVote handles GET /weights/vote.
func (h *WeightsHandler) HandleGetVote(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_vote"
	v, err := h.deps.GetOwnWeightVote(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleDeleteVote handles DELETE /weights/vote/{memberId}.
func (h *WeightsHandler) HandleDeleteVote(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_vote"
	if err := h.deps.DeleteWeightVote(r.Context(), caller(r), r.PathValue("memberId")); err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
