package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/cfpboard/internal/domain/errs"
	"github.com/okian/cfpboard/internal/domain/types"
	"github.com/okian/cfpboard/internal/domain/user"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	GetLeaderboard(ctx context.Context, c user.Caller, limit int) ([]types.Entry, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps LeaderboardDependencies
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

// HandleGetLeaderboard handles GET /leaderboard?limit=N. A missing limit
// returns every ranked submission; range checks happen in the service.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, r, errs.Validation(op, errs.FieldError{Field: "limit", Message: "must be an integer"}))
			return
		}
		limit = n
	}
	entries, err := h.deps.GetLeaderboard(r.Context(), caller(r), limit)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	if entries == nil {
		entries = []types.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
