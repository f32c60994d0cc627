// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/okian/cfpboard/internal/auth"
	"github.com/okian/cfpboard/internal/domain/errs"
	"github.com/okian/cfpboard/internal/domain/user"
	"github.com/okian/cfpboard/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Each handler only sees its own
// slice of this bundle.
type Dependencies interface {
	AuthDependencies
	WeightsDependencies
	SubmissionsDependencies
	ReviewsDependencies
	LeaderboardDependencies
	UsersDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	authHandler        *AuthHandler
	weightsHandler     *WeightsHandler
	submissionsHandler *SubmissionsHandler
	reviewsHandler     *ReviewsHandler
	leaderboardHandler *LeaderboardHandler
	usersHandler       *UsersHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		authHandler:        NewAuthHandler(deps),
		weightsHandler:     NewWeightsHandler(deps),
		submissionsHandler: NewSubmissionsHandler(deps),
		reviewsHandler:     NewReviewsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps),
		usersHandler:       NewUsersHandler(deps),
	}
}

// Register attaches all HTTP routes to mux. Identity is expected in the
// request context, so mount mux behind auth.Issuer.Middleware.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	committee := auth.Require(user.RoleReviewer, user.RoleAdmin)
	admin := auth.Require(user.RoleAdmin)
	anyone := auth.Require(user.AllRoles...)

	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, RecoverMiddleware(MetricsMiddleware(h, endpoint)))
	}

	route("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	route("GET /stats", "stats", s.statsHandler.HandleStats)

	route("POST /auth/register", "auth_register", s.authHandler.HandleRegister)
	route("POST /auth/login", "auth_login", s.authHandler.HandleLogin)

	route("GET /weights", "weights", anyone(s.weightsHandler.HandleGetWeights))
	route("PUT /weights/vote", "weights_vote", committee(s.weightsHandler.HandlePutVote))
	route("GET /weights/vote", "weights_vote", committee(s.weightsHandler.HandleGetVote))
	route("DELETE /weights/vote/{memberId}", "weights_vote_delete", admin(s.weightsHandler.HandleDeleteVote))

	route("POST /submissions", "submissions", anyone(s.submissionsHandler.HandleCreate))
	route("GET /submissions", "submissions", anyone(s.submissionsHandler.HandleList))
	route("GET /submissions/{id}", "submission", anyone(s.submissionsHandler.HandleGet))
	route("PUT /submissions/{id}", "submission", anyone(s.submissionsHandler.HandleUpdate))
	route("POST /submissions/{id}/withdraw", "submission_withdraw", anyone(s.submissionsHandler.HandleWithdraw))

	route("PUT /submissions/{id}/review", "review", committee(s.reviewsHandler.HandlePutReview))
	route("GET /submissions/{id}/review", "review", committee(s.reviewsHandler.HandleGetOwnReview))
	route("GET /submissions/{id}/reviews", "reviews", admin(s.reviewsHandler.HandleListReviews))

	route("GET /leaderboard", "leaderboard", admin(s.leaderboardHandler.HandleGetLeaderboard))

	route("GET /admin/users", "admin_users", admin(s.usersHandler.HandleList))
	route("POST /admin/users", "admin_users", admin(s.usersHandler.HandleCreate))
	route("PATCH /admin/users/{id}/role", "admin_user_role", admin(s.usersHandler.HandleSetRole))
	route("DELETE /admin/users/{id}", "admin_user", admin(s.usersHandler.HandleDeactivate))
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError derives the status from err. Internal errors are logged and
// their text is not sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := httpStatus(err)
	resp := errorResponse{Code: code, Message: err.Error()}
	var verr *errs.ValidationError
	if errors.As(err, &verr) {
		resp.Message = "invalid input"
		resp.Fields = verr.FieldMap()
	}
	if status >= http.StatusInternalServerError {
		logger.Get().Named("api").Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("method", r.Method),
			logger.Error(err),
		)
		resp.Message = http.StatusText(status)
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads a single JSON object into v, rejecting unknown fields.
func decodeJSON(op string, w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return NewKind(op, ErrBodyTooBig)
		}
		return WrapKind(op, ErrInvalidJSON, err)
	}
	if dec.Decode(&struct{}{}) != io.EOF {
		return NewKind(op, ErrInvalidJSON)
	}
	return nil
}

func caller(r *http.Request) user.Caller { return user.CallerFrom(r.Context()) }
