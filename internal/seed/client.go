package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/okian/cfpboard/internal/domain/criteria"
	"github.com/okian/cfpboard/internal/domain/model"
	"github.com/okian/cfpboard/internal/domain/types"
	"github.com/okian/cfpboard/internal/domain/user"
)

// APIError is a non-2xx response.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Status, e.Code, e.Message)
	if len(e.Fields) > 0 {
		msg += fmt.Sprintf(" %v", e.Fields)
	}
	return msg
}

// Client calls the cfpboard HTTP API.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a client for baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{base: strings.TrimRight(baseURL, "/"), http: &http.Client{Timeout: timeout}}
}

type session struct {
	Token string    `json:"token"`
	User  user.User `json:"user"`
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", "", nil, nil)
}

// Register creates a speaker account.
func (c *Client) Register(ctx context.Context, a Account) (user.User, error) {
	var u user.User
	err := c.do(ctx, http.MethodPost, "/auth/register", "", user.NewUserInput{Email: a.Email, Name: a.Name, Password: a.Password}, &u)
	return u, err
}

// Login returns a session for a.
func (c *Client) Login(ctx context.Context, a Account) (session, error) {
	var s session
	err := c.do(ctx, http.MethodPost, "/auth/login", "", map[string]string{"email": a.Email, "password": a.Password}, &s)
	return s, err
}

// SetRole changes the role of userID.
func (c *Client) SetRole(ctx context.Context, token, userID string, role user.Role) error {
	return c.do(ctx, http.MethodPatch, "/admin/users/"+userID+"/role", token, map[string]string{"role": string(role)}, nil)
}

// PutVote stores the caller's weight vote.
func (c *Client) PutVote(ctx context.Context, token string, s criteria.Scores) (model.WeightVote, error) {
	var v model.WeightVote
	err := c.do(ctx, http.MethodPut, "/weights/vote", token, model.VoteInputFromScores(s), &v)
	return v, err
}

// Weights returns the aggregate weights.
func (c *Client) Weights(ctx context.Context, token string) (criteria.Weights, error) {
	var w criteria.Weights
	err := c.do(ctx, http.MethodGet, "/weights", token, nil, &w)
	return w, err
}

// CreateSubmission submits a proposal as the caller.
func (c *Client) CreateSubmission(ctx context.Context, token string, in model.SubmissionInput) (model.Submission, error) {
	var s model.Submission
	err := c.do(ctx, http.MethodPost, "/submissions", token, in, &s)
	return s, err
}

// PutReview stores the caller's review of submissionID.
func (c *Client) PutReview(ctx context.Context, token, submissionID string, s criteria.Scores, notes string) (model.Review, error) {
	in := model.ReviewInputFromScores(submissionID, s)
	in.Notes = notes
	var r model.Review
	err := c.do(ctx, http.MethodPut, "/submissions/"+submissionID+"/review", token, in, &r)
	return r, err
}

// Leaderboard returns every ranked submission.
func (c *Client) Leaderboard(ctx context.Context, token string) ([]types.Entry, error) {
	var entries []types.Entry
	err := c.do(ctx, http.MethodGet, "/leaderboard", token, nil, &entries)
	return entries, err
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "reading response")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Method: method, Path: path, Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(data, out), "decoding %s %s", method, path)
}
