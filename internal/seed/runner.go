package seed

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/okian/cfpboard/internal/domain/model"
	"github.com/okian/cfpboard/internal/domain/user"
	"github.com/okian/cfpboard/pkg/logger"
)

// Defaults for Config.
const (
	DefaultWorkers = 8
	DefaultTimeout = 30 * time.Second
)

// Config controls a run.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Workers int
}

// Report summarizes a run.
type Report struct {
	Accounts    int
	Votes       int
	Submissions int
	Reviews     int
	Entries     int
	Mismatches  []Mismatch
	Duration    time.Duration
}

// runState holds what the run learned from the server.
type runState struct {
	mu       sync.Mutex
	sessions map[string]session // by normalized email
	subs     map[string]model.Submission
}

func (st *runState) session(email string) session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sessions[user.NormalizeEmail(email)]
}

// Run loads sc into the service at cfg.BaseURL and verifies the leaderboard.
// Any mismatch makes the returned error match ErrMismatch.
func Run(ctx context.Context, cfg Config, sc *Scenario) (*Report, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	log := logger.Named("seed")
	start := time.Now()
	client := NewClient(cfg.BaseURL, cfg.Timeout)
	rep := &Report{}
	st := &runState{sessions: map[string]session{}, subs: map[string]model.Submission{}}

	log.Info(ctx, "starting seed run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("reviewers", len(sc.Reviewers)),
		logger.Int("speakers", len(sc.Speakers)),
		logger.Int("submissions", len(sc.Submissions)),
		logger.Int("reviews", len(sc.Reviews)))

	if err := client.Health(ctx); err != nil {
		return nil, pkgerrors.Wrap(err, "service health check failed")
	}
	admin, err := client.Login(ctx, sc.Admin)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "admin login")
	}
	if admin.User.Role != user.RoleAdmin {
		return nil, pkgerrors.Errorf("%s is %s, not admin", sc.Admin.Email, admin.User.Role)
	}

	// Accounts
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, r := range sc.Reviewers {
		g.Go(func() error { return ensureAccount(gctx, client, admin.Token, st, r.Account, user.RoleReviewer) })
	}
	for _, s := range sc.Speakers {
		g.Go(func() error { return ensureAccount(gctx, client, admin.Token, st, s, user.RoleUser) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	rep.Accounts = len(st.sessions)

	// Votes
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, r := range sc.Reviewers {
		if r.Vote == nil {
			continue
		}
		rep.Votes++
		g.Go(func() error {
			_, err := client.PutVote(gctx, st.session(r.Email).Token, toScores(r.Vote))
			return pkgerrors.Wrapf(err, "vote by %s", r.Email)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Submissions go in one at a time so creation order, which breaks ties,
	// follows the scenario.
	for _, s := range sc.Submissions {
		sub, err := client.CreateSubmission(ctx, st.session(s.Speaker).Token, model.SubmissionInput{
			Title: s.Title, Abstract: s.Abstract, Takeaways: s.Takeaways, Level: s.Level, Format: s.Format,
		})
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "submission %s", s.Key)
		}
		st.subs[s.Key] = sub
	}
	rep.Submissions = len(st.subs)

	// Reviews of the same pair must stay in scenario order.
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, batch := range reviewBatches(sc.Reviews) {
		g.Go(func() error {
			for _, r := range batch {
				if _, err := client.PutReview(gctx, st.session(r.Reviewer).Token, st.subs[r.Submission].ID, toScores(r.Scores), r.Notes); err != nil {
					return pkgerrors.Wrapf(err, "review of %s by %s", r.Submission, r.Reviewer)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	rep.Reviews = len(sc.Reviews)

	// Verify
	gotWeights, err := client.Weights(ctx, admin.Token)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "fetching weights")
	}
	entries, err := client.Leaderboard(ctx, admin.Token)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "fetching leaderboard")
	}
	rep.Entries = len(entries)

	exp, err := Expect(ctx, sc, st.reviewerIDs(sc), st.subs)
	if err != nil {
		return nil, err
	}
	rep.Mismatches = Compare(exp, gotWeights, entries)
	rep.Duration = time.Since(start)

	log.Info(ctx, "seed run finished",
		logger.Int("accounts", rep.Accounts),
		logger.Int("votes", rep.Votes),
		logger.Int("submissions", rep.Submissions),
		logger.Int("reviews", rep.Reviews),
		logger.Int("entries", rep.Entries),
		logger.Int("mismatches", len(rep.Mismatches)),
		logger.Duration("duration", rep.Duration))

	if len(rep.Mismatches) > 0 {
		for _, m := range rep.Mismatches {
			log.Error(ctx, "leaderboard mismatch", logger.String("detail", m.String()))
		}
		return rep, pkgerrors.Wrapf(ErrMismatch, "%d differences", len(rep.Mismatches))
	}
	return rep, nil
}

// ensureAccount registers a (tolerating an existing account), logs in and
// promotes to role when the account ranks below it.
func ensureAccount(ctx context.Context, c *Client, adminToken string, st *runState, a Account, role user.Role) error {
	if _, err := c.Register(ctx, a); err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest || apiErr.Fields["email"] == "" {
			return pkgerrors.Wrapf(err, "registering %s", a.Email)
		}
	}
	sess, err := c.Login(ctx, a)
	if err != nil {
		return pkgerrors.Wrapf(err, "logging in %s", a.Email)
	}
	if !sess.User.Role.AtLeast(role) {
		if err := c.SetRole(ctx, adminToken, sess.User.ID, role); err != nil {
			return pkgerrors.Wrapf(err, "promoting %s", a.Email)
		}
		sess.User.Role = role
	}
	st.mu.Lock()
	st.sessions[user.NormalizeEmail(a.Email)] = sess
	st.mu.Unlock()
	return nil
}

func (st *runState) reviewerIDs(sc *Scenario) map[string]string {
	ids := make(map[string]string, len(sc.Reviewers))
	for _, r := range sc.Reviewers {
		ids[user.NormalizeEmail(r.Email)] = st.session(r.Email).User.ID
	}
	return ids
}

// reviewBatches groups reviews by reviewer so each reviewer's writes stay
// ordered while different reviewers run in parallel.
func reviewBatches(reviews []Review) [][]Review {
	idx := map[string]int{}
	var out [][]Review
	for _, r := range reviews {
		k := user.NormalizeEmail(r.Reviewer)
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], r)
	}
	return out
}
