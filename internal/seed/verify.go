package seed

import (
	"context"
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/okian/cfpboard/internal/domain/criteria"
	"github.com/okian/cfpboard/internal/domain/model"
	"github.com/okian/cfpboard/internal/domain/ranking"
	"github.com/okian/cfpboard/internal/domain/scoring"
	"github.com/okian/cfpboard/internal/domain/types"
	"github.com/okian/cfpboard/internal/domain/user"
	"github.com/okian/cfpboard/internal/domain/weights"
)

const tolerance = 1e-6

// ErrMismatch is returned when the service disagrees with the local result.
var ErrMismatch = errors.New("leaderboard mismatch")

// Mismatch is one difference between the service and the local result.
type Mismatch struct {
	Submission string // scenario key, empty for weights and ordering
	Field      string
	Want       string
	Got        string
}

func (m Mismatch) String() string {
	if m.Submission == "" {
		return fmt.Sprintf("%s: want %s, got %s", m.Field, m.Want, m.Got)
	}
	return fmt.Sprintf("%s %s: want %s, got %s", m.Submission, m.Field, m.Want, m.Got)
}

// Expected is the locally computed outcome of a scenario.
type Expected struct {
	Weights criteria.Weights
	Entries []types.Entry
	keys    map[string]string // submission id -> scenario key
}

// Expect recomputes weights and the leaderboard for sc. reviewerIDs maps
// normalized emails to account ids; subs maps scenario keys to the
// submissions the service created.
func Expect(ctx context.Context, sc *Scenario, reviewerIDs map[string]string, subs map[string]model.Submission) (Expected, error) {
	var votes []model.WeightVote
	for _, r := range sc.Reviewers {
		if r.Vote != nil {
			votes = append(votes, model.VoteInputFromScores(toScores(r.Vote)).Vote(reviewerIDs[user.NormalizeEmail(r.Email)]))
		}
	}
	w := weights.Mean(votes)

	// Last review of a pair wins.
	latest := map[model.ReviewKey]model.Review{}
	order := []model.ReviewKey{}
	for _, r := range sc.Reviews {
		rev := model.ReviewInputFromScores(subs[r.Submission].ID, toScores(r.Scores)).Review(reviewerIDs[user.NormalizeEmail(r.Reviewer)])
		if _, seen := latest[rev.Key()]; !seen {
			order = append(order, rev.Key())
		}
		latest[rev.Key()] = rev
	}
	bySub := map[string][]model.Review{}
	for _, k := range order {
		r := latest[k]
		bySub[r.SubmissionID] = append(bySub[r.SubmissionID], r)
	}

	scorer := scoring.NewWeightedMeanScorer()
	keys := make(map[string]string, len(subs))
	cands := make([]ranking.Candidate, 0, len(sc.Submissions))
	for _, s := range sc.Submissions {
		sub := subs[s.Key]
		keys[sub.ID] = s.Key
		res, err := scorer.Score(ctx, scoring.Input{SubmissionID: sub.ID, Reviews: bySub[sub.ID], Weights: w})
		if err != nil {
			return Expected{}, errors.Wrapf(err, "scoring %s", s.Key)
		}
		cands = append(cands, ranking.Candidate{Result: res, Title: sub.Title, CreatedAt: sub.CreatedAt})
	}
	return Expected{Weights: w, Entries: sc.Ranker().Rank(cands, w), keys: keys}, nil
}

// Compare checks the service's weights and leaderboard against exp. Entries
// for submissions outside the scenario are ignored, so absolute ranks are
// not compared, only the relative order of scenario submissions.
func Compare(exp Expected, gotWeights criteria.Weights, got []types.Entry) []Mismatch {
	var out []Mismatch
	want, have := exp.Weights.Array(), gotWeights.Array()
	for _, c := range criteria.All {
		if math.Abs(want[c]-have[c]) > tolerance {
			out = append(out, Mismatch{Field: "weights." + c.String(), Want: ftoa(want[c]), Got: ftoa(have[c])})
		}
	}

	byID := make(map[string]types.Entry, len(got))
	var gotOrder []string
	for _, e := range got {
		byID[e.SubmissionID] = e
		if _, ok := exp.keys[e.SubmissionID]; ok {
			gotOrder = append(gotOrder, e.SubmissionID)
		}
	}

	wantOrder := make([]string, 0, len(exp.Entries))
	for _, e := range exp.Entries {
		wantOrder = append(wantOrder, e.SubmissionID)
		key := exp.keys[e.SubmissionID]
		g, ok := byID[e.SubmissionID]
		if !ok {
			out = append(out, Mismatch{Submission: key, Field: "entry", Want: "present", Got: "missing"})
			continue
		}
		if math.Abs(g.TotalScore-e.TotalScore) > tolerance {
			out = append(out, Mismatch{Submission: key, Field: "totalScore", Want: ftoa(e.TotalScore), Got: ftoa(g.TotalScore)})
		}
		if g.ReviewCount != e.ReviewCount {
			out = append(out, Mismatch{Submission: key, Field: "reviewCount", Want: fmt.Sprint(e.ReviewCount), Got: fmt.Sprint(g.ReviewCount)})
		}
		if g.Band != e.Band {
			out = append(out, Mismatch{Submission: key, Field: "band", Want: string(e.Band), Got: string(g.Band)})
		}
	}

	if len(gotOrder) == len(wantOrder) {
		for i := range wantOrder {
			if gotOrder[i] != wantOrder[i] {
				out = append(out, Mismatch{
					Field: fmt.Sprintf("order[%d]", i),
					Want:  exp.keys[wantOrder[i]],
					Got:   exp.keys[gotOrder[i]],
				})
				break
			}
		}
	}
	return out
}

func ftoa(f float64) string { return fmt.Sprintf("%.6f", f) }
