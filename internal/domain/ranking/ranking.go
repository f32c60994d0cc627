// Package ranking orders scored submissions into a leaderboard.
package ranking

import (
	"sort"
	"time"

	"github.com/okian/cfpboard/internal/domain/criteria"
	"github.com/okian/cfpboard/internal/domain/scoring"
	"github.com/okian/cfpboard/internal/domain/types"
)

// Default band thresholds on the normalized [0,5] scale.
const (
	DefaultStrong     = 4.0
	DefaultBorderline = 3.0
)

// Candidate is a scored submission waiting for a rank.
type Candidate struct {
	scoring.Result
	Title     string
	CreatedAt time.Time
	Suspected bool
}

// Ranker assigns ranks and bands.
type Ranker struct {
	strong     float64
	borderline float64
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithBands sets the strong and borderline thresholds.
func WithBands(strong, borderline float64) Option {
	return func(r *Ranker) {
		r.strong = strong
		r.borderline = borderline
	}
}

// New returns a Ranker with default bands.
func New(opts ...Option) *Ranker {
	r := &Ranker{strong: DefaultStrong, borderline: DefaultBorderline}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank sorts candidates by TotalScore descending and returns entries with
// 1-based ranks. Reviewed submissions come before unreviewed ones; ties break
// on CreatedAt then SubmissionID so the order is stable across calls.
// The input slice is reordered in place.
func (r *Ranker) Rank(cands []Candidate, w criteria.Weights) []types.Entry {
	sort.SliceStable(cands, func(i, j int) bool {
		return less(cands[i], cands[j])
	})
	out := make([]types.Entry, len(cands))
	for i, c := range cands {
		norm := scoring.Normalized(c.TotalScore, w)
		out[i] = types.Entry{
			Rank:            i + 1,
			SubmissionID:    c.SubmissionID,
			Title:           c.Title,
			TotalScore:      c.TotalScore,
			ReviewCount:     c.ReviewCount,
			NormalizedScore: norm,
			Band:            r.Band(norm, c.ReviewCount),
			LLMSuspected:    c.Suspected,
			CreatedAt:       c.CreatedAt,
		}
	}
	return out
}

// Band maps a normalized score to its bucket.
func (r *Ranker) Band(norm float64, reviews int) types.Band {
	switch {
	case reviews == 0:
		return types.BandUnreviewed
	case norm >= r.strong:
		return types.BandStrong
	case norm >= r.borderline:
		return types.BandBorderline
	default:
		return types.BandWeak
	}
}

func less(a, b Candidate) bool {
	if a.TotalScore != b.TotalScore {
		return a.TotalScore > b.TotalScore
	}
	if (a.ReviewCount == 0) != (b.ReviewCount == 0) {
		return a.ReviewCount != 0
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.SubmissionID < b.SubmissionID
}

// Limit truncates entries to n. Non-positive n returns all entries.
func Limit(entries []types.Entry, n int) []types.Entry {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[:n]
}
