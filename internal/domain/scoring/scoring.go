// Package scoring computes a submission's ranking score from its reviews and
// the global criterion weights.
package scoring

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/okian/cfpboard/internal/domain/criteria"
	"github.com/okian/cfpboard/internal/domain/model"
)

// ErrInvalidWeights is returned for NaN or infinite weights.
var ErrInvalidWeights = errors.New("invalid weights")

// Input is one submission's reviews plus the weights to apply.
type Input struct {
	SubmissionID string
	Reviews      []model.Review
	Weights      criteria.Weights
}

// Result is the derived score view of a submission.
type Result struct {
	SubmissionID string
	TotalScore   float64
	ReviewCount  int
}

// Scorer computes a Result from an Input.
type Scorer interface {
	// Score computes a score, honoring ctx for cancellation.
	Score(ctx context.Context, in Input) (Result, error)
}

// WeightedMeanScorer scores a submission as the arithmetic mean over its
// reviews of Σ score[c] × weight[c]. The mean, not the sum, keeps the number
// of reviewers out of the ranking.
type WeightedMeanScorer struct{}

// NewWeightedMeanScorer returns the default scorer.
func NewWeightedMeanScorer() *WeightedMeanScorer {
	return &WeightedMeanScorer{}
}

// Score computes the weighted mean. Zero reviews score 0. No rounding.
func (s *WeightedMeanScorer) Score(ctx context.Context, in Input) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, errors.Wrap(err, "context cancelled")
	}
	if err := checkWeights(in.Weights); err != nil {
		return Result{}, err
	}
	res := Result{SubmissionID: in.SubmissionID, ReviewCount: len(in.Reviews)}
	if len(in.Reviews) == 0 {
		return res, nil
	}
	var total float64
	for _, r := range in.Reviews {
		total += Weighted(r.Scores(), in.Weights)
	}
	res.TotalScore = total / float64(len(in.Reviews))
	return res, nil
}

// Weighted returns Σ scores[c] × weights[c] for one review.
func Weighted(scores criteria.Scores, w criteria.Weights) float64 {
	wa := w.Array()
	var sum float64
	for i, s := range scores {
		sum += float64(s) * wa[i]
	}
	return sum
}

func checkWeights(w criteria.Weights) error {
	for _, c := range criteria.All {
		v := w.Value(c)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(ErrInvalidWeights, "%s is %v", c, v)
		}
	}
	return nil
}

// Normalized divides a total by the weight sum, giving the weighted average
// criterion score on the review scale [0,5]. It returns 0 for a zero sum.
func Normalized(total float64, w criteria.Weights) float64 {
	sum := w.Sum()
	if sum == 0 {
		return 0
	}
	return total / sum
}
