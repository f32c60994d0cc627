// Package weights turns committee weight votes into the global weight vector.
package weights

import (
	"github.com/okian/cfpboard/internal/domain/criteria"
	"github.com/okian/cfpboard/internal/domain/model"
)

// Aggregator computes global weights from a snapshot of votes.
type Aggregator interface {
	Aggregate(votes []model.WeightVote) criteria.Weights
}

// MeanAggregator averages each criterion across all votes. Every vote
// contributes to every criterion.
type MeanAggregator struct {
	fallback criteria.Weights
}

// Option configures a MeanAggregator.
type Option func(*MeanAggregator)

// WithFallback replaces the weights used when there are no votes.
func WithFallback(w criteria.Weights) Option {
	return func(a *MeanAggregator) {
		a.fallback = w
	}
}

// NewMeanAggregator returns an aggregator falling back to criteria.Default().
func NewMeanAggregator(opts ...Option) *MeanAggregator {
	a := &MeanAggregator{fallback: criteria.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate returns the per-criterion mean, or the fallback for no votes.
func (a *MeanAggregator) Aggregate(votes []model.WeightVote) criteria.Weights {
	if len(votes) == 0 {
		return a.fallback
	}
	var sums [criteria.Count]int
	for _, v := range votes {
		s := v.Scores()
		for i := range sums {
			sums[i] += s[i]
		}
	}
	var means [criteria.Count]float64
	n := float64(len(votes))
	for i, sum := range sums {
		means[i] = float64(sum) / n
	}
	return criteria.FromArray(means)
}

// Mean is MeanAggregator with default fallback.
func Mean(votes []model.WeightVote) criteria.Weights {
	return NewMeanAggregator().Aggregate(votes)
}
