package scoring_test

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/okian/cfpboard/internal/domain/criteria"
	"github.com/okian/cfpboard/internal/domain/model"
	scoring "github.com/okian/cfpboard/internal/domain/scoring"
	"github.com/okian/cfpboard/internal/domain/weights"
	. "github.com/smartystreets/goconvey/convey"
)

func review(sub, reviewer string, s criteria.Scores) model.Review {
	return model.ReviewInputFromScores(sub, s).Review(reviewer)
}

func uniform(v float64) criteria.Weights {
	return criteria.FromArray([criteria.Count]float64{v, v, v, v, v, v})
}

func TestWeightedMeanScorer_Score(t *testing.T) {
	Convey("Given the weighted mean scorer", t, func() {
		scorer := scoring.NewWeightedMeanScorer()
		ctx := context.Background()

		Convey("When all votes are two and one reviewer gives fours", func() {
			w := weights.Mean([]model.WeightVote{
				model.VoteInputFromScores(criteria.Scores{2, 2, 2, 2, 2, 2}).Vote("m1"),
			})
			res, err := scorer.Score(ctx, scoring.Input{
				SubmissionID: "s-1",
				Reviews:      []model.Review{review("s-1", "r1", criteria.Scores{4, 4, 4, 4, 4, 4})},
				Weights:      w,
			})

			Convey("Then the score is 6 × 4 × 2 = 48", func() {
				So(err, ShouldBeNil)
				So(res.TotalScore, ShouldEqual, 48)
				So(res.ReviewCount, ShouldEqual, 1)
				So(res.SubmissionID, ShouldEqual, "s-1")
			})
		})

		Convey("When two reviewers give fives and ones with unit weights", func() {
			res, err := scorer.Score(ctx, scoring.Input{
				Reviews: []model.Review{
					review("s", "r1", criteria.Scores{5, 5, 5, 5, 5, 5}),
					review("s", "r2", criteria.Scores{1, 1, 1, 1, 1, 1}),
				},
				Weights: criteria.Default(),
			})

			Convey("Then the mean of 30 and 6 is 18", func() {
				So(err, ShouldBeNil)
				So(res.TotalScore, ShouldEqual, 18)
				So(res.ReviewCount, ShouldEqual, 2)
			})
		})

		Convey("When a submission has no reviews", func() {
			res, err := scorer.Score(ctx, scoring.Input{SubmissionID: "s-0", Weights: criteria.Default()})

			Convey("Then score and count are zero", func() {
				So(err, ShouldBeNil)
				So(res.TotalScore, ShouldEqual, 0)
				So(res.ReviewCount, ShouldEqual, 0)
			})
		})

		Convey("When reviews are permuted", func() {
			rng := rand.New(rand.NewSource(42))
			reviews := make([]model.Review, 0, 15)
			for i := 0; i < 15; i++ {
				var s criteria.Scores
				for c := range s {
					s[c] = rng.Intn(6)
				}
				reviews = append(reviews, review("s", string(rune('a'+i)), s))
			}
			w := criteria.FromArray([criteria.Count]float64{1.5, 2.25, 3, 4.75, 5.5, 6})
			first, _ := scorer.Score(ctx, scoring.Input{Reviews: reviews, Weights: w})
			rng.Shuffle(len(reviews), func(i, j int) { reviews[i], reviews[j] = reviews[j], reviews[i] })
			second, _ := scorer.Score(ctx, scoring.Input{Reviews: reviews, Weights: w})

			Convey("Then the result matches within float tolerance", func() {
				So(second.TotalScore, ShouldAlmostEqual, first.TotalScore, 1e-9)
			})
		})

		Convey("When weights are not finite", func() {
			w := uniform(1)
			w.Depth = math.NaN()
			_, err := scorer.Score(ctx, scoring.Input{Weights: w})
			w.Depth = math.Inf(1)
			_, errInf := scorer.Score(ctx, scoring.Input{Weights: w})

			Convey("Then the weights are rejected", func() {
				So(errors.Is(err, scoring.ErrInvalidWeights), ShouldBeTrue)
				So(errors.Is(errInf, scoring.ErrInvalidWeights), ShouldBeTrue)
			})
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := scorer.Score(cctx, scoring.Input{Weights: uniform(1)})

			Convey("Then it returns the context error", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}

func TestWeightedAndNormalized(t *testing.T) {
	Convey("Given one review and mixed weights", t, func() {
		w := criteria.FromArray([criteria.Count]float64{1, 2, 3, 4, 5, 6})
		s := criteria.Scores{5, 4, 3, 2, 1, 0}

		Convey("Then the weighted sum follows the formula", func() {
			So(scoring.Weighted(s, w), ShouldEqual, 5*1+4*2+3*3+2*4+1*5+0*6)
		})

		Convey("Then normalizing by the weight sum returns the review scale", func() {
			So(scoring.Normalized(48, uniform(2)), ShouldEqual, 4)
			So(scoring.Normalized(10, criteria.Weights{}), ShouldEqual, 0)
		})
	})
}
