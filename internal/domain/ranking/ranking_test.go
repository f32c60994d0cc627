package ranking_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/okian/cfpboard/internal/domain/criteria"
	"github.com/okian/cfpboard/internal/domain/ranking"
	"github.com/okian/cfpboard/internal/domain/scoring"
	"github.com/okian/cfpboard/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

var base = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func cand(id string, total float64, reviews int, ageMin int) ranking.Candidate {
	return ranking.Candidate{
		Result:    scoring.Result{SubmissionID: id, TotalScore: total, ReviewCount: reviews},
		CreatedAt: base.Add(time.Duration(ageMin) * time.Minute),
	}
}

func ids(entries []types.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.SubmissionID
	}
	return out
}

func TestRanker_Rank(t *testing.T) {
	Convey("Given a ranker with default bands", t, func() {
		r := ranking.New()
		w := criteria.Default()

		Convey("When candidates have distinct scores", func() {
			out := r.Rank([]ranking.Candidate{
				cand("low", 6, 1, 0),
				cand("high", 30, 1, 1),
				cand("mid", 18, 2, 2),
			}, w)

			Convey("Then they are ordered by score descending with 1-based ranks", func() {
				So(ids(out), ShouldResemble, []string{"high", "mid", "low"})
				So(out[0].Rank, ShouldEqual, 1)
				So(out[2].Rank, ShouldEqual, 3)
			})

			Convey("Then bands follow the normalized score", func() {
				So(out[0].NormalizedScore, ShouldEqual, 5)
				So(out[0].Band, ShouldEqual, types.BandStrong)
				So(out[1].Band, ShouldEqual, types.BandBorderline)
				So(out[2].Band, ShouldEqual, types.BandWeak)
			})
		})

		Convey("When scores tie", func() {
			out := r.Rank([]ranking.Candidate{
				cand("unreviewed", 0, 0, 0),
				cand("zero-b", 0, 1, 5),
				cand("zero-a", 0, 1, 5),
				cand("zero-old", 0, 1, 1),
			}, w)

			Convey("Then reviewed entries precede unreviewed ones, then older, then by id", func() {
				So(ids(out), ShouldResemble, []string{"zero-old", "zero-a", "zero-b", "unreviewed"})
				So(out[3].Band, ShouldEqual, types.BandUnreviewed)
			})
		})

		Convey("When the input order is shuffled", func() {
			cands := make([]ranking.Candidate, 0, 30)
			rng := rand.New(rand.NewSource(3))
			for i := 0; i < 30; i++ {
				cands = append(cands, cand(string(rune('A'+i)), float64(rng.Intn(4)*6), rng.Intn(2), rng.Intn(3)))
			}
			first := ids(r.Rank(append([]ranking.Candidate(nil), cands...), w))
			rng.Shuffle(len(cands), func(i, j int) { cands[i], cands[j] = cands[j], cands[i] })

			Convey("Then the order is identical", func() {
				So(ids(r.Rank(cands, w)), ShouldResemble, first)
			})
		})

		Convey("When custom bands are configured", func() {
			strict := ranking.New(ranking.WithBands(4.5, 4))

			Convey("Then thresholds move", func() {
				So(strict.Band(4.2, 1), ShouldEqual, types.BandBorderline)
				So(strict.Band(4.5, 1), ShouldEqual, types.BandStrong)
				So(strict.Band(5, 0), ShouldEqual, types.BandUnreviewed)
			})
		})
	})
}

func TestLimit(t *testing.T) {
	Convey("Given three entries", t, func() {
		entries := []types.Entry{{Rank: 1}, {Rank: 2}, {Rank: 3}}

		Convey("Then limit truncates or keeps all", func() {
			So(ranking.Limit(entries, 2), ShouldHaveLength, 2)
			So(ranking.Limit(entries, 0), ShouldHaveLength, 3)
			So(ranking.Limit(entries, 10), ShouldHaveLength, 3)
		})
	})
}
