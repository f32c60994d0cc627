package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/cfpboard/internal/adapters/repository"
	"github.com/okian/cfpboard/internal/domain/criteria"
	"github.com/okian/cfpboard/internal/domain/model"
	"github.com/okian/cfpboard/internal/domain/user"
	. "github.com/smartystreets/goconvey/convey"
)

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func TestMemoryStore_Votes(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty memory store", t, func() {
		s := repository.NewMemoryStore()

		Convey("When a member votes twice", func() {
			first := model.VoteInputFromScores(criteria.Scores{1, 1, 1, 1, 1, 1}).Vote("m1")
			first.CreatedAt, first.UpdatedAt = t0, t0
			_, err := s.UpsertVote(ctx, first)
			So(err, ShouldBeNil)

			second := model.VoteInputFromScores(criteria.Scores{6, 6, 6, 6, 6, 6}).Vote("m1")
			second.CreatedAt, second.UpdatedAt = t0.Add(time.Hour), t0.Add(time.Hour)
			stored, err := s.UpsertVote(ctx, second)
			So(err, ShouldBeNil)

			Convey("Then only the latest vote is kept with its original creation time", func() {
				votes, _ := s.ListVotes(ctx)
				So(votes, ShouldHaveLength, 1)
				So(votes[0].Relevance, ShouldEqual, 6)
				So(stored.CreatedAt, ShouldEqual, t0)
				So(stored.UpdatedAt, ShouldEqual, t0.Add(time.Hour))
			})
		})

		Convey("When a vote is deleted", func() {
			_, _ = s.UpsertVote(ctx, model.WeightVote{MemberID: "m1"})
			So(s.DeleteVote(ctx, "m1"), ShouldBeNil)

			Convey("Then it is gone and a second delete reports not found", func() {
				_, err := s.GetVote(ctx, "m1")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				So(errors.Is(s.DeleteVote(ctx, "m1"), repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When votes are listed", func() {
			for _, id := range []string{"c", "a", "b"} {
				_, _ = s.UpsertVote(ctx, model.WeightVote{MemberID: id})
			}
			votes, _ := s.ListVotes(ctx)

			Convey("Then they are ordered by member", func() {
				So(votes[0].MemberID, ShouldEqual, "a")
				So(votes[2].MemberID, ShouldEqual, "c")
			})
		})
	})
}

func TestMemoryStore_ReviewsAndSubmissions(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store with two submissions", t, func() {
		s := repository.NewMemoryStore()
		So(s.CreateSubmission(ctx, model.Submission{ID: "s2", Title: "B", CreatedAt: t0.Add(time.Minute)}), ShouldBeNil)
		So(s.CreateSubmission(ctx, model.Submission{ID: "s1", Title: "A", CreatedAt: t0}), ShouldBeNil)

		Convey("Then a duplicate id conflicts", func() {
			So(errors.Is(s.CreateSubmission(ctx, model.Submission{ID: "s1"}), repository.ErrConflict), ShouldBeTrue)
		})

		Convey("Then submissions list oldest first", func() {
			subs, _ := s.ListSubmissions(ctx)
			So(subs[0].ID, ShouldEqual, "s1")
			So(subs[1].ID, ShouldEqual, "s2")
		})

		Convey("When a review targets an unknown submission", func() {
			_, err := s.UpsertReview(ctx, model.Review{SubmissionID: "nope", ReviewerID: "r"})
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When the same reviewer reviews twice", func() {
			_, _ = s.UpsertReview(ctx, model.Review{SubmissionID: "s1", ReviewerID: "r1", ScoreDepth: 1, CreatedAt: t0})
			_, _ = s.UpsertReview(ctx, model.Review{SubmissionID: "s1", ReviewerID: "r1", ScoreDepth: 5, CreatedAt: t0.Add(time.Hour)})
			_, _ = s.UpsertReview(ctx, model.Review{SubmissionID: "s2", ReviewerID: "r1"})
			_, _ = s.UpsertReview(ctx, model.Review{SubmissionID: "s1", ReviewerID: "r0"})

			Convey("Then there is one review per pair", func() {
				all, _ := s.ListReviews(ctx, model.ReviewFilter{})
				So(all, ShouldHaveLength, 3)
				r, err := s.GetReview(ctx, model.ReviewKey{SubmissionID: "s1", ReviewerID: "r1"})
				So(err, ShouldBeNil)
				So(r.ScoreDepth, ShouldEqual, 5)
				So(r.CreatedAt, ShouldEqual, t0)
			})

			Convey("Then filters narrow and order the list", func() {
				bySub, _ := s.ListReviews(ctx, model.ReviewFilter{SubmissionID: "s1"})
				So(bySub, ShouldHaveLength, 2)
				So(bySub[0].ReviewerID, ShouldEqual, "r0")
				byReviewer, _ := s.ListReviews(ctx, model.ReviewFilter{ReviewerID: "r1"})
				So(byReviewer, ShouldHaveLength, 2)
			})
		})

		Convey("When a submission is updated", func() {
			So(s.SetScreening(ctx, "s1", model.Screening{Suspected: true}), ShouldBeNil)
			So(s.UpdateSubmission(ctx, model.Submission{
				ID: "s1", Title: "A2", SpeakerID: "intruder", Status: model.StatusWithdrawn, Revision: 2, CreatedAt: t0.Add(time.Hour),
			}), ShouldBeNil)
			got, _ := s.GetSubmission(ctx, "s1")

			Convey("Then content changes but owner, creation time and verdict are kept", func() {
				So(got.Title, ShouldEqual, "A2")
				So(got.Status, ShouldEqual, model.StatusWithdrawn)
				So(got.Revision, ShouldEqual, 2)
				So(got.SpeakerID, ShouldBeEmpty)
				So(got.CreatedAt, ShouldEqual, t0)
				So(got.Screening, ShouldNotBeNil)
				So(errors.Is(s.UpdateSubmission(ctx, model.Submission{ID: "nope"}), repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When a screening verdict is set", func() {
			dups := []string{"s2"}
			So(s.SetScreening(ctx, "s1", model.Screening{Suspected: true, Duplicates: dups}), ShouldBeNil)
			dups[0] = "mutated"
			got, _ := s.GetSubmission(ctx, "s1")

			Convey("Then it is stored as a copy", func() {
				So(got.Screening.Suspected, ShouldBeTrue)
				So(got.Screening.Duplicates, ShouldResemble, []string{"s2"})
				got.Screening.Duplicates[0] = "again"
				again, _ := s.GetSubmission(ctx, "s1")
				So(again.Screening.Duplicates[0], ShouldEqual, "s2")
				So(errors.Is(s.SetScreening(ctx, "nope", model.Screening{}), repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestMemoryStore_Users(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store with one user", t, func() {
		s := repository.NewMemoryStore()
		So(s.CreateUser(ctx, user.User{ID: "u1", Email: " Ada@Example.com ", Role: user.RoleUser, Active: true, CreatedAt: t0}), ShouldBeNil)

		Convey("Then lookup by email ignores case and whitespace", func() {
			u, err := s.GetUserByEmail(ctx, "ada@example.COM")
			So(err, ShouldBeNil)
			So(u.ID, ShouldEqual, "u1")
			So(u.Email, ShouldEqual, "ada@example.com")
		})

		Convey("Then duplicate emails and ids conflict", func() {
			So(errors.Is(s.CreateUser(ctx, user.User{ID: "u2", Email: "ADA@example.com"}), repository.ErrConflict), ShouldBeTrue)
			So(errors.Is(s.CreateUser(ctx, user.User{ID: "u1", Email: "other@example.com"}), repository.ErrConflict), ShouldBeTrue)
		})

		Convey("When the user is updated without a new password", func() {
			orig, _ := s.GetUser(ctx, "u1")
			orig.PasswordHash = []byte("hash")
			So(s.UpdateUser(ctx, orig), ShouldBeNil)
			So(s.UpdateUser(ctx, user.User{ID: "u1", Name: "Ada", Role: user.RoleReviewer, Active: true}), ShouldBeNil)
			u, _ := s.GetUser(ctx, "u1")

			Convey("Then the role changes and the hash is kept", func() {
				So(u.Role, ShouldEqual, user.RoleReviewer)
				So(u.Name, ShouldEqual, "Ada")
				So(string(u.PasswordHash), ShouldEqual, "hash")
				So(u.Email, ShouldEqual, "ada@example.com")
				So(errors.Is(s.UpdateUser(ctx, user.User{ID: "ghost"}), repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestMemoryStore_Concurrency(t *testing.T) {
	Convey("Given concurrent upserts for one review pair", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore()
		So(s.CreateSubmission(ctx, model.Submission{ID: "s"}), ShouldBeNil)

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, _ = s.UpsertReview(ctx, model.Review{SubmissionID: "s", ReviewerID: "r", Notes: fmt.Sprint(i)})
				_, _ = s.UpsertVote(ctx, model.WeightVote{MemberID: fmt.Sprint(i % 5)})
			}(i)
		}
		wg.Wait()

		Convey("Then uniqueness holds", func() {
			reviews, _ := s.ListReviews(ctx, model.ReviewFilter{})
			votes, _ := s.ListVotes(ctx)
			So(reviews, ShouldHaveLength, 1)
			So(votes, ShouldHaveLength, 5)
			So(s.Close(), ShouldBeNil)
		})
	})
}
