package service_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"

	service "github.com/okian/cfpboard/internal/app"
	"github.com/okian/cfpboard/internal/auth"
	"github.com/okian/cfpboard/internal/domain/criteria"
	"github.com/okian/cfpboard/internal/domain/errs"
	"github.com/okian/cfpboard/internal/domain/model"
	"github.com/okian/cfpboard/internal/domain/types"
	"github.com/okian/cfpboard/internal/domain/user"
	"github.com/okian/cfpboard/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	user.BcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

var (
	base    = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	admin   = user.Caller{UserID: "admin-1", Role: user.RoleAdmin}
	rev1    = user.Caller{UserID: "rev-1", Role: user.RoleReviewer}
	rev2    = user.Caller{UserID: "rev-2", Role: user.RoleReviewer}
	speaker = user.Caller{UserID: "spk-1", Role: user.RoleUser}
	other   = user.Caller{UserID: "spk-2", Role: user.RoleUser}
)

// newService uses a ticking clock and sequential ids so ordering is predictable.
func newService(opts ...service.Option) *service.Service {
	tick, seq := base, 0
	defaults := []service.Option{
		service.WithClock(func() time.Time { tick = tick.Add(time.Minute); return tick }),
		service.WithIDGenerator(func() string { seq++; return fmt.Sprintf("id-%02d", seq) }),
	}
	return service.New(append(defaults, opts...)...)
}

func proposal(title string) model.SubmissionInput {
	return model.SubmissionInput{
		Title:     title,
		Abstract:  "How we run Go services at scale.",
		Takeaways: "Three patterns you can use tomorrow.",
		Level:     "intermediate",
		Format:    "talk",
	}
}

func uniform(v int) criteria.Scores { return criteria.Scores{v, v, v, v, v, v} }

func vote(v int) model.WeightVoteInput { return model.VoteInputFromScores(uniform(v)) }

func submit(ctx context.Context, svc *service.Service, title string) model.Submission {
	sub, err := svc.CreateSubmission(ctx, speaker, proposal(title))
	So(err, ShouldBeNil)
	return sub
}

func entryIDs(entries []types.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.SubmissionID
	}
	return out
}

func TestService_Scoring(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service with one submission", t, func() {
		svc := newService()
		sub := submit(ctx, svc, "Go at scale")

		Convey("When every vote is two and one reviewer gives fours", func() {
			_, err := svc.SubmitWeightVote(ctx, rev1, vote(2))
			So(err, ShouldBeNil)
			_, err = svc.SubmitReview(ctx, rev1, model.ReviewInputFromScores(sub.ID, uniform(4)))
			So(err, ShouldBeNil)
			board, err := svc.GetLeaderboard(ctx, admin, 0)

			Convey("Then the total is 48 and the band is strong", func() {
				So(err, ShouldBeNil)
				So(board, ShouldHaveLength, 1)
				So(board[0].TotalScore, ShouldEqual, 48)
				So(board[0].ReviewCount, ShouldEqual, 1)
				So(board[0].NormalizedScore, ShouldEqual, 4)
				So(board[0].Band, ShouldEqual, types.BandStrong)
				So(board[0].Rank, ShouldEqual, 1)
				So(board[0].Title, ShouldEqual, "Go at scale")
			})
		})

		Convey("When two reviewers give fives and ones without votes", func() {
			_, err := svc.SubmitReview(ctx, rev1, model.ReviewInputFromScores(sub.ID, uniform(5)))
			So(err, ShouldBeNil)
			_, err = svc.SubmitReview(ctx, rev2, model.ReviewInputFromScores(sub.ID, uniform(1)))
			So(err, ShouldBeNil)
			board, err := svc.GetLeaderboard(ctx, admin, 0)

			Convey("Then the mean of 30 and 6 is 18", func() {
				So(err, ShouldBeNil)
				So(board[0].TotalScore, ShouldEqual, 18)
				So(board[0].ReviewCount, ShouldEqual, 2)
			})
		})

		Convey("When a reviewer resubmits a review", func() {
			_, _ = svc.SubmitReview(ctx, rev1, model.ReviewInputFromScores(sub.ID, uniform(1)))
			first, _ := svc.GetOwnReview(ctx, rev1, sub.ID)
			_, err := svc.SubmitReview(ctx, rev1, model.ReviewInputFromScores(sub.ID, uniform(3)))
			So(err, ShouldBeNil)
			board, _ := svc.GetLeaderboard(ctx, admin, 0)
			second, _ := svc.GetOwnReview(ctx, rev1, sub.ID)

			Convey("Then only the latest counts and creation time is kept", func() {
				So(board[0].ReviewCount, ShouldEqual, 1)
				So(board[0].TotalScore, ShouldEqual, 18)
				So(second.CreatedAt, ShouldEqual, first.CreatedAt)
				So(second.UpdatedAt, ShouldHappenAfter, first.UpdatedAt)
			})
		})
	})
}

func TestService_Weights(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service without votes", t, func() {
		svc := newService()

		Convey("Then global weights default to one", func() {
			w, err := svc.GetGlobalWeights(ctx)
			So(err, ShouldBeNil)
			So(w, ShouldResemble, criteria.Default())
		})

		Convey("When a member votes twice and another once", func() {
			_, _ = svc.SubmitWeightVote(ctx, rev1, vote(2))
			_, err := svc.SubmitWeightVote(ctx, rev1, vote(6))
			So(err, ShouldBeNil)
			_, err = svc.SubmitWeightVote(ctx, admin, vote(4))
			So(err, ShouldBeNil)
			w, _ := svc.GetGlobalWeights(ctx)

			Convey("Then only the latest vote per member is averaged", func() {
				So(w.Relevance, ShouldEqual, 5)
				So(w.Engagement, ShouldEqual, 5)
				own, err := svc.GetOwnWeightVote(ctx, rev1)
				So(err, ShouldBeNil)
				So(own.Depth, ShouldEqual, 6)
			})

			Convey("Then an admin can delete a vote once", func() {
				So(svc.DeleteWeightVote(ctx, admin, "rev-1"), ShouldBeNil)
				So(errs.IsNotFound(svc.DeleteWeightVote(ctx, admin, "rev-1")), ShouldBeTrue)
				_, err := svc.GetOwnWeightVote(ctx, rev1)
				So(errs.IsNotFound(err), ShouldBeTrue)
				So(errs.IsAuthorization(svc.DeleteWeightVote(ctx, rev2, "admin-1")), ShouldBeTrue)
			})
		})

		Convey("When a vote is out of range or incomplete", func() {
			in := vote(3)
			seven := 7
			in.Clarity = &seven
			in.Depth = nil
			_, err := svc.SubmitWeightVote(ctx, rev1, in)

			Convey("Then each field is reported", func() {
				So(errs.IsValidation(err), ShouldBeTrue)
				var verr *errs.ValidationError
				So(errors.As(err, &verr), ShouldBeTrue)
				So(verr.FieldMap(), ShouldContainKey, "clarity")
				So(verr.FieldMap(), ShouldContainKey, "depth")
			})
		})
	})
}

func TestService_Authorization(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service with a submission", t, func() {
		svc := newService()
		sub := submit(ctx, svc, "Profiling Go")

		Convey("Then anonymous callers are unauthenticated", func() {
			_, err := svc.SubmitWeightVote(ctx, user.Caller{}, vote(3))
			var aerr *errs.AuthorizationError
			So(errors.As(err, &aerr), ShouldBeTrue)
			So(aerr.Unauthenticated, ShouldBeTrue)
		})

		Convey("Then plain users may not vote or review", func() {
			_, err := svc.SubmitWeightVote(ctx, speaker, vote(3))
			So(errs.IsAuthorization(err), ShouldBeTrue)
			_, err = svc.SubmitReview(ctx, speaker, model.ReviewInputFromScores(sub.ID, uniform(5)))
			So(errs.IsAuthorization(err), ShouldBeTrue)
		})

		Convey("Then reviewers may not see the leaderboard or all reviews", func() {
			_, err := svc.GetLeaderboard(ctx, rev1, 10)
			So(errs.IsAuthorization(err), ShouldBeTrue)
			_, err = svc.ListReviews(ctx, rev1, sub.ID)
			So(errs.IsAuthorization(err), ShouldBeTrue)
		})

		Convey("When a reviewer writes under another reviewer's id", func() {
			in := model.ReviewInputFromScores(sub.ID, uniform(2))
			in.ReviewerID = "rev-2"
			r, err := svc.SubmitReview(ctx, rev1, in)

			Convey("Then the review is stored under the caller", func() {
				So(err, ShouldBeNil)
				So(r.ReviewerID, ShouldEqual, "rev-1")
				_, err := svc.GetOwnReview(ctx, rev2, sub.ID)
				So(errs.IsNotFound(err), ShouldBeTrue)
			})
		})

		Convey("When an admin writes on behalf of a reviewer", func() {
			in := model.ReviewInputFromScores(sub.ID, uniform(2))
			in.ReviewerID = "rev-2"
			_, err := svc.SubmitReview(ctx, admin, in)
			So(err, ShouldBeNil)
			all, err := svc.ListReviews(ctx, admin, sub.ID)

			Convey("Then the requested reviewer id is kept", func() {
				So(err, ShouldBeNil)
				So(all, ShouldHaveLength, 1)
				So(all[0].ReviewerID, ShouldEqual, "rev-2")
			})
		})

		Convey("Then reviewing an unknown submission is not found", func() {
			_, err := svc.SubmitReview(ctx, rev1, model.ReviewInputFromScores("nope", uniform(2)))
			So(errs.IsNotFound(err), ShouldBeTrue)
			_, err = svc.ListReviews(ctx, admin, "nope")
			So(errs.IsNotFound(err), ShouldBeTrue)
		})

		Convey("Then out of range scores are rejected", func() {
			_, err := svc.SubmitReview(ctx, rev1, model.ReviewInputFromScores(sub.ID, uniform(6)))
			So(errs.IsValidation(err), ShouldBeTrue)
		})
	})
}

func TestService_Leaderboard(t *testing.T) {
	ctx := context.Background()

	Convey("Given submissions scored zero, tied and unreviewed", t, func() {
		svc := newService(service.WithMaxLeaderboardLimit(10))
		unreviewed := submit(ctx, svc, "Unreviewed")
		zero := submit(ctx, svc, "Zero")
		tiedOld := submit(ctx, svc, "Tied old")
		tiedNew := submit(ctx, svc, "Tied new")
		_, _ = svc.SubmitReview(ctx, rev1, model.ReviewInputFromScores(zero.ID, uniform(0)))
		_, _ = svc.SubmitReview(ctx, rev1, model.ReviewInputFromScores(tiedNew.ID, uniform(3)))
		_, _ = svc.SubmitReview(ctx, rev1, model.ReviewInputFromScores(tiedOld.ID, uniform(3)))

		Convey("When the leaderboard is computed", func() {
			board, err := svc.GetLeaderboard(ctx, admin, 0)

			Convey("Then ties go to the older submission and unreviewed sorts last", func() {
				So(err, ShouldBeNil)
				So(entryIDs(board), ShouldResemble, []string{tiedOld.ID, tiedNew.ID, zero.ID, unreviewed.ID})
				So(board[2].Band, ShouldEqual, types.BandWeak)
				So(board[3].Band, ShouldEqual, types.BandUnreviewed)
				for i := 1; i < len(board); i++ {
					So(board[i-1].TotalScore, ShouldBeGreaterThanOrEqualTo, board[i].TotalScore)
				}
			})
		})

		Convey("Then limits truncate and are bounded", func() {
			board, err := svc.GetLeaderboard(ctx, admin, 2)
			So(err, ShouldBeNil)
			So(board, ShouldHaveLength, 2)
			_, err = svc.GetLeaderboard(ctx, admin, 11)
			So(errs.IsValidation(err), ShouldBeTrue)
			_, err = svc.GetLeaderboard(ctx, admin, -1)
			So(errs.IsValidation(err), ShouldBeTrue)
		})
	})
}

func TestService_Submissions(t *testing.T) {
	ctx := context.Background()

	Convey("Given a submission by a speaker", t, func() {
		svc := newService()
		sub := submit(ctx, svc, "  Tracing with OpenTelemetry ")

		Convey("Then it is stored trimmed with an id and one revision", func() {
			So(sub.ID, ShouldEqual, "id-01")
			So(sub.Title, ShouldEqual, "Tracing with OpenTelemetry")
			So(sub.Revision, ShouldEqual, 1)
			So(sub.Status, ShouldEqual, model.StatusSubmitted)
		})

		Convey("Then reviewers see it without the speaker", func() {
			got, err := svc.GetSubmission(ctx, rev1, sub.ID)
			So(err, ShouldBeNil)
			So(got.SpeakerID, ShouldBeEmpty)
		})

		Convey("Then the owner and admins see the speaker", func() {
			got, err := svc.GetSubmission(ctx, speaker, sub.ID)
			So(err, ShouldBeNil)
			So(got.SpeakerID, ShouldEqual, "spk-1")
			got, err = svc.GetSubmission(ctx, admin, sub.ID)
			So(err, ShouldBeNil)
			So(got.SpeakerID, ShouldEqual, "spk-1")
		})

		Convey("Then other users are refused and see an empty list", func() {
			_, err := svc.GetSubmission(ctx, other, sub.ID)
			So(errs.IsAuthorization(err), ShouldBeTrue)
			list, err := svc.ListSubmissions(ctx, other)
			So(err, ShouldBeNil)
			So(list, ShouldBeEmpty)
			list, _ = svc.ListSubmissions(ctx, rev1)
			So(list, ShouldHaveLength, 1)
		})

		Convey("Then invalid proposals are rejected", func() {
			in := proposal("")
			in.Format = "keynote"
			_, err := svc.CreateSubmission(ctx, speaker, in)
			var verr *errs.ValidationError
			So(errors.As(err, &verr), ShouldBeTrue)
			So(verr.FieldMap(), ShouldContainKey, "title")
			So(verr.FieldMap(), ShouldContainKey, "format")
		})

		Convey("Then unknown ids are not found", func() {
			_, err := svc.GetSubmission(ctx, admin, "missing")
			So(errs.IsNotFound(err), ShouldBeTrue)
		})
	})
}

func TestService_Users(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service with a token issuer", t, func() {
		iss, err := auth.NewIssuer("0123456789abcdef0123456789abcdef")
		So(err, ShouldBeNil)
		svc := newService(service.WithIssuer(iss))
		in := user.NewUserInput{Email: " Ada@Example.com", Name: "Ada", Password: "correct-horse", Role: user.RoleAdmin}

		Convey("When a user registers", func() {
			u, err := svc.Register(ctx, in)
			So(err, ShouldBeNil)

			Convey("Then the role is forced to user and the email normalized", func() {
				So(u.Role, ShouldEqual, user.RoleUser)
				So(u.Email, ShouldEqual, "ada@example.com")
				So(u.Active, ShouldBeTrue)
			})

			Convey("Then login issues a token for that identity", func() {
				sess, err := svc.Login(ctx, "ada@example.com", "correct-horse")
				So(err, ShouldBeNil)
				c, err := iss.Parse(sess.Token)
				So(err, ShouldBeNil)
				So(c.UserID, ShouldEqual, u.ID)
			})

			Convey("Then a wrong password or unknown email is unauthenticated", func() {
				_, err := svc.Login(ctx, "ada@example.com", "wrong-horse")
				So(errs.IsAuthorization(err), ShouldBeTrue)
				_, err = svc.Login(ctx, "bob@example.com", "correct-horse")
				So(errs.IsAuthorization(err), ShouldBeTrue)
			})

			Convey("Then the same email cannot register twice", func() {
				_, err := svc.Register(ctx, in)
				var verr *errs.ValidationError
				So(errors.As(err, &verr), ShouldBeTrue)
				So(verr.FieldMap(), ShouldContainKey, "email")
			})

			Convey("When an admin promotes and then deactivates the user", func() {
				promoted, err := svc.SetRole(ctx, admin, u.ID, "Reviewer")
				So(err, ShouldBeNil)
				_, err = svc.DeactivateUser(ctx, admin, u.ID)
				So(err, ShouldBeNil)

				Convey("Then the role changed and login is refused", func() {
					So(promoted.Role, ShouldEqual, user.RoleReviewer)
					_, err := svc.Login(ctx, "ada@example.com", "correct-horse")
					So(errs.IsAuthorization(err), ShouldBeTrue)
					users, err := svc.ListUsers(ctx, admin)
					So(err, ShouldBeNil)
					So(users[0].Role, ShouldEqual, user.RoleReviewer)
					So(users[0].Active, ShouldBeFalse)
				})
			})
		})

		Convey("Then weak passwords are rejected", func() {
			weak := in
			weak.Password = "12345678"
			_, err := svc.Register(ctx, weak)
			So(errs.IsValidation(err), ShouldBeTrue)
		})

		Convey("Then admin operations are guarded", func() {
			_, err := svc.CreateUser(ctx, rev1, in)
			So(errs.IsAuthorization(err), ShouldBeTrue)
			_, err = svc.ListUsers(ctx, speaker)
			So(errs.IsAuthorization(err), ShouldBeTrue)
			_, err = svc.SetRole(ctx, admin, admin.UserID, "user")
			So(errs.IsValidation(err), ShouldBeTrue)
			_, err = svc.DeactivateUser(ctx, admin, admin.UserID)
			So(errs.IsValidation(err), ShouldBeTrue)
			_, err = svc.SetRole(ctx, admin, "ghost", "admin")
			So(errs.IsNotFound(err), ShouldBeTrue)
			_, err = svc.SetRole(ctx, admin, "ghost", "root")
			So(errs.IsValidation(err), ShouldBeTrue)
		})

		Convey("Then the system caller can create an admin", func() {
			u, err := svc.CreateUser(ctx, service.System, in)
			So(err, ShouldBeNil)
			So(u.Role, ShouldEqual, user.RoleAdmin)
		})
	})

	Convey("Login without an issuer fails", t, func() {
		_, err := newService().Login(ctx, "a@b.c", "whatever1")
		So(err, ShouldNotBeNil)
	})
}

func TestService_Stats(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service with some records", t, func() {
		svc := newService()
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()
		sub := submit(ctx, svc, "Stats")
		_, _ = svc.SubmitWeightVote(ctx, rev1, vote(3))
		_, _ = svc.SubmitReview(ctx, rev1, model.ReviewInputFromScores(sub.ID, uniform(3)))

		Convey("Then the counts are reported", func() {
			st, err := svc.GetStats(ctx)
			So(err, ShouldBeNil)
			So(st.Started, ShouldBeTrue)
			So(st.Submissions, ShouldEqual, 1)
			So(st.Reviews, ShouldEqual, 1)
			So(st.Votes, ShouldEqual, 1)
			So(st.ScreeningEnabled, ShouldBeFalse)
			So(st.QueueCapacity, ShouldEqual, 0)
		})
	})
}

func TestService_SubmissionLifecycle(t *testing.T) {
	ctx := context.Background()

	Convey("Given two reviewed submissions", t, func() {
		svc := newService()
		keep := submit(ctx, svc, "Keep me")
		drop := submit(ctx, svc, "Drop me")
		for _, id := range []string{keep.ID, drop.ID} {
			_, err := svc.SubmitReview(ctx, rev1, model.ReviewInputFromScores(id, uniform(3)))
			So(err, ShouldBeNil)
		}

		Convey("When the owner withdraws one", func() {
			got, err := svc.WithdrawSubmission(ctx, speaker, drop.ID)
			So(err, ShouldBeNil)
			again, errAgain := svc.WithdrawSubmission(ctx, speaker, drop.ID)
			board, errBoard := svc.GetLeaderboard(ctx, admin, 0)

			Convey("Then it leaves the leaderboard and stays readable", func() {
				So(got.Status, ShouldEqual, model.StatusWithdrawn)
				So(errAgain, ShouldBeNil)
				So(again.Status, ShouldEqual, model.StatusWithdrawn)
				So(errBoard, ShouldBeNil)
				So(entryIDs(board), ShouldResemble, []string{keep.ID})
				stored, err := svc.GetSubmission(ctx, admin, drop.ID)
				So(err, ShouldBeNil)
				So(stored.Status, ShouldEqual, model.StatusWithdrawn)
			})

			Convey("Then it can no longer be edited", func() {
				_, err := svc.UpdateSubmission(ctx, speaker, drop.ID, proposal("Back again"))
				So(errs.IsValidation(err), ShouldBeTrue)
			})
		})

		Convey("When someone else tries to change it", func() {
			_, errWithdraw := svc.WithdrawSubmission(ctx, other, keep.ID)
			_, errUpdate := svc.UpdateSubmission(ctx, rev1, keep.ID, proposal("Hijacked"))
			_, errMissing := svc.WithdrawSubmission(ctx, admin, "nope")

			Convey("Then only owners and admins may", func() {
				So(errs.IsAuthorization(errWithdraw), ShouldBeTrue)
				So(errs.IsAuthorization(errUpdate), ShouldBeTrue)
				So(errs.IsNotFound(errMissing), ShouldBeTrue)
				_, err := svc.WithdrawSubmission(ctx, admin, keep.ID)
				So(err, ShouldBeNil)
			})
		})

		Convey("When the owner edits it", func() {
			got, err := svc.UpdateSubmission(ctx, speaker, keep.ID, proposal("  Keep me, revised  "))
			board, _ := svc.GetLeaderboard(ctx, admin, 0)

			Convey("Then a new revision is stored and reviews still count", func() {
				So(err, ShouldBeNil)
				So(got.Title, ShouldEqual, "Keep me, revised")
				So(got.Revision, ShouldEqual, keep.Revision+1)
				So(got.CreatedAt.Equal(keep.CreatedAt), ShouldBeTrue)
				So(got.UpdatedAt.After(keep.UpdatedAt), ShouldBeTrue)
				So(board, ShouldHaveLength, 2)
			})

			Convey("Then invalid content is rejected", func() {
				in := proposal("x")
				in.Format = "keynote"
				_, err := svc.UpdateSubmission(ctx, speaker, keep.ID, in)
				So(errs.IsValidation(err), ShouldBeTrue)
			})
		})
	})
}
