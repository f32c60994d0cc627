package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"

	"github.com/okian/cfpboard/internal/adapters/http/api"
	"github.com/okian/cfpboard/internal/adapters/repository"
	service "github.com/okian/cfpboard/internal/app"
	"github.com/okian/cfpboard/internal/auth"
	"github.com/okian/cfpboard/internal/domain/model"
	"github.com/okian/cfpboard/internal/domain/types"
	"github.com/okian/cfpboard/internal/domain/user"
	"github.com/okian/cfpboard/pkg/logger"
)

const secret = "an-http-test-secret-of-32-bytes!!"

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	user.BcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type fixture struct {
	handler http.Handler
	svc     *service.Service
	tokens  map[string]string
	ids     map[string]string
}

func newFixture() *fixture {
	store := repository.NewMemoryStore()
	issuer, err := auth.NewIssuer(secret, auth.WithUserLookup(store))
	convey.So(err, convey.ShouldBeNil)
	svc := service.New(service.WithStore(store), service.WithIssuer(issuer))

	mux := http.NewServeMux()
	api.NewServer(svc).Register(context.Background(), mux)

	f := &fixture{handler: issuer.Middleware(mux), svc: svc, tokens: map[string]string{}, ids: map[string]string{}}
	for name, role := range map[string]user.Role{"admin": user.RoleAdmin, "rev": user.RoleReviewer, "spk": user.RoleUser} {
		u, err := svc.CreateUser(context.Background(), service.System, user.NewUserInput{
			Email: name + "@example.com", Name: name, Password: "correct-horse", Role: role,
		})
		convey.So(err, convey.ShouldBeNil)
		tok, _, err := issuer.Issue(u)
		convey.So(err, convey.ShouldBeNil)
		f.tokens[name] = tok
		f.ids[name] = u.ID
	}
	return f
}

func (f *fixture) do(who, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		convey.So(json.NewEncoder(&buf).Encode(b), convey.ShouldBeNil)
	}
	req := httptest.NewRequest(method, path, &buf)
	if tok, ok := f.tokens[who]; ok {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	convey.So(json.Unmarshal(w.Body.Bytes(), &v), convey.ShouldBeNil)
	return v
}

type errBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

var proposal = map[string]string{
	"title":     "Go at scale",
	"abstract":  "How we run Go services.",
	"takeaways": "Three patterns.",
	"level":     "intermediate",
	"format":    "talk",
}

func scores(v int) map[string]int {
	return map[string]int{
		"scoreRelevance": v, "scoreOriginality": v, "scoreDepth": v,
		"scoreClarity": v, "scoreTakeaways": v, "scoreEngagement": v,
	}
}

func TestAPI_Auth(t *testing.T) {
	convey.Convey("Given the API", t, func() {
		f := newFixture()

		convey.Convey("When a speaker registers and logs in", func() {
			w := f.do("", http.MethodPost, "/auth/register", map[string]string{
				"email": "new@example.com", "name": "New", "password": "correct-horse", "role": "admin",
			})
			convey.So(w.Code, convey.ShouldEqual, http.StatusCreated)
			u := decode[user.User](w)

			login := f.do("", http.MethodPost, "/auth/login", map[string]string{"email": "NEW@example.com", "password": "correct-horse"})

			convey.Convey("Then the account is a plain user and the session carries a token", func() {
				convey.So(u.Role, convey.ShouldEqual, user.RoleUser)
				convey.So(w.Body.String(), convey.ShouldNotContainSubstring, "password")
				convey.So(login.Code, convey.ShouldEqual, http.StatusOK)
				sess := decode[service.Session](login)
				convey.So(sess.Token, convey.ShouldNotBeEmpty)
				convey.So(sess.User.Email, convey.ShouldEqual, "new@example.com")
			})
		})

		convey.Convey("When the password is wrong", func() {
			w := f.do("", http.MethodPost, "/auth/login", map[string]string{"email": "spk@example.com", "password": "nope-nope-nope"})

			convey.Convey("Then it is 401", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusUnauthorized)
				convey.So(decode[errBody](w).Code, convey.ShouldEqual, "unauthenticated")
			})
		})

		convey.Convey("When the body has unknown fields or trailing data", func() {
			unknown := f.do("", http.MethodPost, "/auth/login", `{"email":"a@b.c","password":"x","extra":1}`)
			trailing := f.do("", http.MethodPost, "/auth/login", `{"email":"a@b.c","password":"x"} {}`)
			huge := f.do("", http.MethodPost, "/auth/login", `{"email":"`+strings.Repeat("a", 2<<20)+`"}`)

			convey.Convey("Then the request is rejected before the service", func() {
				convey.So(unknown.Code, convey.ShouldEqual, http.StatusBadRequest)
				convey.So(trailing.Code, convey.ShouldEqual, http.StatusBadRequest)
				convey.So(huge.Code, convey.ShouldEqual, http.StatusRequestEntityTooLarge)
			})
		})

		convey.Convey("When a token is garbage", func() {
			f.tokens["bad"] = "not-a-jwt"
			w := f.do("bad", http.MethodGet, "/weights", nil)

			convey.Convey("Then it is 401", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusUnauthorized)
			})
		})
	})
}

func TestAPI_ReviewFlow(t *testing.T) {
	convey.Convey("Given a submission from a speaker", t, func() {
		f := newFixture()
		w := f.do("spk", http.MethodPost, "/submissions", proposal)
		convey.So(w.Code, convey.ShouldEqual, http.StatusCreated)
		subID := decode[map[string]any](w)["id"].(string)

		convey.Convey("When the reviewer votes and reviews", func() {
			vote := f.do("rev", http.MethodPut, "/weights/vote", map[string]int{
				"relevance": 2, "originality": 2, "depth": 2, "clarity": 2, "takeaways": 2, "engagement": 2,
			})
			body := scores(4)
			rev := f.do("rev", http.MethodPut, "/submissions/"+subID+"/review", body)

			convey.Convey("Then the admin leaderboard shows 48 and a strong band", func() {
				convey.So(vote.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(rev.Code, convey.ShouldEqual, http.StatusOK)

				lb := f.do("admin", http.MethodGet, "/leaderboard?limit=10", nil)
				convey.So(lb.Code, convey.ShouldEqual, http.StatusOK)
				entries := decode[[]types.Entry](lb)
				convey.So(entries, convey.ShouldHaveLength, 1)
				convey.So(entries[0].TotalScore, convey.ShouldEqual, 48)
				convey.So(entries[0].Band, convey.ShouldEqual, types.BandStrong)
			})

			convey.Convey("Then the reviewer reads back only their review", func() {
				own := f.do("rev", http.MethodGet, "/submissions/"+subID+"/review", nil)
				convey.So(own.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(decode[map[string]any](own)["reviewerId"], convey.ShouldEqual, f.ids["rev"])

				all := f.do("rev", http.MethodGet, "/submissions/"+subID+"/reviews", nil)
				convey.So(all.Code, convey.ShouldEqual, http.StatusForbidden)
				convey.So(f.do("admin", http.MethodGet, "/submissions/"+subID+"/reviews", nil).Code, convey.ShouldEqual, http.StatusOK)
			})

			convey.Convey("Then the reviewer sees the submission without the speaker", func() {
				got := decode[map[string]any](f.do("rev", http.MethodGet, "/submissions/"+subID, nil))
				convey.So(got, convey.ShouldNotContainKey, "speakerId")
			})
		})

		convey.Convey("When a score is out of range", func() {
			body := scores(4)
			body["scoreDepth"] = 9
			w := f.do("rev", http.MethodPut, "/submissions/"+subID+"/review", body)

			convey.Convey("Then it is 400 with the field named", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusBadRequest)
				e := decode[errBody](w)
				convey.So(e.Code, convey.ShouldEqual, "validation_failed")
				convey.So(e.Fields, convey.ShouldContainKey, "scoreDepth")
			})
		})

		convey.Convey("When the submission is unknown", func() {
			w := f.do("rev", http.MethodPut, "/submissions/missing/review", scores(3))

			convey.Convey("Then it is 404", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestAPI_Authorization(t *testing.T) {
	convey.Convey("Given the API", t, func() {
		f := newFixture()

		convey.Convey("Then anonymous callers only reach public routes", func() {
			convey.So(f.do("", http.MethodGet, "/healthz", nil).Code, convey.ShouldEqual, http.StatusOK)
			convey.So(f.do("", http.MethodGet, "/stats", nil).Code, convey.ShouldEqual, http.StatusOK)
			convey.So(f.do("", http.MethodGet, "/weights", nil).Code, convey.ShouldEqual, http.StatusUnauthorized)
			convey.So(f.do("", http.MethodGet, "/leaderboard", nil).Code, convey.ShouldEqual, http.StatusUnauthorized)
		})

		convey.Convey("Then speakers cannot vote, review or rank", func() {
			convey.So(f.do("spk", http.MethodPut, "/weights/vote", map[string]int{}).Code, convey.ShouldEqual, http.StatusForbidden)
			convey.So(f.do("spk", http.MethodPut, "/submissions/x/review", scores(1)).Code, convey.ShouldEqual, http.StatusForbidden)
			convey.So(f.do("rev", http.MethodGet, "/leaderboard", nil).Code, convey.ShouldEqual, http.StatusForbidden)
			convey.So(f.do("rev", http.MethodGet, "/admin/users", nil).Code, convey.ShouldEqual, http.StatusForbidden)
		})

		convey.Convey("Then the leaderboard limit is checked", func() {
			convey.So(f.do("admin", http.MethodGet, "/leaderboard?limit=abc", nil).Code, convey.ShouldEqual, http.StatusBadRequest)
			convey.So(f.do("admin", http.MethodGet, "/leaderboard?limit=-1", nil).Code, convey.ShouldEqual, http.StatusBadRequest)
			convey.So(f.do("admin", http.MethodGet, "/leaderboard?limit=100000", nil).Code, convey.ShouldEqual, http.StatusBadRequest)
			convey.So(f.do("admin", http.MethodGet, "/leaderboard", nil).Body.String(), convey.ShouldStartWith, "[]")
		})
	})
}

func TestAPI_AdminUsers(t *testing.T) {
	convey.Convey("Given an admin", t, func() {
		f := newFixture()

		convey.Convey("When the admin promotes the speaker", func() {
			w := f.do("admin", http.MethodPatch, "/admin/users/"+f.ids["spk"]+"/role", map[string]string{"role": "reviewer"})

			convey.Convey("Then the existing token picks up the new role", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(decode[user.User](w).Role, convey.ShouldEqual, user.RoleReviewer)
				convey.So(f.do("spk", http.MethodGet, "/weights/vote", nil).Code, convey.ShouldNotEqual, http.StatusForbidden)
			})
		})

		convey.Convey("When the admin deactivates the reviewer", func() {
			w := f.do("admin", http.MethodDelete, "/admin/users/"+f.ids["rev"], nil)

			convey.Convey("Then the reviewer's token stops working", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(f.do("rev", http.MethodGet, "/weights", nil).Code, convey.ShouldEqual, http.StatusUnauthorized)
			})
		})

		convey.Convey("When the admin creates and lists users", func() {
			w := f.do("admin", http.MethodPost, "/admin/users", map[string]string{
				"email": "pc@example.com", "name": "PC", "password": "correct-horse", "role": "reviewer",
			})
			list := f.do("admin", http.MethodGet, "/admin/users", nil)

			convey.Convey("Then the new account is listed", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusCreated)
				convey.So(decode[[]user.User](list), convey.ShouldHaveLength, 4)
			})
		})

		convey.Convey("When a role is unknown", func() {
			w := f.do("admin", http.MethodPatch, "/admin/users/"+f.ids["spk"]+"/role", map[string]string{"role": "chair"})

			convey.Convey("Then it is 400", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusBadRequest)
			})
		})

		convey.Convey("When the admin deletes a weight vote", func() {
			f.do("rev", http.MethodPut, "/weights/vote", map[string]int{
				"relevance": 5, "originality": 5, "depth": 5, "clarity": 5, "takeaways": 5, "engagement": 5,
			})
			w := f.do("admin", http.MethodDelete, "/weights/vote/"+f.ids["rev"], nil)
			again := f.do("admin", http.MethodDelete, "/weights/vote/"+f.ids["rev"], nil)

			convey.Convey("Then it is gone", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusNoContent)
				convey.So(again.Code, convey.ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestAPI_SubmissionChanges(t *testing.T) {
	convey.Convey("Given a reviewed submission", t, func() {
		f := newFixture()
		created := decode[model.Submission](f.do("spk", http.MethodPost, "/submissions", proposal))
		review := scores(4)
		convey.So(f.do("rev", http.MethodPut, "/submissions/"+created.ID+"/review", review).Code, convey.ShouldEqual, http.StatusOK)

		convey.Convey("When the owner edits it", func() {
			edit := map[string]string{}
			for k, v := range proposal {
				edit[k] = v
			}
			edit["title"] = "Go at scale, revised"
			w := f.do("spk", http.MethodPut, "/submissions/"+created.ID, edit)

			convey.Convey("Then a new revision is returned", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				got := decode[model.Submission](w)
				convey.So(got.Title, convey.ShouldEqual, "Go at scale, revised")
				convey.So(got.Revision, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When a reviewer tries to withdraw it", func() {
			w := f.do("rev", http.MethodPost, "/submissions/"+created.ID+"/withdraw", nil)

			convey.Convey("Then it is forbidden", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusForbidden)
			})
		})

		convey.Convey("When the owner withdraws it", func() {
			w := f.do("spk", http.MethodPost, "/submissions/"+created.ID+"/withdraw", nil)
			board := f.do("admin", http.MethodGet, "/leaderboard", nil)
			edit := f.do("spk", http.MethodPut, "/submissions/"+created.ID, proposal)

			convey.Convey("Then it leaves the leaderboard and edits are refused", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(decode[model.Submission](w).Status, convey.ShouldEqual, model.StatusWithdrawn)
				convey.So(board.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(board.Body.String(), convey.ShouldNotContainSubstring, created.ID)
				convey.So(edit.Code, convey.ShouldEqual, http.StatusBadRequest)
				convey.So(decode[errBody](edit).Fields, convey.ShouldContainKey, "status")
			})
		})
	})
}
