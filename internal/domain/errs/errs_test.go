package errs_test

import (
	stderrors "errors"
	"testing"

	"github.com/okian/cfpboard/internal/domain/errs"
	. "github.com/smartystreets/goconvey/convey"
)

func TestErrorTaxonomy(t *testing.T) {
	Convey("Given the domain error constructors", t, func() {
		Convey("When a validation error carries fields", func() {
			err := errs.Validation("app.submit_vote",
				errs.FieldError{Field: "relevance", Message: "must be between 1 and 6"},
				errs.FieldError{Field: "depth", Message: "this field is required"},
			)

			Convey("Then the message lists every field", func() {
				So(err.Error(), ShouldContainSubstring, "relevance: must be between 1 and 6")
				So(err.Error(), ShouldContainSubstring, "depth: this field is required")
				So(err.FieldMap(), ShouldResemble, map[string]string{
					"relevance": "must be between 1 and 6",
					"depth":     "this field is required",
				})
			})

			Convey("And it survives wrapping", func() {
				wrapped := errs.Wrap(err, "api.put_vote")
				So(errs.IsValidation(wrapped), ShouldBeTrue)
				So(errs.IsAuthorization(wrapped), ShouldBeFalse)
				So(errs.Cause(wrapped), ShouldEqual, err)
			})
		})

		Convey("When a caller is forbidden or anonymous", func() {
			forbidden := errs.Forbidden("app.submit_vote", "reviewer role required")
			anon := errs.Unauthenticated("app.submit_vote")

			Convey("Then both are authorization errors", func() {
				So(errs.IsAuthorization(forbidden), ShouldBeTrue)
				So(errs.IsAuthorization(anon), ShouldBeTrue)
				So(forbidden.Unauthenticated, ShouldBeFalse)
				So(anon.Unauthenticated, ShouldBeTrue)
				So(forbidden.Error(), ShouldEqual, "app.submit_vote: not authorized: reviewer role required")
			})
		})

		Convey("When an id is unknown", func() {
			err := errs.NotFound("submission", "s-1")

			Convey("Then it reads naturally and matches", func() {
				So(err.Error(), ShouldEqual, `submission "s-1" not found`)
				So(errs.IsNotFound(errs.Wrap(err, "app.submit_review")), ShouldBeTrue)
				So(errs.IsNotFound(stderrors.New("not found")), ShouldBeFalse)
			})
		})
	})
}
