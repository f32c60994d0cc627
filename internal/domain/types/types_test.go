package types_test

import (
	"encoding/json"
	"testing"
	"time"

	types "github.com/okian/cfpboard/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEntryJSON(t *testing.T) {
	Convey("Given a leaderboard entry", t, func() {
		entry := types.Entry{
			Rank:            1,
			SubmissionID:    "s-1",
			TotalScore:      48,
			ReviewCount:     1,
			NormalizedScore: 4,
			Band:            types.BandStrong,
			CreatedAt:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}

		Convey("When encoding it", func() {
			b, err := json.Marshal(entry)
			So(err, ShouldBeNil)
			var m map[string]any
			So(json.Unmarshal(b, &m), ShouldBeNil)

			Convey("Then it uses the camelCase API names", func() {
				So(m["submissionId"], ShouldEqual, "s-1")
				So(m["totalScore"], ShouldEqual, 48)
				So(m["reviewCount"], ShouldEqual, 1)
				So(m["band"], ShouldEqual, "strong")
				So(m, ShouldNotContainKey, "title")
			})
		})
	})
}
