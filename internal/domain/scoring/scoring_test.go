package scoring_test

import (
	"testing"

	"github.com/okian/liveboard/internal/domain/model"
	scoring "github.com/okian/liveboard/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseDirection(t *testing.T) {
	Convey("Given scoring types", t, func() {
		Convey("When the type is time", func() {
			d, ok := scoring.ParseDirection("time")
			So(ok, ShouldBeTrue)
			So(d, ShouldEqual, scoring.LowerIsBetter)
			So(d.String(), ShouldEqual, "lower")
		})

		Convey("When the type is score in mixed case", func() {
			d, ok := scoring.ParseDirection(" Score ")
			So(ok, ShouldBeTrue)
			So(d, ShouldEqual, scoring.HigherIsBetter)
		})

		Convey("When the type is unknown", func() {
			d, ok := scoring.ParseDirection("distance")

			Convey("Then the explicit default is returned", func() {
				So(ok, ShouldBeFalse)
				So(d, ShouldEqual, scoring.DefaultDirection)
				So(d, ShouldEqual, scoring.HigherIsBetter)
			})
		})
	})
}

func TestRank(t *testing.T) {
	Convey("Given live ratings in storage order", t, func() {
		ratings := []model.Rating{
			{ID: 1, UserID: 100, Result: 50},
			{ID: 2, UserID: 200, Result: 80},
			{ID: 3, UserID: 300, Result: 50},
			{ID: 4, UserID: 400, Result: 10},
		}

		Convey("When higher is better", func() {
			got := scoring.Rank(ratings, scoring.HigherIsBetter)

			Convey("Then the largest result leads and ties keep storage order", func() {
				So(got, ShouldResemble, []scoring.Standing{
					{UserID: 200, Result: 80, Place: 1},
					{UserID: 100, Result: 50, Place: 2},
					{UserID: 300, Result: 50, Place: 3},
					{UserID: 400, Result: 10, Place: 4},
				})
			})
		})

		Convey("When lower is better", func() {
			got := scoring.Rank(ratings, scoring.LowerIsBetter)

			Convey("Then the smallest result leads and ties keep storage order", func() {
				So(got[0].UserID, ShouldEqual, 400)
				So(got[1].UserID, ShouldEqual, 100)
				So(got[2].UserID, ShouldEqual, 300)
				So(got[3].UserID, ShouldEqual, 200)
			})
		})

		Convey("When storage order is shuffled", func() {
			shuffled := []model.Rating{ratings[2], ratings[0], ratings[3], ratings[1]}
			got := scoring.Rank(shuffled, scoring.HigherIsBetter)

			Convey("Then the lower row id still wins the tie", func() {
				So(got[1].UserID, ShouldEqual, 100)
				So(got[2].UserID, ShouldEqual, 300)
			})

			Convey("And the input is not reordered", func() {
				So(shuffled[0].UserID, ShouldEqual, 300)
			})
		})

		Convey("When looking up a user", func() {
			got := scoring.Rank(ratings, scoring.HigherIsBetter)
			s, ok := scoring.Find(got, 300)
			_, missing := scoring.Find(got, 999)

			So(ok, ShouldBeTrue)
			So(s.Place, ShouldEqual, 3)
			So(missing, ShouldBeFalse)
		})

		Convey("When there are no ratings", func() {
			So(scoring.Rank(nil, scoring.HigherIsBetter), ShouldBeEmpty)
		})
	})
}
