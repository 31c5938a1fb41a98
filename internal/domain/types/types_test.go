package types_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/okian/liveboard/internal/domain/model"
	types "github.com/okian/liveboard/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEntryJSON(t *testing.T) {
	Convey("Given an entry without a phone or rewards", t, func() {
		b, err := json.Marshal(types.Entry{UserID: 3, Result: 1.5, Place: 2})

		Convey("Then user_name and rewards should be null", func() {
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, `{"user_id":3,"result":1.5,"place":2,"rewards":null,"user_name":null}`)
		})
	})
}

func TestEventViewJSON(t *testing.T) {
	Convey("Given an event view", t, func() {
		start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		v := types.EventView{
			Event: model.Event{ID: 9, Name: "Sprint", ScoringType: "time", StartDate: start, EndDate: start.Add(time.Hour)},
			Prizes: []types.PrizeView{
				{Place: 1, Rewards: model.Rewards{"gold": 10}},
			},
		}

		b, err := json.Marshal(v)
		So(err, ShouldBeNil)

		var got map[string]any
		So(json.Unmarshal(b, &got), ShouldBeNil)

		Convey("Then event fields should be flattened next to prizes", func() {
			So(got["id"], ShouldEqual, float64(9))
			So(got["event_type"], ShouldEqual, "time")
			So(got["prizes"], ShouldHaveLength, 1)
			So(got["prizes"].([]any)[0].(map[string]any), ShouldNotContainKey, "phone")
		})

		Convey("Then dates use the start_date and end_date keys", func() {
			So(got["start_date"], ShouldEqual, "2026-01-01T00:00:00Z")
			So(got["end_date"], ShouldEqual, "2026-01-01T01:00:00Z")
			So(got, ShouldNotContainKey, "start_at")
			So(got, ShouldContainKey, "level_ids")
		})

		Convey("Then a winner phone is emitted as phone", func() {
			phone := "+7999***4567"
			v.Prizes[0].Phone = &phone
			b, err := json.Marshal(v)
			So(err, ShouldBeNil)
			So(string(b), ShouldContainSubstring, `"phone":"+7999***4567"`)
		})
	})
}
