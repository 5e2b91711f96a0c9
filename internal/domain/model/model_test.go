package model_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/okian/sailtrack/internal/domain/model"
	"github.com/paulmach/orb"
	"github.com/smartystreets/goconvey/convey"
)

func TestSnapshotID(t *testing.T) {
	convey.Convey("Given snapshot identifiers", t, func() {
		a := model.SnapshotID{Date: "20241110", Slot: "130400"}
		b := model.SnapshotID{Date: "20241111", Slot: "020000"}
		c := model.SnapshotID{Date: "20241111", Slot: "220000"}

		convey.Convey("Then they order by date then slot", func() {
			convey.So(a.Less(b), convey.ShouldBeTrue)
			convey.So(b.Less(c), convey.ShouldBeTrue)
			convey.So(c.Compare(c), convey.ShouldEqual, 0)
			convey.So(b.String(), convey.ShouldEqual, "20241111_020000")
		})

		convey.Convey("When parsing the string form", func() {
			id, err := model.ParseSnapshotID("20241111_220000")
			convey.So(err, convey.ShouldBeNil)
			convey.So(id, convey.ShouldResemble, c)

			_, err = model.ParseSnapshotID("20241111-220000")
			convey.So(errors.Is(err, model.ErrInvalidSnapshotID), convey.ShouldBeTrue)
			_, err = model.ParseSnapshotID("20241311_220000")
			convey.So(errors.Is(err, model.ErrInvalidSnapshotID), convey.ShouldBeTrue)
		})

		convey.Convey("When resolving the publication instant", func() {
			ts, err := b.Time(time.UTC)
			convey.So(err, convey.ShouldBeNil)
			convey.So(ts, convey.ShouldEqual, time.Date(2024, 11, 11, 2, 0, 0, 0, time.UTC))
		})
	})
}

func TestDatasetSorted(t *testing.T) {
	convey.Convey("Given records out of order", t, func() {
		t1 := time.Date(2024, 11, 11, 2, 0, 0, 0, time.UTC)
		t2 := t1.Add(4 * time.Hour)
		ds := model.Dataset{Records: []model.BoatRecord{
			{BoatCode: "FRA1", Timestamp: t2},
			{BoatCode: "FRA1", Row: 99},
			{BoatCode: "ALL", Timestamp: t1},
			{BoatCode: "FRA1", Timestamp: t1},
		}}

		sorted := ds.Sorted()

		convey.Convey("Then code then timestamp decide, missing timestamps last", func() {
			convey.So(sorted[0].BoatCode, convey.ShouldEqual, "ALL")
			convey.So(sorted[1].Timestamp, convey.ShouldEqual, t1)
			convey.So(sorted[2].Timestamp, convey.ShouldEqual, t2)
			convey.So(sorted[3].Row, convey.ShouldEqual, 99)
			convey.So(ds.Boats(), convey.ShouldEqual, 2)
		})
	})
}

func TestNumberJSON(t *testing.T) {
	convey.Convey("Given metric cells", t, func() {
		w := model.Window{Speed: model.Some(12.5)}
		raw, err := json.Marshal(w)

		convey.Convey("Then blank cells encode as null", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(raw), convey.ShouldEqual, `{"heading":null,"speed":12.5,"vmg":null,"distance":null}`)
			convey.So(w.Heading.Ptr(), convey.ShouldBeNil)
			convey.So(*w.Speed.Ptr(), convey.ShouldEqual, 12.5)
		})
	})
}

func TestTrajectoryGeometry(t *testing.T) {
	convey.Convey("Given trajectories", t, func() {
		one := model.Trajectory{Segments: []orb.LineString{{{1, 2}, {3, 4}}}}
		two := model.Trajectory{Segments: []orb.LineString{{{179, 0}}, {{-179, 0}}}}

		convey.Convey("Then one segment is a LineString and more is a MultiLineString", func() {
			convey.So(one.Geometry().GeoJSONType(), convey.ShouldEqual, "LineString")
			convey.So(two.Geometry().GeoJSONType(), convey.ShouldEqual, "MultiLineString")
		})
	})
}
