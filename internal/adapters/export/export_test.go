package export_test

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/sailtrack/internal/adapters/export"
	"github.com/okian/sailtrack/internal/domain/model"
	"github.com/okian/sailtrack/internal/domain/trajectory"
	"github.com/okian/sailtrack/pkg/logger"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
	. "github.com/smartystreets/goconvey/convey"
)

func records() []model.BoatRecord {
	a := model.SnapshotID{Date: "20241111", Slot: "020000"}
	b := model.SnapshotID{Date: "20241111", Slot: "060000"}
	ts := func(h int) time.Time { return time.Date(2024, 11, 11, h, 0, 0, 0, time.UTC) }
	return []model.BoatRecord{
		{Snapshot: a, Rank: 1, BoatCode: "FRA 79", SkipperName: "Charlie Dalin", BoatName: "MACIF", Lat: 46.4, Lon: -1.9, Timestamp: ts(1), DistanceToFinish: model.Some(24000)},
		{Snapshot: b, Rank: 1, BoatCode: "FRA 79", SkipperName: "Charlie Dalin", BoatName: "MACIF", Lat: 46.1, Lon: -2.4, Timestamp: ts(5), Last24Hours: model.Window{Speed: model.Some(17.2)}},
		{Snapshot: b, Rank: 2, BoatCode: "GBR 99", SkipperName: "Sam Goodchild", BoatName: "Vulnerable", Lat: 46.2, Lon: -2.2},
	}
}

func openGPKG(path string) *sql.DB {
	db, err := sql.Open("sqlite", path)
	So(err, ShouldBeNil)
	return db
}

func TestWriteGeoPackage(t *testing.T) {
	_ = logger.Init()

	Convey("Given positions and trajectories", t, func() {
		ctx := context.Background()
		recs := records()
		latest := model.SnapshotTable{ID: recs[1].Snapshot, Records: recs[1:]}
		trajs := trajectory.Build(model.Dataset{Records: recs}, &latest)
		path := filepath.Join(t.TempDir(), "out", "data_20241111.gpkg")
		w := export.NewWriter()

		Convey("When both layers are written to one GeoPackage", func() {
			So(w.Write(ctx, export.PositionsLayer(recs), path, export.FormatGeoPackage, export.PositionsLayerName), ShouldBeNil)
			So(w.Write(ctx, export.TrajectoriesLayer(trajs), path, export.FormatGeoPackage, export.TrajectoriesLayerName), ShouldBeNil)

			db := openGPKG(path)
			defer db.Close()

			Convey("Then the file carries the GeoPackage identity", func() {
				var appID, version int64
				So(db.QueryRow("PRAGMA application_id").Scan(&appID), ShouldBeNil)
				So(db.QueryRow("PRAGMA user_version").Scan(&version), ShouldBeNil)
				So(appID, ShouldEqual, 1196444487)
				So(version, ShouldEqual, 10200)
			})

			Convey("Then both layers are registered with their geometry types", func() {
				got := map[string]string{}
				rows, err := db.Query("SELECT table_name, geometry_type_name FROM gpkg_geometry_columns")
				So(err, ShouldBeNil)
				for rows.Next() {
					var n, g string
					So(rows.Scan(&n, &g), ShouldBeNil)
					got[n] = g
				}
				So(rows.Close(), ShouldBeNil)
				So(got, ShouldResemble, map[string]string{"pointages": "POINT", "trajectoire": "LINESTRING"})

				var minX, maxY float64
				So(db.QueryRow("SELECT min_x, max_y FROM gpkg_contents WHERE table_name = 'pointages'").Scan(&minX, &maxY), ShouldBeNil)
				So(minX, ShouldAlmostEqual, -2.4)
				So(maxY, ShouldAlmostEqual, 46.4)
			})

			Convey("Then each position is one row with nullable attributes", func() {
				var n int
				So(db.QueryRow(`SELECT COUNT(*) FROM "pointages"`).Scan(&n), ShouldBeNil)
				So(n, ShouldEqual, 3)

				var dtf sql.NullFloat64
				var vit sql.NullFloat64
				So(db.QueryRow(`SELECT dtf, vitesse_24h FROM "pointages" WHERE code = 'GBR 99'`).Scan(&dtf, &vit), ShouldBeNil)
				So(dtf.Valid, ShouldBeFalse)
				So(vit.Valid, ShouldBeFalse)
			})

			Convey("Then geometry blobs decode to the record coordinates", func() {
				var blob []byte
				So(db.QueryRow(`SELECT geom FROM "pointages" WHERE code = 'GBR 99'`).Scan(&blob), ShouldBeNil)
				So(string(blob[:2]), ShouldEqual, "GP")
				So(blob[2], ShouldEqual, 0)
				So(blob[3], ShouldEqual, 0x03)
				So(binary.LittleEndian.Uint32(blob[4:8]), ShouldEqual, 4326)
				minX := math.Float64frombits(binary.LittleEndian.Uint64(blob[8:16]))
				So(minX, ShouldAlmostEqual, -2.2)

				g, err := wkb.Unmarshal(blob[40:])
				So(err, ShouldBeNil)
				So(g, ShouldResemble, orb.Point{-2.2, 46.2})
			})

			Convey("Then boats missing from the latest snapshot keep null latest attributes", func() {
				var rang sql.NullInt64
				var pts int
				So(db.QueryRow(`SELECT latest_rang, points FROM "trajectoire" WHERE code = 'FRA 79'`).Scan(&rang, &pts), ShouldBeNil)
				So(rang.Valid, ShouldBeTrue)
				So(rang.Int64, ShouldEqual, 1)
				So(pts, ShouldEqual, 2)
			})

			Convey("And when one layer is written again", func() {
				So(w.Write(ctx, export.PositionsLayer(recs[:1]), path, export.FormatGeoPackage, export.PositionsLayerName), ShouldBeNil)

				Convey("Then only that layer is replaced", func() {
					var p, tr int
					So(db.QueryRow(`SELECT COUNT(*) FROM "pointages"`).Scan(&p), ShouldBeNil)
					So(db.QueryRow(`SELECT COUNT(*) FROM "trajectoire"`).Scan(&tr), ShouldBeNil)
					So(p, ShouldEqual, 1)
					So(tr, ShouldEqual, 2)
				})
			})
		})

		Convey("When a layer name is not a plain identifier", func() {
			err := w.Write(ctx, export.PositionsLayer(recs), path, export.FormatGeoPackage, `x"; DROP TABLE gpkg_contents; --`)

			Convey("Then the export is refused", func() {
				So(errors.Is(err, export.ErrExport), ShouldBeTrue)
			})
		})

		Convey("When the target directory cannot be created", func() {
			blocker := filepath.Join(t.TempDir(), "file")
			So(os.WriteFile(blocker, []byte("x"), 0o600), ShouldBeNil)
			err := w.Write(ctx, export.PositionsLayer(recs), filepath.Join(blocker, "out.gpkg"), export.FormatGeoPackage, "pointages")

			Convey("Then an export failure is returned", func() {
				So(errors.Is(err, export.ErrExport), ShouldBeTrue)
			})
		})
	})
}

func TestWriteGeoJSON(t *testing.T) {
	_ = logger.Init()

	Convey("Given a trajectory that crosses the antimeridian", t, func() {
		ts := func(h int) time.Time { return time.Date(2024, 12, 20, h, 0, 0, 0, time.UTC) }
		recs := []model.BoatRecord{
			{BoatCode: "FRA 79", Lat: -50, Lon: 179, Timestamp: ts(1)},
			{BoatCode: "FRA 79", Lat: -50, Lon: -179, Timestamp: ts(5)},
		}
		trajs := trajectory.Build(model.Dataset{Records: recs}, nil)
		path := filepath.Join(t.TempDir(), "trajectoire.geojson")

		Convey("When it is written as GeoJSON", func() {
			err := export.NewWriter().Write(context.Background(), export.TrajectoriesLayer(trajs), path, export.FormatGeoJSON, "ignored")
			So(err, ShouldBeNil)

			data, err := os.ReadFile(path)
			So(err, ShouldBeNil)
			fc, err := geojson.UnmarshalFeatureCollection(data)

			Convey("Then it holds one multi-line feature with null latest attributes", func() {
				So(err, ShouldBeNil)
				So(len(fc.Features), ShouldEqual, 1)
				_, ok := fc.Features[0].Geometry.(orb.MultiLineString)
				So(ok, ShouldBeTrue)
				So(fc.Features[0].Properties["code"], ShouldEqual, "FRA 79")
				So(fc.Features[0].Properties["latest_rang"], ShouldBeNil)
				So(fc.Features[0].Properties["segments"], ShouldEqual, 2.0)
			})
		})
	})

	Convey("Given format names", t, func() {
		f, err := export.ParseFormat(" GPKG ")
		So(err, ShouldBeNil)
		So(f, ShouldEqual, export.FormatGeoPackage)
		So(f.Extension(), ShouldEqual, ".gpkg")

		_, err = export.ParseFormat("shp")
		So(errors.Is(err, export.ErrExport), ShouldBeTrue)
	})
}
