package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/sailtrack/internal/config"
	"github.com/okian/sailtrack/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should describe the 2024 race", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.DataDir, convey.ShouldEqual, ".data")
			convey.So(cfg.Slots, convey.ShouldResemble, []string{"020000", "060000", "100000", "140000", "180000", "220000"})
			convey.So(cfg.ExportFormats, convey.ShouldResemble, []string{"gpkg"})
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the derived calendar matches the defaults", func() {
			cal, err := cfg.Calendar()
			convey.So(err, convey.ShouldBeNil)
			convey.So(cal.RaceStart.Format("2006-01-02"), convey.ShouldEqual, "2024-11-11")
			convey.So(cal.RaceStart.Location().String(), convey.ShouldEqual, "Europe/Paris")
			convey.So(cal.FirstDay, convey.ShouldResemble, model.SnapshotID{Date: "20241110", Slot: "130400"})
			convey.So(cal.PublicationLag, convey.ShouldEqual, time.Hour)
		})

		convey.Convey("Then the locator points at the cache directory", func() {
			l := cfg.Locator()
			convey.So(l.CachePath(model.SnapshotID{Date: "20241111", Slot: "020000"}), convey.ShouldEqual, ".data/data_20241111_020000.xlsx")
			convey.So(cfg.FetchTimeout(), convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.RefreshInterval(), convey.ShouldEqual, 30*time.Minute)
		})
	})

	convey.Convey("Given invalid settings", t, func() {
		cases := map[string]func(*config.Config){
			"unknown timezone":  func(c *config.Config) { c.Timezone = "Mars/Olympus" },
			"malformed slot":    func(c *config.Config) { c.Slots = []string{"2h"} },
			"unsorted slots":    func(c *config.Config) { c.Slots = []string{"060000", "020000"} },
			"unknown format":    func(c *config.Config) { c.ExportFormats = []string{"shp"} },
			"no workers":        func(c *config.Config) { c.WorkerCount = 0 },
			"bad race start":    func(c *config.Config) { c.RaceStart = "11/11/2024" },
			"bad log level":     func(c *config.Config) { c.LogLevel = "loud" },
			"bad clickhouse":    func(c *config.Config) { c.ClickHouseAddr = "no-port" },
			"negative interval": func(c *config.Config) { c.RefreshIntervalMinutes = -1 },
		}
		for name, mutate := range cases {
			cfg := config.New(context.Background())
			mutate(cfg)

			convey.Convey("Then "+name+" is rejected", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}

		convey.Convey("Then calendar problems are reported as such", func() {
			cfg := config.New(context.Background())
			cfg.Slots = []string{"060000", "020000"}
			_, err := cfg.Calendar()
			convey.So(errors.Is(err, config.ErrInvalidCalendar), convey.ShouldBeTrue)
		})
	})
}
