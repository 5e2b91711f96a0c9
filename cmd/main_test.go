package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/sailtrack/internal/domain/model"
	"github.com/okian/sailtrack/internal/domain/schedule"
	"github.com/okian/sailtrack/internal/testsnapshots"
	"github.com/okian/sailtrack/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestParseArgs(t *testing.T) {
	convey.Convey("Given command lines", t, func() {
		convey.Convey("When a snapshot is requested with its identifier", func() {
			cmd, opts, err := parseArgs([]string{"snapshot", "-date", "20241112", "-time", "140000", "-verbose", "-output-dir", "/tmp/x"}, io.Discard)

			convey.Convey("Then every flag is read", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cmd, convey.ShouldEqual, "snapshot")
				convey.So(opts.date, convey.ShouldEqual, "20241112")
				convey.So(opts.slot, convey.ShouldEqual, "140000")
				convey.So(opts.verbose, convey.ShouldBeTrue)
				convey.So(opts.outputDir, convey.ShouldEqual, "/tmp/x")
			})
		})

		convey.Convey("When snapshot lacks -time", func() {
			_, _, err := parseArgs([]string{"snapshot", "-date", "20241112"}, io.Discard)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When the command is unknown or missing", func() {
			_, _, err := parseArgs([]string{"publish"}, io.Discard)
			convey.So(err, convey.ShouldNotBeNil)
			_, _, err = parseArgs(nil, io.Discard)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When a flag belongs to another command", func() {
			_, _, err := parseArgs([]string{"sync", "-date", "20241112"}, io.Discard)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestRunExitCodes(t *testing.T) {
	convey.Convey("Given a replay directory holding one snapshot", t, func() {
		dir := t.TempDir()
		remote := filepath.Join(dir, "remote")
		id := model.SnapshotID{Date: "20241112", Slot: "140000"}
		gen := testsnapshots.NewGenerator(testsnapshots.NewFleet(4, 3), time.Date(2024, 11, 10, 13, 4, 0, 0, time.UTC))
		_, err := gen.Publish(remote, schedule.DefaultLocator(), []model.SnapshotID{id})
		convey.So(err, convey.ShouldBeNil)

		_ = os.Setenv("SAILTRACK_SOURCE_BASE_URL", remote+string(filepath.Separator))
		_ = os.Setenv("SAILTRACK_DATA_DIR", filepath.Join(dir, "cache"))
		defer func() {
			_ = os.Unsetenv("SAILTRACK_SOURCE_BASE_URL")
			_ = os.Unsetenv("SAILTRACK_DATA_DIR")
		}()
		out := filepath.Join(dir, "out")
		ctx := context.Background()

		convey.Convey("When that snapshot is exported", func() {
			code := run(ctx, []string{"snapshot", "-date", id.Date, "-time", id.Slot, "-output-dir", out}, io.Discard)

			convey.Convey("Then the classement file is written and the exit code is 0", func() {
				convey.So(code, convey.ShouldEqual, exitOK)
				_, err := os.Stat(filepath.Join(out, "classement_20241112_140000.gpkg"))
				convey.So(err, convey.ShouldBeNil)
				_, err = os.Stat(filepath.Join(dir, "cache", "data_20241112_140000.xlsx"))
				convey.So(err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a missing snapshot is exported", func() {
			code := run(ctx, []string{"snapshot", "-date", "20241112", "-time", "180000", "-output-dir", out}, io.Discard)
			convey.So(code, convey.ShouldEqual, exitFail)
		})

		convey.Convey("When the command line is wrong", func() {
			convey.So(run(ctx, []string{"snapshot"}, io.Discard), convey.ShouldEqual, exitUsage)
		})

		convey.Convey("When the configuration is invalid", func() {
			_ = os.Setenv("SAILTRACK_WORKER_COUNT", "0")
			defer func() { _ = os.Unsetenv("SAILTRACK_WORKER_COUNT") }()
			convey.So(run(ctx, []string{"snapshot", "-date", id.Date, "-time", id.Slot}, io.Discard), convey.ShouldEqual, exitFail)
		})
	})
}

func TestUpdateSystemMetrics(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		convey.So(updateSystemMetrics, convey.ShouldNotPanic)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
	})
}
