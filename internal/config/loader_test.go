package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/sailtrack/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		if k, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, "SAILTRACK_") {
			_ = os.Unsetenv(k)
		}
	}
}

func TestConfigLoader(t *testing.T) {
	clearConfigEnvVars()

	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.FetchTimeoutMS, convey.ShouldEqual, 30_000)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("SAILTRACK_ADDR", ":8080")
			_ = os.Setenv("SAILTRACK_WORKER_COUNT", "3")
			_ = os.Setenv("SAILTRACK_SLOTS", "000000, 120000")
			_ = os.Setenv("SAILTRACK_EXPORT_FORMATS", "GPKG,geojson")
			_ = os.Setenv("SAILTRACK_STRICT_NAMES", "true")
			_ = os.Setenv("SAILTRACK_NATS_URL", "nats://127.0.0.1:4222")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.Slots, convey.ShouldResemble, []string{"000000", "120000"})
				convey.So(cfg.ExportFormats, convey.ShouldResemble, []string{"gpkg", "geojson"})
				convey.So(cfg.StrictNames, convey.ShouldBeTrue)
				convey.So(cfg.NATSURL, convey.ShouldEqual, "nats://127.0.0.1:4222")
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			path := filepath.Join(t.TempDir(), "sailtrack.yaml")
			yaml := "addr: \":7000\"\n" +
				"data_dir: /var/cache/sailtrack\n" +
				"race_start: \"2028-11-05\"\n" +
				"first_day_date: \"\"\n" +
				"slots:\n  - \"040000\"\n  - \"160000\"\n" +
				"queue_size: 8\n"
			convey.So(os.WriteFile(path, []byte(yaml), 0o600), convey.ShouldBeNil)
			_ = os.Setenv("SAILTRACK_CONFIG", path)
			_ = os.Setenv("SAILTRACK_QUEUE_SIZE", "16")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values apply and env still wins", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7000")
				convey.So(cfg.DataDir, convey.ShouldEqual, "/var/cache/sailtrack")
				convey.So(cfg.Slots, convey.ShouldResemble, []string{"040000", "160000"})
				convey.So(cfg.QueueSize, convey.ShouldEqual, 16)

				cal, err := cfg.Calendar()
				convey.So(err, convey.ShouldBeNil)
				convey.So(cal.FirstDay.IsZero(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the config file is missing", func() {
			_, err := config.LoadFile(ctx, filepath.Join(t.TempDir(), "absent.yaml"))

			convey.Convey("Then loading fails", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the environment holds an invalid value", func() {
			_ = os.Setenv("SAILTRACK_EXPORT_FORMATS", "kml")
			defer clearConfigEnvVars()
			_, err := config.Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
