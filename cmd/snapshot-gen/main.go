// Command snapshot-gen writes synthetic leaderboard workbooks for offline runs.
package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/okian/sailtrack/internal/adapters/cache"
	"github.com/okian/sailtrack/internal/config"
	"github.com/okian/sailtrack/internal/domain/model"
	"github.com/okian/sailtrack/internal/domain/schedule"
	"github.com/okian/sailtrack/internal/testsnapshots"
	"github.com/okian/sailtrack/pkg/logger"
)

const (
	defaultBoats = 12
	defaultSeed  = 2024
	defaultDays  = 3
)

func main() {
	var (
		boats   = flag.Int("boats", defaultBoats, "number of boats in the fleet")
		seed    = flag.Uint64("seed", defaultSeed, "fleet seed")
		days    = flag.Int("days", defaultDays, "number of race days to generate from race_start")
		mode    = flag.String("mode", "cache", "cache: seed the snapshot cache; source: write remote-named files for source_base_url")
		out     = flag.String("out", "", "target directory (default: data_dir for cache, ./replay for source)")
		retired = flag.String("retired", "", "comma-separated boat codes marked RET")
		broken  = flag.String("malformed", "", "comma-separated boat codes with an unreadable latitude")
		verbose = flag.Bool("verbose", false, "debug logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}
	log := logger.Named("snapshot-gen")
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal(ctx, "failed to load config", logger.Error(err))
	}
	cal, err := cfg.Calendar()
	if err != nil {
		log.Fatal(ctx, "invalid calendar", logger.Error(err))
	}

	ids := plan(cal, *days)
	gen := testsnapshots.NewGenerator(
		testsnapshots.NewFleet(*boats, *seed),
		departure(cal),
		testsnapshots.WithRetired(split(*retired)...),
		testsnapshots.WithMalformedPosition(split(*broken)...),
	)

	locator := cfg.Locator()
	var st testsnapshots.Stats
	switch *mode {
	case "cache":
		if *out != "" {
			locator.CacheDir = *out
		}
		st, err = gen.Seed(cache.New(locator.CacheDir), locator, ids)
	case "source":
		dir := *out
		if dir == "" {
			dir = "replay"
		}
		st, err = gen.Publish(dir, locator, ids)
	default:
		log.Fatal(ctx, "unknown mode", logger.String("mode", *mode))
	}
	if err != nil {
		log.Fatal(ctx, "generation failed", logger.Error(err))
	}
	log.Info(ctx, "snapshots generated",
		logger.String("mode", *mode),
		logger.Int("snapshots", len(ids)),
		logger.Int("written", st.Written),
		logger.Int("skipped", st.Skipped),
	)
}

// plan lists the first-day snapshot and every slot of the first days.
func plan(cal schedule.Calendar, days int) []model.SnapshotID {
	var ids []model.SnapshotID
	if !cal.FirstDay.IsZero() {
		ids = append(ids, cal.FirstDay)
	}
	dates := make([]string, 0, days)
	for d := 0; d < days; d++ {
		dates = append(dates, model.FormatDate(cal.RaceStart.AddDate(0, 0, d)))
	}
	return append(ids, testsnapshots.IDs(dates, cal.Slots)...)
}

// departure is the first-day snapshot time, or the race start.
func departure(cal schedule.Calendar) time.Time {
	if t, err := cal.FirstDay.Time(cal.Location); err == nil {
		return t
	}
	return cal.RaceStart
}

func split(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
