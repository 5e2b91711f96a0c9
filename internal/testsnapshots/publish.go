package testsnapshots

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/okian/sailtrack/internal/adapters/cache"
	"github.com/okian/sailtrack/internal/domain/model"
	"github.com/okian/sailtrack/internal/domain/schedule"
	"github.com/okian/sailtrack/pkg/logger"
)

// Stats counts what a publication pass wrote.
type Stats struct {
	Written int
	Skipped int
}

// Publish writes one workbook per id into dir, named the way the remote host
// names them, so dir can stand in for the source base URL.
func (g *Generator) Publish(dir string, locator schedule.Locator, ids []model.SnapshotID) (Stats, error) {
	var st Stats
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return st, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	for _, id := range ids {
		data, err := g.Workbook(id)
		if err != nil {
			return st, fmt.Errorf("workbook %s: %w", id, err)
		}
		name := filepath.Base(schedule.Locator{URLTemplate: locator.URLTemplate}.URL(id))
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
			return st, fmt.Errorf("write %s: %w", name, err)
		}
		st.Written++
	}
	logger.Get().Debug(context.Background(), "published synthetic snapshots", logger.String("dir", dir), logger.Int("written", st.Written))
	return st, nil
}

// Seed writes workbooks straight into store at the locator's cache paths.
// Snapshots already cached are left alone.
func (g *Generator) Seed(store *cache.Store, locator schedule.Locator, ids []model.SnapshotID) (Stats, error) {
	var st Stats
	for _, id := range ids {
		data, err := g.Workbook(id)
		if err != nil {
			return st, fmt.Errorf("workbook %s: %w", id, err)
		}
		switch err := store.Put(locator.CachePath(id), data); {
		case errors.Is(err, cache.ErrExists):
			st.Skipped++
		case err != nil:
			return st, err
		default:
			st.Written++
		}
	}
	logger.Get().Debug(context.Background(), "seeded snapshot cache",
		logger.String("dir", store.Dir()),
		logger.Int("written", st.Written),
		logger.Int("skipped", st.Skipped),
	)
	return st, nil
}

// IDs crosses dates with slots in calendar order.
func IDs(dates, slots []string) []model.SnapshotID {
	out := make([]model.SnapshotID, 0, len(dates)*len(slots))
	for _, d := range dates {
		for _, s := range slots {
			out = append(out, model.SnapshotID{Date: d, Slot: s})
		}
	}
	return out
}
