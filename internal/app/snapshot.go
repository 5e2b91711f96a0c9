package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/okian/sailtrack/internal/adapters/export"
	"github.com/okian/sailtrack/internal/domain/model"
	"github.com/okian/sailtrack/pkg/logger"
)

// Snapshot fetches one snapshot, unless cached, and exports its positions to
// classement_<date>_<slot>. Any failure is returned.
func (s *Service) Snapshot(ctx context.Context, id model.SnapshotID) (SnapshotReport, error) {
	report := SnapshotReport{ID: id}
	if err := id.Validate(); err != nil {
		return report, err
	}
	log := s.logger.With(logger.String("snapshot", id.String()))

	job := s.planner.Locator().Job(id)
	res := s.pool.Run(ctx, []model.FetchJob{job})[0]
	report.Status = res.Status
	if res.Status == model.FetchFailed {
		return report, fmt.Errorf("%w: %s: %w", ErrFetch, id, res.Err)
	}

	table, err := s.load(ctx, log, job)
	if err != nil {
		return report, fmt.Errorf("snapshot %s: %w", id, err)
	}
	report.Records = len(table.Records)
	report.Rejected = len(table.Rejected)
	report.Retired = table.Retired
	if err := s.keep(ctx, table); err != nil {
		return report, err
	}
	if err := s.archiveTable(ctx, log, table); err != nil {
		report.ArchiveFailed = true
	}

	layer := export.PositionsLayer(table.Records)
	base := filepath.Join(s.outputDir, "classement_"+id.Date+"_"+id.Slot)
	for _, f := range s.formats {
		path := base + f.Extension()
		if err := s.writer.Write(ctx, layer, path, f, layer.Name); err != nil {
			return report, err
		}
		report.Outputs = append(report.Outputs, path)
	}
	log.Info(ctx, "snapshot exported",
		logger.Int("records", report.Records),
		logger.Int("rejected", report.Rejected),
		logger.String("fetch", string(report.Status)),
	)
	return report, nil
}

// Latest exports the most recent snapshot published at now.
func (s *Service) Latest(ctx context.Context, now time.Time) (SnapshotReport, error) {
	return s.Snapshot(ctx, s.resolver.LatestSnapshot(now))
}
