package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/okian/sailtrack/internal/adapters/cache"
	"github.com/okian/sailtrack/internal/adapters/export"
	"github.com/okian/sailtrack/internal/adapters/notify"
	"github.com/okian/sailtrack/internal/adapters/xlsx"
	"github.com/okian/sailtrack/internal/domain/coord"
	"github.com/okian/sailtrack/internal/domain/model"
	"github.com/okian/sailtrack/internal/domain/snapshot"
	"github.com/okian/sailtrack/internal/domain/trajectory"
	"github.com/okian/sailtrack/pkg/logger"
	"github.com/okian/sailtrack/pkg/metrics"
)

// Sync downloads every snapshot published by now that is not cached yet.
// Individual failures are counted, never returned.
func (s *Service) Sync(ctx context.Context, now time.Time) (FetchSummary, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	sum, _ := s.sync(ctx, s.logger, now)
	return sum, ctx.Err()
}

// sync returns the fetch summary and the due plan.
func (s *Service) sync(ctx context.Context, log logger.Logger, now time.Time) (FetchSummary, []model.FetchJob) {
	plan := s.planner.Due(s.planner.PlanAt(now), now)
	missing := s.planner.ResolveMissing(plan)
	sum := FetchSummary{Planned: len(plan), Missing: len(missing)}

	for _, r := range s.pool.Run(ctx, missing) {
		sum.add(r)
		if r.Status == model.FetchFailed {
			log.Debug(ctx, "snapshot skipped",
				logger.String("snapshot", r.Job.ID.String()),
				logger.String("url", r.Job.URL),
				logger.Error(r.Err),
			)
		}
	}
	log.Info(ctx, "fetch finished",
		logger.Int("planned", sum.Planned),
		logger.Int("missing", sum.Missing),
		logger.Int("fetched", sum.Fetched),
		logger.Int("failed", sum.Failed),
	)
	return sum, plan
}

// TryRun is Run, except that it fails with ErrRunInProgress instead of
// waiting for a run already under way.
func (s *Service) TryRun(ctx context.Context, now time.Time) (RunReport, error) {
	if !s.runMu.TryLock() {
		return RunReport{}, ErrRunInProgress
	}
	defer s.runMu.Unlock()
	return s.run(ctx, now)
}

// Run fetches what is missing, parses every cached snapshot published by
// now, and exports positions and trajectories to data_<latest date>.
// It fails with ErrNoSnapshots only when nothing could be parsed.
func (s *Service) Run(ctx context.Context, now time.Time) (RunReport, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.run(ctx, now)
}

func (s *Service) run(ctx context.Context, now time.Time) (RunReport, error) {
	s.running.Store(true)
	defer s.running.Store(false)
	s.runs.Add(1)

	report := RunReport{RunID: uuid.NewString(), Now: now, StartedAt: time.Now()}
	log := s.logger.With(logger.String("run_id", report.RunID))
	log.Info(ctx, "run started", logger.Time("now", now))

	var plan []model.FetchJob
	report.Fetch, plan = s.sync(ctx, log, now)

	// Trajectories are built from every due snapshot, not only from what the
	// store retains.
	var tables []model.SnapshotTable
	for _, job := range plan {
		if ctx.Err() != nil {
			break
		}
		if t, err := s.store.Get(ctx, job.ID); err == nil {
			tables = append(tables, t)
			continue
		}
		if !s.cache.Exists(job.CachePath) {
			continue
		}
		if s.wasStored(job.ID) {
			table, err := s.parse(job)
			if err != nil {
				report.ParseFailed++
				log.Debug(ctx, "snapshot not reloaded", logger.String("snapshot", job.ID.String()), logger.Error(err))
				continue
			}
			report.Reloaded++
			tables = append(tables, table)
			continue
		}

		table, err := s.load(ctx, log, job)
		if err != nil {
			report.ParseFailed++
			continue
		}
		report.Parsed++
		report.RowsRejected += len(table.Rejected)
		tables = append(tables, table)
		if err := s.keep(ctx, table); err != nil {
			log.Warn(ctx, "snapshot not stored", logger.String("snapshot", job.ID.String()), logger.Error(err))
			continue
		}
		if err := s.archiveTable(ctx, log, table); err != nil {
			report.ArchiveFailed++
		}
	}
	tables = mergeTables(tables, s.store.Tables(ctx))

	err := s.build(ctx, log, &report, tables)
	report.FinishedAt = time.Now()
	metrics.RecordRun(report.Status(), report.Duration(), report.FinishedAt)

	s.mu.Lock()
	r := report
	s.lastRun = &r
	s.mu.Unlock()

	if err != nil {
		log.Error(ctx, "run failed", logger.Error(err), logger.Duration("took", report.Duration()))
		return report, err
	}
	s.announce(ctx, log, report)
	log.Info(ctx, "run finished",
		logger.String("status", report.Status()),
		logger.Int("snapshots", report.Snapshots),
		logger.Int("boats", report.Boats),
		logger.Int("rows_rejected", report.RowsRejected),
		logger.Duration("took", report.Duration()),
	)
	return report, nil
}

// build aggregates tables, in ascending order, and writes the export files.
func (s *Service) build(ctx context.Context, log logger.Logger, report *RunReport, tables []model.SnapshotTable) error {
	ds, err := trajectory.Combine(tables)
	if errors.Is(err, trajectory.ErrEmptyAggregationInput) {
		return fmt.Errorf("run %s: %w", report.RunID, ErrNoSnapshots)
	}
	if err != nil {
		return err
	}

	latest := tables[len(tables)-1]
	trajs := trajectory.Build(ds, &latest)
	metrics.UpdateTrajectoriesBuilt(len(trajs))

	report.Snapshots = len(tables)
	report.Records = len(ds.Records)
	report.Boats = ds.Boats()
	report.Trajectories = len(trajs)
	report.Latest = latest.ID

	s.mu.Lock()
	s.trajectories = trajs
	s.mu.Unlock()

	positions := export.PositionsLayer(ds.Sorted())
	tracks := export.TrajectoriesLayer(trajs)
	base := filepath.Join(s.outputDir, "data_"+latest.ID.Date)
	for _, f := range s.formats {
		for _, layer := range []export.Layer{positions, tracks} {
			path := base + f.Extension()
			if f == export.FormatGeoJSON {
				path = base + "_" + layer.Name + f.Extension()
			}
			if err := s.writer.Write(ctx, layer, path, f, layer.Name); err != nil {
				report.ExportFailed++
				log.Error(ctx, "export failed", logger.String("path", path), logger.String("layer", layer.Name), logger.Error(err))
				continue
			}
			if len(report.Outputs) == 0 || report.Outputs[len(report.Outputs)-1] != path {
				report.Outputs = append(report.Outputs, path)
			}
		}
	}
	return nil
}

// keep puts table in the store and remembers that it was stored.
func (s *Service) keep(ctx context.Context, table model.SnapshotTable) error {
	if _, err := s.store.Put(ctx, table); err != nil {
		return err
	}
	s.mu.Lock()
	s.stored[table.ID] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *Service) wasStored(id model.SnapshotID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.stored[id]
	return ok
}

// archiveTable copies table to the archive, if any, and logs a refusal.
func (s *Service) archiveTable(ctx context.Context, log logger.Logger, table model.SnapshotTable) error {
	if s.archive == nil {
		return nil
	}
	if err := s.archive.Write(ctx, table); err != nil {
		log.Warn(ctx, "snapshot not archived", logger.String("snapshot", table.ID.String()), logger.Error(err))
		return err
	}
	return nil
}

// mergeTables adds the tables of extra missing from tables and sorts the
// result by identifier.
func mergeTables(tables, extra []model.SnapshotTable) []model.SnapshotTable {
	have := make(map[model.SnapshotID]struct{}, len(tables))
	for _, t := range tables {
		have[t.ID] = struct{}{}
	}
	for _, t := range extra {
		if _, ok := have[t.ID]; !ok {
			tables = append(tables, t)
		}
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].ID.Less(tables[j].ID) })
	return tables
}

// load reads, decodes and parses one cached snapshot.
func (s *Service) load(ctx context.Context, log logger.Logger, job model.FetchJob) (model.SnapshotTable, error) {
	table, err := s.parse(job)
	if err != nil {
		metrics.RecordParseError(parseErrorKind(err))
		log.Debug(ctx, "snapshot not parsed", logger.String("snapshot", job.ID.String()), logger.Error(err))
		return table, err
	}
	metrics.RecordSnapshotParsed(len(table.Records))
	for _, rej := range table.Rejected {
		metrics.RecordRowRejected(rowErrorReason(rej))
		log.Debug(ctx, "row rejected",
			logger.String("snapshot", job.ID.String()),
			logger.Int("row", rej.Row),
			logger.Error(rej.Err),
		)
	}
	return table, nil
}

func (s *Service) parse(job model.FetchJob) (model.SnapshotTable, error) {
	data, err := s.cache.Read(job.CachePath)
	if err != nil {
		return model.SnapshotTable{ID: job.ID}, err
	}
	grid, err := xlsx.Decode(data)
	if err != nil {
		return model.SnapshotTable{ID: job.ID}, err
	}
	return s.parser.Parse(grid, job.ID)
}

func parseErrorKind(err error) string {
	switch {
	case errors.Is(err, xlsx.ErrDecode):
		return "decode"
	case errors.Is(err, snapshot.ErrSchemaViolation):
		return "schema"
	case errors.Is(err, cache.ErrNotFound), errors.Is(err, cache.ErrIO):
		return "io"
	default:
		return "other"
	}
}

func rowErrorReason(e model.RowError) string {
	if errors.Is(e, coord.ErrMalformedCoordinate) {
		return "malformed_coordinate"
	}
	return "other"
}

// announce publishes the run summary and the latest positions.
func (s *Service) announce(ctx context.Context, log logger.Logger, report RunReport) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishJSON(ctx, notify.SubjectRun, report); err != nil {
		log.Warn(ctx, "run notification failed", logger.Error(err))
	}
	payload, err := s.PositionsGeoJSON(ctx, report.Latest)
	if err == nil {
		err = s.notifier.Publish(ctx, notify.SubjectPositions, payload)
	}
	if err != nil {
		log.Warn(ctx, "positions notification failed", logger.Error(err))
	}
}
