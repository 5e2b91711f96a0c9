// Package app runs the snapshot pipeline: plan, fetch, parse, aggregate,
// build trajectories and export.
package app

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/okian/sailtrack/internal/adapters/cache"
	"github.com/okian/sailtrack/internal/adapters/export"
	"github.com/okian/sailtrack/internal/adapters/mq/worker"
	"github.com/okian/sailtrack/internal/adapters/repository"
	"github.com/okian/sailtrack/internal/domain/model"
	"github.com/okian/sailtrack/internal/domain/schedule"
	"github.com/okian/sailtrack/internal/domain/snapshot"
	"github.com/okian/sailtrack/pkg/logger"
)

// Archiver stores parsed snapshots outside the process.
type Archiver interface {
	Write(ctx context.Context, table model.SnapshotTable) error
	Close() error
}

// Notifier announces finished runs.
type Notifier interface {
	Publish(ctx context.Context, suffix string, payload []byte) error
	PublishJSON(ctx context.Context, suffix string, v any) error
	Close() error
}

// Service wires the pipeline components together.
type Service struct {
	// runMu serialises whole runs; mu guards the fields below it.
	runMu sync.Mutex
	mu    sync.RWMutex

	resolver *schedule.Resolver
	planner  *schedule.Planner
	cache    *cache.Store
	fetcher  worker.Fetcher
	pool     *worker.Pool
	parser   *snapshot.Parser
	store    repository.Store
	writer   *export.Writer
	archive  Archiver
	notifier Notifier

	workerCount int
	queueSize   int
	outputDir   string
	formats     []export.Format

	running      atomic.Bool
	runs         atomic.Int64
	lastRun      *RunReport
	trajectories []model.Trajectory
	// stored holds every snapshot put in the store, including those its
	// retention has since dropped.
	stored map[model.SnapshotID]struct{}

	logger logger.Logger
}

// New constructs a Service for the given calendar and source locations.
func New(resolver *schedule.Resolver, locator schedule.Locator, fetcher worker.Fetcher, opts ...Option) *Service {
	s := &Service{
		resolver:    resolver,
		cache:       cache.New(locator.CacheDir),
		fetcher:     fetcher,
		workerCount: min(runtime.NumCPU(), 8),
		outputDir:   ".",
		formats:     []export.Format{export.FormatGeoPackage},
		stored:      make(map[model.SnapshotID]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("pipeline")
	}
	if s.parser == nil {
		s.parser = snapshot.NewParser(snapshot.WithLocation(resolver.Calendar().Location))
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.queueSize == 0 {
		s.queueSize = s.workerCount * 2
	}

	s.planner = schedule.NewPlanner(resolver, locator, s.cache.Exists)
	s.pool = worker.NewPool(s.workerCount, fetcher, s.cache,
		worker.WithQueueCapacity(s.queueSize),
		worker.WithPoolLogger(s.logger.Named("fetch")),
	)
	s.writer = export.NewWriter(export.WithLogger(s.logger.Named("export")))
	return s
}

// Resolver returns the schedule resolver.
func (s *Service) Resolver() *schedule.Resolver { return s.resolver }

// Planner returns the fetch planner.
func (s *Service) Planner() *schedule.Planner { return s.planner }

// Running reports whether a run is in progress.
func (s *Service) Running() bool { return s.running.Load() }

// LastRun returns the report of the most recent run, if any.
func (s *Service) LastRun() (RunReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastRun == nil {
		return RunReport{}, false
	}
	return *s.lastRun, true
}

// Stats returns a snapshot of the service state.
func (s *Service) Stats(ctx context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Snapshots:    s.store.Count(ctx),
		Trajectories: len(s.trajectories),
		Workers:      s.pool.Size(),
		Running:      s.running.Load(),
		Runs:         s.runs.Load(),
	}
	if f, ok := s.archive.(interface{ Len() int }); ok {
		st.Archives = f.Len()
	}
	if s.lastRun != nil {
		r := *s.lastRun
		st.LastRun = &r
		st.Boats = r.Boats
	}
	return st
}

// Snapshots lists the loaded snapshots in ascending order.
func (s *Service) Snapshots(ctx context.Context) []SnapshotSummary {
	tables := s.store.Tables(ctx)
	out := make([]SnapshotSummary, len(tables))
	for i, t := range tables {
		out[i] = SnapshotSummary{
			ID:       t.ID,
			Records:  len(t.Records),
			Rejected: len(t.Rejected),
			Retired:  len(t.Retired),
		}
	}
	return out
}

// PositionsGeoJSON encodes the boat positions of id, or of the latest
// loaded snapshot when id is zero.
func (s *Service) PositionsGeoJSON(ctx context.Context, id model.SnapshotID) ([]byte, error) {
	var (
		table model.SnapshotTable
		err   error
	)
	if id.IsZero() {
		table, err = s.store.Latest(ctx)
	} else {
		table, err = s.store.Get(ctx, id)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errors.Join(ErrUnknownSnapshot, err)
	}
	if err != nil {
		return nil, err
	}
	return export.GeoJSON(export.PositionsLayer(table.Records))
}

// TrajectoriesGeoJSON encodes the trajectories built by the last run.
func (s *Service) TrajectoriesGeoJSON(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	trajs := s.trajectories
	s.mu.RUnlock()
	return export.GeoJSON(export.TrajectoriesLayer(trajs))
}

// Trajectories returns the trajectories built by the last run.
func (s *Service) Trajectories(_ context.Context) []model.Trajectory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Trajectory(nil), s.trajectories...)
}

// Close releases the archive sinks and the notifier.
func (s *Service) Close() error {
	var errs []error
	if s.archive != nil {
		errs = append(errs, s.archive.Close())
	}
	if s.notifier != nil {
		errs = append(errs, s.notifier.Close())
	}
	return errors.Join(errs...)
}
