package app

import (
	"context"
	"fmt"

	"github.com/okian/sailtrack/internal/adapters/archive"
	"github.com/okian/sailtrack/internal/adapters/export"
	"github.com/okian/sailtrack/internal/adapters/notify"
	"github.com/okian/sailtrack/internal/adapters/repository"
	"github.com/okian/sailtrack/internal/adapters/source"
	"github.com/okian/sailtrack/internal/config"
	"github.com/okian/sailtrack/internal/domain/schedule"
	"github.com/okian/sailtrack/internal/domain/snapshot"
	"github.com/okian/sailtrack/pkg/logger"
)

// FromConfig builds a Service and opens the optional archive sinks and
// notifier named in cfg. Close the service to release them.
func FromConfig(ctx context.Context, cfg *config.Config, outputDir string, l logger.Logger) (*Service, error) {
	if l == nil {
		l = logger.Get().Named("pipeline")
	}
	cal, err := cfg.Calendar()
	if err != nil {
		return nil, err
	}
	resolver, err := schedule.NewResolver(cal)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}

	formats := make([]export.Format, 0, len(cfg.ExportFormats))
	for _, name := range cfg.ExportFormats {
		f, err := export.ParseFormat(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
		}
		formats = append(formats, f)
	}
	if outputDir == "" {
		outputDir = cfg.OutputDir
	}

	var sinks []archive.Sink
	closeSinks := func() {
		for _, s := range sinks {
			_ = s.Close()
		}
	}
	if cfg.PostgresDSN != "" {
		pg, err := archive.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, pg)
	}
	if cfg.ClickHouseAddr != "" {
		ch, err := archive.OpenClickHouse(ctx, cfg.ClickHouseAddr, cfg.ClickHouseDatabase, cfg.ClickHouseUser, cfg.ClickHousePassword)
		if err != nil {
			closeSinks()
			return nil, err
		}
		sinks = append(sinks, ch)
	}

	opts := []Option{
		WithLogger(l),
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
		WithOutputDir(outputDir),
		WithFormats(formats...),
		WithParser(snapshot.NewParser(
			snapshot.WithLocation(cal.Location),
			snapshot.WithStrictNames(cfg.StrictNames),
		)),
		WithStore(repository.NewMemoryStore(repository.WithRetention(cfg.RetainSnapshots))),
	}
	if len(sinks) > 0 {
		opts = append(opts, WithArchive(archive.NewFanout(l.Named("archive"), sinks...)))
	}
	if cfg.NATSURL != "" {
		n, err := notify.Connect(cfg.NATSURL, cfg.NATSSubject, l.Named("notify"))
		if err != nil {
			closeSinks()
			return nil, err
		}
		opts = append(opts, WithNotifier(n))
	}

	fetcher := source.NewClient(source.WithTimeout(cfg.FetchTimeout()))
	return New(resolver, cfg.Locator(), fetcher, opts...), nil
}
