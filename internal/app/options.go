package app

import (
	"github.com/okian/sailtrack/internal/adapters/export"
	"github.com/okian/sailtrack/internal/adapters/repository"
	"github.com/okian/sailtrack/internal/domain/snapshot"
	"github.com/okian/sailtrack/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of concurrent downloads.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the fetch queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithOutputDir sets where export files are written.
func WithOutputDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.outputDir = dir
		}
	}
}

// WithFormats selects the export formats. Unknown formats are ignored.
func WithFormats(formats ...export.Format) Option {
	return func(s *Service) {
		var keep []export.Format
		for _, f := range formats {
			if f == export.FormatGeoPackage || f == export.FormatGeoJSON {
				keep = append(keep, f)
			}
		}
		if len(keep) > 0 {
			s.formats = keep
		}
	}
}

// WithParser replaces the snapshot parser.
func WithParser(p *snapshot.Parser) Option {
	return func(s *Service) {
		if p != nil {
			s.parser = p
		}
	}
}

// WithStore replaces the in-memory snapshot store.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithArchive copies every newly parsed snapshot into a.
func WithArchive(a Archiver) Option {
	return func(s *Service) {
		if a != nil {
			s.archive = a
		}
	}
}

// WithNotifier publishes a summary after every run.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}
