// Package archive copies parsed snapshot rows into external databases.
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/sailtrack/internal/domain/model"
	"github.com/okian/sailtrack/pkg/logger"
	"github.com/okian/sailtrack/pkg/metrics"
)

// Sink stores the rows of one snapshot. Writing the same snapshot twice
// must not duplicate rows.
type Sink interface {
	Name() string
	Write(ctx context.Context, table model.SnapshotTable) error
	Close() error
}

// Fanout writes every snapshot to all of its sinks.
type Fanout struct {
	sinks  []Sink
	logger logger.Logger
}

// NewFanout groups sinks. It is valid with no sinks.
func NewFanout(l logger.Logger, sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, logger: l}
}

// Len returns the number of sinks.
func (f *Fanout) Len() int { return len(f.sinks) }

// Write sends table to each sink. A failing sink does not stop the others;
// their errors are joined and each wraps ErrArchive.
func (f *Fanout) Write(ctx context.Context, table model.SnapshotTable) error {
	var errs []error
	for _, s := range f.sinks {
		start := time.Now()
		if err := s.Write(ctx, table); err != nil {
			metrics.RecordSinkWrite(s.Name(), "error")
			f.logger.Warn(ctx, "archive write failed",
				logger.String("sink", s.Name()),
				logger.String("snapshot", table.ID.String()),
				logger.Error(err),
			)
			errs = append(errs, fmt.Errorf("%w: %s: %v", ErrArchive, s.Name(), err))
			continue
		}
		metrics.RecordSinkWrite(s.Name(), "ok")
		f.logger.Debug(ctx, "archive write",
			logger.String("sink", s.Name()),
			logger.String("snapshot", table.ID.String()),
			logger.Int("rows", len(table.Records)),
			logger.Duration("took", time.Since(start)),
		)
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (f *Fanout) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%w: close %s: %v", ErrArchive, s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
