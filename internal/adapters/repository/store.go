// Package repository keeps parsed snapshot tables in memory, ordered by
// snapshot identifier.
package repository

import (
	"context"

	"github.com/okian/sailtrack/internal/domain/model"
)

// Store provides read/write access to parsed snapshots.
type Store interface {
	// Put stores table, replacing any table with the same identifier.
	// Returns true if a table was replaced.
	Put(ctx context.Context, table model.SnapshotTable) (bool, error)

	// Get returns the table for id, or ErrNotFound.
	Get(ctx context.Context, id model.SnapshotID) (model.SnapshotTable, error)

	Has(ctx context.Context, id model.SnapshotID) bool

	// IDs returns every stored identifier in ascending order.
	IDs(ctx context.Context) []model.SnapshotID

	// Tables returns every stored table in ascending identifier order.
	Tables(ctx context.Context) []model.SnapshotTable

	// Latest returns the table with the greatest identifier, or ErrNotFound.
	Latest(ctx context.Context) (model.SnapshotTable, error)

	Count(ctx context.Context) int
}
