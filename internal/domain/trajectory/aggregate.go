// Package trajectory combines snapshot tables into one dataset and turns it
// into per-boat tracks.
package trajectory

import (
	"github.com/okian/sailtrack/internal/domain/model"
)

// Combine concatenates the records of tables in input order. Callers sort
// by (boat code, timestamp) when order matters; see model.Dataset.Sorted.
func Combine(tables []model.SnapshotTable) (model.Dataset, error) {
	if len(tables) == 0 {
		return model.Dataset{}, ErrEmptyAggregationInput
	}
	n := 0
	for i := range tables {
		n += len(tables[i].Records)
	}
	records := make([]model.BoatRecord, 0, n)
	for i := range tables {
		records = append(records, tables[i].Records...)
	}
	return model.Dataset{Records: records}, nil
}
