package archive

import (
	"time"

	"github.com/okian/sailtrack/internal/domain/model"
)

// positionColumns is the column order shared by every sink.
var positionColumns = []string{
	"snapshot_date", "snapshot_slot", "boat_code", "rank", "skipper", "boat_name",
	"reported_at", "lat", "lon",
	"heading_30m", "speed_30m", "vmg_30m", "distance_30m",
	"heading_last", "speed_last", "vmg_last", "distance_last",
	"heading_24h", "speed_24h", "vmg_24h", "distance_24h",
	"dtf", "dtl",
}

// positionRow flattens r in positionColumns order. Missing values are nil
// pointers.
func positionRow(r *model.BoatRecord) []any {
	var reported *time.Time
	if r.HasTimestamp() {
		t := r.Timestamp.UTC()
		reported = &t
	}
	row := []any{
		r.Snapshot.Date, r.Snapshot.Slot, r.BoatCode, int32(r.Rank), r.SkipperName, r.BoatName,
		reported, r.Lat, r.Lon,
	}
	for _, w := range []model.Window{r.Last30Min, r.SinceLastReport, r.Last24Hours} {
		row = append(row, w.Heading.Ptr(), w.Speed.Ptr(), w.VMG.Ptr(), w.Distance.Ptr())
	}
	return append(row, r.DistanceToFinish.Ptr(), r.DistanceToLeader.Ptr())
}
