package model

import (
	"time"

	"github.com/paulmach/orb"
)

// Trajectory is the ordered track of one boat, split wherever it crosses the
// antimeridian.
type Trajectory struct {
	BoatCode   string
	Segments   []orb.LineString
	Points     int
	First      time.Time
	Last       time.Time
	DistanceNM float64
	// Latest is the boat's row in the most recent snapshot, nil if absent.
	Latest *BoatRecord
}

// Geometry returns a LineString for a single segment, a MultiLineString
// otherwise.
func (t *Trajectory) Geometry() orb.Geometry {
	if len(t.Segments) == 1 {
		return t.Segments[0]
	}
	mls := make(orb.MultiLineString, len(t.Segments))
	copy(mls, t.Segments)
	return mls
}
