package trajectory

import (
	"math"
	"sort"
	"time"

	"github.com/golang/geo/s2"
	"github.com/okian/sailtrack/internal/domain/model"
	"github.com/paulmach/orb"
)

const (
	// antimeridianJump is the longitude difference between consecutive fixes
	// above which the track is assumed to wrap around ±180°.
	antimeridianJump = 180.0

	// EarthRadiusNM is the mean Earth radius in nautical miles.
	EarthRadiusNM = 3440.065
)

// Build groups ds by boat, orders each group by timestamp (rows without a
// timestamp last) and cuts it into segments at antimeridian crossings. Each
// trajectory carries the boat's row from latest, when latest has one.
// Trajectories are returned sorted by boat code.
func Build(ds model.Dataset, latest *model.SnapshotTable) []model.Trajectory {
	groups := make(map[string][]model.BoatRecord)
	for _, r := range ds.Records {
		groups[r.BoatCode] = append(groups[r.BoatCode], r)
	}

	codes := make([]string, 0, len(groups))
	for code := range groups {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	out := make([]model.Trajectory, 0, len(codes))
	for _, code := range codes {
		recs := groups[code]
		sort.SliceStable(recs, func(i, j int) bool { return model.TimestampLess(&recs[i], &recs[j]) })

		traj := model.Trajectory{
			BoatCode:   code,
			Segments:   Segments(recs),
			Points:     len(recs),
			DistanceNM: DistanceNM(recs),
		}
		traj.First, traj.Last = span(recs)
		if latest != nil {
			if rec, ok := latest.Record(code); ok {
				traj.Latest = &rec
			}
		}
		out = append(out, traj)
	}
	return out
}

// Segments splits ordered records into line strings, starting a new one
// whenever |lon_i - lon_i+1| exceeds 180°. A single record yields a
// one-point segment.
func Segments(recs []model.BoatRecord) []orb.LineString {
	if len(recs) == 0 {
		return nil
	}
	var segs []orb.LineString
	current := orb.LineString{{recs[0].Lon, recs[0].Lat}}
	for i := 1; i < len(recs); i++ {
		if math.Abs(recs[i-1].Lon-recs[i].Lon) > antimeridianJump {
			segs = append(segs, current)
			current = orb.LineString{}
		}
		current = append(current, orb.Point{recs[i].Lon, recs[i].Lat})
	}
	return append(segs, current)
}

// DistanceNM sums the great-circle legs between consecutive records,
// including legs that cross the antimeridian.
func DistanceNM(recs []model.BoatRecord) float64 {
	total := 0.0
	for i := 1; i < len(recs); i++ {
		a := s2.LatLngFromDegrees(recs[i-1].Lat, recs[i-1].Lon)
		b := s2.LatLngFromDegrees(recs[i].Lat, recs[i].Lon)
		total += a.Distance(b).Radians() * EarthRadiusNM
	}
	return total
}

func span(recs []model.BoatRecord) (first, last time.Time) {
	for i := range recs {
		if !recs[i].HasTimestamp() {
			continue
		}
		if first.IsZero() {
			first = recs[i].Timestamp
		}
		last = recs[i].Timestamp
	}
	return first, last
}
