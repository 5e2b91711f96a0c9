package model

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/okian/sailtrack/internal/domain/coord"
)

// Number is a metric cell that may be blank on the leaderboard.
type Number struct {
	Value float64
	Valid bool
}

// Some wraps v as a present value.
func Some(v float64) Number { return Number{Value: v, Valid: true} }

// Ptr returns nil for a blank cell.
func (n Number) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// MarshalJSON encodes blank cells as null.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Window groups heading, speed, VMG and distance over one reporting window.
type Window struct {
	Heading  Number `json:"heading"`
	Speed    Number `json:"speed"`
	VMG      Number `json:"vmg"`
	Distance Number `json:"distance"`
}

// BoatRecord is one boat's row in one snapshot. Records are never mutated
// once parsed.
type BoatRecord struct {
	Snapshot     SnapshotID `json:"snapshot"`
	Row          int        `json:"row"`
	Rank         int        `json:"rank"`
	RankLabel    string     `json:"rank_label"`
	BoatCode     string     `json:"code"`
	SkipperName  string     `json:"skipper"`
	BoatName     string     `json:"boat"`
	ReportedTime string     `json:"reported_time"`
	Latitude     coord.DMS  `json:"-"`
	Longitude    coord.DMS  `json:"-"`
	Lat          float64    `json:"lat"`
	Lon          float64    `json:"lon"`
	// Timestamp is the zero time when the reported time could not be read.
	Timestamp time.Time `json:"timestamp"`

	Last30Min        Window `json:"last_30min"`
	SinceLastReport  Window `json:"since_last_report"`
	Last24Hours      Window `json:"last_24h"`
	DistanceToFinish Number `json:"dtf"`
	DistanceToLeader Number `json:"dtl"`
}

// HasTimestamp reports whether the reported time was understood.
func (r *BoatRecord) HasTimestamp() bool {
	return !r.Timestamp.IsZero()
}

// RowError explains why a sheet row was dropped.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string {
	return "row " + strconv.Itoa(e.Row) + ": " + e.Err.Error()
}

func (e RowError) Unwrap() error { return e.Err }

// SnapshotTable holds the accepted rows of one snapshot.
type SnapshotTable struct {
	ID       SnapshotID
	Records  []BoatRecord
	Rejected []RowError
	// Retired lists the codes of boats marked RET, which are not in Records.
	Retired []string
}

// Record returns the row for code, if present.
func (t *SnapshotTable) Record(code string) (BoatRecord, bool) {
	for i := range t.Records {
		if t.Records[i].BoatCode == code {
			return t.Records[i], true
		}
	}
	return BoatRecord{}, false
}

// Dataset is the union of many snapshot tables.
type Dataset struct {
	Records []BoatRecord
}

// Sorted returns a copy ordered by boat code then timestamp. Rows without a
// timestamp sort last within their boat.
func (d Dataset) Sorted() []BoatRecord {
	out := make([]BoatRecord, len(d.Records))
	copy(out, d.Records)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BoatCode != out[j].BoatCode {
			return out[i].BoatCode < out[j].BoatCode
		}
		return TimestampLess(&out[i], &out[j])
	})
	return out
}

// Boats counts the distinct boat codes in d.
func (d Dataset) Boats() int {
	seen := make(map[string]struct{}, len(d.Records))
	for i := range d.Records {
		seen[d.Records[i].BoatCode] = struct{}{}
	}
	return len(seen)
}

// TimestampLess orders records by timestamp with missing timestamps last.
func TimestampLess(a, b *BoatRecord) bool {
	switch {
	case !a.HasTimestamp():
		return false
	case !b.HasTimestamp():
		return true
	default:
		return a.Timestamp.Before(b.Timestamp)
	}
}
