// Package export writes positions and trajectories as GIS layers.
package export

import (
	"time"

	"github.com/okian/sailtrack/internal/domain/model"
	"github.com/paulmach/orb"
)

// Layer names used by the full pipeline.
const (
	PositionsLayerName    = "pointages"
	TrajectoriesLayerName = "trajectoire"
)

// ColumnType is the storage class of an attribute column.
type ColumnType string

const (
	Text     ColumnType = "TEXT"
	Integer  ColumnType = "INTEGER"
	Real     ColumnType = "REAL"
	DateTime ColumnType = "DATETIME"
)

// Column is one attribute of a layer.
type Column struct {
	Name string
	Type ColumnType
}

// Feature is a geometry plus attribute values keyed by column name. A nil
// or missing value is written as null.
type Feature struct {
	Geometry orb.Geometry
	Values   map[string]any
}

// Layer is a named, homogeneous set of features.
type Layer struct {
	Name     string
	Columns  []Column
	Features []Feature
}

// GeometryType returns the GeoPackage geometry type name shared by every
// feature, or GEOMETRY when they differ.
func (l *Layer) GeometryType() string {
	name := ""
	for i := range l.Features {
		g := l.Features[i].Geometry
		if g == nil {
			continue
		}
		t := geometryTypeName(g)
		switch {
		case name == "":
			name = t
		case name != t:
			return "GEOMETRY"
		}
	}
	if name == "" {
		return "GEOMETRY"
	}
	return name
}

func geometryTypeName(g orb.Geometry) string {
	switch g.(type) {
	case orb.Point:
		return "POINT"
	case orb.MultiPoint:
		return "MULTIPOINT"
	case orb.LineString:
		return "LINESTRING"
	case orb.MultiLineString:
		return "MULTILINESTRING"
	case orb.Polygon:
		return "POLYGON"
	case orb.MultiPolygon:
		return "MULTIPOLYGON"
	default:
		return "GEOMETRY"
	}
}

var windowColumns = []struct {
	suffix string
	get    func(*model.BoatRecord) model.Window
}{
	{"30m", func(r *model.BoatRecord) model.Window { return r.Last30Min }},
	{"last_rank", func(r *model.BoatRecord) model.Window { return r.SinceLastReport }},
	{"24h", func(r *model.BoatRecord) model.Window { return r.Last24Hours }},
}

// PositionsColumns lists the attributes of the positions layer.
func PositionsColumns() []Column {
	cols := []Column{
		{"snapshot", Text},
		{"rang", Integer},
		{"code", Text},
		{"nom", Text},
		{"bateau", Text},
		{"heure", Text},
		{"timestamp", DateTime},
		{"latitude", Text},
		{"longitude", Text},
		{"lat_dec", Real},
		{"lon_dec", Real},
	}
	for _, w := range windowColumns {
		cols = append(cols,
			Column{"cap_" + w.suffix, Real},
			Column{"vitesse_" + w.suffix, Real},
			Column{"vmg_" + w.suffix, Real},
			Column{"distance_" + w.suffix, Real},
		)
	}
	return append(cols, Column{"dtf", Real}, Column{"dtl", Real})
}

// PositionsLayer builds one point feature per record.
func PositionsLayer(records []model.BoatRecord) Layer {
	l := Layer{Name: PositionsLayerName, Columns: PositionsColumns(), Features: make([]Feature, 0, len(records))}
	for i := range records {
		r := &records[i]
		v := map[string]any{
			"snapshot":  r.Snapshot.String(),
			"rang":      r.Rank,
			"code":      r.BoatCode,
			"nom":       r.SkipperName,
			"bateau":    r.BoatName,
			"heure":     r.ReportedTime,
			"timestamp": timeValue(r.Timestamp),
			"latitude":  r.Latitude.String(),
			"longitude": r.Longitude.String(),
			"lat_dec":   r.Lat,
			"lon_dec":   r.Lon,
			"dtf":       number(r.DistanceToFinish),
			"dtl":       number(r.DistanceToLeader),
		}
		for _, w := range windowColumns {
			win := w.get(r)
			v["cap_"+w.suffix] = number(win.Heading)
			v["vitesse_"+w.suffix] = number(win.Speed)
			v["vmg_"+w.suffix] = number(win.VMG)
			v["distance_"+w.suffix] = number(win.Distance)
		}
		l.Features = append(l.Features, Feature{Geometry: orb.Point{r.Lon, r.Lat}, Values: v})
	}
	return l
}

// TrajectoriesColumns lists the attributes of the trajectory layer. The
// latest_* columns come from the most recent snapshot and are null for
// boats absent from it.
func TrajectoriesColumns() []Column {
	return []Column{
		{"code", Text},
		{"points", Integer},
		{"segments", Integer},
		{"first_fix", DateTime},
		{"last_fix", DateTime},
		{"distance_nm", Real},
		{"latest_snapshot", Text},
		{"latest_rang", Integer},
		{"latest_nom", Text},
		{"latest_bateau", Text},
		{"latest_vitesse_24h", Real},
		{"latest_dtf", Real},
		{"latest_dtl", Real},
	}
}

// TrajectoriesLayer builds one line feature per boat.
func TrajectoriesLayer(trajs []model.Trajectory) Layer {
	l := Layer{Name: TrajectoriesLayerName, Columns: TrajectoriesColumns(), Features: make([]Feature, 0, len(trajs))}
	for i := range trajs {
		t := &trajs[i]
		v := map[string]any{
			"code":        t.BoatCode,
			"points":      t.Points,
			"segments":    len(t.Segments),
			"first_fix":   timeValue(t.First),
			"last_fix":    timeValue(t.Last),
			"distance_nm": t.DistanceNM,
		}
		if r := t.Latest; r != nil {
			v["latest_snapshot"] = r.Snapshot.String()
			v["latest_rang"] = r.Rank
			v["latest_nom"] = r.SkipperName
			v["latest_bateau"] = r.BoatName
			v["latest_vitesse_24h"] = number(r.Last24Hours.Speed)
			v["latest_dtf"] = number(r.DistanceToFinish)
			v["latest_dtl"] = number(r.DistanceToLeader)
		}
		l.Features = append(l.Features, Feature{Geometry: t.Geometry(), Values: v})
	}
	return l
}

func number(n model.Number) any {
	if !n.Valid {
		return nil
	}
	return n.Value
}

func timeValue(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
