package export

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const (
	gpkgApplicationID = 0x47504B47 // "GPKG"
	gpkgUserVersion   = 10200
	gpkgSRSID         = 4326

	// little endian, envelope [minx, maxx, miny, maxy]
	gpkgFlagsEnvelopeXY = 0x03
	gpkgFlagEmpty       = 0x10
)

const wgs84WKT = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]`

var gpkgSchema = []string{
	`CREATE TABLE IF NOT EXISTS gpkg_spatial_ref_sys (
		srs_name TEXT NOT NULL,
		srs_id INTEGER NOT NULL PRIMARY KEY,
		organization TEXT NOT NULL,
		organization_coordsys_id INTEGER NOT NULL,
		definition TEXT NOT NULL,
		description TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS gpkg_contents (
		table_name TEXT NOT NULL PRIMARY KEY,
		data_type TEXT NOT NULL,
		identifier TEXT UNIQUE,
		description TEXT DEFAULT '',
		last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		min_x DOUBLE,
		min_y DOUBLE,
		max_x DOUBLE,
		max_y DOUBLE,
		srs_id INTEGER,
		CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
	)`,
	`CREATE TABLE IF NOT EXISTS gpkg_geometry_columns (
		table_name TEXT NOT NULL,
		column_name TEXT NOT NULL,
		geometry_type_name TEXT NOT NULL,
		srs_id INTEGER NOT NULL,
		z TINYINT NOT NULL,
		m TINYINT NOT NULL,
		CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name),
		CONSTRAINT uk_gc_table_name UNIQUE (table_name),
		CONSTRAINT fk_gc_tn FOREIGN KEY (table_name) REFERENCES gpkg_contents(table_name),
		CONSTRAINT fk_gc_srs FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
	)`,
}

func writeGeoPackage(ctx context.Context, layer Layer, path, name string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrExport, path, err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	if err := initGeoPackage(ctx, db); err != nil {
		return fmt.Errorf("%w: init %s: %v", ErrExport, path, err)
	}
	if err := replaceLayer(ctx, db, layer, name); err != nil {
		return fmt.Errorf("%w: layer %s in %s: %v", ErrExport, name, path, err)
	}
	return nil
}

func initGeoPackage(ctx context.Context, db *sql.DB) error {
	stmts := append([]string{
		fmt.Sprintf("PRAGMA application_id = %d", gpkgApplicationID),
		fmt.Sprintf("PRAGMA user_version = %d", gpkgUserVersion),
	}, gpkgSchema...)
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}

	const srs = `INSERT OR IGNORE INTO gpkg_spatial_ref_sys
		(srs_name, srs_id, organization, organization_coordsys_id, definition, description)
		VALUES (?, ?, ?, ?, ?, ?)`
	rows := [][]any{
		{"Undefined cartesian SRS", -1, "NONE", -1, "undefined", "undefined cartesian coordinate reference system"},
		{"Undefined geographic SRS", 0, "NONE", 0, "undefined", "undefined geographic coordinate reference system"},
		{"WGS 84 geodetic", gpkgSRSID, "EPSG", gpkgSRSID, wgs84WKT, "longitude/latitude coordinates in decimal degrees on the WGS 84 spheroid"},
	}
	for _, r := range rows {
		if _, err := db.ExecContext(ctx, srs, r...); err != nil {
			return err
		}
	}
	return nil
}

func replaceLayer(ctx context.Context, db *sql.DB, layer Layer, name string) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	table := quoteIdent(name)
	for _, q := range []string{
		`DELETE FROM gpkg_geometry_columns WHERE table_name = ?`,
		`DELETE FROM gpkg_contents WHERE table_name = ?`,
	} {
		if _, err = tx.ExecContext(ctx, q, name); err != nil {
			return err
		}
	}
	if _, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return err
	}

	geomType := layer.GeometryType()
	defs := []string{"fid INTEGER PRIMARY KEY AUTOINCREMENT", "geom " + geomType}
	cols := []string{"geom"}
	marks := []string{"?"}
	for _, c := range layer.Columns {
		defs = append(defs, quoteIdent(c.Name)+" "+string(c.Type))
		cols = append(cols, quoteIdent(c.Name))
		marks = append(marks, "?")
	}
	if _, err = tx.ExecContext(ctx, "CREATE TABLE "+table+" ("+strings.Join(defs, ", ")+")"); err != nil {
		return err
	}

	ins, err := tx.PrepareContext(ctx, "INSERT INTO "+table+" ("+strings.Join(cols, ", ")+") VALUES ("+strings.Join(marks, ", ")+")")
	if err != nil {
		return err
	}
	defer func() { _ = ins.Close() }()

	var bound *orb.Bound
	for i := range layer.Features {
		f := &layer.Features[i]
		args := make([]any, 0, len(cols))
		blob, gerr := geometryBlob(f.Geometry, gpkgSRSID)
		if gerr != nil {
			return fmt.Errorf("feature %d: %w", i, gerr)
		}
		args = append(args, blob)
		for _, c := range layer.Columns {
			args = append(args, f.Values[c.Name])
		}
		if _, err = ins.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
		if f.Geometry != nil {
			b := f.Geometry.Bound()
			if bound == nil {
				bound = &b
			} else {
				*bound = bound.Union(b)
			}
		}
	}

	var minX, minY, maxX, maxY any
	if bound != nil {
		minX, minY, maxX, maxY = bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1]
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO gpkg_contents
		(table_name, data_type, identifier, description, last_change, min_x, min_y, max_x, max_y, srs_id)
		VALUES (?, 'features', ?, '', ?, ?, ?, ?, ?, ?)`,
		name, name, time.Now().UTC().Format("2006-01-02T15:04:05.000Z"), minX, minY, maxX, maxY, gpkgSRSID,
	); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO gpkg_geometry_columns
		(table_name, column_name, geometry_type_name, srs_id, z, m)
		VALUES (?, 'geom', ?, ?, 0, 0)`,
		name, geomType, gpkgSRSID,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// geometryBlob encodes g as a GeoPackage binary: the GP header with an XY
// envelope followed by little-endian WKB. A nil geometry is stored as null.
func geometryBlob(g orb.Geometry, srsID int32) ([]byte, error) {
	if g == nil {
		return nil, nil
	}
	body, err := wkb.Marshal(g, binary.LittleEndian)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(8 + 32 + len(body))
	flags := byte(gpkgFlagsEnvelopeXY)
	b := g.Bound()
	if isEmpty(g) {
		flags |= gpkgFlagEmpty
		b = orb.Bound{Min: orb.Point{math.NaN(), math.NaN()}, Max: orb.Point{math.NaN(), math.NaN()}}
	}
	buf.Write([]byte{'G', 'P', 0, flags})
	_ = binary.Write(&buf, binary.LittleEndian, srsID)
	for _, v := range [4]float64{b.Min[0], b.Max[0], b.Min[1], b.Max[1]} {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}
	buf.Write(body)
	return buf.Bytes(), nil
}

func isEmpty(g orb.Geometry) bool {
	switch v := g.(type) {
	case orb.LineString:
		return len(v) == 0
	case orb.MultiLineString:
		return len(v) == 0
	case orb.MultiPoint:
		return len(v) == 0
	default:
		return false
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
