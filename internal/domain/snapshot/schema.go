// Package snapshot turns the cell grid of one leaderboard workbook into a
// table of boat records.
package snapshot

// Field names one logical column of the leaderboard.
type Field string

const (
	FieldRank      Field = "rang"
	FieldCode      Field = "code"
	FieldName      Field = "nom"
	FieldTime      Field = "heure"
	FieldLatitude  Field = "latitude"
	FieldLongitude Field = "longitude"

	Field30mHeading  Field = "30m_cap"
	Field30mSpeed    Field = "30m_vitesse"
	Field30mVMG      Field = "30m_vmg"
	Field30mDistance Field = "30m_distance"

	FieldLastHeading  Field = "last_rank_cap"
	FieldLastSpeed    Field = "last_rank_vitesse"
	FieldLastVMG      Field = "last_rank_vmg"
	FieldLastDistance Field = "last_rank_distance"

	Field24hHeading  Field = "24h_cap"
	Field24hSpeed    Field = "24h_vitesse"
	Field24hVMG      Field = "24h_vmg"
	Field24hDistance Field = "24h_distance"

	FieldDTF Field = "dtf"
	FieldDTL Field = "dtl"
)

// Fields lists every column in sheet order (B through U).
var Fields = []Field{ //nolint:gochecknoglobals // read-only column order
	FieldRank, FieldCode, FieldName, FieldTime, FieldLatitude, FieldLongitude,
	Field30mHeading, Field30mSpeed, Field30mVMG, Field30mDistance,
	FieldLastHeading, FieldLastSpeed, FieldLastVMG, FieldLastDistance,
	Field24hHeading, Field24hSpeed, Field24hVMG, Field24hDistance,
	FieldDTF, FieldDTL,
}

// requiredFields must be present on every row that carries a boat code.
var requiredFields = []Field{FieldRank, FieldCode, FieldName, FieldTime, FieldLatitude, FieldLongitude} //nolint:gochecknoglobals // read-only

const (
	defaultFirstRow    = 5  // sheet row 6
	defaultMaxRows     = 40 // roster bound
	defaultFirstColumn = 1  // column B
)

// Schema is the single place that knows where each field sits in the sheet.
type Schema struct {
	// FirstRow is the 0-based index of the first data row.
	FirstRow int
	// MaxRows bounds how many rows after FirstRow are read.
	MaxRows int
	// Columns maps each field to its 0-based sheet column.
	Columns map[Field]int
}

// DefaultSchema returns the published layout: 20 columns from B, data from
// row 6, at most 40 boats.
func DefaultSchema() Schema {
	cols := make(map[Field]int, len(Fields))
	for i, f := range Fields {
		cols[f] = defaultFirstColumn + i
	}
	return Schema{FirstRow: defaultFirstRow, MaxRows: defaultMaxRows, Columns: cols}
}

// cell returns the trimmed content of field in row, and whether the row is
// wide enough to hold it.
func (s Schema) cell(row []string, f Field) (string, bool) {
	idx, ok := s.Columns[f]
	if !ok || idx < 0 || idx >= len(row) {
		return "", false
	}
	return row[idx], true
}
