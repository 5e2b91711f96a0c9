package snapshot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/okian/sailtrack/internal/domain/coord"
	"github.com/okian/sailtrack/internal/domain/model"
)

const (
	nameSeparator = " - "
	retiredMarker = "RET"
	timeSuffix    = " FR"
)

var (
	clockPattern  = regexp.MustCompile(`\b\d{2}:\d{2}\b`)    //nolint:gochecknoglobals // compiled once
	numberPattern = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`) //nolint:gochecknoglobals // compiled once

	lineBreaks  = strings.NewReplacer("\r\n", nameSeparator, "\n", nameSeparator) //nolint:gochecknoglobals // stateless
	digitSpaces = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "")         //nolint:gochecknoglobals // stateless
)

// Parser reads leaderboard grids. It performs no I/O and is safe for
// concurrent use.
type Parser struct {
	schema      Schema
	location    *time.Location
	strictNames bool
}

// NewParser builds a parser for the published layout unless overridden.
// Times are read in UTC unless WithLocation names the calendar's zone.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		schema:   DefaultSchema(),
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Schema returns the layout the parser reads.
func (p *Parser) Schema() Schema {
	return p.schema
}

// ParseDate parses grid for a YYYYMMDD date without a known slot. The
// resulting table has no slot, so it fails SnapshotID.Validate and cannot be
// put in a repository.Store; it is meant for one-off conversions.
func (p *Parser) ParseDate(grid [][]string, date string) (model.SnapshotTable, error) {
	return p.Parse(grid, model.SnapshotID{Date: date})
}

// Parse reads grid as the snapshot published at id. Rows with a malformed
// position are dropped and listed in Rejected; rows marked RET are dropped
// and listed in Retired. A grid without a data band, or without position
// columns, fails with ErrSchemaViolation.
func (p *Parser) Parse(grid [][]string, id model.SnapshotID) (model.SnapshotTable, error) {
	table := model.SnapshotTable{ID: id}

	for _, f := range requiredFields {
		if _, ok := p.schema.Columns[f]; !ok {
			return table, fmt.Errorf("%w: %s: no column for %q", ErrSchemaViolation, id, f)
		}
	}
	if len(grid) <= p.schema.FirstRow {
		return table, fmt.Errorf("%w: %s: %d rows, data starts at row %d", ErrSchemaViolation, id, len(grid), p.schema.FirstRow+1)
	}

	end := p.schema.FirstRow + p.schema.MaxRows
	if end > len(grid) {
		end = len(grid)
	}
	window := grid[p.schema.FirstRow:end]

	if !p.hasPositionColumns(window) {
		return table, fmt.Errorf("%w: %s: position columns missing", ErrSchemaViolation, id)
	}

	for i, row := range window {
		sheetRow := p.schema.FirstRow + i + 1
		code := p.text(row, FieldCode)
		if code == "" {
			continue
		}

		rank := p.text(row, FieldRank)
		if strings.EqualFold(rank, retiredMarker) {
			table.Retired = append(table.Retired, code)
			continue
		}

		rec, err := p.record(row, id)
		if err != nil {
			if p.strictNames && isNameError(err) {
				return table, fmt.Errorf("%w: %s: row %d: %v", ErrSchemaViolation, id, sheetRow, err)
			}
			table.Rejected = append(table.Rejected, model.RowError{Row: sheetRow, Err: err})
			continue
		}
		rec.Row = sheetRow
		rec.RankLabel = rank
		if n, convErr := strconv.Atoi(rank); convErr == nil {
			rec.Rank = n
		}
		table.Records = append(table.Records, rec)
	}
	return table, nil
}

func (p *Parser) hasPositionColumns(rows [][]string) bool {
	need := p.schema.Columns[FieldLatitude]
	if c := p.schema.Columns[FieldLongitude]; c > need {
		need = c
	}
	for _, row := range rows {
		if len(row) > need {
			return true
		}
	}
	return false
}

type nameError struct{ name string }

func (e *nameError) Error() string {
	return fmt.Sprintf("name %q has no %q separator", e.name, nameSeparator)
}

func isNameError(err error) bool {
	_, ok := err.(*nameError) //nolint:errorlint // concrete type created in this file
	return ok
}

func (p *Parser) record(row []string, id model.SnapshotID) (model.BoatRecord, error) {
	name := p.text(row, FieldName)
	skipper, boat, found := strings.Cut(name, nameSeparator)
	if !found && p.strictNames {
		return model.BoatRecord{}, &nameError{name: name}
	}

	lat, err := coord.ParseLatitude(p.text(row, FieldLatitude))
	if err != nil {
		return model.BoatRecord{}, err
	}
	lon, err := coord.ParseLongitude(p.text(row, FieldLongitude))
	if err != nil {
		return model.BoatRecord{}, err
	}

	reported := p.text(row, FieldTime)
	return model.BoatRecord{
		Snapshot:     id,
		BoatCode:     p.text(row, FieldCode),
		SkipperName:  strings.TrimSpace(skipper),
		BoatName:     strings.TrimSpace(boat),
		ReportedTime: reported,
		Latitude:     lat,
		Longitude:    lon,
		Lat:          coord.ToDecimal(lat),
		Lon:          coord.ToDecimal(lon),
		Timestamp:    p.timestamp(reported, id.Date),
		Last30Min: model.Window{
			Heading:  p.number(row, Field30mHeading),
			Speed:    p.number(row, Field30mSpeed),
			VMG:      p.number(row, Field30mVMG),
			Distance: p.number(row, Field30mDistance),
		},
		SinceLastReport: model.Window{
			Heading:  p.number(row, FieldLastHeading),
			Speed:    p.number(row, FieldLastSpeed),
			VMG:      p.number(row, FieldLastVMG),
			Distance: p.number(row, FieldLastDistance),
		},
		Last24Hours: model.Window{
			Heading:  p.number(row, Field24hHeading),
			Speed:    p.number(row, Field24hSpeed),
			VMG:      p.number(row, Field24hVMG),
			Distance: p.number(row, Field24hDistance),
		},
		DistanceToFinish: p.number(row, FieldDTF),
		DistanceToLeader: p.number(row, FieldDTL),
	}, nil
}

// text returns the normalized content of a cell: embedded line breaks become
// " - " and surrounding space is trimmed.
func (p *Parser) text(row []string, f Field) string {
	v, _ := p.schema.cell(row, f)
	return strings.TrimSpace(lineBreaks.Replace(v))
}

// timestamp combines the HH:MM found in reported with date. It returns the
// zero time when no valid clock time is present.
func (p *Parser) timestamp(reported, date string) time.Time {
	hm := clockPattern.FindString(strings.ReplaceAll(reported, timeSuffix, ""))
	if hm == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation("20060102 15:04", date+" "+hm, p.location)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (p *Parser) number(row []string, f Field) model.Number {
	raw := digitSpaces.Replace(p.text(row, f))
	m := numberPattern.FindString(raw)
	if m == "" {
		return model.Number{}
	}
	v, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64)
	if err != nil {
		return model.Number{}
	}
	return model.Some(v)
}
