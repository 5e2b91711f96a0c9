package testsnapshots

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/okian/sailtrack/internal/adapters/xlsx"
	"github.com/okian/sailtrack/internal/domain/model"
	"github.com/okian/sailtrack/internal/domain/snapshot"
)

const sheetName = "Classement"

// Generator lays a fleet out on the published grid.
type Generator struct {
	fleet    []Boat
	start    time.Time
	location *time.Location
	schema   snapshot.Schema

	retired   map[string]bool
	malformed map[string]bool
	untimed   map[string]bool
}

// NewGenerator builds a generator whose boats leave at start.
func NewGenerator(fleet []Boat, start time.Time, opts ...Option) *Generator {
	g := &Generator{
		fleet:     fleet,
		start:     start,
		location:  start.Location(),
		schema:    snapshot.DefaultSchema(),
		retired:   map[string]bool{},
		malformed: map[string]bool{},
		untimed:   map[string]bool{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Fleet returns the generator's boats.
func (g *Generator) Fleet() []Boat { return g.fleet }

// Grid returns the sheet for id as rows of cell text.
func (g *Generator) Grid(id model.SnapshotID) ([][]string, error) {
	at, err := id.Time(g.location)
	if err != nil {
		return nil, err
	}
	elapsed := at.Sub(g.start)
	if elapsed < 0 {
		elapsed = 0
	}

	type placed struct {
		boat     Boat
		lat, lon float64
		dtf      float64
	}
	rows := make([]placed, 0, len(g.fleet))
	for _, b := range g.fleet {
		lat, lon := b.Position(elapsed)
		rows = append(rows, placed{boat: b, lat: lat, lon: lon, dtf: 24_300 - b.SpeedKts*elapsed.Hours()})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].dtf < rows[j].dtf })

	width := 0
	for _, c := range g.schema.Columns {
		width = max(width, c+1)
	}
	grid := make([][]string, g.schema.FirstRow, g.schema.FirstRow+len(rows)+1)
	grid[0] = []string{"Vendée Globe - Classement"}
	grid[1] = []string{"Classement du " + id.Date + " à " + id.Slot}
	grid[g.schema.FirstRow-1] = []string{"", "Rang", "Code", "Skipper / Bateau", "Heure FR", "Latitude", "Longitude"}

	leader := rows
	reported := at.Add(-30 * time.Minute).Format("15:04")
	for i, p := range rows {
		b := p.boat
		cells := make([]string, width)
		set := func(f snapshot.Field, v string) {
			if c, ok := g.schema.Columns[f]; ok {
				cells[c] = v
			}
		}
		rank := strconv.Itoa(i + 1)
		if g.retired[b.Code] {
			rank = "RET"
		}
		set(snapshot.FieldRank, rank)
		set(snapshot.FieldCode, b.Code)
		set(snapshot.FieldName, b.Skipper+"\n"+b.Name)
		if g.untimed[b.Code] {
			set(snapshot.FieldTime, "--")
		} else {
			set(snapshot.FieldTime, reported+" FR")
		}
		set(snapshot.FieldLatitude, FormatDMS(p.lat, true))
		set(snapshot.FieldLongitude, FormatDMS(p.lon, false))
		if g.malformed[b.Code] {
			set(snapshot.FieldLatitude, "46 12.30N")
		}

		heading := fmt.Sprintf("%.0f°", b.HeadingDeg)
		speed := fmt.Sprintf("%.1f kts", b.SpeedKts)
		vmg := fmt.Sprintf("%.1f kts", b.SpeedKts*0.9)
		set(snapshot.Field30mHeading, heading)
		set(snapshot.Field30mSpeed, speed)
		set(snapshot.Field30mVMG, vmg)
		set(snapshot.Field30mDistance, fmt.Sprintf("%.1f nm", b.SpeedKts/2))
		set(snapshot.FieldLastHeading, heading)
		set(snapshot.FieldLastSpeed, speed)
		set(snapshot.FieldLastVMG, vmg)
		set(snapshot.FieldLastDistance, fmt.Sprintf("%.1f nm", b.SpeedKts*4))
		set(snapshot.Field24hHeading, heading)
		set(snapshot.Field24hSpeed, speed)
		set(snapshot.Field24hVMG, vmg)
		set(snapshot.Field24hDistance, fmt.Sprintf("%.1f nm", b.SpeedKts*24))
		set(snapshot.FieldDTF, fmt.Sprintf("%.1f nm", p.dtf))
		set(snapshot.FieldDTL, fmt.Sprintf("%.1f nm", p.dtf-leader[0].dtf))
		grid = append(grid, cells)
	}
	return grid, nil
}

// Workbook returns the xlsx bytes for id.
func (g *Generator) Workbook(id model.SnapshotID) ([]byte, error) {
	grid, err := g.Grid(id)
	if err != nil {
		return nil, err
	}
	return xlsx.Encode(sheetName, grid)
}
