// Package testsnapshots produces synthetic leaderboard workbooks laid out
// like the published ones, for offline runs and tests.
package testsnapshots

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Boat is one synthetic competitor.
type Boat struct {
	Code    string
	Skipper string
	Name    string
	// Start position in decimal degrees and a constant course.
	Lat, Lon   float64
	HeadingDeg float64
	SpeedKts   float64
}

var skippers = []string{ //nolint:gochecknoglobals // fixture names
	"Charlie Dalin", "Yoann Richomme", "Sébastien Simon", "Jérémie Beyou",
	"Thomas Ruyant", "Sam Goodchild", "Boris Herrmann", "Paul Meilhat",
	"Nicolas Lunven", "Clarisse Crémer", "Justine Mettraux", "Yannick Bestaven",
}

var boatNames = []string{ //nolint:gochecknoglobals // fixture names
	"MACIF Santé Prévoyance", "PAPREC ARKÉA", "Groupe Dubreuil", "Charal",
	"VULNERABLE", "VULNERABLE II", "Malizia - Seaexplorer", "Biotherm",
	"HOLCIM - PRB", "L'Occitane en Provence", "TeamWork - Team Snef", "Maître CoQ V",
}

var nations = []string{"FRA", "GBR", "GER", "SUI", "ITA", "ESP"} //nolint:gochecknoglobals // fixture prefixes

// NewFleet returns n boats leaving Les Sables-d'Olonne. The same seed always
// yields the same fleet.
func NewFleet(n int, seed uint64) []Boat {
	r := rand.New(rand.NewPCG(seed, seed^0x5a17)) //nolint:gosec // fixtures, not secrets
	fleet := make([]Boat, n)
	for i := range fleet {
		fleet[i] = Boat{
			Code:       fmt.Sprintf("%s %d", nations[i%len(nations)], 1+i*7%99),
			Skipper:    skippers[i%len(skippers)],
			Name:       boatNames[i%len(boatNames)],
			Lat:        46.47 + r.Float64()*0.1,
			Lon:        -1.80 - r.Float64()*0.1,
			HeadingDeg: 200 + r.Float64()*20,
			SpeedKts:   12 + r.Float64()*6,
		}
	}
	return fleet
}

// Position returns where b is after elapsed time on its constant course,
// with longitude wrapped into [-180, 180).
func (b Boat) Position(elapsed time.Duration) (lat, lon float64) {
	nm := b.SpeedKts * elapsed.Hours()
	rad := b.HeadingDeg * math.Pi / 180
	lat = b.Lat + nm*math.Cos(rad)/60
	lat = math.Max(-80, math.Min(80, lat))
	lon = b.Lon + nm*math.Sin(rad)/(60*math.Cos(lat*math.Pi/180))
	lon = math.Mod(lon+540, 360) - 180
	return lat, lon
}

// FormatDMS renders v as DD°MM.SS followed by the hemisphere letter.
func FormatDMS(v float64, latitude bool) string {
	hem := 'N'
	switch {
	case latitude && v < 0:
		hem = 'S'
	case !latitude && v < 0:
		hem = 'W'
	case !latitude:
		hem = 'E'
	}
	total := int(math.Round(math.Abs(v) * 3600))
	return fmt.Sprintf("%02d°%02d.%02d%c", total/3600, total/60%60, total%60, hem)
}
