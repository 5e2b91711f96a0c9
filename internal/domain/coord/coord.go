// Package coord converts leaderboard positions written as degrees, minutes and
// seconds (e.g. 48°23.45N) into signed decimal degrees.
package coord

import (
	"fmt"
	"strconv"
	"strings"
)

// Hemisphere is the trailing N, S, E or W of a position.
type Hemisphere byte

const (
	North Hemisphere = 'N'
	South Hemisphere = 'S'
	East  Hemisphere = 'E'
	West  Hemisphere = 'W'
)

const (
	degreeMark   = "°"
	maxMinutes   = 59
	maxSeconds   = 59
	minPerDeg    = 60.0
	secPerDeg    = 3600.0
	maxLatitude  = 90.0
	maxLongitude = 180.0
)

// Valid reports whether h is one of the four hemisphere letters.
func (h Hemisphere) Valid() bool {
	switch h {
	case North, South, East, West:
		return true
	}
	return false
}

// IsLatitude reports whether h qualifies a latitude.
func (h Hemisphere) IsLatitude() bool { return h == North || h == South }

// IsLongitude reports whether h qualifies a longitude.
func (h Hemisphere) IsLongitude() bool { return h == East || h == West }

// DMS is a sexagesimal coordinate as printed on the leaderboard.
type DMS struct {
	Degrees    int
	Minutes    int
	Seconds    int
	Hemisphere Hemisphere
}

// String renders d back to the DD°MM.SSH grammar.
func (d DMS) String() string {
	return fmt.Sprintf("%02d°%02d.%02d%c", d.Degrees, d.Minutes, d.Seconds, d.Hemisphere)
}

// Parse reads a DD°MM.SS<H> coordinate. Apostrophes and double quotes are
// ignored so that 48°23.45'N parses the same as 48°23.45N.
func Parse(text string) (DMS, error) {
	s := strings.TrimSpace(text)
	s = strings.NewReplacer("'", "", "\"", "", "’", "", "”", "").Replace(s)
	if s == "" {
		return DMS{}, malformed(text, "empty")
	}

	h := Hemisphere(strings.ToUpper(s[len(s)-1:])[0])
	if !h.Valid() {
		return DMS{}, malformed(text, "missing hemisphere")
	}
	body := strings.TrimSpace(s[:len(s)-1])

	degPart, rest, ok := strings.Cut(body, degreeMark)
	if !ok {
		return DMS{}, malformed(text, "missing degree mark")
	}
	minPart, secPart, ok := strings.Cut(rest, ".")
	if !ok || strings.Contains(secPart, ".") {
		return DMS{}, malformed(text, "minutes and seconds must be separated by one period")
	}

	deg, err := unsigned(degPart)
	if err != nil {
		return DMS{}, malformed(text, "degrees")
	}
	minutes, err := unsigned(minPart)
	if err != nil || minutes > maxMinutes {
		return DMS{}, malformed(text, "minutes")
	}
	seconds, err := unsigned(secPart)
	if err != nil || seconds > maxSeconds {
		return DMS{}, malformed(text, "seconds")
	}

	return DMS{Degrees: deg, Minutes: minutes, Seconds: seconds, Hemisphere: h}, nil
}

// ParseLatitude parses text and requires an N or S hemisphere.
func ParseLatitude(text string) (DMS, error) {
	d, err := Parse(text)
	if err != nil {
		return DMS{}, err
	}
	if !d.Hemisphere.IsLatitude() {
		return DMS{}, malformed(text, "latitude needs N or S")
	}
	return d, nil
}

// ParseLongitude parses text and requires an E or W hemisphere.
func ParseLongitude(text string) (DMS, error) {
	d, err := Parse(text)
	if err != nil {
		return DMS{}, err
	}
	if !d.Hemisphere.IsLongitude() {
		return DMS{}, malformed(text, "longitude needs E or W")
	}
	return d, nil
}

// ToDecimal returns deg + min/60 + sec/3600, negated south of the equator
// and west of Greenwich.
func ToDecimal(d DMS) float64 {
	v := float64(d.Degrees) + float64(d.Minutes)/minPerDeg + float64(d.Seconds)/secPerDeg
	if d.Hemisphere == South || d.Hemisphere == West {
		return -v
	}
	return v
}

// Decimal parses text and converts it in one step.
func Decimal(text string) (float64, error) {
	d, err := Parse(text)
	if err != nil {
		return 0, err
	}
	return ToDecimal(d), nil
}

// ValidLatitude reports whether v lies within [-90, 90].
func ValidLatitude(v float64) bool { return v >= -maxLatitude && v <= maxLatitude }

// ValidLongitude reports whether v lies within [-180, 180].
func ValidLongitude(v float64) bool { return v >= -maxLongitude && v <= maxLongitude }

func unsigned(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "+-") {
		return 0, strconv.ErrSyntax
	}
	return strconv.Atoi(s)
}

func malformed(text, reason string) error {
	return fmt.Errorf("%w: %q: %s", ErrMalformedCoordinate, text, reason)
}
