// Package schedule decides which leaderboard snapshots exist and which of
// them still need to be fetched.
package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/okian/sailtrack/internal/domain/model"
)

// Calendar is the publication schedule of a race. It is built once and
// never modified; resolvers receive it by value.
type Calendar struct {
	// RaceStart is the first regular day; only its date is used.
	RaceStart time.Time
	// Slots are the daily HHMMSS publication times in ascending order.
	Slots []string
	// FirstDay is the irregular snapshot published before the regular cadence.
	FirstDay model.SnapshotID
	// PublicationLag is how long after a slot its file becomes available.
	PublicationLag time.Duration
	// Location is the time zone slots are expressed in.
	Location *time.Location
}

// DefaultSlots is the four-hourly cadence of the leaderboard.
var DefaultSlots = []string{"020000", "060000", "100000", "140000", "180000", "220000"} //nolint:gochecknoglobals // read-only defaults

// DefaultCalendar returns the Vendée Globe 2024 schedule.
func DefaultCalendar() Calendar {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		loc = time.UTC
	}
	slots := make([]string, len(DefaultSlots))
	copy(slots, DefaultSlots)
	return Calendar{
		RaceStart:      time.Date(2024, time.November, 11, 0, 0, 0, 0, loc),
		Slots:          slots,
		FirstDay:       model.SnapshotID{Date: "20241110", Slot: "130400"},
		PublicationLag: time.Hour,
		Location:       loc,
	}
}

// Validate checks slot format and ordering.
func (c Calendar) Validate() error {
	if len(c.Slots) == 0 {
		return fmt.Errorf("%w: no slots", ErrInvalidCalendar)
	}
	for _, s := range c.Slots {
		if len(s) != 6 {
			return fmt.Errorf("%w: slot %q is not HHMMSS", ErrInvalidCalendar, s)
		}
		if _, err := time.Parse("150405", s); err != nil {
			return fmt.Errorf("%w: slot %q: %v", ErrInvalidCalendar, s, err)
		}
	}
	if !sort.StringsAreSorted(c.Slots) {
		return fmt.Errorf("%w: slots must be ascending", ErrInvalidCalendar)
	}
	if !c.FirstDay.IsZero() {
		if err := c.FirstDay.Validate(); err != nil {
			return fmt.Errorf("%w: first day: %v", ErrInvalidCalendar, err)
		}
	}
	if c.PublicationLag < 0 {
		return fmt.Errorf("%w: negative publication lag", ErrInvalidCalendar)
	}
	if c.RaceStart.IsZero() {
		return fmt.Errorf("%w: missing race start", ErrInvalidCalendar)
	}
	return nil
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}
