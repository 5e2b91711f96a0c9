// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout     = "20060102"
	slotLayout     = "150405"
	dateSlotLayout = dateLayout + slotLayout
)

// ErrInvalidSnapshotID is returned for identifiers that are not YYYYMMDD_HHMMSS.
var ErrInvalidSnapshotID = errors.New("invalid snapshot id")

// SnapshotID names one published leaderboard: a calendar date and a
// time-of-day slot, both fixed width so lexical order is chronological.
type SnapshotID struct {
	Date string `json:"date"` // YYYYMMDD
	Slot string `json:"slot"` // HHMMSS
}

// String returns YYYYMMDD_HHMMSS.
func (id SnapshotID) String() string {
	return id.Date + "_" + id.Slot
}

// Compare orders identifiers by date then slot.
func (id SnapshotID) Compare(other SnapshotID) int {
	if c := strings.Compare(id.Date, other.Date); c != 0 {
		return c
	}
	return strings.Compare(id.Slot, other.Slot)
}

// Less reports whether id precedes other.
func (id SnapshotID) Less(other SnapshotID) bool {
	return id.Compare(other) < 0
}

// IsZero reports whether id is unset.
func (id SnapshotID) IsZero() bool {
	return id.Date == "" && id.Slot == ""
}

// Time returns the publication instant of id in loc.
func (id SnapshotID) Time(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(dateSlotLayout, id.Date+id.Slot, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidSnapshotID, id)
	}
	return t, nil
}

// Validate checks both halves of id.
func (id SnapshotID) Validate() error {
	if _, err := time.Parse(dateLayout, id.Date); err != nil || len(id.Date) != len(dateLayout) {
		return fmt.Errorf("%w: date %q", ErrInvalidSnapshotID, id.Date)
	}
	if _, err := time.Parse(slotLayout, id.Slot); err != nil || len(id.Slot) != len(slotLayout) {
		return fmt.Errorf("%w: slot %q", ErrInvalidSnapshotID, id.Slot)
	}
	return nil
}

// ParseSnapshotID parses YYYYMMDD_HHMMSS.
func ParseSnapshotID(s string) (SnapshotID, error) {
	date, slot, ok := strings.Cut(strings.TrimSpace(s), "_")
	if !ok {
		return SnapshotID{}, fmt.Errorf("%w: %q", ErrInvalidSnapshotID, s)
	}
	id := SnapshotID{Date: date, Slot: slot}
	if err := id.Validate(); err != nil {
		return SnapshotID{}, err
	}
	return id, nil
}

// FormatDate renders t as YYYYMMDD.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// FormatSlot renders t as HHMMSS.
func FormatSlot(t time.Time) string {
	return t.Format(slotLayout)
}
