package schedule

import (
	"time"

	"github.com/okian/sailtrack/internal/domain/model"
)

// Resolver answers calendar questions relative to a reference time that the
// caller always supplies.
type Resolver struct {
	cal Calendar
}

// NewResolver validates cal and keeps a private copy of it.
func NewResolver(cal Calendar) (*Resolver, error) {
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	slots := make([]string, len(cal.Slots))
	copy(slots, cal.Slots)
	cal.Slots = slots
	return &Resolver{cal: cal}, nil
}

// Calendar returns a copy of the schedule.
func (r *Resolver) Calendar() Calendar {
	c := r.cal
	c.Slots = r.Slots()
	return c
}

// Slots returns the daily slots in ascending order.
func (r *Resolver) Slots() []string {
	out := make([]string, len(r.cal.Slots))
	copy(out, r.cal.Slots)
	return out
}

// FirstDay returns the irregular pre-start snapshot.
func (r *Resolver) FirstDay() model.SnapshotID {
	return r.cal.FirstDay
}

// DatesSinceStart lists YYYYMMDD from the race start through the local date
// of now, inclusive. It is empty when now precedes the start.
func (r *Resolver) DatesSinceStart(now time.Time) []string {
	loc := r.cal.location()
	start := civilDate(r.cal.RaceStart.In(loc))
	today := civilDate(now.In(loc))
	if today.Before(start) {
		return nil
	}
	var dates []string
	for d := start; !d.After(today); d = d.AddDate(0, 0, 1) {
		dates = append(dates, model.FormatDate(d))
	}
	return dates
}

// MostRecentPublishedSlot returns the latest slot whose clock time is not
// after now minus the publication lag. When no slot qualifies it returns the
// final slot of the day, even though that slot belongs to the previous day.
func (r *Resolver) MostRecentPublishedSlot(now time.Time) string {
	adjusted := now.In(r.cal.location()).Add(-r.cal.PublicationLag)
	clock := model.FormatSlot(adjusted)
	latest := ""
	for _, s := range r.cal.Slots {
		if s <= clock {
			latest = s
		}
	}
	if latest == "" {
		return r.cal.Slots[len(r.cal.Slots)-1]
	}
	return latest
}

// LatestSnapshot pairs the current local date with MostRecentPublishedSlot.
// In the early-morning fallback the pair names a slot later than now.
func (r *Resolver) LatestSnapshot(now time.Time) model.SnapshotID {
	return model.SnapshotID{
		Date: model.FormatDate(now.In(r.cal.location())),
		Slot: r.MostRecentPublishedSlot(now),
	}
}

// PublishedAt returns when id becomes downloadable.
func (r *Resolver) PublishedAt(id model.SnapshotID) (time.Time, error) {
	t, err := id.Time(r.cal.location())
	if err != nil {
		return time.Time{}, err
	}
	return t.Add(r.cal.PublicationLag), nil
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
