// Package scheduling expands a doctor's recurring daily window into
// bookable slots and provides the interval overlap test shared with the
// booking path.
package scheduling

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultHorizonDays  = 4
	DefaultSlotDuration = 30 * time.Minute

	dateLayout    = "2006-01-02"
	dayLayout     = "Monday, January 2"
	clockLayout   = "3:04 PM"
	clockInLayout = "15:04"
)

// Interval is a half-open [Start, End) time range.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Window is a recurring daily clock range. Only the clock part of Start and
// End is used.
type Window struct {
	Start time.Time
	End   time.Time
}

// Slot is one bookable interval.
type Slot struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Formatted string    `json:"formatted"`
	Day       string    `json:"day"`
}

// DaySlots groups the slots of one calendar day.
type DaySlots struct {
	Date        string `json:"date"`
	DisplayDate string `json:"displayDate"`
	Slots       []Slot `json:"slots"`
}

// Overlaps reports whether [start, end) intersects [bookedStart, bookedEnd):
// the start falls inside the booking, the end falls inside it, or the
// candidate fully contains it.
func Overlaps(start, end, bookedStart, bookedEnd time.Time) bool {
	startsInside := !start.Before(bookedStart) && start.Before(bookedEnd)
	endsInside := end.After(bookedStart) && !end.After(bookedEnd)
	contains := !start.After(bookedStart) && !end.Before(bookedEnd)
	return startsInside || endsInside || contains
}

// OverlapsAny reports whether [start, end) intersects any of booked.
func OverlapsAny(start, end time.Time, booked []Interval) bool {
	for _, b := range booked {
		if Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}

// Generator produces slots for a rolling horizon of days.
type Generator struct {
	Days         int
	SlotDuration time.Duration
	Location     *time.Location
}

// NewGenerator returns a generator with the default 4-day horizon and
// 30-minute slots, projecting windows in loc.
func NewGenerator(loc *time.Location) Generator {
	return Generator{
		Days:         DefaultHorizonDays,
		SlotDuration: DefaultSlotDuration,
		Location:     loc,
	}
}

func (g Generator) location() *time.Location {
	if g.Location == nil {
		return time.UTC
	}
	return g.Location
}

func (g Generator) days() int {
	if g.Days <= 0 {
		return DefaultHorizonDays
	}
	return g.Days
}

func (g Generator) duration() time.Duration {
	if g.SlotDuration <= 0 {
		return DefaultSlotDuration
	}
	return g.SlotDuration
}

// Horizon returns the range [from, to) covering every day Generate emits for
// now: midnight of today up to midnight after the last day.
func (g Generator) Horizon(now time.Time) (time.Time, time.Time) {
	loc := g.location()
	y, m, d := now.In(loc).Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 0, g.days())
}

// Generate projects window onto each day of the horizon starting at now's
// calendar date and returns the free slots, skipping any slot that starts
// before now or overlaps a booked interval. Every day is present in the
// result even when it has no free slots.
func (g Generator) Generate(window Window, booked []Interval, now time.Time) []DaySlots {
	loc := g.location()
	step := g.duration()
	local := now.In(loc)

	sh, sm, ss := window.Start.In(loc).Clock()
	eh, em, es := window.End.In(loc).Clock()

	result := make([]DaySlots, 0, g.days())
	for i := 0; i < g.days(); i++ {
		y, m, d := local.AddDate(0, 0, i).Date()
		windowStart := time.Date(y, m, d, sh, sm, ss, 0, loc)
		windowEnd := time.Date(y, m, d, eh, em, es, 0, loc)

		day := DaySlots{
			Date:        windowStart.Format(dateLayout),
			DisplayDate: windowStart.Format(dayLayout),
			Slots:       []Slot{},
		}
		for current := windowStart; !current.Add(step).After(windowEnd); current = current.Add(step) {
			next := current.Add(step)
			if current.Before(now) {
				continue
			}
			if OverlapsAny(current, next, booked) {
				continue
			}
			day.Slots = append(day.Slots, Slot{
				StartTime: current,
				EndTime:   next,
				Formatted: fmt.Sprintf("%s - %s", current.Format(clockLayout), next.Format(clockLayout)),
				Day:       current.Format(dayLayout),
			})
		}
		result = append(result, day)
	}
	return result
}

// ParseClock parses "15:04" (or an RFC3339 timestamp, whose clock is kept)
// into a time on 1970-01-01 in loc.
func ParseClock(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	value = strings.TrimSpace(value)
	if t, err := time.ParseInLocation(clockInLayout, value, loc); err == nil {
		return time.Date(1970, 1, 1, t.Hour(), t.Minute(), 0, 0, loc), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid clock time %q: expected HH:MM", value)
	}
	h, m, s := t.In(loc).Clock()
	return time.Date(1970, 1, 1, h, m, s, 0, loc), nil
}

// ValidWindow reports whether the window's clock end is after its clock start.
func ValidWindow(w Window, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	return clockSeconds(w.End.In(loc)) > clockSeconds(w.Start.In(loc))
}

func clockSeconds(t time.Time) int {
	h, m, s := t.Clock()
	return h*3600 + m*60 + s
}
