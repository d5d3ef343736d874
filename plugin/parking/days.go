// Package parking defines the data model shared by the sign extraction,
// legality evaluation, pricing and timer packages.
//
// Every value in this package is immutable once built. Temporal queries take
// an explicit instant; nothing here reads the system clock.
package parking

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MinutesPerDay is the number of distinct TimeOfDay values.
const MinutesPerDay = 24 * 60

// TimeOfDay is a wall-clock time expressed as minutes since midnight (0..1439).
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from a 24-hour clock reading.
func NewTimeOfDay(hour, minute int) (TimeOfDay, bool) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, false
	}
	return TimeOfDay(hour*60 + minute), true
}

// MustTimeOfDay is NewTimeOfDay for literals known to be valid.
func MustTimeOfDay(hour, minute int) TimeOfDay {
	t, ok := NewTimeOfDay(hour, minute)
	if !ok {
		panic(fmt.Sprintf("invalid time of day %02d:%02d", hour, minute))
	}
	return t
}

// TimeOfDayOf returns the clock reading of t in t's own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Valid reports whether t is within 00:00..23:59.
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < MinutesPerDay
}

// On returns the instant at which t occurs on the calendar day of day.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, day.Location())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// MarshalJSON encodes the time of day as "HH:MM".
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes "HH:MM".
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	v, ok := NewTimeOfDay(h, m)
	if !ok {
		return fmt.Errorf("time of day out of range: %q", s)
	}
	*t = v
	return nil
}

// DaySet is a set of weekdays.
//
// The zero value is empty, which callers treat as "no day information":
// Effective maps it to EveryDay.
type DaySet uint8

const (
	Weekdays DaySet = 1<<time.Monday | 1<<time.Tuesday | 1<<time.Wednesday | 1<<time.Thursday | 1<<time.Friday
	Weekends DaySet = 1<<time.Saturday | 1<<time.Sunday
	EveryDay        = Weekdays | Weekends
)

// weekOrder lists weekdays the way signs do, Monday first.
var weekOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// NewDaySet returns the set of the given days.
func NewDaySet(days ...time.Weekday) DaySet {
	var s DaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

// DayRange returns the days from first to last inclusive, wrapping past Sunday.
func DayRange(first, last time.Weekday) DaySet {
	var s DaySet
	d := first
	for i := 0; i < 7; i++ {
		s = s.With(d)
		if d == last {
			break
		}
		d = (d + 1) % 7
	}
	return s
}

func (s DaySet) Contains(d time.Weekday) bool  { return s&(1<<d) != 0 }
func (s DaySet) With(d time.Weekday) DaySet    { return s | 1<<d }
func (s DaySet) Without(d time.Weekday) DaySet { return s &^ (1 << d) }
func (s DaySet) Union(o DaySet) DaySet         { return s | o }
func (s DaySet) Minus(o DaySet) DaySet         { return s &^ o }
func (s DaySet) IsEmpty() bool                 { return s&EveryDay == 0 }

// Effective returns EveryDay for the empty set and s otherwise.
func (s DaySet) Effective() DaySet {
	if s.IsEmpty() {
		return EveryDay
	}
	return s & EveryDay
}

// Days lists the members in Monday-first order.
func (s DaySet) Days() []time.Weekday {
	days := make([]time.Weekday, 0, 7)
	for _, d := range weekOrder {
		if s.Contains(d) {
			days = append(days, d)
		}
	}
	return days
}

// String renders runs of consecutive days compactly, e.g. "Mon-Fri" or "Tue,Thu".
func (s DaySet) String() string {
	if s.IsEmpty() {
		return "none"
	}
	var parts []string
	for i := 0; i < len(weekOrder); {
		if !s.Contains(weekOrder[i]) {
			i++
			continue
		}
		j := i
		for j+1 < len(weekOrder) && s.Contains(weekOrder[j+1]) {
			j++
		}
		if j == i {
			parts = append(parts, shortDay(weekOrder[i]))
		} else {
			parts = append(parts, shortDay(weekOrder[i])+"-"+shortDay(weekOrder[j]))
		}
		i = j + 1
	}
	return strings.Join(parts, ",")
}

// MarshalJSON encodes the set as an array of three-letter names.
func (s DaySet) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, 7)
	for _, d := range s.Days() {
		names = append(names, shortDay(d))
	}
	return json.Marshal(names)
}

// UnmarshalJSON decodes an array of day names.
func (s *DaySet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var set DaySet
	for _, name := range names {
		d, ok := WeekdayByName(name)
		if !ok {
			return fmt.Errorf("unknown weekday %q", name)
		}
		set = set.With(d)
	}
	*s = set
	return nil
}

// WeekdayByName resolves a day name by its first three letters, case-insensitively.
func WeekdayByName(name string) (time.Weekday, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if len(name) < 3 {
		return 0, false
	}
	for _, d := range weekOrder {
		if strings.ToLower(shortDay(d)) == name[:3] {
			return d, true
		}
	}
	return 0, false
}

func shortDay(d time.Weekday) string {
	return d.String()[:3]
}

func previousDay(d time.Weekday) time.Weekday {
	return (d + 6) % 7
}
