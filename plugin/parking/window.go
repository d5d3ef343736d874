package parking

import (
	"fmt"
	"time"
)

// TimeWindow is a recurring restriction window: active from Start until End
// on each of Days.
//
// Start > End wraps past midnight; the part after midnight belongs to the
// previous day's entry in Days. Start == End covers the whole day.
type TimeWindow struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
	Days  DaySet    `json:"days"`
}

// CrossesMidnight reports whether the window spans two calendar days.
func (w TimeWindow) CrossesMidnight() bool {
	return w.Start > w.End
}

// WholeDay reports whether the window covers entire days.
func (w TimeWindow) WholeDay() bool {
	return w.Start == w.End
}

// Contains reports whether the window is active at the instant, judged by the
// weekday and clock reading of at in at's own location.
func (w TimeWindow) Contains(at time.Time) bool {
	days := w.Days.Effective()
	wd := at.Weekday()
	tod := TimeOfDayOf(at)

	switch {
	case w.WholeDay():
		return days.Contains(wd)
	case w.Start < w.End:
		return days.Contains(wd) && tod >= w.Start && tod < w.End
	default:
		// Split into [Start, 24:00) today and [00:00, End) carried over from yesterday.
		if days.Contains(wd) && tod >= w.Start {
			return true
		}
		return days.Contains(previousDay(wd)) && tod < w.End
	}
}

func (w TimeWindow) String() string {
	if w.WholeDay() {
		return fmt.Sprintf("all day %s", w.Days.Effective())
	}
	return fmt.Sprintf("%s-%s %s", w.Start, w.End, w.Days.Effective())
}

// Interval is a concrete half-open span [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Intervals returns the concrete active spans of the window that overlap
// [from, to), built in from's location. Contiguous spans are merged, so every
// Start and End strictly inside the range is a real activation change.
func (w TimeWindow) Intervals(from, to time.Time) []Interval {
	days := w.Days.Effective()
	loc := from.Location()
	y, m, d := from.Date()

	var raw []Interval
	// Begin one day early to pick up a span that wrapped past midnight.
	for day := time.Date(y, m, d-1, 0, 0, 0, 0, loc); day.Before(to); day = day.AddDate(0, 0, 1) {
		if !days.Contains(day.Weekday()) {
			continue
		}
		start := w.Start.On(day)
		end := w.End.On(day)
		if w.End <= w.Start {
			end = w.End.On(day.AddDate(0, 0, 1))
		}
		raw = append(raw, Interval{Start: start, End: end})
	}

	var merged []Interval
	for _, iv := range raw {
		if n := len(merged); n > 0 && !iv.Start.After(merged[n-1].End) {
			if iv.End.After(merged[n-1].End) {
				merged[n-1].End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}

	result := merged[:0]
	for _, iv := range merged {
		if iv.End.After(from) && iv.Start.Before(to) {
			result = append(result, iv)
		}
	}
	return result
}

// NextBoundary returns the first instant strictly after from, and before
// horizon, at which the window switches between active and inactive.
func (w TimeWindow) NextBoundary(from, horizon time.Time) (time.Time, bool) {
	var (
		next  time.Time
		found bool
	)
	consider := func(t time.Time) {
		if !t.After(from) || !t.Before(horizon) {
			return
		}
		if !found || t.Before(next) {
			next, found = t, true
		}
	}
	for _, iv := range w.Intervals(from, horizon) {
		consider(iv.Start)
		consider(iv.End)
	}
	return next, found
}
