// Package timegrammar parses the clock times, time ranges and day names printed
// on parking signs.
package timegrammar

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hrygo/parksense/plugin/parking"
)

// Patterns for sign time grammar. Compiled regexps carry no match state and are
// safe to share between goroutines.
var (
	timePattern = regexp.MustCompile(`^(\d{1,2})(?:[:.](\d{2}))?\s*(A\.?M\.?|P\.?M\.?|A|P)?$`)

	// endpoint captures a clock reading and an optional meridiem.
	endpoint     = `(NOON|MIDNIGHT|\d{1,2}(?:[:.]\d{2})?)\s*(A\.?M\.?|P\.?M\.?)?`
	rangePattern = regexp.MustCompile(`\b` + endpoint + `\s*(?:-|TO|THRU|UNTIL)\s*` + endpoint)

	day             = `(MON(?:DAY)?|TUE(?:SDAY|S)?|WED(?:NESDAY)?|THU(?:RSDAY|RS|R)?|FRI(?:DAY)?|SAT(?:URDAY)?|SUN(?:DAY)?)S?`
	dayRangePattern = regexp.MustCompile(`\b` + day + `\s*(?:-|THRU|THROUGH|TO)\s*` + day + `\b`)
	dayPattern      = regexp.MustCompile(`\b` + day + `\b`)
	weekdaysPattern = regexp.MustCompile(`\bWEEKDAYS?\b`)
	weekendsPattern = regexp.MustCompile(`\bWEEKENDS?\b`)
	everyDayPattern = regexp.MustCompile(`\b(?:DAILY|EVERY\s*DAY|7\s*DAYS)\b`)
	exceptPattern   = regexp.MustCompile(`\bEXCEPT\b`)
	anytimePattern  = regexp.MustCompile(`\b(?:ANY\s*TIME|AT\s+ALL\s+TIMES|24\s*HOURS?|24\s*HRS?|24/7)\b`)
	dashReplacer    = strings.NewReplacer("–", "-", "—", "-", "‒", "-")
)

// Range is a clock range [Start, End). Start > End wraps past midnight.
type Range struct {
	Start parking.TimeOfDay
	End   parking.TimeOfDay
}

// Normalize uppercases text and folds typographic dashes into '-'.
func Normalize(text string) string {
	return dashReplacer.Replace(strings.ToUpper(text))
}

// ParseTime parses "H", "H:MM" or "H.MM", optionally followed by AM/PM, plus
// the words NOON and MIDNIGHT. With a meridiem the hour must be 1..12;
// without one it is read as a 24-hour clock.
func ParseTime(token string) (parking.TimeOfDay, bool) {
	s := strings.TrimSpace(Normalize(token))
	switch s {
	case "NOON":
		return parking.MustTimeOfDay(12, 0), true
	case "MIDNIGHT":
		return 0, true
	}

	m := timePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	minute := 0
	if m[2] != "" {
		if minute, err = strconv.Atoi(m[2]); err != nil {
			return 0, false
		}
	}
	if m[3] != "" {
		var ok bool
		if hour, ok = applyMeridiem(hour, m[3][0] == 'P'); !ok {
			return 0, false
		}
	}
	return parking.NewTimeOfDay(hour, minute)
}

// applyMeridiem converts a 12-hour reading: 12 AM is 0, 12 PM stays 12, other
// PM hours gain 12.
func applyMeridiem(hour int, pm bool) (int, bool) {
	if hour < 1 || hour > 12 {
		return 0, false
	}
	switch {
	case !pm && hour == 12:
		return 0, true
	case pm && hour < 12:
		return hour + 12, true
	default:
		return hour, true
	}
}

// ParseRanges finds every clock range in text. A meridiem written only after
// the end ("7-9AM") is shared with the start. Ranges with an unparseable
// endpoint are dropped and counted in skipped.
func ParseRanges(text string) (ranges []Range, skipped int) {
	for _, m := range rangePattern.FindAllStringSubmatch(Normalize(text), -1) {
		r, ok := resolveRange(m[1], m[2], m[3], m[4])
		if !ok {
			skipped++
			continue
		}
		ranges = append(ranges, r)
	}
	return ranges, skipped
}

func resolveRange(startClock, startMeridiem, endClock, endMeridiem string) (Range, bool) {
	end, ok := ParseTime(endClock + endMeridiem)
	if !ok {
		return Range{}, false
	}

	var start parking.TimeOfDay
	switch {
	case startMeridiem != "" || isWord(startClock):
		if start, ok = ParseTime(startClock + startMeridiem); !ok {
			return Range{}, false
		}
	case endMeridiem != "":
		// "11-1PM" means 11 AM, "7-9PM" means 7 PM: take the end's meridiem
		// unless that would put the start after the end.
		same, okSame := ParseTime(startClock + endMeridiem)
		other, okOther := ParseTime(startClock + oppositeMeridiem(endMeridiem))
		switch {
		case okSame && same < end:
			start = same
		case okOther:
			start = other
		default:
			return Range{}, false
		}
	default:
		if start, ok = ParseTime(startClock); !ok {
			return Range{}, false
		}
	}

	// "8-6" and "8AM-6": a bare end before the start reads as afternoon.
	if endMeridiem == "" && !isWord(endClock) && end <= start && end.Hour() < 12 {
		if pm := end + 12*60; pm > start && pm.Valid() {
			end = pm
		}
	}
	return Range{Start: start, End: end}, true
}

func isWord(clock string) bool {
	return clock == "NOON" || clock == "MIDNIGHT"
}

func oppositeMeridiem(meridiem string) string {
	if strings.HasPrefix(meridiem, "P") {
		return "AM"
	}
	return "PM"
}

// ParseDays collects the weekdays named in text: day names (three-letter or
// full, plural allowed), ranges such as MON-FRI or MONDAY THRU FRIDAY, and the
// words WEEKDAYS, WEEKENDS and DAILY. Days named after EXCEPT are removed,
// from every day if nothing else was named. Unrecognized words are ignored. An
// empty result means the text carried no day information.
func ParseDays(text string) parking.DaySet {
	s := Normalize(text)
	loc := exceptPattern.FindStringIndex(s)
	if loc == nil {
		return scanDays(s)
	}

	included := scanDays(s[:loc[0]])
	excluded := scanDays(s[loc[1]:])
	if excluded.IsEmpty() {
		return included
	}
	return included.Effective().Minus(excluded)
}

func scanDays(s string) parking.DaySet {
	var set parking.DaySet
	if weekdaysPattern.MatchString(s) {
		set = set.Union(parking.Weekdays)
	}
	if weekendsPattern.MatchString(s) {
		set = set.Union(parking.Weekends)
	}
	if everyDayPattern.MatchString(s) {
		set = set.Union(parking.EveryDay)
	}
	for _, m := range dayRangePattern.FindAllStringSubmatch(s, -1) {
		first, okFirst := parking.WeekdayByName(m[1])
		last, okLast := parking.WeekdayByName(m[2])
		if okFirst && okLast {
			set = set.Union(parking.DayRange(first, last))
		}
	}
	for _, m := range dayPattern.FindAllStringSubmatch(s, -1) {
		if d, ok := parking.WeekdayByName(m[1]); ok {
			set = set.With(d)
		}
	}
	return set
}

// IsAnytime reports whether text says the rule applies around the clock.
func IsAnytime(text string) bool {
	return anytimePattern.MatchString(Normalize(text))
}
