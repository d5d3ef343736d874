// Package timezone resolves the location signs are read in and formats
// instants for display.
//
// Parking windows are wall-clock times, so every instant handed to the
// evaluator must already be in the sign's location.
package timezone

import (
	"time"

	"github.com/pkg/errors"
)

// LocalLayout is the wall-clock layout accepted for instants without an offset.
const LocalLayout = "2006-01-02 15:04"

// DisplayLayout is how instants are shown to users.
const DisplayLayout = "Mon 2006-01-02 15:04 MST"

// ParseTimezone parses an IANA timezone identifier (e.g., "America/New_York").
// If the timezone is invalid, returns UTC and an error.
func ParseTimezone(tz string) (*time.Location, error) {
	if tz == "" || tz == "UTC" {
		return time.UTC, nil
	}
	if tz == "Local" {
		return time.Local, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC, errors.Wrapf(err, "invalid timezone %q", tz)
	}
	return loc, nil
}

// MustParseTimezone parses a timezone or panics if invalid.
func MustParseTimezone(tz string) *time.Location {
	loc, err := ParseTimezone(tz)
	if err != nil {
		panic(err)
	}
	return loc
}

// IsValidTimezone checks if a timezone identifier is valid.
func IsValidTimezone(tz string) bool {
	_, err := ParseTimezone(tz)
	return err == nil
}

// ParseInstant reads an RFC 3339 timestamp, or a wall-clock time in
// LocalLayout interpreted in loc. RFC 3339 instants are converted to loc.
func ParseInstant(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	t, err := time.ParseInLocation(LocalLayout, s, loc)
	if err != nil {
		return time.Time{}, errors.Errorf("unrecognized instant %q, want RFC 3339 or %q", s, LocalLayout)
	}
	return t, nil
}

// Format renders an instant in loc for display.
func Format(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DisplayLayout)
}
