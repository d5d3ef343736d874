package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hrygo/parksense/plugin/parking"
)

// Base confidences per phrasing.
const (
	confidenceExplicitLimit = 0.9
	confidenceBareLimit     = 0.75
	confidenceNoParking     = 0.95
	confidenceTowZone       = 0.8
	confidencePermit        = 0.95
	confidenceMetered       = 0.9
	confidenceFree          = 0.95
	confidenceBareFree      = 0.8
	confidenceLoading       = 0.9
	confidenceCleaning      = 0.9
	confidenceUnknown       = 0.5
)

// pattern is one phrasing of a kind, tried on a single normalized line.
type pattern struct {
	re         *regexp.Regexp
	confidence float64
}

// matcher recognizes one rule kind. Patterns are tried in order and a hit
// anchors a block; build turns that hit and the text of the block into a Kind.
type matcher struct {
	tag      parking.KindTag
	patterns []pattern
	build    func(match []string, block string) (parking.Kind, bool)
}

var (
	durationUnit = `(HOURS?|HRS?|H|MINUTES?|MINS?)`
	amount       = `(\d{1,3}|1/2)`

	permitTypePattern = regexp.MustCompile(`\b(ZONE|AREA|DISTRICT)\s*#?\s*([A-Z]?\d{1,3}[A-Z]?|[A-Z])\b`)
	towPattern        = regexp.MustCompile(`\bTOW(?:[\s-]*AWAY|ED|\s+ZONE)\b`)
	finePattern       = regexp.MustCompile(`\$\s*(\d+(?:\.\d{1,2})?)\s*FINE\b|\bFINED?\s*(?:OF\s+)?(?:UP\s+TO\s+)?\$\s*(\d+(?:\.\d{1,2})?)`)
)

// newMatchers builds the ordered matcher battery. Order decides the order of
// extracted rules, which the evaluator uses to break severity ties.
func newMatchers() []matcher {
	return []matcher{
		{
			tag: parking.TagTimeLimit,
			patterns: []pattern{
				{regexp.MustCompile(`\b` + amount + `\s*(?:-\s*)?` + durationUnit + `\s*(?:PARKING|LIMIT|MAX(?:IMUM)?)\b`), confidenceExplicitLimit},
				{regexp.MustCompile(`\b(?:LIMIT(?:ED)?(?:\s+TO)?|MAX(?:IMUM)?)\s+` + amount + `\s*` + durationUnit + `\b`), confidenceExplicitLimit},
				{regexp.MustCompile(`^` + amount + `\s*` + durationUnit + `$`), confidenceBareLimit},
			},
			build: buildTimeLimit,
		},
		{
			tag: parking.TagNoParking,
			patterns: []pattern{
				{regexp.MustCompile(`\bNO\s+(?:PARKING|STOPPING|STANDING)\b`), confidenceNoParking},
				{regexp.MustCompile(`\bTOW[\s-]*AWAY\s+ZONE\b`), confidenceTowZone},
			},
			build: func([]string, string) (parking.Kind, bool) { return parking.NoParking{}, true },
		},
		{
			tag: parking.TagPermitRequired,
			patterns: []pattern{
				{regexp.MustCompile(`\bPERMIT\s+(?:PARKING\s+)?ONLY\b|\bPERMIT\s+REQUIRED\b|\bBY\s+PERMIT\s+ONLY\b|\bPERMIT\s+HOLDERS\s+ONLY\b|\bRESIDENTS?\s+(?:PARKING\s+)?ONLY\b`), confidencePermit},
			},
			build: buildPermit,
		},
		{
			tag: parking.TagMetered,
			patterns: []pattern{
				{regexp.MustCompile(`\bMETER(?:ED|S)?\b|\bPAY\s+(?:TO\s+PARK|STATION|AT\s+(?:METER|MACHINE|KIOSK|STATION)|BY\s+(?:PHONE|APP|PLATE))\b|\bPAY\s*(?:&|AND)\s*DISPLAY\b|\$\s*\d+(?:\.\d{1,2})?\s*(?:/|PER)\s*(?:HOUR|HR)\b`), confidenceMetered},
			},
			build: func([]string, string) (parking.Kind, bool) { return parking.Metered{}, true },
		},
		{
			tag: parking.TagFree,
			patterns: []pattern{
				{regexp.MustCompile(`\bFREE\s+PARKING\b|\bPARKING\s+(?:IS\s+)?FREE\b|\bNO\s+CHARGE\b`), confidenceFree},
				{regexp.MustCompile(`\bFREE\b`), confidenceBareFree},
			},
			build: func([]string, string) (parking.Kind, bool) { return parking.Free{}, true },
		},
		{
			tag: parking.TagLoadingZone,
			patterns: []pattern{
				{regexp.MustCompile(`\bLOADING\s+(?:ZONE|ONLY)\b|\bLOADING\s+(?:AND|&)\s+UNLOADING\b`), confidenceLoading},
			},
			build: func([]string, string) (parking.Kind, bool) { return parking.LoadingZone{}, true },
		},
		{
			tag: parking.TagStreetCleaning,
			patterns: []pattern{
				{regexp.MustCompile(`\bSTREET\s+(?:CLEANING|SWEEPING)\b|\bSWEEPING\b`), confidenceCleaning},
			},
			build: func([]string, string) (parking.Kind, bool) { return parking.StreetCleaning{}, true },
		},
	}
}

// find returns the first pattern hit on line.
func (m matcher) find(line string) ([]string, float64, bool) {
	for _, p := range m.patterns {
		if match := p.re.FindStringSubmatch(line); match != nil {
			return match, p.confidence, true
		}
	}
	return nil, 0, false
}

func buildTimeLimit(match []string, _ string) (parking.Kind, bool) {
	if len(match) < 3 {
		return nil, false
	}
	minutes := 0
	if match[1] == "1/2" {
		minutes = 30
	} else {
		n, err := strconv.Atoi(match[1])
		if err != nil || n <= 0 {
			return nil, false
		}
		minutes = n
	}
	if strings.HasPrefix(match[2], "H") && match[1] != "1/2" {
		minutes *= 60
	}
	if minutes <= 0 || minutes > parking.MinutesPerDay {
		return nil, false
	}
	return parking.TimeLimit{DurationMinutes: minutes}, true
}

func buildPermit(_ []string, block string) (parking.Kind, bool) {
	kind := parking.PermitRequired{}
	if m := permitTypePattern.FindStringSubmatch(block); m != nil {
		kind.PermitType = m[1] + " " + m[2]
	}
	return kind, true
}

// parseCents reads a dollar figure such as "2", "2.5" or "2.50" as minor units.
func parseCents(s string) (int64, bool) {
	whole, frac, _ := strings.Cut(s, ".")
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, false
	}
	cents := w * 100
	switch len(frac) {
	case 0:
	case 1:
		f, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, false
		}
		cents += f * 10
	case 2:
		f, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, false
		}
		cents += f
	default:
		return 0, false
	}
	return cents, true
}

// findFine returns the first fine printed in text.
func findFine(text string) (int64, bool) {
	m := finePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	figure := m[1]
	if figure == "" {
		figure = m[2]
	}
	return parseCents(figure)
}
