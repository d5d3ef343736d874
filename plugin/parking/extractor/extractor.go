// Package extractor turns transcribed sign or meter text into candidate parking
// rules.
//
// Extraction is greedy: every matcher that recognizes its phrasing emits a
// rule, and contradictions are left for the evaluator to resolve. Text that no
// matcher recognizes yields a single Unknown rule so callers always receive at
// least one rule.
package extractor

import (
	"math"
	"sort"
	"strings"

	"github.com/hrygo/parksense/plugin/parking"
	"github.com/hrygo/parksense/plugin/parking/timegrammar"
)

const (
	// DefaultCurrency prices fines when the caller does not choose one.
	DefaultCurrency = "USD"

	// malformedPenalty is subtracted when a block held a time range that failed to parse.
	malformedPenalty = 0.1
	// maxExtractedConfidence keeps unconfirmed rules below 1.0.
	maxExtractedConfidence = 0.99
)

// Extractor holds the immutable matcher battery. It is safe for concurrent use.
type Extractor struct {
	currency string
	matchers []matcher
}

// New creates an extractor that prices fines in currency.
func New(currency string) *Extractor {
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Extractor{
		currency: currency,
		matchers: newMatchers(),
	}
}

var defaultExtractor = New(DefaultCurrency)

// Extract runs the default extractor over text.
func Extract(text string) []parking.Rule {
	return defaultExtractor.Extract(text)
}

// Extract returns every rule recognized in text, in matcher order.
func (e *Extractor) Extract(text string) []parking.Rule {
	return e.ExtractWithQuality(text, 1)
}

// ExtractWithQuality is Extract with every confidence scaled by an OCR quality
// hint in (0, 1]. Hints outside that range are ignored.
func (e *Extractor) ExtractWithQuality(text string, quality float64) []parking.Rule {
	if quality <= 0 || quality > 1 {
		quality = 1
	}

	lines := splitLines(text)
	hits := e.scan(lines)
	if len(hits) == 0 {
		return []parking.Rule{unknownRule(text, quality)}
	}

	towAway := towPattern.MatchString(timegrammar.Normalize(text))
	anchors, blocks := e.blocks(lines, hits)

	var rules []parking.Rule
	for _, h := range hits {
		b := blocks[h.line]

		kind, ok := e.matchers[h.matcher].build(h.match, b.upper)
		if !ok {
			continue
		}

		severity := parking.DefaultSeverity(kind)
		if towAway && kind.Restrictive() {
			severity = parking.SeverityTowAway
		}

		var fine *parking.Money
		if cents, ok := findFine(b.upper); ok {
			fine = &parking.Money{Amount: cents, Currency: e.currency}
		}

		confidence := h.confidence
		if b.skipped > 0 {
			confidence -= malformedPenalty
		}
		confidence = round(math.Max(0, math.Min(confidence*quality, maxExtractedConfidence)))

		windows := b.windows
		if _, cleaning := kind.(parking.StreetCleaning); cleaning && !b.timed {
			// Street cleaning is always scheduled; borrow the nearest stated schedule.
			if donor, ok := nearestTimed(anchors, blocks, h.line); ok {
				windows = donor.windows
			}
		}

		for _, w := range windows {
			rules = append(rules, parking.Rule{
				Kind:       kind,
				Severity:   severity,
				Fine:       fine,
				Window:     w,
				Confidence: confidence,
				RawText:    b.raw,
			})
		}
	}

	if len(rules) == 0 {
		return []parking.Rule{unknownRule(text, quality)}
	}
	return rules
}

// unknownRule wraps text no matcher recognized.
func unknownRule(text string, quality float64) parking.Rule {
	return parking.Rule{
		Kind:       parking.Unknown{},
		Severity:   parking.DefaultSeverity(parking.Unknown{}),
		Confidence: round(confidenceUnknown * quality),
		RawText:    text,
	}
}

// windowsFor derives the windows stated in a block: one per clock range,
// a whole-day window when only days are given, or a single nil window
// (always active) when the block has no time information. Ranges without days
// of their own run on inherited days, or every day when that is empty too.
func windowsFor(text string, inherited parking.DaySet) (windows []*parking.TimeWindow, skipped int, timed bool) {
	ranges, skipped := timegrammar.ParseRanges(text)
	days := timegrammar.ParseDays(text)
	if len(ranges) > 0 && days.IsEmpty() {
		days = inherited
	}

	if len(ranges) == 0 {
		if days.IsEmpty() {
			return []*parking.TimeWindow{nil}, skipped, timegrammar.IsAnytime(text)
		}
		return []*parking.TimeWindow{{Days: days}}, skipped, true
	}

	windows = make([]*parking.TimeWindow, 0, len(ranges))
	for _, r := range ranges {
		windows = append(windows, &parking.TimeWindow{
			Start: r.Start,
			End:   r.End,
			Days:  days.Effective(),
		})
	}
	return windows, skipped, true
}

type line struct {
	original string
	upper    string
}

func splitLines(text string) []line {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var lines []line
	for _, l := range strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' || r == '|' }) {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		lines = append(lines, line{original: l, upper: timegrammar.Normalize(l)})
	}
	return lines
}

func joinOriginal(lines []line) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.original
	}
	return strings.Join(parts, "\n")
}

type hit struct {
	matcher    int
	line       int
	match      []string
	confidence float64
}

// scan anchors each matcher on the first line it recognizes, and again on
// every later line it recognizes that states a time range of its own. Signs
// stack sections such as "NO PARKING 7AM-9AM" and "NO PARKING 4PM-6PM" around
// other rules, and each section is a separate block.
func (e *Extractor) scan(lines []line) []hit {
	var hits []hit
	for i, m := range e.matchers {
		anchored := false
		for j, l := range lines {
			match, confidence, ok := m.find(l.upper)
			if !ok {
				continue
			}
			if anchored {
				if ranges, _ := timegrammar.ParseRanges(l.upper); len(ranges) == 0 {
					continue
				}
			}
			anchored = true
			hits = append(hits, hit{matcher: i, line: j, match: match, confidence: confidence})
		}
	}
	return hits
}

// block is the text a matcher's rule is read from.
type block struct {
	raw     string
	upper   string
	windows []*parking.TimeWindow
	skipped int
	timed   bool
}

// blocks gives every anchor line the lines up to the next anchor, and returns
// the anchors in line order. Lines above the first anchor belong to the first
// block. A block that states clock ranges but no days takes the days printed
// at the foot of the sign.
func (e *Extractor) blocks(lines []line, hits []hit) ([]int, map[int]block) {
	anchors := make([]int, 0, len(hits))
	seen := make(map[int]bool)
	for _, h := range hits {
		if !seen[h.line] {
			seen[h.line] = true
			anchors = append(anchors, h.line)
		}
	}
	sort.Ints(anchors)

	footer := footerDays(lines, anchors[len(anchors)-1])

	blocks := make(map[int]block, len(anchors))
	for i, a := range anchors {
		from, to := a, len(lines)
		if i == 0 {
			from = 0
		}
		if i+1 < len(anchors) {
			to = anchors[i+1]
		}
		raw := joinOriginal(lines[from:to])
		upper := timegrammar.Normalize(raw)
		windows, skipped, timed := windowsFor(upper, footer)
		blocks[a] = block{raw: raw, upper: upper, windows: windows, skipped: skipped, timed: timed}
	}
	return anchors, blocks
}

// footerDays returns the days named on day-only lines that close the last
// block, after its final clock range. Those lines qualify the whole sign. The
// result is empty when the last block has no clock range.
func footerDays(lines []line, last int) parking.DaySet {
	var days parking.DaySet
	ranged := false
	for _, l := range lines[last:] {
		if ranges, _ := timegrammar.ParseRanges(l.upper); len(ranges) > 0 {
			ranged = true
			days = 0
			continue
		}
		if ranged {
			days = days.Union(timegrammar.ParseDays(l.upper))
		}
	}
	return days
}

// nearestTimed finds the closest block with time information, preferring
// earlier blocks.
func nearestTimed(anchors []int, blocks map[int]block, anchor int) (block, bool) {
	pos := sort.SearchInts(anchors, anchor)
	for i := pos - 1; i >= 0; i-- {
		if b := blocks[anchors[i]]; b.timed {
			return b, true
		}
	}
	for i := pos + 1; i < len(anchors); i++ {
		if b := blocks[anchors[i]]; b.timed {
			return b, true
		}
	}
	return block{}, false
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
