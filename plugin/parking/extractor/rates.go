package extractor

import (
	"regexp"
	"sort"

	"github.com/hrygo/parksense/plugin/parking"
	"github.com/hrygo/parksense/plugin/parking/timegrammar"
)

const price = `\$\s*(\d+(?:\.\d{1,2})?)`

// ratePatterns recognize prices printed on meters and pay stations.
var ratePatterns = []struct {
	re      *regexp.Regexp
	billing parking.Billing
}{
	{regexp.MustCompile(price + `\s*(?:/|PER|AN?)\s*(?:HOUR|HR)\b`), parking.BillingHourly},
	{regexp.MustCompile(price + `\s*(?:(?:/|PER|A)\s*DAY|DAILY(?:\s+MAX(?:IMUM)?)?|ALL\s+DAY)\b`), parking.BillingDaily},
	{regexp.MustCompile(`\bDAILY\s+(?:MAX(?:IMUM)?|RATE)\s*` + price), parking.BillingDaily},
	{regexp.MustCompile(price + `\s*(?:(?:/|PER|A)\s*WEEK|WEEKLY)\b`), parking.BillingWeekly},
	{regexp.MustCompile(price + `\s*(?:(?:/|PER|A)\s*MONTH|MONTHLY)\b`), parking.BillingMonthly},
	{regexp.MustCompile(price + `\s*FLAT(?:\s+RATE)?\b|\bFLAT\s+RATE\s*` + price), parking.BillingFlat},
}

// ExtractRates reads the prices a meter display states, in the order they
// appear. Each tier applies during the window of the first metered rule found in
// the text, or at all times when the meter states none. Pricing from a
// separate source should take precedence; this only fills in what the sign says.
func (e *Extractor) ExtractRates(text string) []parking.RateTier {
	upper := timegrammar.Normalize(text)

	var applicability *parking.TimeWindow
	for _, r := range e.Extract(text) {
		if _, ok := r.Kind.(parking.Metered); ok && r.Window != nil {
			w := *r.Window
			applicability = &w
			break
		}
	}

	type found struct {
		offset int
		tier   parking.RateTier
	}
	var tiers []found
	for _, p := range ratePatterns {
		for _, idx := range p.re.FindAllStringSubmatchIndex(upper, -1) {
			figure := firstGroup(upper, idx)
			cents, ok := parseCents(figure)
			if !ok || cents <= 0 {
				continue
			}
			tiers = append(tiers, found{
				offset: idx[0],
				tier: parking.RateTier{
					Description:   upper[idx[0]:idx[1]],
					Price:         parking.Money{Amount: cents, Currency: e.currency},
					Applicability: applicability,
					Billing:       p.billing,
				},
			})
		}
	}

	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].offset < tiers[j].offset })
	result := make([]parking.RateTier, 0, len(tiers))
	for _, f := range tiers {
		result = append(result, f.tier)
	}
	return result
}

// firstGroup returns the first non-empty capture group of a submatch index.
func firstGroup(s string, idx []int) string {
	for i := 2; i+1 < len(idx); i += 2 {
		if idx[i] >= 0 {
			return s[idx[i]:idx[i+1]]
		}
	}
	return ""
}
