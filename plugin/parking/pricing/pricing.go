// Package pricing prices a parking stay against an ordered list of rate tiers.
package pricing

import (
	"fmt"
	"time"

	"github.com/hrygo/parksense/plugin/parking"
)

// Calculate prices a stay of duration starting at start.
//
// The first tier applicable at start is used for the whole stay. Duration
// based billing rounds partial units up. With no applicable tier the result is
// a zero total and an empty breakdown.
func Calculate(tiers []parking.RateTier, start time.Time, duration time.Duration) parking.CostBreakdown {
	tier, ok := Select(tiers, start)
	if !ok {
		return parking.CostBreakdown{Breakdown: []parking.LineItem{}}
	}

	units := Units(tier.Billing, duration)
	amount := tier.Price.Times(units)
	return parking.CostBreakdown{
		Total: amount,
		Breakdown: []parking.LineItem{{
			Description: describe(tier, units),
			Amount:      amount,
		}},
	}
}

// Select returns the first tier eligible for a stay starting at start.
func Select(tiers []parking.RateTier, start time.Time) (parking.RateTier, bool) {
	for _, t := range tiers {
		if t.AppliesAt(start) {
			return t, true
		}
	}
	return parking.RateTier{}, false
}

// Units returns how many billing units a stay of duration is charged.
func Units(billing parking.Billing, duration time.Duration) int64 {
	var unit time.Duration
	switch billing {
	case parking.BillingHourly:
		unit = time.Hour
	case parking.BillingDaily:
		unit = 24 * time.Hour
	case parking.BillingWeekly:
		unit = 7 * 24 * time.Hour
	default:
		// Monthly and flat tiers charge once per stay.
		return 1
	}
	if duration <= 0 {
		return 0
	}
	return int64((duration + unit - 1) / unit)
}

func describe(tier parking.RateTier, units int64) string {
	label := tier.Description
	if label == "" {
		label = string(tier.Billing)
	}
	switch tier.Billing {
	case parking.BillingHourly, parking.BillingDaily, parking.BillingWeekly:
		return fmt.Sprintf("%s x%d @ %s", label, units, tier.Price)
	default:
		return fmt.Sprintf("%s @ %s", label, tier.Price)
	}
}
