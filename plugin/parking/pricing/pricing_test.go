package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/parksense/plugin/parking"
)

func usd(cents int64) parking.Money {
	return parking.Money{Amount: cents, Currency: "USD"}
}

// 2026-10-14 is a Wednesday.
var start = time.Date(2026, time.October, 14, 10, 0, 0, 0, time.UTC)

func TestCalculate_HourlyRoundsUp(t *testing.T) {
	tiers := []parking.RateTier{{Description: "meter", Price: usd(250), Billing: parking.BillingHourly}}

	cost := Calculate(tiers, start, 61*time.Minute)
	assert.Equal(t, usd(500), cost.Total)
	require.Len(t, cost.Breakdown, 1)
	assert.Equal(t, usd(500), cost.Breakdown[0].Amount)
	assert.Equal(t, "meter x2 @ 2.50 USD", cost.Breakdown[0].Description)
}

func TestCalculate_NoTiers(t *testing.T) {
	cost := Calculate(nil, start, time.Hour)
	assert.Equal(t, int64(0), cost.Total.Amount)
	assert.NotNil(t, cost.Breakdown)
	assert.Empty(t, cost.Breakdown)
}

func TestCalculate_Billing(t *testing.T) {
	tests := []struct {
		name     string
		billing  parking.Billing
		duration time.Duration
		want     int64
	}{
		{"hourly exact", parking.BillingHourly, 2 * time.Hour, 200},
		{"hourly minute", parking.BillingHourly, time.Minute, 100},
		{"hourly zero", parking.BillingHourly, 0, 0},
		{"daily partial", parking.BillingDaily, 25 * time.Hour, 200},
		{"weekly", parking.BillingWeekly, 8 * 24 * time.Hour, 200},
		{"monthly", parking.BillingMonthly, 40 * 24 * time.Hour, 100},
		{"flat", parking.BillingFlat, 5 * time.Minute, 100},
		{"flat zero", parking.BillingFlat, 0, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tiers := []parking.RateTier{{Price: usd(100), Billing: tt.billing}}
			assert.Equal(t, usd(tt.want), Calculate(tiers, start, tt.duration).Total)
		})
	}
}

func TestCalculate_FirstEligibleTierWins(t *testing.T) {
	evening := &parking.TimeWindow{
		Start: parking.MustTimeOfDay(18, 0),
		End:   parking.MustTimeOfDay(22, 0),
		Days:  parking.EveryDay,
	}
	tiers := []parking.RateTier{
		{Description: "evening", Price: usd(500), Billing: parking.BillingFlat, Applicability: evening},
		{Description: "day", Price: usd(300), Billing: parking.BillingHourly},
		{Description: "fallback", Price: usd(1), Billing: parking.BillingHourly},
	}

	cost := Calculate(tiers, start, 90*time.Minute)
	assert.Equal(t, usd(600), cost.Total)
	assert.Equal(t, "day x2 @ 3.00 USD", cost.Breakdown[0].Description)

	cost = Calculate(tiers, start.Add(9*time.Hour), 3*time.Hour)
	assert.Equal(t, usd(500), cost.Total)
	assert.Equal(t, "evening @ 5.00 USD", cost.Breakdown[0].Description)
}

func TestCalculate_NoApplicableTier(t *testing.T) {
	sunday := &parking.TimeWindow{Days: parking.NewDaySet(time.Sunday)}
	tiers := []parking.RateTier{{Price: usd(100), Billing: parking.BillingHourly, Applicability: sunday}}

	cost := Calculate(tiers, start, time.Hour)
	assert.Zero(t, cost.Total.Amount)
	assert.Empty(t, cost.Breakdown)
}
