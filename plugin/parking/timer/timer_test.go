package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/parksense/plugin/parking"
	"github.com/hrygo/parksense/plugin/parking/evaluator"
	"github.com/hrygo/parksense/plugin/parking/extractor"
)

// 2026-10-12 is a Monday.
func at(day, hour, minute int) time.Time {
	return time.Date(2026, time.October, day, hour, minute, 0, 0, time.UTC)
}

func suggest(text string, instant time.Time) *parking.TimerSuggestion {
	rules := extractor.Extract(text)
	return Suggest(evaluator.Evaluate(rules, instant), rules, instant)
}

func TestSuggest_TimeLimit(t *testing.T) {
	got := suggest("2 HOUR PARKING\n8AM - 6PM\nMON-FRI", at(14, 10, 0))
	require.NotNil(t, got)
	assert.Equal(t, at(14, 12, 0), got.ExpiresAt)
	assert.Equal(t, at(14, 11, 50), got.WarnAt)
	assert.Equal(t, parking.ReasonTimeLimit, got.Reason)
	assert.Equal(t, parking.TimeLimit{DurationMinutes: 120}, got.Rule.Kind)
}

func TestSuggest_ShortestLimitWins(t *testing.T) {
	rules := []parking.Rule{
		{Kind: parking.TimeLimit{DurationMinutes: 120}},
		{Kind: parking.TimeLimit{DurationMinutes: 30}},
		{Kind: parking.TimeLimit{DurationMinutes: 15}, Window: &parking.TimeWindow{
			Start: parking.MustTimeOfDay(20, 0), End: parking.MustTimeOfDay(22, 0), Days: parking.EveryDay,
		}},
	}
	instant := at(14, 10, 0)
	got := Suggest(evaluator.Evaluate(rules, instant), rules, instant)
	require.NotNil(t, got)
	assert.Equal(t, at(14, 10, 30), got.ExpiresAt)
	assert.Equal(t, at(14, 10, 20), got.WarnAt)
}

func TestSuggest_RestrictionAhead(t *testing.T) {
	got := suggest("NO PARKING\n7AM-9AM\n4PM-6PM\nMONDAY THRU FRIDAY", at(13, 12, 0))
	require.NotNil(t, got)
	assert.Equal(t, at(13, 16, 0), got.ExpiresAt)
	assert.Equal(t, at(13, 15, 50), got.WarnAt)
	assert.Equal(t, parking.ReasonRestrictionStart, got.Reason)
	assert.Equal(t, parking.NoParking{}, got.Rule.Kind)
}

func TestSuggest_RestrictionCutsLimitShort(t *testing.T) {
	text := "2 HOUR PARKING 8AM-4PM\nNO PARKING 4PM-6PM\nMON-FRI"

	got := suggest(text, at(14, 15, 0))
	require.NotNil(t, got)
	assert.Equal(t, at(14, 16, 0), got.ExpiresAt)
	assert.Equal(t, parking.ReasonRestrictionStart, got.Reason)
	assert.Equal(t, parking.NoParking{}, got.Rule.Kind)

	// The limit runs out before the restriction starts.
	got = suggest(text, at(14, 13, 0))
	require.NotNil(t, got)
	assert.Equal(t, at(14, 15, 0), got.ExpiresAt)
	assert.Equal(t, parking.ReasonTimeLimit, got.Reason)
}

func TestSuggest_RestrictionAfterWeekend(t *testing.T) {
	// Saturday noon: the next restriction is Monday 07:00.
	got := suggest("NO PARKING\n7AM-9AM\nMONDAY THRU FRIDAY", at(17, 12, 0))
	require.NotNil(t, got)
	assert.Equal(t, at(19, 7, 0), got.ExpiresAt)
}

func TestSuggest_None(t *testing.T) {
	tests := []struct {
		name string
		text string
		at   time.Time
	}{
		{"illegal now", "NO PARKING\n7AM-9AM\nMONDAY THRU FRIDAY", at(13, 8, 0)},
		{"free parking", "FREE PARKING", at(13, 8, 0)},
		{"gibberish", "XYZ QWERTY 123", at(13, 8, 0)},
		{"limit outside window", "2 HOUR PARKING\n8AM - 6PM\nMON-FRI", at(17, 10, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, suggest(tt.text, tt.at))
		})
	}
}

func TestSuggest_WarnNeverBeforeNow(t *testing.T) {
	got := suggest("NO PARKING\n4PM-6PM", at(14, 15, 55))
	require.NotNil(t, got)
	assert.Equal(t, at(14, 16, 0), got.ExpiresAt)
	assert.Equal(t, at(14, 15, 55), got.WarnAt)
}

func TestAdvisor_CustomLead(t *testing.T) {
	rules := []parking.Rule{{Kind: parking.TimeLimit{DurationMinutes: 60}}}
	instant := at(14, 10, 0)
	got := Advisor{Lead: 15 * time.Minute}.Suggest(evaluator.Evaluate(rules, instant), rules, instant)
	require.NotNil(t, got)
	assert.Equal(t, at(14, 10, 45), got.WarnAt)
}
