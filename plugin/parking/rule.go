package parking

import (
	"encoding/json"
	"fmt"
	"time"
)

// Rule is one restriction read off a sign.
//
// A nil Window means the rule is always active. Confidence stays below 1.0
// unless a person confirmed the rule.
type Rule struct {
	Kind       Kind
	Severity   Severity
	Fine       *Money
	Window     *TimeWindow
	Confidence float64
	RawText    string
	Confirmed  bool
}

// ActiveAt reports whether the rule is in force at the instant.
func (r Rule) ActiveAt(at time.Time) bool {
	return r.Window == nil || r.Window.Contains(at)
}

// Confirm returns a copy of r marked as confirmed by the user.
func (r Rule) Confirm() Rule {
	r.Confidence = 1.0
	r.Confirmed = true
	return r
}

// ConfirmDuration supersedes the extracted limit of a TimeLimit rule with a
// user-confirmed value. It reports false and leaves r untouched for other kinds.
func (r Rule) ConfirmDuration(minutes int) (Rule, bool) {
	limit, ok := r.Kind.(TimeLimit)
	if !ok || minutes <= 0 {
		return r, false
	}
	limit.DurationMinutes = minutes
	r.Kind = limit
	return r.Confirm(), true
}

func (r Rule) String() string {
	s := Describe(r.Kind)
	if r.Window != nil {
		s += " " + r.Window.String()
	}
	return s
}

type ruleJSON struct {
	Kind       kindJSON    `json:"kind"`
	Severity   Severity    `json:"severity"`
	Fine       *Money      `json:"fine,omitempty"`
	Window     *TimeWindow `json:"window,omitempty"`
	Confidence float64     `json:"confidence"`
	RawText    string      `json:"raw_text"`
	Confirmed  bool        `json:"confirmed,omitempty"`
}

// MarshalJSON encodes the rule with its kind as a tagged object.
func (r Rule) MarshalJSON() ([]byte, error) {
	kind, err := encodeKind(r.Kind)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ruleJSON{
		Kind:       kind,
		Severity:   r.Severity,
		Fine:       r.Fine,
		Window:     r.Window,
		Confidence: r.Confidence,
		RawText:    r.RawText,
		Confirmed:  r.Confirmed,
	})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var v ruleJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	kind, err := decodeKind(v.Kind)
	if err != nil {
		return err
	}
	*r = Rule{
		Kind:       kind,
		Severity:   v.Severity,
		Fine:       v.Fine,
		Window:     v.Window,
		Confidence: v.Confidence,
		RawText:    v.RawText,
		Confirmed:  v.Confirmed,
	}
	return nil
}

// Money is an amount in minor currency units (cents for USD).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Times multiplies the amount by n units.
func (m Money) Times(n int64) Money {
	return Money{Amount: m.Amount * n, Currency: m.Currency}
}

func (m Money) String() string {
	s := fmt.Sprintf("%.2f", float64(m.Amount)/100)
	if m.Currency == "" {
		return s
	}
	return s + " " + m.Currency
}

// Verdict is the legality of parking at one instant.
type Verdict struct {
	Allowed      bool       `json:"allowed"`
	BindingRule  *Rule      `json:"binding_rule,omitempty"`
	NextChangeAt *time.Time `json:"next_change_at,omitempty"`
}

// Billing is how a rate tier charges for a stay.
type Billing string

const (
	BillingHourly  Billing = "hourly"
	BillingDaily   Billing = "daily"
	BillingWeekly  Billing = "weekly"
	BillingMonthly Billing = "monthly"
	BillingFlat    Billing = "flat"
)

// RateTier is one price in a caller-ordered pricing list, most specific first.
type RateTier struct {
	Description   string      `json:"description,omitempty"`
	Price         Money       `json:"price"`
	Applicability *TimeWindow `json:"applicability,omitempty"`
	Billing       Billing     `json:"billing"`
}

// AppliesAt reports whether the tier is eligible for a stay starting at start.
func (t RateTier) AppliesAt(start time.Time) bool {
	return t.Applicability == nil || t.Applicability.Contains(start)
}

// LineItem is one charge in a cost breakdown.
type LineItem struct {
	Description string `json:"description"`
	Amount      Money  `json:"amount"`
}

// CostBreakdown is the priced result of a stay.
type CostBreakdown struct {
	Total     Money      `json:"total"`
	Breakdown []LineItem `json:"breakdown"`
}

// TimerReason says why a timer was suggested.
type TimerReason string

const (
	ReasonTimeLimit        TimerReason = "time_limit"
	ReasonRestrictionStart TimerReason = "restriction_start"
)

// TimerSuggestion is a countdown for a parking session.
type TimerSuggestion struct {
	ExpiresAt time.Time   `json:"expires_at"`
	WarnAt    time.Time   `json:"warn_at"`
	Reason    TimerReason `json:"reason"`
	Rule      Rule        `json:"rule"`
}
