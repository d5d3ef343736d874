// Package timer proposes a countdown for a parking session.
package timer

import (
	"time"

	"github.com/hrygo/parksense/plugin/parking"
	"github.com/hrygo/parksense/plugin/parking/evaluator"
)

const (
	// DefaultLead is how long before expiry the warning fires.
	DefaultLead = 10 * time.Minute

	// lookahead bounds the search for an upcoming restriction.
	lookahead = 7 * 24 * time.Hour
)

// Advisor turns a verdict into a timer suggestion.
type Advisor struct {
	// Lead is subtracted from the expiry to get the warning instant.
	Lead time.Duration
}

var defaultAdvisor = Advisor{Lead: DefaultLead}

// Suggest proposes a timer with the default lead.
func Suggest(verdict parking.Verdict, rules []parking.Rule, at time.Time) *parking.TimerSuggestion {
	return defaultAdvisor.Suggest(verdict, rules, at)
}

// Suggest returns nil when parking is illegal at the instant or when nothing
// will end the session: no active time limit and no restriction ahead.
func (a Advisor) Suggest(verdict parking.Verdict, rules []parking.Rule, at time.Time) *parking.TimerSuggestion {
	if !verdict.Allowed {
		return nil
	}

	start, restriction, restricted := nextRestriction(rules, at)

	if i, ok := shortestLimit(rules, at); ok {
		expires := at.Add(rules[i].Kind.(parking.TimeLimit).Duration())
		// A restriction that starts inside the limit ends the stay first.
		if !restricted || expires.Before(start) {
			return a.suggestion(at, expires, parking.ReasonTimeLimit, rules[i])
		}
	}

	if restricted {
		return a.suggestion(at, start, parking.ReasonRestrictionStart, rules[restriction])
	}
	return nil
}

func (a Advisor) suggestion(at, expires time.Time, reason parking.TimerReason, rule parking.Rule) *parking.TimerSuggestion {
	lead := a.Lead
	if lead < 0 {
		lead = 0
	}
	warn := expires.Add(-lead)
	if warn.Before(at) {
		warn = at
	}
	return &parking.TimerSuggestion{
		ExpiresAt: expires,
		WarnAt:    warn,
		Reason:    reason,
		Rule:      rule,
	}
}

// shortestLimit finds the tightest time limit in force at the instant.
func shortestLimit(rules []parking.Rule, at time.Time) (int, bool) {
	best := -1
	for i, r := range rules {
		limit, ok := r.Kind.(parking.TimeLimit)
		if !ok || limit.DurationMinutes <= 0 || !r.ActiveAt(at) {
			continue
		}
		if best < 0 || limit.DurationMinutes < rules[best].Kind.(parking.TimeLimit).DurationMinutes {
			best = i
		}
	}
	return best, best >= 0
}

// nextRestriction walks window boundaries forward until parking becomes
// illegal, and returns that instant with the binding rule.
func nextRestriction(rules []parking.Rule, at time.Time) (time.Time, int, bool) {
	limit := at.Add(lookahead)
	cursor := at
	for {
		next, ok := evaluator.NextChange(rules, cursor)
		if !ok || next.After(limit) {
			return time.Time{}, 0, false
		}
		if i, ok := evaluator.Binding(rules, next); ok {
			return next, i, true
		}
		cursor = next
	}
}
