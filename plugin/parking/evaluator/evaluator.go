// Package evaluator decides whether parking is allowed at an instant under a
// set of extracted rules.
//
// Every function here is pure: the same rules and instant always produce the
// same verdict, and no clock is consulted.
package evaluator

import (
	"time"

	"github.com/hrygo/parksense/plugin/parking"
)

// Horizon bounds how far ahead NextChange looks for a window boundary. Eight
// days covers every weekly pattern including one that wraps past midnight.
const Horizon = 8 * 24 * time.Hour

// Evaluate returns the legality verdict for rules at the instant.
//
// Only restrictive kinds can make parking illegal. Among active restrictive
// rules the highest severity binds; equal severities go to the rule listed
// first.
func Evaluate(rules []parking.Rule, at time.Time) parking.Verdict {
	verdict := parking.Verdict{Allowed: true}

	if i, ok := Binding(rules, at); ok {
		binding := rules[i]
		verdict.Allowed = false
		verdict.BindingRule = &binding
	}
	if next, ok := NextChange(rules, at); ok {
		verdict.NextChangeAt = &next
	}
	return verdict
}

// Binding returns the index of the rule that makes parking illegal at the
// instant, if any.
func Binding(rules []parking.Rule, at time.Time) (int, bool) {
	best := -1
	for i, r := range rules {
		if r.Kind == nil || !r.Kind.Restrictive() || !r.ActiveAt(at) {
			continue
		}
		if best < 0 || r.Severity > rules[best].Severity {
			best = i
		}
	}
	return best, best >= 0
}

// ActiveRules returns the indexes of rules in force at the instant.
func ActiveRules(rules []parking.Rule, at time.Time) []int {
	var active []int
	for i, r := range rules {
		if r.ActiveAt(at) {
			active = append(active, i)
		}
	}
	return active
}

// NextChange returns the nearest instant after at when any windowed rule
// becomes active or inactive. Rules without a window never change.
func NextChange(rules []parking.Rule, at time.Time) (time.Time, bool) {
	horizon := at.Add(Horizon)

	var (
		next  time.Time
		found bool
	)
	for _, r := range rules {
		if r.Window == nil {
			continue
		}
		t, ok := r.Window.NextBoundary(at, horizon)
		if ok && (!found || t.Before(next)) {
			next, found = t, true
		}
	}
	return next, found
}
