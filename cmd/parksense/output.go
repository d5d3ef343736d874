package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"

	"github.com/hrygo/parksense/plugin/parking"
	"github.com/hrygo/parksense/plugin/reminder"
	"github.com/hrygo/parksense/server/service/sign"
	"github.com/hrygo/parksense/server/timezone"
)

var (
	okColor    = color.New(color.FgGreen, color.Bold)
	badColor   = color.New(color.FgRed, color.Bold)
	warnColor  = color.New(color.FgYellow)
	labelColor = color.New(color.Faint)
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "failed to write output")
}

// printer renders human summaries in the configured timezone.
type printer struct {
	w   io.Writer
	loc *time.Location
}

func (p printer) label(name string) {
	labelColor.Fprintf(p.w, "%-12s", name)
}

func (p printer) rules(rules []parking.Rule, pending []int) {
	needs := make(map[int]bool, len(pending))
	for _, i := range pending {
		needs[i] = true
	}

	for i, r := range rules {
		line := fmt.Sprintf("%2d. %s  [%s, confidence %.2f]", i, r.String(), r.Severity, r.Confidence)
		if r.Fine != nil {
			line += fmt.Sprintf(" fine %s", r.Fine)
		}
		if needs[i] {
			warnColor.Fprintln(p.w, line+"  (please confirm)")
			continue
		}
		fmt.Fprintln(p.w, line)
	}
}

func (p printer) verdict(v parking.Verdict) {
	p.label("parking")
	if v.Allowed {
		okColor.Fprintln(p.w, "ALLOWED")
	} else {
		badColor.Fprintln(p.w, "NOT ALLOWED")
	}
	if v.BindingRule != nil {
		p.label("because")
		fmt.Fprintf(p.w, "%s (%s)\n", v.BindingRule.String(), v.BindingRule.Severity)
	}
	if v.NextChangeAt != nil {
		p.label("changes at")
		fmt.Fprintln(p.w, timezone.Format(*v.NextChangeAt, p.loc))
	}
}

func (p printer) cost(c *parking.CostBreakdown) {
	if c == nil {
		return
	}
	p.label("cost")
	if len(c.Breakdown) == 0 {
		fmt.Fprintln(p.w, "no applicable rate")
		return
	}
	fmt.Fprintln(p.w, c.Total)
	for _, item := range c.Breakdown {
		fmt.Fprintf(p.w, "%12s%s: %s\n", "", item.Description, item.Amount)
	}
}

func (p printer) timer(t *parking.TimerSuggestion) {
	p.label("timer")
	if t == nil {
		fmt.Fprintln(p.w, "none")
		return
	}
	why := "time limit ends"
	if t.Reason == parking.ReasonRestrictionStart {
		why = parking.Describe(t.Rule.Kind) + " starts"
	}
	fmt.Fprintf(p.w, "%s at %s, warning at %s\n",
		why, timezone.Format(t.ExpiresAt, p.loc), t.WarnAt.In(p.loc).Format("15:04"))
}

func (p printer) analysis(a *sign.Analysis) {
	p.rules(a.Rules, a.Pending)
	fmt.Fprintln(p.w)
	p.label("at")
	fmt.Fprintln(p.w, timezone.Format(a.At, p.loc))
	p.verdict(a.Verdict)
	p.cost(a.Cost)
	p.timer(a.Timer)
}

func (p printer) reminders(rs []*reminder.Reminder) {
	if len(rs) == 0 {
		fmt.Fprintln(p.w, "no reminders")
		return
	}
	for _, r := range rs {
		p.label(strings.ToUpper(string(r.Type)))
		fmt.Fprintf(p.w, "%s  %s\n", timezone.Format(r.TriggerAt, p.loc), r.Message)
	}
}
